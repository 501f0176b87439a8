package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/mbeaufort/mnemo/internal/scoring"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// fakeSweeper records sweep decisions.
type fakeSweeper struct {
	needs    map[string]bool
	needsErr map[string]error

	mu       sync.Mutex
	enqueued []string
}

func (f *fakeSweeper) NeedsSummarization(_ context.Context, id string) (bool, error) {
	if err := f.needsErr[id]; err != nil {
		return false, err
	}
	return f.needs[id], nil
}

func (f *fakeSweeper) EnqueueSummarize(id string) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, id)
	f.mu.Unlock()
}

// storeScorer scores through the real scorer and persists to the store.
type storeScorer struct {
	store memory.Store
}

func (s *storeScorer) ScoreAndStore(ctx context.Context, t memory.Turn) (float64, error) {
	score := scoring.Score(t)
	return score, s.store.SetTurnImportance(ctx, t.ConversationID, t.ID, score)
}

func seedTurns(t *testing.T, store memory.Store, conversationID string, n int) []memory.Turn {
	t.Helper()
	out := make([]memory.Turn, 0, n)
	for i := 0; i < n; i++ {
		turn, err := store.AppendTurn(context.Background(), memory.Turn{
			ConversationID: conversationID,
			Role:           memory.RoleUser,
			Content:        "turn content",
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		out = append(out, turn)
	}
	return out
}

func TestSummarySweepJob_Name(t *testing.T) {
	t.Parallel()
	j := &SummarySweepJob{Logger: slog.Default()}
	if j.Name() != "summary_sweep" {
		t.Errorf("name = %q, want %q", j.Name(), "summary_sweep")
	}
}

func TestSummarySweepJob_Schedule(t *testing.T) {
	t.Parallel()
	j := &SummarySweepJob{Logger: slog.Default()}
	if j.Schedule() != "* * * * *" {
		t.Errorf("schedule = %q, want %q", j.Schedule(), "* * * * *")
	}
	j.ScheduleExpr = "*/2 * * * *"
	if j.Schedule() != "*/2 * * * *" {
		t.Errorf("schedule = %q, want the override", j.Schedule())
	}
}

func TestSummarySweepJob_Run_EnqueuesEligible(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	seedTurns(t, store, "eligible", 1)
	seedTurns(t, store, "quiet", 1)
	seedTurns(t, store, "broken", 1)

	sweeper := &fakeSweeper{
		needs:    map[string]bool{"eligible": true, "quiet": false},
		needsErr: map[string]error{"broken": errors.New("boom")},
	}

	j := &SummarySweepJob{Source: store, Engine: sweeper, Logger: slog.Default()}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sweeper.enqueued) != 1 || sweeper.enqueued[0] != "eligible" {
		t.Errorf("enqueued = %v, want just the eligible conversation", sweeper.enqueued)
	}
}

func TestSummarySweepJob_Run_Cancelled(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	seedTurns(t, store, "conv-1", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := &SummarySweepJob{Source: store, Engine: &fakeSweeper{}, Logger: slog.Default()}
	if err := j.Run(ctx); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestScoreBackfillJob_Run_ScoresUnscoredTurns(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	turns := seedTurns(t, store, "conv-1", 3)

	// One turn already scored; the job must only repair the others.
	if err := store.SetTurnImportance(context.Background(), "conv-1", turns[0].ID, 0.5); err != nil {
		t.Fatalf("SetTurnImportance: %v", err)
	}

	j := &ScoreBackfillJob{
		Source: store,
		Scorer: &storeScorer{store: store},
		Logger: slog.Default(),
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	remaining, err := store.ListUnscoredTurns(context.Background(), "conv-1", 10)
	if err != nil {
		t.Fatalf("ListUnscoredTurns: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("unscored turns after backfill = %d, want 0", len(remaining))
	}
}

func TestScoreBackfillJob_Name(t *testing.T) {
	t.Parallel()
	j := &ScoreBackfillJob{Logger: slog.Default()}
	if j.Name() != "score_backfill" {
		t.Errorf("name = %q, want %q", j.Name(), "score_backfill")
	}
}
