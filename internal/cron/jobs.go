package cron

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// scoreBatchSize bounds how many unscored turns one backfill tick repairs
// per conversation.
const scoreBatchSize = 100

// Sweeper is the subset of the engine needed by the summary sweep.
// Defined here to avoid a dependency on the engine package.
type Sweeper interface {
	NeedsSummarization(ctx context.Context, conversationID string) (bool, error)
	EnqueueSummarize(conversationID string)
}

// Scorer is the subset of the engine needed by the score backfill.
type Scorer interface {
	ScoreAndStore(ctx context.Context, t memory.Turn) (float64, error)
}

// ConversationSource lists conversations and their unscored turns.
// memory.Store satisfies it.
type ConversationSource interface {
	ListConversationIDs(ctx context.Context) ([]string, error)
	ListUnscoredTurns(ctx context.Context, conversationID string, limit int) ([]memory.Turn, error)
}

// SummarySweepJob enqueues summarization for every conversation whose
// unsummarized tail has reached the trigger threshold. It backstops the
// per-turn trigger: a conversation that crossed the threshold while the
// process was down, or whose queued trigger was dropped, is picked up on
// the next tick.
type SummarySweepJob struct {
	Source       ConversationSource
	Engine       Sweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*SummarySweepJob)(nil)

// Name implements Job.
func (j *SummarySweepJob) Name() string { return "summary_sweep" }

// Schedule implements Job.
func (j *SummarySweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run enqueues eligible conversations. Per-conversation failures are logged
// and skipped so one broken conversation cannot stall the sweep.
func (j *SummarySweepJob) Run(ctx context.Context) error {
	ids, err := j.Source.ListConversationIDs(ctx)
	if err != nil {
		return fmt.Errorf("cron: summary sweep: list conversations: %w", err)
	}

	enqueued := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: summary sweep cancelled: %w", ctx.Err())
		}

		needs, err := j.Engine.NeedsSummarization(ctx, id)
		if err != nil {
			j.Logger.Warn("cron: summary sweep: eligibility check failed",
				"conversation", id, "error", err)
			continue
		}
		if !needs {
			continue
		}
		j.Engine.EnqueueSummarize(id)
		enqueued++
	}

	if enqueued > 0 {
		j.Logger.Info("cron: summary sweep enqueued conversations", "count", enqueued)
	}
	return nil
}

// ScoreBackfillJob persists importance scores for turns that were stored
// without one, e.g. when the eager scoring write failed at capture time.
type ScoreBackfillJob struct {
	Source       ConversationSource
	Scorer       Scorer
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*ScoreBackfillJob)(nil)

// Name implements Job.
func (j *ScoreBackfillJob) Name() string { return "score_backfill" }

// Schedule implements Job.
func (j *ScoreBackfillJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run scores up to scoreBatchSize unscored turns per conversation.
func (j *ScoreBackfillJob) Run(ctx context.Context) error {
	ids, err := j.Source.ListConversationIDs(ctx)
	if err != nil {
		return fmt.Errorf("cron: score backfill: list conversations: %w", err)
	}

	scored := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return fmt.Errorf("cron: score backfill cancelled: %w", ctx.Err())
		}

		turns, err := j.Source.ListUnscoredTurns(ctx, id, scoreBatchSize)
		if err != nil {
			j.Logger.Warn("cron: score backfill: list unscored turns failed",
				"conversation", id, "error", err)
			continue
		}

		for _, turn := range turns {
			if _, err := j.Scorer.ScoreAndStore(ctx, turn); err != nil {
				j.Logger.Warn("cron: score backfill: persist failed",
					"conversation", id, "turn", turn.ID, "error", err)
				continue
			}
			scored++
		}
	}

	if scored > 0 {
		j.Logger.Info("cron: score backfill repaired turns", "count", scored)
	}
	return nil
}
