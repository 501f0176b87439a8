package assemble_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mbeaufort/mnemo/internal/assemble"
	"github.com/mbeaufort/mnemo/internal/cache"
	"github.com/mbeaufort/mnemo/internal/pins"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func seedTurns(t *testing.T, store *memory.InMemoryStore, conversationID string, contents ...string) []memory.Turn {
	t.Helper()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	out := make([]memory.Turn, 0, len(contents))
	for i, content := range contents {
		role := memory.RoleUser
		if i%2 == 1 {
			role = memory.RoleAssistant
		}
		store.SetClock(func() time.Time { return base.Add(time.Duration(i) * time.Second) })
		turn, err := store.AppendTurn(context.Background(), memory.Turn{
			ConversationID: conversationID,
			Role:           role,
			Content:        content,
		})
		if err != nil {
			t.Fatalf("AppendTurn: %v", err)
		}
		out = append(out, turn)
	}
	return out
}

func newAssembler(store memory.Store, c *cache.Cache, cfg assemble.Config) *assemble.Assembler {
	return assemble.New(store, pins.NewRegistry(store, nil), c, nil, cfg, nil)
}

// failingPinStore fails pin reads but serves everything else normally.
type failingPinStore struct {
	memory.Store
}

func (failingPinStore) GetPins(context.Context, string, int) ([]memory.Pin, error) {
	return nil, fmt.Errorf("pins offline: %w", memory.ErrStorageUnavailable)
}

// failingTurnStore fails the recent-turn read.
type failingTurnStore struct {
	memory.Store
}

func (failingTurnStore) GetRecentTurns(context.Context, string, int, bool) ([]memory.Turn, error) {
	return nil, memory.ErrStorageUnavailable
}

// countingStore counts GetRecentTurns calls to observe cache behavior.
type countingStore struct {
	memory.Store
	recentCalls int
}

func (s *countingStore) GetRecentTurns(ctx context.Context, conversationID string, limit int, excludeNewest bool) ([]memory.Turn, error) {
	s.recentCalls++
	return s.Store.GetRecentTurns(ctx, conversationID, limit, excludeNewest)
}

// ---------------------------------------------------------------------------
// Build: under budget
// ---------------------------------------------------------------------------

func TestAssembler_Build_ShortConversation(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	seedTurns(t, store, "conv-1",
		"hello there",
		"hi, how can I help?",
		"what time is my appointment tomorrow",
		"your appointment is at 10am with Dr. Reyes",
		"can you move it to the afternoon",
	)

	a := newAssembler(store, nil, assemble.Config{})

	got, err := a.Build(context.Background(), "conv-1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// The newest turn is excluded; the four before it are returned oldest
	// first, untruncated.
	if len(got.RecentTurns) != 4 {
		t.Fatalf("RecentTurns = %d, want 4", len(got.RecentTurns))
	}
	if got.RecentTurns[0].Content != "hello there" {
		t.Errorf("first turn = %q, want the oldest", got.RecentTurns[0].Content)
	}
	last := got.RecentTurns[len(got.RecentTurns)-1]
	if last.Content != "your appointment is at 10am with Dr. Reyes" {
		t.Errorf("last turn = %q, want the one before newest", last.Content)
	}
	if len(got.Pins) != 0 || len(got.Summaries) != 0 {
		t.Errorf("expected no pins or summaries, got %d/%d", len(got.Pins), len(got.Summaries))
	}
	if got.Truncated {
		t.Error("Truncated = true, want false")
	}
	if got.TotalTokens <= 0 {
		t.Errorf("TotalTokens = %d, want > 0", got.TotalTokens)
	}
}

func TestAssembler_Build_EmptyConversation(t *testing.T) {
	t.Parallel()

	a := newAssembler(memory.NewInMemoryStore(), nil, assemble.Config{})

	got, err := a.Build(context.Background(), "nobody-home", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.Empty() {
		t.Errorf("expected an empty context, got %+v", got)
	}
	if got.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0", got.TotalTokens)
	}
}

func TestAssembler_Build_IncludesPinsAndSummaries(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	seedTurns(t, store, "conv-1", "one", "two", "three")

	reg := pins.NewRegistry(store, nil)
	if _, err := reg.Create(context.Background(), pins.CreateRequest{
		ConversationID: "conv-1",
		Content:        "allergic to penicillin",
		Importance:     0.95,
	}); err != nil {
		t.Fatalf("Create pin: %v", err)
	}
	if _, err := store.CreateSummary(context.Background(), memory.Summary{
		ConversationID: "conv-1",
		Content:        "The user set up their first appointment.",
		TurnCount:      15,
		FirstTurnID:    "t-1",
		LastTurnID:     "t-15",
		LastTurnAt:     time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
		Importance:     memory.SummaryImportance,
	}); err != nil {
		t.Fatalf("CreateSummary: %v", err)
	}

	a := assemble.New(store, reg, nil, nil, assemble.Config{}, nil)

	got, err := a.Build(context.Background(), "conv-1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(got.Pins) != 1 || got.Pins[0].Content != "allergic to penicillin" {
		t.Errorf("Pins = %+v, want the single pin", got.Pins)
	}
	if len(got.Summaries) != 1 {
		t.Errorf("Summaries = %d, want 1", len(got.Summaries))
	}
	if got.Truncated {
		t.Error("Truncated = true, want false")
	}
}

// ---------------------------------------------------------------------------
// Build: truncation
// ---------------------------------------------------------------------------

func TestAssembler_Build_TruncationKeepsRecentFloor(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	long := strings.Repeat("x", 400) // ~300 tokens each
	seedTurns(t, store, "conv-1", long, long, long, long, long, long, "newest")

	a := newAssembler(store, nil, assemble.Config{})

	// Budget fits one long turn; the floor still keeps three.
	got, err := a.Build(context.Background(), "conv-1", 350)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	if len(got.RecentTurns) != assemble.MinRecentTurns {
		t.Fatalf("RecentTurns = %d, want %d", len(got.RecentTurns), assemble.MinRecentTurns)
	}
	// The floor keeps the newest of the window, so the budget is exceeded.
	if got.TotalTokens <= 350 {
		t.Errorf("TotalTokens = %d, want > budget when the floor overrides it", got.TotalTokens)
	}
}

func TestAssembler_Build_TruncationPrefersPinsByImportance(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	reg := pins.NewRegistry(store, nil)

	// No turns at all: the budget goes entirely to pins.
	pinContents := []struct {
		content    string
		importance float64
	}{
		{"critical: allergic to penicillin", 0.95},
		{strings.Repeat("medium importance filler ", 20), 0.8}, // ~375 tokens, too big
		{"low: prefers window seats", 0.3},
	}
	for _, p := range pinContents {
		if _, err := reg.Create(context.Background(), pins.CreateRequest{
			ConversationID: "conv-1",
			Content:        p.content,
			Importance:     p.importance,
		}); err != nil {
			t.Fatalf("Create pin: %v", err)
		}
	}

	a := assemble.New(store, reg, nil, nil, assemble.Config{}, nil)

	got, err := a.Build(context.Background(), "conv-1", 30)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	// Selection walks importance order and stops at the first pin that
	// does not fit, so only the 0.95 pin survives even though the 0.3 pin
	// would have fit too.
	if len(got.Pins) != 1 {
		t.Fatalf("Pins = %d, want 1", len(got.Pins))
	}
	if got.Pins[0].Importance != 0.95 {
		t.Errorf("kept pin importance = %v, want 0.95", got.Pins[0].Importance)
	}
}

func TestAssembler_Build_TruncationSummariesNewestFirst(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		store.SetClock(func() time.Time { return base.Add(time.Duration(i) * time.Hour) })
		content := fmt.Sprintf("summary number %d covering earlier turns", i)
		if i == 1 {
			content = strings.Repeat("oversized summary ", 30)
		}
		if _, err := store.CreateSummary(context.Background(), memory.Summary{
			ConversationID: "conv-1",
			Content:        content,
			TurnCount:      15,
			FirstTurnID:    fmt.Sprintf("t-%d", i*15+1),
			LastTurnID:     fmt.Sprintf("t-%d", (i+1)*15),
			LastTurnAt:     base.Add(time.Duration(i) * time.Hour),
			Importance:     memory.SummaryImportance,
		}); err != nil {
			t.Fatalf("CreateSummary: %v", err)
		}
	}

	a := newAssembler(store, nil, assemble.Config{})

	got, err := a.Build(context.Background(), "conv-1", 40)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !got.Truncated {
		t.Fatal("Truncated = false, want true")
	}
	// Newest first: summary 2 fits, summary 1 (oversized) stops the walk,
	// summary 0 is never considered.
	if len(got.Summaries) != 1 {
		t.Fatalf("Summaries = %d, want 1", len(got.Summaries))
	}
	if !strings.Contains(got.Summaries[0].Content, "summary number 2") {
		t.Errorf("kept summary = %q, want the newest", got.Summaries[0].Content)
	}
}

func TestAssembler_Build_CustomBudgetOverridesDefault(t *testing.T) {
	t.Parallel()

	store := memory.NewInMemoryStore()
	long := strings.Repeat("y", 2000)
	seedTurns(t, store, "conv-1", long, long, long, long, long, "newest")

	a := newAssembler(store, nil, assemble.Config{})

	// The default 3000 budget would truncate; a generous explicit budget
	// keeps everything.
	got, err := a.Build(context.Background(), "conv-1", 50_000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got.Truncated {
		t.Error("Truncated = true, want false under the explicit budget")
	}
	if len(got.RecentTurns) != 5 {
		t.Errorf("RecentTurns = %d, want 5", len(got.RecentTurns))
	}
}

// ---------------------------------------------------------------------------
// Build: degradation and failure
// ---------------------------------------------------------------------------

func TestAssembler_Build_PinFailureDegradesToEmpty(t *testing.T) {
	t.Parallel()

	inner := memory.NewInMemoryStore()
	seedTurns(t, inner, "conv-1", "one", "two", "three")

	store := failingPinStore{Store: inner}
	a := assemble.New(store, pins.NewRegistry(store, nil), nil, nil, assemble.Config{}, nil)

	got, err := a.Build(context.Background(), "conv-1", 0)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(got.RecentTurns) != 2 {
		t.Errorf("RecentTurns = %d, want 2", len(got.RecentTurns))
	}
	if len(got.Pins) != 0 {
		t.Errorf("Pins = %d, want 0 after a pin read failure", len(got.Pins))
	}
}

func TestAssembler_Build_TurnFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := failingTurnStore{Store: memory.NewInMemoryStore()}
	a := assemble.New(store, pins.NewRegistry(store, nil), nil, nil, assemble.Config{}, nil)

	_, err := a.Build(context.Background(), "conv-1", 0)
	if !errors.Is(err, memory.ErrStorageUnavailable) {
		t.Fatalf("Build error = %v, want ErrStorageUnavailable", err)
	}
}

// ---------------------------------------------------------------------------
// Build: cache interaction
// ---------------------------------------------------------------------------

func TestAssembler_Build_ReadsThroughCache(t *testing.T) {
	t.Parallel()

	inner := memory.NewInMemoryStore()
	seedTurns(t, inner, "conv-1", "one", "two", "three", "four")

	store := &countingStore{Store: inner}
	c := cache.New(cache.DefaultTTL, cache.RealClock())
	a := assemble.New(store, pins.NewRegistry(store, nil), c, nil, assemble.Config{}, nil)

	for i := 0; i < 3; i++ {
		if _, err := a.Build(context.Background(), "conv-1", 0); err != nil {
			t.Fatalf("Build #%d: %v", i+1, err)
		}
	}
	if store.recentCalls != 1 {
		t.Errorf("store reads = %d, want 1 (later builds served from cache)", store.recentCalls)
	}

	c.Invalidate("conv-1")
	if _, err := a.Build(context.Background(), "conv-1", 0); err != nil {
		t.Fatalf("Build after invalidate: %v", err)
	}
	if store.recentCalls != 2 {
		t.Errorf("store reads = %d, want 2 after invalidation", store.recentCalls)
	}
}
