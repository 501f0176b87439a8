// Package assemble builds the bounded, relevance-ranked context for a chat
// turn: verbatim recent turns, pinned facts, and summaries of older history,
// truncated by fixed priority when the token budget is exceeded.
package assemble

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mbeaufort/mnemo/internal/cache"
	"github.com/mbeaufort/mnemo/internal/metrics"
	"github.com/mbeaufort/mnemo/internal/pins"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// Assembly defaults.
const (
	// DefaultBudget is the token budget when the caller passes none.
	DefaultBudget = 3000

	// DefaultRecentLimit is the size of the recent-turn window, always
	// excluding the single newest turn — the caller appends that turn
	// after assembly so the model never sees the question it is being
	// asked inside the history.
	DefaultRecentLimit = 8

	// DefaultPinLimit is how many top pins are fetched.
	DefaultPinLimit = 5

	// DefaultSummaryLimit is how many recent summaries are fetched.
	DefaultSummaryLimit = 3

	// MinRecentTurns is the floor of recent turns kept under truncation,
	// even when keeping them exceeds the budget. Some recent context
	// outranks strict budget adherence.
	MinRecentTurns = 3
)

// Config holds the assembler's tuning knobs.
type Config struct {
	Budget       int
	RecentLimit  int
	PinLimit     int
	SummaryLimit int
}

func (cfg Config) withDefaults() Config {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultRecentLimit
	}
	if cfg.PinLimit <= 0 {
		cfg.PinLimit = DefaultPinLimit
	}
	if cfg.SummaryLimit <= 0 {
		cfg.SummaryLimit = DefaultSummaryLimit
	}
	return cfg
}

// Assembler produces a memory.Context for a conversation within a budget.
type Assembler struct {
	store     memory.Store
	pins      *pins.Registry
	cache     *cache.Cache
	estimator Estimator
	config    Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New creates an Assembler. A nil cache disables memoization (every build
// reads the store); a nil estimator uses the default character heuristic.
func New(store memory.Store, registry *pins.Registry, c *cache.Cache, estimator Estimator, cfg Config, logger *slog.Logger) *Assembler {
	if estimator == nil {
		estimator = NewCharEstimator(0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:     store,
		pins:      registry,
		cache:     c,
		estimator: estimator,
		config:    cfg.withDefaults(),
		logger:    logger,
	}
}

// SetMetrics attaches instrumentation. Nil leaves the assembler unobserved.
func (a *Assembler) SetMetrics(m *metrics.Metrics) {
	a.metrics = m
}

// Build assembles the context for a conversation. A non-positive budget uses
// the configured default. Pin and summary fetch failures degrade their
// sections to empty — a chat turn must never fail solely because memory
// enrichment failed — while a failure to fetch the recent turns themselves
// is surfaced, since without them there is no context at all.
func (a *Assembler) Build(ctx context.Context, conversationID string, budget int) (memory.Context, error) {
	if budget <= 0 {
		budget = a.config.Budget
	}

	recent, err := a.recentTurns(ctx, conversationID)
	if err != nil {
		return memory.Context{}, fmt.Errorf("assemble: recent turns: %w", err)
	}

	topPins, err := a.pins.Top(ctx, conversationID, a.config.PinLimit)
	if err != nil {
		a.logger.Warn("assemble: pin fetch failed, degrading to none",
			"conversation", conversationID, "error", err)
		topPins = nil
	}

	summaries, err := a.store.GetSummaries(ctx, conversationID, a.config.SummaryLimit)
	if err != nil {
		a.logger.Warn("assemble: summary fetch failed, degrading to none",
			"conversation", conversationID, "error", err)
		summaries = nil
	}

	total := EstimateTurns(a.estimator, recent) +
		EstimatePins(a.estimator, topPins) +
		EstimateSummaries(a.estimator, summaries)

	var built memory.Context
	if total <= budget {
		built = memory.Context{
			ConversationID: conversationID,
			RecentTurns:    recent,
			Pins:           topPins,
			Summaries:      summaries,
			TotalTokens:    total,
		}
	} else {
		built = a.truncate(conversationID, recent, topPins, summaries, budget)
	}

	if a.metrics != nil {
		a.metrics.ObserveBuild(built.TotalTokens, built.Truncated)
	}
	return built, nil
}

// recentTurns reads the recent-turn window through the cache.
func (a *Assembler) recentTurns(ctx context.Context, conversationID string) ([]memory.Turn, error) {
	limit := a.config.RecentLimit

	if a.cache != nil {
		if turns, ok := a.cache.RecentTurns(conversationID, limit); ok {
			if a.metrics != nil {
				a.metrics.CacheHits.WithLabelValues("recent_turns").Inc()
			}
			return turns, nil
		}
		if a.metrics != nil {
			a.metrics.CacheMisses.WithLabelValues("recent_turns").Inc()
		}
	}

	turns, err := a.store.GetRecentTurns(ctx, conversationID, limit, true)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		a.cache.SetRecentTurns(conversationID, limit, turns)
	}
	return turns, nil
}

// truncate drops content by fixed priority until the remainder fits:
// the MinRecentTurns newest turns are always kept, then whole pins in
// descending importance, then whole summaries newest first. Each fill stops
// at the first item that would exceed the budget; nothing is split.
func (a *Assembler) truncate(conversationID string, recent []memory.Turn, topPins []memory.Pin, summaries []memory.Summary, budget int) memory.Context {
	kept := recent
	if len(kept) > MinRecentTurns {
		kept = kept[len(kept)-MinRecentTurns:]
	}

	used := EstimateTurns(a.estimator, kept)

	var keptPins []memory.Pin
	for i := range topPins {
		cost := a.estimator.Estimate(topPins[i].Content)
		if used+cost > budget {
			break
		}
		keptPins = append(keptPins, topPins[i])
		used += cost
	}

	var keptSummaries []memory.Summary
	for i := range summaries {
		cost := a.estimator.Estimate(summaries[i].Content)
		if used+cost > budget {
			break
		}
		keptSummaries = append(keptSummaries, summaries[i])
		used += cost
	}

	a.logger.Debug("assemble: truncated context",
		"conversation", conversationID,
		"budget", budget,
		"tokens", used,
		"turns", len(kept),
		"pins", len(keptPins),
		"summaries", len(keptSummaries),
	)

	return memory.Context{
		ConversationID: conversationID,
		RecentTurns:    kept,
		Pins:           keptPins,
		Summaries:      keptSummaries,
		TotalTokens:    used,
		Truncated:      true,
	}
}
