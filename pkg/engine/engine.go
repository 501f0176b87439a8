// Package engine is the public façade of the conversation-memory engine.
// It wires the importance scorer, pin registry, summarizer, read-through
// cache, and context assembler over an injected store, and runs the async
// summarization worker.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mbeaufort/mnemo/internal/assemble"
	"github.com/mbeaufort/mnemo/internal/cache"
	"github.com/mbeaufort/mnemo/internal/metrics"
	"github.com/mbeaufort/mnemo/internal/pins"
	"github.com/mbeaufort/mnemo/internal/scoring"
	"github.com/mbeaufort/mnemo/internal/summarize"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// DefaultQueueSize bounds the async summarization queue.
const DefaultQueueSize = 16

// Config holds the engine's tuning knobs. The zero value selects defaults
// for every field.
type Config struct {
	// Budget is the default token budget for context assembly.
	Budget int

	// RecentLimit, PinLimit, SummaryLimit bound the context sections.
	RecentLimit  int
	PinLimit     int
	SummaryLimit int

	// SummaryThreshold is the unsummarized-turn count that triggers
	// summarization, and the size of each summary window.
	SummaryThreshold int

	// CacheTTL is the read-through cache entry lifetime.
	CacheTTL time.Duration

	// QueueSize bounds the async summarization queue.
	QueueSize int
}

func (cfg Config) withDefaults() Config {
	if cfg.Budget <= 0 {
		cfg.Budget = assemble.DefaultBudget
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = assemble.DefaultRecentLimit
	}
	if cfg.PinLimit <= 0 {
		cfg.PinLimit = assemble.DefaultPinLimit
	}
	if cfg.SummaryLimit <= 0 {
		cfg.SummaryLimit = assemble.DefaultSummaryLimit
	}
	if cfg.SummaryThreshold <= 0 {
		cfg.SummaryThreshold = summarize.DefaultThreshold
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	return cfg
}

// Engine exposes the memory operations a chat runtime needs around a model
// call: assemble context before, score and pin during, summarize after.
type Engine struct {
	store      memory.Store
	cache      *cache.Cache
	pins       *pins.Registry
	summarizer *summarize.Summarizer
	assembler  *assemble.Assembler
	metrics    *metrics.Metrics
	logger     *slog.Logger
	config     Config

	queue chan string
	busy  sync.Map
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

// New creates an Engine and starts its summarization worker. The generator
// may be nil, in which case every summary is produced by the deterministic
// fallback. Metrics may be nil to disable instrumentation.
func New(store memory.Store, gen summarize.Generator, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Engine {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	c := cache.New(cfg.CacheTTL, cache.RealClock())
	registry := pins.NewRegistry(store, logger)
	assembler := assemble.New(store, registry, c, nil, assemble.Config{
		Budget:       cfg.Budget,
		RecentLimit:  cfg.RecentLimit,
		PinLimit:     cfg.PinLimit,
		SummaryLimit: cfg.SummaryLimit,
	}, logger)
	assembler.SetMetrics(m)

	e := &Engine{
		store:      store,
		cache:      c,
		pins:       registry,
		summarizer: summarize.New(store, gen, cfg.SummaryThreshold, logger),
		assembler:  assembler,
		metrics:    m,
		logger:     logger,
		config:     cfg,
		queue:      make(chan string, cfg.QueueSize),
		done:       make(chan struct{}),
	}
	e.summarizer.SetCountFunc(e.turnCount)

	e.wg.Add(1)
	go e.worker()
	return e
}

// Close stops the async worker after draining queued work.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.done) })
	e.wg.Wait()
}

// BuildContext assembles the conversation's context under the default budget.
func (e *Engine) BuildContext(ctx context.Context, conversationID string) (memory.Context, error) {
	return e.assembler.Build(ctx, conversationID, 0)
}

// BuildContextWithBudget assembles the context under an explicit budget.
// A non-positive budget falls back to the default.
func (e *Engine) BuildContextWithBudget(ctx context.Context, conversationID string, budget int) (memory.Context, error) {
	return e.assembler.Build(ctx, conversationID, budget)
}

// RecordTurn persists a turn, invalidates the conversation's cache entries,
// and stores the turn's importance score. It returns the persisted turn.
func (e *Engine) RecordTurn(ctx context.Context, t memory.Turn) (memory.Turn, error) {
	created, err := e.store.AppendTurn(ctx, t)
	if err != nil {
		return memory.Turn{}, err
	}
	e.cache.Invalidate(created.ConversationID)

	if _, err := e.ScoreAndStore(ctx, created); err != nil {
		// Scoring is lazy-repairable by the backfill job; the turn itself
		// is already durable.
		e.logger.Warn("engine: deferred importance score",
			"conversation", created.ConversationID, "turn", created.ID, "error", err)
	}
	return created, nil
}

// CreatePin registers a pinned fact for a conversation.
func (e *Engine) CreatePin(ctx context.Context, req pins.CreateRequest) (memory.Pin, error) {
	pin, err := e.pins.Create(ctx, req)
	if err != nil {
		return memory.Pin{}, err
	}
	if e.metrics != nil {
		e.metrics.PinsCreated.Inc()
	}
	return pin, nil
}

// ScoreImportance returns the turn's lexical importance score without
// persisting anything.
func (e *Engine) ScoreImportance(t memory.Turn) float64 {
	return scoring.Score(t)
}

// ScoreAndStore scores the turn and persists the result.
func (e *Engine) ScoreAndStore(ctx context.Context, t memory.Turn) (float64, error) {
	score := scoring.Score(t)
	if err := e.store.SetTurnImportance(ctx, t.ConversationID, t.ID, score); err != nil {
		return score, err
	}
	return score, nil
}

// NeedsSummarization reports whether the conversation's unsummarized tail
// has reached the trigger threshold.
func (e *Engine) NeedsSummarization(ctx context.Context, conversationID string) (bool, error) {
	return e.summarizer.Needs(ctx, conversationID)
}

// AutoSummarize runs one synchronous summarization pass. It returns
// (nil, nil) when the conversation is not eligible or another pass for the
// same conversation is already in flight.
func (e *Engine) AutoSummarize(ctx context.Context, conversationID string) (*memory.Summary, error) {
	if !e.tryLock(conversationID) {
		e.logger.Debug("engine: summarization already in flight", "conversation", conversationID)
		return nil, nil
	}
	defer e.unlock(conversationID)

	summary, outcome, err := e.summarizer.Run(ctx, conversationID)
	e.recordOutcome(outcome)
	return summary, err
}

// InvalidateCache evicts every cached entry for the conversation.
func (e *Engine) InvalidateCache(conversationID string) {
	e.cache.Invalidate(conversationID)
}

// Store returns the underlying store for callers that need direct reads.
func (e *Engine) Store() memory.Store {
	return e.store
}

// turnCount reads the conversation's turn count through the cache.
func (e *Engine) turnCount(ctx context.Context, conversationID string) (int, error) {
	if count, ok := e.cache.TurnCount(conversationID); ok {
		if e.metrics != nil {
			e.metrics.CacheHits.WithLabelValues("turn_count").Inc()
		}
		return count, nil
	}
	if e.metrics != nil {
		e.metrics.CacheMisses.WithLabelValues("turn_count").Inc()
	}

	count, err := e.store.GetTurnCount(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	e.cache.SetTurnCount(conversationID, count)
	return count, nil
}

func (e *Engine) recordOutcome(outcome summarize.Outcome) {
	if e.metrics == nil || outcome == summarize.OutcomeNotEligible {
		return
	}
	e.metrics.Summaries.WithLabelValues(string(outcome)).Inc()
}

// tryLock acquires the per-conversation summarization slot without blocking.
func (e *Engine) tryLock(conversationID string) bool {
	_, loaded := e.busy.LoadOrStore(conversationID, struct{}{})
	return !loaded
}

func (e *Engine) unlock(conversationID string) {
	e.busy.Delete(conversationID)
}
