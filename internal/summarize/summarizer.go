// Package summarize compresses older conversation turns into summaries.
// A conversation becomes eligible once its unsummarized tail reaches the
// trigger threshold; summarization then covers exactly the next window of
// turns, preferring AI generation but always able to fall back to a
// deterministic compression, so the trigger is cleared no matter what.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

// DefaultThreshold is the unsummarized-turn count that makes a conversation
// eligible for a new summary, and the exact size of each summary window.
const DefaultThreshold = 15

// Generator is the external text-generation collaborator. Any error it
// returns is treated identically to an invalid result: the deterministic
// fallback takes over.
type Generator interface {
	// Generate produces text from a system prompt and a conversation
	// transcript. Non-streaming, bounded.
	Generate(ctx context.Context, systemPrompt, conversationText string) (string, error)

	// Local reports whether the backing model runs locally. Local output
	// goes through the validation gate before acceptance.
	Local() bool
}

// Outcome describes how a summarization attempt resolved.
type Outcome string

// Outcome values reported by Run.
const (
	OutcomeGenerated   Outcome = "generated"
	OutcomeFallback    Outcome = "fallback"
	OutcomeConflict    Outcome = "conflict"
	OutcomeNotEligible Outcome = "not_eligible"
)

// CountFunc returns the total turn count for a conversation. The engine
// injects a cache-backed implementation; the default reads the store.
type CountFunc func(ctx context.Context, conversationID string) (int, error)

// Summarizer decides when a conversation needs summarization and performs it.
type Summarizer struct {
	store     memory.Store
	gen       Generator
	logger    *slog.Logger
	threshold int
	counts    CountFunc
}

// New creates a Summarizer. A nil generator disables AI generation entirely;
// every summary is then produced by the deterministic fallback. A
// non-positive threshold falls back to DefaultThreshold.
func New(store memory.Store, gen Generator, threshold int, logger *slog.Logger) *Summarizer {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Summarizer{
		store:     store,
		gen:       gen,
		logger:    logger,
		threshold: threshold,
	}
	s.counts = func(ctx context.Context, conversationID string) (int, error) {
		return store.GetTurnCount(ctx, conversationID)
	}
	return s
}

// SetCountFunc replaces the turn-count source, letting the engine route
// counts through its read-through cache.
func (s *Summarizer) SetCountFunc(f CountFunc) {
	if f != nil {
		s.counts = f
	}
}

// Needs reports whether the conversation's unsummarized tail has reached the
// trigger threshold. The trigger is monotonic: once true it stays true until
// a new summary is created.
func (s *Summarizer) Needs(ctx context.Context, conversationID string) (bool, error) {
	last, err := s.store.GetLastSummary(ctx, conversationID)
	if err != nil {
		return false, fmt.Errorf("summarize: last summary: %w", err)
	}

	if last == nil {
		count, err := s.counts(ctx, conversationID)
		if err != nil {
			return false, fmt.Errorf("summarize: turn count: %w", err)
		}
		return count >= s.threshold, nil
	}

	tail, err := s.store.GetTurnsSince(ctx, conversationID, last.LastTurnAt)
	if err != nil {
		return false, fmt.Errorf("summarize: unsummarized tail: %w", err)
	}
	return len(tail) >= s.threshold, nil
}

// Run summarizes the next eligible window. It returns (nil, OutcomeNotEligible,
// nil) when the conversation has not reached the threshold. Generation and
// validation failures never escape: they resolve to the deterministic
// fallback, so a persisted Summary is returned on every eligible call. A
// store conflict means a concurrent trigger already covered the window; the
// existing summary is returned.
func (s *Summarizer) Run(ctx context.Context, conversationID string) (*memory.Summary, Outcome, error) {
	window, err := s.nextWindow(ctx, conversationID)
	if err != nil {
		return nil, OutcomeNotEligible, err
	}
	if len(window) < s.threshold {
		return nil, OutcomeNotEligible, nil
	}
	window = window[:s.threshold]

	source := renderTurns(window)
	content, generated := s.generate(ctx, source)
	outcome := OutcomeFallback
	if generated {
		outcome = OutcomeGenerated
	} else {
		content = Fallback(window)
	}

	last := window[len(window)-1]
	summary := memory.Summary{
		ConversationID: conversationID,
		Content:        content,
		TurnCount:      len(window),
		FirstTurnID:    window[0].ID,
		LastTurnID:     last.ID,
		LastTurnAt:     last.CreatedAt,
		Importance:     memory.SummaryImportance,
	}

	created, err := s.store.CreateSummary(ctx, summary)
	if err != nil {
		if errors.Is(err, memory.ErrSummaryConflict) {
			// A concurrent trigger won the race. Its summary clears
			// the trigger just as well as ours would have.
			existing, lerr := s.store.GetLastSummary(ctx, conversationID)
			if lerr != nil {
				return nil, OutcomeConflict, fmt.Errorf("summarize: fetch winning summary: %w", lerr)
			}
			return existing, OutcomeConflict, nil
		}
		return nil, outcome, fmt.Errorf("summarize: persist: %w", err)
	}

	s.logger.Info("summarize: summary created",
		"conversation", conversationID,
		"turns", created.TurnCount,
		"outcome", outcome,
	)
	return &created, outcome, nil
}

// nextWindow selects the turns eligible for the next summary: the first-ever
// window, or everything after the prior summary's end.
func (s *Summarizer) nextWindow(ctx context.Context, conversationID string) ([]memory.Turn, error) {
	last, err := s.store.GetLastSummary(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("summarize: last summary: %w", err)
	}

	if last == nil {
		turns, err := s.store.GetTurnsInRange(ctx, conversationID, "", "")
		if err != nil {
			return nil, fmt.Errorf("summarize: first window: %w", err)
		}
		return turns, nil
	}

	turns, err := s.store.GetTurnsSince(ctx, conversationID, last.LastTurnAt)
	if err != nil {
		return nil, fmt.Errorf("summarize: next window: %w", err)
	}
	return turns, nil
}

// generate runs the external collaborator and, for local models, the
// validation gate. Returns the accepted text and true, or "" and false when
// the fallback must take over.
func (s *Summarizer) generate(ctx context.Context, source string) (string, bool) {
	if s.gen == nil {
		return "", false
	}

	prompt := cloudPrompt
	if s.gen.Local() {
		prompt = localPrompt
	}

	text, err := s.gen.Generate(ctx, prompt, source)
	if err != nil {
		s.logger.Warn("summarize: generation failed, using fallback", "error", err)
		return "", false
	}

	if s.gen.Local() {
		if err := Validate(text, source); err != nil {
			s.logger.Warn("summarize: local summary rejected, using fallback", "error", err)
			return "", false
		}
	}
	return text, true
}
