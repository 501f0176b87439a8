// Package memory defines the domain types and the storage contract for the
// conversation-memory engine: turns, pins, summaries, and the assembled
// context handed to a model call.
package memory

import "time"

// Role identifies the author of a turn.
type Role string

// Role constants for conversation turns.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PinKind describes how a pin came to exist.
type PinKind string

// PinKind constants. The set is extensible; stores must round-trip unknown
// kinds unchanged.
const (
	PinKindManual  PinKind = "manual"
	PinKindAuto    PinKind = "auto"
	PinKindConcept PinKind = "concept"
	PinKindSystem  PinKind = "system"
)

// DefaultPinImportance is the importance assigned to a pin when the caller
// does not provide one. Pins sit above summaries (0.7) in truncation order.
const DefaultPinImportance = 0.8

// SummaryImportance is the fixed importance of every summary: always favored
// over ordinary turns, always below pins.
const SummaryImportance = 0.7

// Turn is one user or assistant message in a conversation. The engine only
// ever writes the Importance field; content and role are immutable once
// persisted.
type Turn struct {
	ID             string
	ConversationID string
	Role           Role
	Content        string

	// Model is the identifier of the model that produced an assistant
	// turn. Empty for user turns or when unknown.
	Model string

	// TokenCount is the provider-reported token usage, 0 when unknown.
	TokenCount int

	// Importance is the lexical relevance score in [0,1].
	// Nil until the turn has been scored.
	Importance *float64

	CreatedAt time.Time
}

// Scored reports whether the turn carries a persisted importance score.
func (t Turn) Scored() bool {
	return t.Importance != nil
}

// Pin is an explicitly preserved fact that outlives the rolling turn window.
// Content is free text and may be a user-authored excerpt rather than the
// source turn's full text.
type Pin struct {
	ID             string
	ConversationID string
	Content        string

	// SourceTurnID references the turn the pin was extracted from.
	// Empty when the pin does not originate from a captured turn.
	SourceTurnID string

	// Importance is clamped to [0,1] on creation.
	Importance float64

	Kind      PinKind
	CreatedAt time.Time
}

// Summary is a compressed account of a contiguous range of turns.
// Ranges are non-overlapping per conversation and never mutated after
// creation.
type Summary struct {
	ID             string
	ConversationID string
	Content        string

	// TurnCount is the number of turns the summary covers.
	TurnCount int

	// FirstTurnID and LastTurnID bound the covered range, inclusive.
	FirstTurnID string
	LastTurnID  string

	// LastTurnAt is the creation time of the last covered turn. Turns
	// created strictly after this instant form the unsummarized tail.
	LastTurnAt time.Time

	// Importance is fixed at SummaryImportance for every summary.
	Importance float64

	CreatedAt time.Time
}

// Context is the assembled memory handed to a model call: verbatim recent
// turns, ranked pins, and recent summaries, with an estimated total size.
// It is produced fresh on every build and never persisted.
type Context struct {
	ConversationID string
	RecentTurns    []Turn
	Pins           []Pin
	Summaries      []Summary

	// TotalTokens is the character-based size estimate of everything
	// included. It is an approximation, not a tokenizer count.
	TotalTokens int

	// Truncated is true when the initial selection exceeded the budget
	// and content was dropped by priority.
	Truncated bool
}

// Empty reports whether the context carries no content at all.
func (c Context) Empty() bool {
	return len(c.RecentTurns) == 0 && len(c.Pins) == 0 && len(c.Summaries) == 0
}

// ClampScore forces a score into the valid [0,1] range.
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
