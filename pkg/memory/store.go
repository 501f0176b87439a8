package memory

import (
	"context"
	"time"
)

// Store is the persistence boundary the engine reads and writes through.
// Implementations must be safe for concurrent use and must report I/O
// failures as errors wrapping ErrStorageUnavailable.
//
// Ordering: within a conversation, turns are totally ordered by insertion.
// Implementations assign a monotonic per-conversation sequence so recency
// and ranges stay well-defined even when timestamps collide.
type Store interface {
	// AppendTurn persists a turn at the end of the conversation. A zero
	// ID or CreatedAt is filled in by the store. The stored turn is
	// returned.
	AppendTurn(ctx context.Context, t Turn) (Turn, error)

	// GetTurn returns a single turn by ID.
	// Returns ErrTurnNotFound if it does not exist.
	GetTurn(ctx context.Context, conversationID, turnID string) (Turn, error)

	// GetRecentTurns returns up to limit most recent turns in
	// chronological order. With excludeNewest, the single newest turn is
	// left out of the window.
	GetRecentTurns(ctx context.Context, conversationID string, limit int, excludeNewest bool) ([]Turn, error)

	// GetTurnCount returns the total number of turns in the conversation.
	GetTurnCount(ctx context.Context, conversationID string) (int, error)

	// GetTurnsSince returns all turns created strictly after the given
	// instant, in chronological order.
	GetTurnsSince(ctx context.Context, conversationID string, since time.Time) ([]Turn, error)

	// GetTurnsInRange returns the turns between firstID and lastID
	// inclusive, in chronological order. An empty firstID means "from
	// the beginning"; an empty lastID means "to the end".
	GetTurnsInRange(ctx context.Context, conversationID, firstID, lastID string) ([]Turn, error)

	// SetTurnImportance persists an importance score against a turn.
	// The score must already be in [0,1].
	SetTurnImportance(ctx context.Context, conversationID, turnID string, score float64) error

	// ListUnscoredTurns returns up to limit turns that have no persisted
	// importance score, oldest first.
	ListUnscoredTurns(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// CreatePin persists a pin. ID and CreatedAt are filled in when zero.
	CreatePin(ctx context.Context, p Pin) (Pin, error)

	// GetPins returns up to limit pins ordered by importance descending,
	// ties broken by most-recent first.
	GetPins(ctx context.Context, conversationID string, limit int) ([]Pin, error)

	// DeletePin removes a pin. Returns ErrPinNotFound if absent.
	DeletePin(ctx context.Context, conversationID, pinID string) error

	// CreateSummary persists a summary. Returns an error wrapping
	// ErrSummaryConflict if a summary covering the same window start
	// already exists for the conversation.
	CreateSummary(ctx context.Context, s Summary) (Summary, error)

	// GetSummaries returns up to limit summaries, most recent first.
	GetSummaries(ctx context.Context, conversationID string, limit int) ([]Summary, error)

	// GetLastSummary returns the most recent summary, or nil when the
	// conversation has none.
	GetLastSummary(ctx context.Context, conversationID string) (*Summary, error)

	// ListConversationIDs returns the IDs of all conversations that have
	// at least one turn.
	ListConversationIDs(ctx context.Context) ([]string, error)

	// DeleteConversation removes all turns, pins, and summaries for a
	// conversation in one cascade.
	DeleteConversation(ctx context.Context, conversationID string) error
}
