// Package pins manages explicitly preserved facts that must survive context
// truncation longer than ordinary turns.
package pins

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/mbeaufort/mnemo/pkg/memory"
)

// CreateRequest carries the caller-supplied fields for a new pin.
type CreateRequest struct {
	ConversationID string
	Content        string

	// SourceTurnID is optional; empty means the pin does not originate
	// from a captured turn.
	SourceTurnID string

	// Importance defaults to memory.DefaultPinImportance when zero and
	// is clamped into [0,1] otherwise.
	Importance float64

	// Kind defaults to memory.PinKindManual when empty.
	Kind memory.PinKind
}

// Registry provides create and ranked-fetch operations over pins.
type Registry struct {
	store  memory.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a registry over the given store.
func NewRegistry(store memory.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger, now: time.Now}
}

// SetClock replaces the registry's time source. Test use only.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Create persists a new pin. Importance is defaulted and clamped, kind is
// defaulted; there is no further validation. A store failure propagates to
// the caller — a pin is an explicitly requested durable side effect.
func (r *Registry) Create(ctx context.Context, req CreateRequest) (memory.Pin, error) {
	importance := req.Importance
	if importance == 0 {
		importance = memory.DefaultPinImportance
	}
	importance = memory.ClampScore(importance)

	kind := req.Kind
	if kind == "" {
		kind = memory.PinKindManual
	}

	pin := memory.Pin{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		Content:        req.Content,
		SourceTurnID:   req.SourceTurnID,
		Importance:     importance,
		Kind:           kind,
		CreatedAt:      r.now().UTC(),
	}

	created, err := r.store.CreatePin(ctx, pin)
	if err != nil {
		return memory.Pin{}, fmt.Errorf("pins: create: %w", err)
	}

	r.logger.Debug("pins: created",
		"conversation", created.ConversationID,
		"kind", created.Kind,
		"importance", created.Importance,
	)
	return created, nil
}

// Top returns up to limit pins ordered by importance descending, ties broken
// by most-recent first. The ordering is enforced here so the contract holds
// regardless of what the store returns.
func (r *Registry) Top(ctx context.Context, conversationID string, limit int) ([]memory.Pin, error) {
	if limit <= 0 {
		return nil, nil
	}

	pins, err := r.store.GetPins(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("pins: top: %w", err)
	}

	sort.SliceStable(pins, func(i, j int) bool {
		if pins[i].Importance != pins[j].Importance {
			return pins[i].Importance > pins[j].Importance
		}
		return pins[i].CreatedAt.After(pins[j].CreatedAt)
	})
	return pins, nil
}
