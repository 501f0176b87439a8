package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// conversationData holds everything stored for a single conversation.
type conversationData struct {
	turns     []Turn // append order is the canonical turn order
	pins      []Pin
	summaries []Summary // append order is creation order
}

// InMemoryStore is a thread-safe, in-memory implementation of Store. It is
// the default store for tests and embedded use; production deployments use
// the SQLite module.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversationData

	// now is swappable for deterministic tests.
	now func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		conversations: make(map[string]*conversationData),
		now:           time.Now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// SetClock replaces the store's time source. Test use only.
func (s *InMemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *InMemoryStore) getOrCreate(conversationID string) *conversationData {
	cd, ok := s.conversations[conversationID]
	if !ok {
		cd = &conversationData{}
		s.conversations[conversationID] = cd
	}
	return cd
}

// AppendTurn persists a turn at the end of the conversation.
func (s *InMemoryStore) AppendTurn(_ context.Context, t Turn) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}

	cd := s.getOrCreate(t.ConversationID)
	cd.turns = append(cd.turns, t)
	return t, nil
}

// GetTurn returns a single turn by ID.
func (s *InMemoryStore) GetTurn(_ context.Context, conversationID, turnID string) (Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if ok {
		for i := range cd.turns {
			if cd.turns[i].ID == turnID {
				return cd.turns[i], nil
			}
		}
	}
	return Turn{}, fmt.Errorf("%w: %s", ErrTurnNotFound, turnID)
}

// GetRecentTurns returns up to limit most recent turns in chronological order.
func (s *InMemoryStore) GetRecentTurns(_ context.Context, conversationID string, limit int, excludeNewest bool) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok || limit <= 0 {
		return nil, nil
	}

	turns := cd.turns
	if excludeNewest && len(turns) > 0 {
		turns = turns[:len(turns)-1]
	}

	start := len(turns) - limit
	if start < 0 {
		start = 0
	}

	result := make([]Turn, len(turns)-start)
	copy(result, turns[start:])
	return result, nil
}

// GetTurnCount returns the total number of turns in the conversation.
func (s *InMemoryStore) GetTurnCount(_ context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok {
		return 0, nil
	}
	return len(cd.turns), nil
}

// GetTurnsSince returns turns created strictly after the given instant.
func (s *InMemoryStore) GetTurnsSince(_ context.Context, conversationID string, since time.Time) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}

	var result []Turn
	for i := range cd.turns {
		if cd.turns[i].CreatedAt.After(since) {
			result = append(result, cd.turns[i])
		}
	}
	return result, nil
}

// GetTurnsInRange returns the turns between firstID and lastID inclusive.
func (s *InMemoryStore) GetTurnsInRange(_ context.Context, conversationID, firstID, lastID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}

	start := 0
	end := len(cd.turns) - 1

	if firstID != "" {
		start = -1
		for i := range cd.turns {
			if cd.turns[i].ID == firstID {
				start = i
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTurnNotFound, firstID)
		}
	}
	if lastID != "" {
		end = -1
		for i := range cd.turns {
			if cd.turns[i].ID == lastID {
				end = i
				break
			}
		}
		if end < 0 {
			return nil, fmt.Errorf("%w: %s", ErrTurnNotFound, lastID)
		}
	}

	if end < start {
		return nil, nil
	}

	result := make([]Turn, end-start+1)
	copy(result, cd.turns[start:end+1])
	return result, nil
}

// SetTurnImportance persists an importance score against a turn.
func (s *InMemoryStore) SetTurnImportance(_ context.Context, conversationID, turnID string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.conversations[conversationID]
	if ok {
		for i := range cd.turns {
			if cd.turns[i].ID == turnID {
				v := ClampScore(score)
				cd.turns[i].Importance = &v
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrTurnNotFound, turnID)
}

// ListUnscoredTurns returns up to limit turns without a score, oldest first.
func (s *InMemoryStore) ListUnscoredTurns(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok || limit <= 0 {
		return nil, nil
	}

	var result []Turn
	for i := range cd.turns {
		if cd.turns[i].Importance == nil {
			result = append(result, cd.turns[i])
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

// CreatePin persists a pin.
func (s *InMemoryStore) CreatePin(_ context.Context, p Pin) (Pin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	cd := s.getOrCreate(p.ConversationID)
	cd.pins = append(cd.pins, p)
	return p, nil
}

// GetPins returns up to limit pins, importance descending, most recent first
// on ties.
func (s *InMemoryStore) GetPins(_ context.Context, conversationID string, limit int) ([]Pin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok || limit <= 0 {
		return nil, nil
	}

	pins := make([]Pin, len(cd.pins))
	copy(pins, cd.pins)

	sort.SliceStable(pins, func(i, j int) bool {
		if pins[i].Importance != pins[j].Importance {
			return pins[i].Importance > pins[j].Importance
		}
		return pins[i].CreatedAt.After(pins[j].CreatedAt)
	})

	if len(pins) > limit {
		pins = pins[:limit]
	}
	return pins, nil
}

// DeletePin removes a pin.
func (s *InMemoryStore) DeletePin(_ context.Context, conversationID, pinID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd, ok := s.conversations[conversationID]
	if ok {
		for i := range cd.pins {
			if cd.pins[i].ID == pinID {
				cd.pins = append(cd.pins[:i], cd.pins[i+1:]...)
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrPinNotFound, pinID)
}

// CreateSummary persists a summary, rejecting an overlapping window start.
func (s *InMemoryStore) CreateSummary(_ context.Context, sum Summary) (Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cd := s.getOrCreate(sum.ConversationID)
	for i := range cd.summaries {
		if cd.summaries[i].FirstTurnID == sum.FirstTurnID {
			return Summary{}, fmt.Errorf("%w: window starting at %s", ErrSummaryConflict, sum.FirstTurnID)
		}
	}

	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = s.now().UTC()
	}

	cd.summaries = append(cd.summaries, sum)
	return sum, nil
}

// GetSummaries returns up to limit summaries, most recent first.
func (s *InMemoryStore) GetSummaries(_ context.Context, conversationID string, limit int) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok || limit <= 0 {
		return nil, nil
	}

	n := len(cd.summaries)
	if limit > n {
		limit = n
	}

	result := make([]Summary, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, cd.summaries[i])
	}
	return result, nil
}

// GetLastSummary returns the most recent summary, or nil when none exists.
func (s *InMemoryStore) GetLastSummary(_ context.Context, conversationID string) (*Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cd, ok := s.conversations[conversationID]
	if !ok || len(cd.summaries) == 0 {
		return nil, nil
	}

	last := cd.summaries[len(cd.summaries)-1]
	return &last, nil
}

// ListConversationIDs returns the IDs of conversations with at least one turn.
func (s *InMemoryStore) ListConversationIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.conversations))
	for id, cd := range s.conversations {
		if len(cd.turns) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DeleteConversation removes all data for a conversation.
func (s *InMemoryStore) DeleteConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	return nil
}
