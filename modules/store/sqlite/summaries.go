package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

const summaryColumns = "id, conversation_id, content, turn_count, first_turn_id, last_turn_id, last_turn_at, importance, created_at"

// CreateSummary persists a summary. The UNIQUE constraint on
// (conversation_id, first_turn_id) rejects a second summary for the same
// window start, which is how concurrent triggers are serialised.
func (s *Store) CreateSummary(ctx context.Context, sum memory.Summary) (memory.Summary, error) {
	if sum.ID == "" {
		sum.ID = uuid.NewString()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO summaries (id, conversation_id, content, turn_count, first_turn_id, last_turn_id, last_turn_at, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.ConversationID, sum.Content, sum.TurnCount,
		sum.FirstTurnID, sum.LastTurnID, sum.LastTurnAt.UnixNano(),
		sum.Importance, sum.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return memory.Summary{}, memory.ErrSummaryConflict
		}
		return memory.Summary{}, storeErr("create summary", err)
	}
	return sum, nil
}

// GetSummaries returns up to limit summaries, most recent first.
func (s *Store) GetSummaries(ctx context.Context, conversationID string, limit int) ([]memory.Summary, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, storeErr("get summaries", err)
	}
	defer func() { _ = rows.Close() }()

	var summaries []memory.Summary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, storeErr("get summaries", err)
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("get summaries", err)
	}
	return summaries, nil
}

// GetLastSummary returns the most recent summary, or nil when the
// conversation has none.
func (s *Store) GetLastSummary(ctx context.Context, conversationID string) (*memory.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+` FROM summaries
		WHERE conversation_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`,
		conversationID,
	)

	sum, err := scanSummary(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storeErr("get last summary", err)
	}
	return &sum, nil
}

func scanSummary(sc scanner) (memory.Summary, error) {
	var (
		sum        memory.Summary
		lastTurnAt int64
		createdAt  int64
	)

	if err := sc.Scan(&sum.ID, &sum.ConversationID, &sum.Content, &sum.TurnCount,
		&sum.FirstTurnID, &sum.LastTurnID, &lastTurnAt, &sum.Importance, &createdAt); err != nil {
		return sum, err
	}

	sum.LastTurnAt = time.Unix(0, lastTurnAt).UTC()
	sum.CreatedAt = time.Unix(0, createdAt).UTC()
	return sum, nil
}
