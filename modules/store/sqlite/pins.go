package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

const pinColumns = "id, conversation_id, content, source_turn_id, importance, kind, created_at"

// CreatePin persists a pin, filling in ID and CreatedAt when zero.
func (s *Store) CreatePin(ctx context.Context, p memory.Pin) (memory.Pin, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pins (id, conversation_id, content, source_turn_id, importance, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ConversationID, p.Content, p.SourceTurnID, p.Importance,
		string(p.Kind), p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return memory.Pin{}, storeErr("create pin", err)
	}
	return p, nil
}

// GetPins returns up to limit pins ordered by importance descending, ties
// broken by most-recent first.
func (s *Store) GetPins(ctx context.Context, conversationID string, limit int) ([]memory.Pin, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pinColumns+` FROM pins
		WHERE conversation_id = ?
		ORDER BY importance DESC, created_at DESC, rowid DESC
		LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, storeErr("get pins", err)
	}
	defer func() { _ = rows.Close() }()

	pins, err := scanPins(rows)
	if err != nil {
		return nil, storeErr("get pins", err)
	}
	return pins, nil
}

// DeletePin removes a pin.
func (s *Store) DeletePin(ctx context.Context, conversationID, pinID string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM pins WHERE conversation_id = ? AND id = ?",
		conversationID, pinID,
	)
	if err != nil {
		return storeErr("delete pin", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storeErr("delete pin", err)
	}
	if n == 0 {
		return memory.ErrPinNotFound
	}
	return nil
}

func scanPins(rows *sql.Rows) ([]memory.Pin, error) {
	var pins []memory.Pin
	for rows.Next() {
		var (
			pin       memory.Pin
			kind      string
			createdAt int64
		)
		if err := rows.Scan(&pin.ID, &pin.ConversationID, &pin.Content,
			&pin.SourceTurnID, &pin.Importance, &kind, &createdAt); err != nil {
			return nil, err
		}
		pin.Kind = memory.PinKind(kind)
		pin.CreatedAt = time.Unix(0, createdAt).UTC()
		pins = append(pins, pin)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return pins, nil
}
