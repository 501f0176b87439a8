package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mbeaufort/mnemo/pkg/memory"
)

const turnColumns = "id, conversation_id, role, content, model, token_count, importance, created_at"

// AppendTurn persists a turn at the end of the conversation. The seq
// subquery and the single write connection together give each conversation
// a gapless insertion order.
func (s *Store) AppendTurn(ctx context.Context, t memory.Turn) (memory.Turn, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (conversation_id, seq, id, role, content, model, token_count, importance, created_at)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM turns WHERE conversation_id = ?), 0) + 1,
		        ?, ?, ?, ?, ?, ?, ?)`,
		t.ConversationID, t.ConversationID,
		t.ID, string(t.Role), t.Content, t.Model, t.TokenCount, t.Importance,
		t.CreatedAt.UnixNano(),
	)
	if err != nil {
		return memory.Turn{}, storeErr("append turn", err)
	}

	return t, nil
}

// GetTurn returns a single turn by ID.
func (s *Store) GetTurn(ctx context.Context, conversationID, turnID string) (memory.Turn, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+turnColumns+" FROM turns WHERE conversation_id = ? AND id = ?",
		conversationID, turnID,
	)

	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return memory.Turn{}, memory.ErrTurnNotFound
		}
		return memory.Turn{}, storeErr("get turn", err)
	}
	return turn, nil
}

// GetRecentTurns returns up to limit most recent turns in chronological
// order, optionally leaving the single newest turn out of the window.
func (s *Store) GetRecentTurns(ctx context.Context, conversationID string, limit int, excludeNewest bool) ([]memory.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	offset := 0
	if excludeNewest {
		offset = 1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+turnColumns+` FROM turns
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`,
		conversationID, limit, offset,
	)
	if err != nil {
		return nil, storeErr("get recent turns", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storeErr("get recent turns", err)
	}

	// Reverse to chronological order.
	slices.Reverse(turns)
	return turns, nil
}

// GetTurnCount returns the total number of turns in the conversation.
func (s *Store) GetTurnCount(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM turns WHERE conversation_id = ?", conversationID,
	).Scan(&count)
	if err != nil {
		return 0, storeErr("count turns", err)
	}
	return count, nil
}

// GetTurnsSince returns all turns created strictly after the given instant,
// in chronological order.
func (s *Store) GetTurnsSince(ctx context.Context, conversationID string, since time.Time) ([]memory.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+turnColumns+` FROM turns
		WHERE conversation_id = ? AND created_at > ?
		ORDER BY seq ASC`,
		conversationID, since.UnixNano(),
	)
	if err != nil {
		return nil, storeErr("get turns since", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storeErr("get turns since", err)
	}
	return turns, nil
}

// GetTurnsInRange returns the turns between firstID and lastID inclusive in
// chronological order. Empty IDs widen the range to the conversation's ends.
func (s *Store) GetTurnsInRange(ctx context.Context, conversationID, firstID, lastID string) ([]memory.Turn, error) {
	firstSeq := int64(0)
	if firstID != "" {
		seq, err := s.turnSeq(ctx, conversationID, firstID)
		if err != nil {
			return nil, err
		}
		firstSeq = seq
	}

	lastSeq := int64(1<<63 - 1)
	if lastID != "" {
		seq, err := s.turnSeq(ctx, conversationID, lastID)
		if err != nil {
			return nil, err
		}
		lastSeq = seq
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+turnColumns+` FROM turns
		WHERE conversation_id = ? AND seq >= ? AND seq <= ?
		ORDER BY seq ASC`,
		conversationID, firstSeq, lastSeq,
	)
	if err != nil {
		return nil, storeErr("get turns in range", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storeErr("get turns in range", err)
	}
	return turns, nil
}

// SetTurnImportance persists an importance score against a turn.
func (s *Store) SetTurnImportance(ctx context.Context, conversationID, turnID string, score float64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE turns SET importance = ? WHERE conversation_id = ? AND id = ?",
		score, conversationID, turnID,
	)
	if err != nil {
		return storeErr("set turn importance", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return storeErr("set turn importance", err)
	}
	if n == 0 {
		return memory.ErrTurnNotFound
	}
	return nil
}

// ListUnscoredTurns returns up to limit turns without a persisted importance
// score, oldest first.
func (s *Store) ListUnscoredTurns(ctx context.Context, conversationID string, limit int) ([]memory.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+turnColumns+` FROM turns
		WHERE conversation_id = ? AND importance IS NULL
		ORDER BY seq ASC
		LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, storeErr("list unscored turns", err)
	}
	defer func() { _ = rows.Close() }()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, storeErr("list unscored turns", err)
	}
	return turns, nil
}

// ListConversationIDs returns the IDs of all conversations with at least
// one turn, sorted for deterministic sweeps.
func (s *Store) ListConversationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT conversation_id FROM turns ORDER BY conversation_id ASC",
	)
	if err != nil {
		return nil, storeErr("list conversations", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("list conversations", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list conversations", err)
	}
	return ids, nil
}

// DeleteConversation removes all turns, pins, and summaries for a
// conversation in one transaction.
func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("begin delete tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"turns", "pins", "summaries"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE conversation_id = ?", conversationID); err != nil {
			return storeErr("delete conversation "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storeErr("commit delete tx", err)
	}
	return nil
}

// turnSeq resolves a turn ID to its per-conversation sequence number.
func (s *Store) turnSeq(ctx context.Context, conversationID, turnID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		"SELECT seq FROM turns WHERE conversation_id = ? AND id = ?",
		conversationID, turnID,
	).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, memory.ErrTurnNotFound
		}
		return 0, storeErr("resolve turn", err)
	}
	return seq, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(sc scanner) (memory.Turn, error) {
	var (
		turn       memory.Turn
		role       string
		importance sql.NullFloat64
		createdAt  int64
	)

	if err := sc.Scan(&turn.ID, &turn.ConversationID, &role, &turn.Content,
		&turn.Model, &turn.TokenCount, &importance, &createdAt); err != nil {
		return turn, err
	}

	turn.Role = memory.Role(role)
	if importance.Valid {
		turn.Importance = &importance.Float64
	}
	turn.CreatedAt = time.Unix(0, createdAt).UTC()
	return turn, nil
}

func scanTurns(rows *sql.Rows) ([]memory.Turn, error) {
	var turns []memory.Turn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return turns, nil
}
