package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/counselkit/insight-engine/internal/core/domain"
	apperrors "github.com/counselkit/insight-engine/internal/core/errors"
)

// SaveConversation stores a finalized, labeled transcript. Conversations are
// immutable; re-saving the same id is a no-op.
func (db *DB) SaveConversation(ctx context.Context, rec domain.ConversationRecord) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO conversations (id, conversation_text, success, counselor, success_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, toUUID(rec.ID), SanitizeUTF8(rec.Text), rec.Success, SanitizeUTF8(rec.Counselor), rec.SuccessRate, toTimestamptz(rec.Timestamp))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}

	return nil
}

// GetConversation returns one conversation by id.
func (db *DB) GetConversation(ctx context.Context, id string) (*domain.ConversationRecord, error) {
	var (
		uid       pgtype.UUID
		createdAt pgtype.Timestamptz
		rec       domain.ConversationRecord
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, conversation_text, success, counselor, success_rate, created_at
		FROM conversations
		WHERE id = $1
	`, toUUID(id)).Scan(&uid, &rec.Text, &rec.Success, &rec.Counselor, &rec.SuccessRate, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("conversation %s: %w", id, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("get conversation: %w", err)
	}

	rec.ID = fromUUID(uid)
	rec.Timestamp = fromTimestamptz(createdAt)

	return &rec, nil
}

// GetSuccessRates returns the success rate per conversation id. Unknown ids
// are absent from the map.
func (db *DB) GetSuccessRates(ctx context.Context, ids []string) (map[string]float32, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	uuids := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		uuids[i] = toUUID(id)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, success_rate
		FROM conversations
		WHERE id = ANY($1)
	`, uuids)
	if err != nil {
		return nil, fmt.Errorf("get success rates: %w", err)
	}
	defer rows.Close()

	rates := make(map[string]float32, len(ids))

	for rows.Next() {
		var (
			uid  pgtype.UUID
			rate float32
		)

		if err := rows.Scan(&uid, &rate); err != nil {
			return nil, fmt.Errorf("scan success rate: %w", err)
		}

		rates[fromUUID(uid)] = rate
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate success rates: %w", err)
	}

	return rates, nil
}

// CountConversations returns the number of stored conversations, optionally
// restricted to successful ones.
func (db *DB) CountConversations(ctx context.Context, successOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM conversations`
	if successOnly {
		query += ` WHERE success = TRUE`
	}

	var n int
	if err := db.Pool.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conversations: %w", err)
	}

	return n, nil
}
