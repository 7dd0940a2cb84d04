package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pgvector/pgvector-go"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// SaveEmbeddings stores embedded chunks append-only. Vectors are immutable
// after creation; re-embedding a chunk inserts a new row.
func (db *DB) SaveEmbeddings(ctx context.Context, vectors []domain.EmbeddingVector) error {
	if len(vectors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, v := range vectors {
		batch.Queue(`
			INSERT INTO embeddings (id, conversation_id, chunk_index, chunk_text, embedding, model)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, toUUID(v.ID), toUUID(v.ConversationID), v.ChunkIndex, SanitizeUTF8(v.Text), pgvector.NewVector(v.Vector), v.Model)
	}

	br := db.Pool.SendBatch(ctx, batch)

	for range vectors {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return fmt.Errorf("insert embedding: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("close embedding batch: %w", err)
	}

	return nil
}

// LoadSuccessVectors returns a snapshot of every embedded chunk that belongs
// to a successful conversation, ordered by creation time then id so repeated
// snapshots of unchanged data are identical.
func (db *DB) LoadSuccessVectors(ctx context.Context) ([]domain.EmbeddingVector, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT e.id, e.conversation_id, e.chunk_index, e.chunk_text, e.embedding, e.model, e.created_at
		FROM embeddings e
		JOIN conversations c ON c.id = e.conversation_id
		WHERE c.success = TRUE
		ORDER BY e.created_at, e.id
	`)
	if err != nil {
		return nil, fmt.Errorf("load success vectors: %w", err)
	}
	defer rows.Close()

	return scanVectors(rows)
}

// GetVectorsByIDs returns the listed embeddings in the order given. Missing
// ids are skipped.
func (db *DB) GetVectorsByIDs(ctx context.Context, ids []string) ([]domain.EmbeddingVector, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	uuids := make([]pgtype.UUID, len(ids))
	for i, id := range ids {
		uuids[i] = toUUID(id)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, conversation_id, chunk_index, chunk_text, embedding, model, created_at
		FROM embeddings
		WHERE id = ANY($1)
	`, uuids)
	if err != nil {
		return nil, fmt.Errorf("get vectors by ids: %w", err)
	}
	defer rows.Close()

	vectors, err := scanVectors(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.EmbeddingVector, len(vectors))
	for _, v := range vectors {
		byID[v.ID] = v
	}

	ordered := make([]domain.EmbeddingVector, 0, len(ids))

	for _, id := range ids {
		if v, ok := byID[id]; ok {
			ordered = append(ordered, v)
		}
	}

	return ordered, nil
}

// Search returns successful-conversation chunks ranked by cosine similarity
// to the query vector. The threshold is applied before the topK cut, so a
// low-similarity match never rides in on an underfull result. Equal scores
// tie-break by most recent creation time.
func (db *DB) Search(ctx context.Context, query []float32, filter domain.SearchFilter, threshold float64, topK int) ([]domain.SearchMatch, error) {
	var sb strings.Builder

	sb.WriteString(`
		SELECT e.id, e.conversation_id, e.chunk_text,
		       1 - (e.embedding <=> $1::vector) AS score,
		       c.counselor, c.success_rate, e.created_at
		FROM embeddings e
		JOIN conversations c ON c.id = e.conversation_id
		WHERE c.success = TRUE
		  AND (e.embedding <=> $1::vector) <= $2`)

	args := []any{pgvector.NewVector(query), 1 - threshold}

	if filter.DateFrom != nil {
		args = append(args, *filter.DateFrom)
		fmt.Fprintf(&sb, "\n\t\t  AND c.created_at >= $%d", len(args))
	}

	if filter.DateTo != nil {
		args = append(args, *filter.DateTo)
		fmt.Fprintf(&sb, "\n\t\t  AND c.created_at <= $%d", len(args))
	}

	if len(filter.Counselors) > 0 {
		args = append(args, filter.Counselors)
		fmt.Fprintf(&sb, "\n\t\t  AND c.counselor = ANY($%d)", len(args))
	}

	if filter.MinSuccessRate != nil {
		args = append(args, *filter.MinSuccessRate)
		fmt.Fprintf(&sb, "\n\t\t  AND c.success_rate >= $%d", len(args))
	}

	args = append(args, topK)
	fmt.Fprintf(&sb, "\n\t\tORDER BY e.embedding <=> $1::vector, e.created_at DESC\n\t\tLIMIT $%d", len(args))

	rows, err := db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	matches := make([]domain.SearchMatch, 0, topK)

	for rows.Next() {
		var (
			id, convID pgtype.UUID
			createdAt  pgtype.Timestamptz
			m          domain.SearchMatch
		)

		if err := rows.Scan(&id, &convID, &m.Text, &m.Score, &m.Counselor, &m.SuccessRate, &createdAt); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}

		m.VectorID = fromUUID(id)
		m.ConversationID = fromUUID(convID)
		m.CreatedAt = fromTimestamptz(createdAt)
		matches = append(matches, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search matches: %w", err)
	}

	return matches, nil
}

func scanVectors(rows pgx.Rows) ([]domain.EmbeddingVector, error) {
	var vectors []domain.EmbeddingVector

	for rows.Next() {
		var (
			id, convID pgtype.UUID
			embedding  pgvector.Vector
			createdAt  pgtype.Timestamptz
			v          domain.EmbeddingVector
		)

		if err := rows.Scan(&id, &convID, &v.ChunkIndex, &v.Text, &embedding, &v.Model, &createdAt); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}

		v.ID = fromUUID(id)
		v.ConversationID = fromUUID(convID)
		v.Vector = embedding.Slice()
		v.CreatedAt = fromTimestamptz(createdAt)
		vectors = append(vectors, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}

	return vectors, nil
}
