package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// ReplaceRepresentatives swaps a run's representative set atomically.
// Selection is recomputable from the run's assignments, so replacing is safe.
func (db *DB) ReplaceRepresentatives(ctx context.Context, runID string, reps []domain.Representative) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit returns error, this is best-effort cleanup
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM representatives WHERE run_id = $1`, toUUID(runID)); err != nil {
		return fmt.Errorf("clear representatives: %w", err)
	}

	batch := &pgx.Batch{}

	for _, r := range reps {
		batch.Queue(`
			INSERT INTO representatives (run_id, label, vector_id, centroid_score, success_score, length_score, novelty_score, total_score, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, toUUID(runID), r.Label, toUUID(r.VectorID),
			r.Score.Centroid, r.Score.SuccessRate, r.Score.Length, r.Score.Novelty, r.Score.Total, r.Primary)
	}

	br := tx.SendBatch(ctx, batch)

	for range reps {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return fmt.Errorf("insert representative: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("close representative batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit representatives: %w", err)
	}

	return nil
}

// GetRepresentatives returns a run's representatives with their chunk text,
// primaries first within each cluster.
func (db *DB) GetRepresentatives(ctx context.Context, runID string) ([]domain.Representative, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT r.run_id, r.label, r.vector_id, e.chunk_text,
		       r.centroid_score, r.success_score, r.length_score, r.novelty_score, r.total_score, r.is_primary
		FROM representatives r
		JOIN embeddings e ON e.id = r.vector_id
		WHERE r.run_id = $1
		ORDER BY r.label, r.is_primary DESC, r.total_score DESC
	`, toUUID(runID))
	if err != nil {
		return nil, fmt.Errorf("get representatives: %w", err)
	}
	defer rows.Close()

	var reps []domain.Representative

	for rows.Next() {
		var (
			rid, vectorID pgtype.UUID
			r             domain.Representative
		)

		if err := rows.Scan(&rid, &r.Label, &vectorID, &r.Text,
			&r.Score.Centroid, &r.Score.SuccessRate, &r.Score.Length, &r.Score.Novelty, &r.Score.Total, &r.Primary); err != nil {
			return nil, fmt.Errorf("scan representative: %w", err)
		}

		r.RunID = fromUUID(rid)
		r.VectorID = fromUUID(vectorID)
		reps = append(reps, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate representatives: %w", err)
	}

	return reps, nil
}
