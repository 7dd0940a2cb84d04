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

// SaveClusterRun stores a run and all its assignments in one transaction.
// Readers either see the complete run or nothing; a run row without its
// assignments is never visible.
func (db *DB) SaveClusterRun(ctx context.Context, run domain.ClusterRun, assignments []domain.ClusterAssignment) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx) //nolint:errcheck // rollback after commit returns error, this is best-effort cleanup
	}()

	_, err = tx.Exec(ctx, `
		INSERT INTO cluster_runs (id, algorithm, parameters, validity, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, toUUID(run.ID), run.Algorithm, run.Parameters, run.Validity, toTimestamptz(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert cluster run: %w", err)
	}

	batch := &pgx.Batch{}

	for _, a := range assignments {
		batch.Queue(`
			INSERT INTO cluster_assignments (vector_id, run_id, label, distance)
			VALUES ($1, $2, $3, $4)
		`, toUUID(a.VectorID), toUUID(run.ID), a.Label, a.Distance)
	}

	br := tx.SendBatch(ctx, batch)

	for range assignments {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return fmt.Errorf("insert cluster assignment: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("close assignment batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit cluster run: %w", err)
	}

	return nil
}

// GetClusterRun returns one run by id.
func (db *DB) GetClusterRun(ctx context.Context, runID string) (*domain.ClusterRun, error) {
	var (
		uid       pgtype.UUID
		createdAt pgtype.Timestamptz
		run       domain.ClusterRun
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, algorithm, parameters, validity, created_at
		FROM cluster_runs
		WHERE id = $1
	`, toUUID(runID)).Scan(&uid, &run.Algorithm, &run.Parameters, &run.Validity, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("cluster run %s: %w", runID, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("get cluster run: %w", err)
	}

	run.ID = fromUUID(uid)
	run.CreatedAt = fromTimestamptz(createdAt)

	return &run, nil
}

// GetLatestClusterRun returns the most recent run, or ErrNotFound when no
// run has completed yet.
func (db *DB) GetLatestClusterRun(ctx context.Context) (*domain.ClusterRun, error) {
	var (
		uid       pgtype.UUID
		createdAt pgtype.Timestamptz
		run       domain.ClusterRun
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, algorithm, parameters, validity, created_at
		FROM cluster_runs
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&uid, &run.Algorithm, &run.Parameters, &run.Validity, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("latest cluster run: %w", apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("get latest cluster run: %w", err)
	}

	run.ID = fromUUID(uid)
	run.CreatedAt = fromTimestamptz(createdAt)

	return &run, nil
}

// GetAssignments returns every assignment of a run, noise included.
func (db *DB) GetAssignments(ctx context.Context, runID string) ([]domain.ClusterAssignment, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT vector_id, run_id, label, distance
		FROM cluster_assignments
		WHERE run_id = $1
		ORDER BY label, vector_id
	`, toUUID(runID))
	if err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}
	defer rows.Close()

	var assignments []domain.ClusterAssignment

	for rows.Next() {
		var (
			vectorID, rid pgtype.UUID
			a             domain.ClusterAssignment
		)

		if err := rows.Scan(&vectorID, &rid, &a.Label, &a.Distance); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}

		a.VectorID = fromUUID(vectorID)
		a.RunID = fromUUID(rid)
		assignments = append(assignments, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}

	return assignments, nil
}
