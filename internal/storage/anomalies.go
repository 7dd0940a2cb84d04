package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/counselkit/insight-engine/internal/core/domain"
)

// SaveAnomalies stores anomaly flags for a run. Flags are advisory; the
// underlying conversations keep their labels.
func (db *DB) SaveAnomalies(ctx context.Context, records []domain.AnomalyRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}

	for _, r := range records {
		batch.Queue(`
			INSERT INTO anomaly_records (vector_id, run_id, method, score)
			VALUES ($1, $2, $3, $4)
		`, toUUID(r.VectorID), toUUID(r.RunID), r.Method, r.Score)
	}

	br := db.Pool.SendBatch(ctx, batch)

	for range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()

			return fmt.Errorf("insert anomaly record: %w", err)
		}
	}

	if err := br.Close(); err != nil {
		return fmt.Errorf("close anomaly batch: %w", err)
	}

	return nil
}

// GetAnomalies returns a run's anomaly flags, most anomalous first.
func (db *DB) GetAnomalies(ctx context.Context, runID string) ([]domain.AnomalyRecord, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT vector_id, run_id, method, score
		FROM anomaly_records
		WHERE run_id = $1
		ORDER BY score DESC, vector_id
	`, toUUID(runID))
	if err != nil {
		return nil, fmt.Errorf("get anomalies: %w", err)
	}
	defer rows.Close()

	var records []domain.AnomalyRecord

	for rows.Next() {
		var (
			vectorID, rid pgtype.UUID
			r             domain.AnomalyRecord
		)

		if err := rows.Scan(&vectorID, &rid, &r.Method, &r.Score); err != nil {
			return nil, fmt.Errorf("scan anomaly record: %w", err)
		}

		r.VectorID = fromUUID(vectorID)
		r.RunID = fromUUID(rid)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate anomaly records: %w", err)
	}

	return records, nil
}
