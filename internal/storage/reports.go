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

// SaveScript stores a generated script for later quality evaluation.
func (db *DB) SaveScript(ctx context.Context, s domain.Script) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO scripts (id, title, script_text, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = $2, script_text = $3, active = $4
	`, toUUID(s.ID), toText(s.Title), SanitizeUTF8(s.Text), s.Active)
	if err != nil {
		return fmt.Errorf("save script: %w", err)
	}

	return nil
}

// GetScript returns one script by id.
func (db *DB) GetScript(ctx context.Context, id string) (*domain.Script, error) {
	var (
		uid       pgtype.UUID
		title     pgtype.Text
		createdAt pgtype.Timestamptz
		s         domain.Script
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT id, title, script_text, active, created_at
		FROM scripts
		WHERE id = $1
	`, toUUID(id)).Scan(&uid, &title, &s.Text, &s.Active, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("script %s: %w", id, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("get script: %w", err)
	}

	s.ID = fromUUID(uid)
	s.Title = fromText(title)
	s.CreatedAt = fromTimestamptz(createdAt)

	return &s, nil
}

// ListActiveScripts returns the scripts that form the novelty history,
// oldest first, excluding the given script id.
func (db *DB) ListActiveScripts(ctx context.Context, excludeID string) ([]domain.Script, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, script_text, active, created_at
		FROM scripts
		WHERE active = TRUE
		  AND id <> $1
		ORDER BY created_at
	`, toUUID(excludeID))
	if err != nil {
		return nil, fmt.Errorf("list active scripts: %w", err)
	}
	defer rows.Close()

	var scripts []domain.Script

	for rows.Next() {
		var (
			uid       pgtype.UUID
			title     pgtype.Text
			createdAt pgtype.Timestamptz
			s         domain.Script
		)

		if err := rows.Scan(&uid, &title, &s.Text, &s.Active, &createdAt); err != nil {
			return nil, fmt.Errorf("scan script: %w", err)
		}

		s.ID = fromUUID(uid)
		s.Title = fromText(title)
		s.CreatedAt = fromTimestamptz(createdAt)
		scripts = append(scripts, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scripts: %w", err)
	}

	return scripts, nil
}

// SaveQualityReport stores one evaluation of a script. Reports accumulate;
// the newest one is the current verdict.
func (db *DB) SaveQualityReport(ctx context.Context, r domain.QualityReport) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO quality_reports
			(script_id, coverage, novelty, success_matching, reliability, overall,
			 covered_markers, missing_markers, unique_elements, matched_elements, missing_elements)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, toUUID(r.ScriptID), r.Coverage, r.Novelty, r.SuccessMatching, r.Reliability, r.Overall,
		r.CoveredMarkers, r.MissingMarkers, r.UniqueElements, r.MatchedElements, r.MissingElements)
	if err != nil {
		return fmt.Errorf("save quality report: %w", err)
	}

	return nil
}

// GetLatestQualityReport returns the newest report for a script, or
// ErrNotFound when the script was never evaluated.
func (db *DB) GetLatestQualityReport(ctx context.Context, scriptID string) (*domain.QualityReport, error) {
	var (
		sid pgtype.UUID
		r   domain.QualityReport
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT script_id, coverage, novelty, success_matching, reliability, overall,
		       covered_markers, missing_markers, unique_elements, matched_elements, missing_elements
		FROM quality_reports
		WHERE script_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, toUUID(scriptID)).Scan(&sid, &r.Coverage, &r.Novelty, &r.SuccessMatching, &r.Reliability, &r.Overall,
		&r.CoveredMarkers, &r.MissingMarkers, &r.UniqueElements, &r.MatchedElements, &r.MissingElements)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("quality report for script %s: %w", scriptID, apperrors.ErrNotFound)
		}

		return nil, fmt.Errorf("get quality report: %w", err)
	}

	r.ScriptID = fromUUID(sid)

	return &r, nil
}
