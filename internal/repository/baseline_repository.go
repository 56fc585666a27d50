package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reqtrace/reqtrace/internal/domain"
)

// baselineRepository implements BaselineRepository over Postgres.
type baselineRepository struct {
	pool *pgxpool.Pool
}

// NewBaselineRepository creates a new baseline repository.
func NewBaselineRepository(pool *pgxpool.Pool) BaselineRepository {
	return &baselineRepository{pool: pool}
}

func (r *baselineRepository) Append(ctx context.Context, baseline domain.ProjectBaseline) (domain.ProjectBaseline, error) {
	commitsJSON, err := baseline.ArtifactCommitsToJSON()
	if err != nil {
		return domain.ProjectBaseline{}, fmt.Errorf("failed to marshal artifact commits: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO baselines (id, project_id, version, name, description, timestamp_ms, artifact_commits)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, project_id, version, name, description, timestamp_ms, artifact_commits`,
		baseline.ID, baseline.ProjectID, baseline.Version, baseline.Name,
		pgtype.Text{String: baseline.Description, Valid: baseline.Description != ""},
		baseline.TimestampMs, commitsJSON,
	)
	return scanBaseline(row)
}

func (r *baselineRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ProjectBaseline, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, project_id, version, name, description, timestamp_ms, artifact_commits
		FROM baselines WHERE id = $1`, id)
	baseline, err := scanBaseline(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProjectBaseline{}, ErrNotFound
		}
		return domain.ProjectBaseline{}, err
	}
	return baseline, nil
}

func (r *baselineRepository) List(ctx context.Context, projectID uuid.UUID) ([]domain.ProjectBaseline, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, project_id, version, name, description, timestamp_ms, artifact_commits
		FROM baselines WHERE project_id = $1
		ORDER BY timestamp_ms ASC, version ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list baselines: %w", err)
	}
	defer rows.Close()

	var baselines []domain.ProjectBaseline
	for rows.Next() {
		baseline, scanErr := scanBaseline(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		baselines = append(baselines, baseline)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read baseline rows: %w", err)
	}
	return baselines, nil
}

func (r *baselineRepository) Count(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM baselines WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count baselines: %w", err)
	}
	return count, nil
}

func scanBaseline(row pgx.Row) (domain.ProjectBaseline, error) {
	var (
		baseline    domain.ProjectBaseline
		description pgtype.Text
		commitsJSON json.RawMessage
	)
	err := row.Scan(&baseline.ID, &baseline.ProjectID, &baseline.Version, &baseline.Name,
		&description, &baseline.TimestampMs, &commitsJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProjectBaseline{}, err
		}
		return domain.ProjectBaseline{}, fmt.Errorf("failed to scan baseline: %w", err)
	}
	baseline.Description = description.String
	commits, err := domain.ArtifactCommitsFromJSON(commitsJSON)
	if err != nil {
		return domain.ProjectBaseline{}, fmt.Errorf("failed to unmarshal artifact commits for baseline %s: %w", baseline.ID, err)
	}
	baseline.ArtifactCommits = commits
	return baseline, nil
}
