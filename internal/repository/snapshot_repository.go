package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/reqtrace/reqtrace/internal/db"
	"github.com/reqtrace/reqtrace/internal/domain"
)

// snapshotRepository implements SnapshotRepository over Postgres.
type snapshotRepository struct {
	conn *db.Connection
}

// NewSnapshotRepository creates a new version-snapshot repository.
func NewSnapshotRepository(conn *db.Connection) SnapshotRepository {
	return &snapshotRepository{conn: conn}
}

// Insert appends a snapshot and trims the project's list beyond the newest
// MaxVersionSnapshots entries inside one transaction. Eviction follows
// insertion order, not a timestamp re-sort.
func (r *snapshotRepository) Insert(ctx context.Context, snapshot domain.VersionSnapshot) (domain.VersionSnapshot, error) {
	dataJSON, err := snapshot.DataToJSON()
	if err != nil {
		return domain.VersionSnapshot{}, fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	var tag pgtype.Text
	if snapshot.Tag != nil {
		tag = pgtype.Text{String: *snapshot.Tag, Valid: true}
	}

	var inserted domain.VersionSnapshot
	err = r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO version_snapshots (id, project_id, project_name, kind, message, tag, timestamp_ms, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, project_id, project_name, kind, message, tag, timestamp_ms, data`,
			snapshot.ID, snapshot.ProjectID, snapshot.ProjectName, string(snapshot.Kind),
			snapshot.Message, tag, snapshot.TimestampMs, dataJSON,
		)
		scanned, scanErr := scanSnapshot(row)
		if scanErr != nil {
			return scanErr
		}
		inserted = scanned

		_, execErr := tx.Exec(ctx, `
			DELETE FROM version_snapshots
			WHERE project_id = $1 AND seq NOT IN (
				SELECT seq FROM version_snapshots
				WHERE project_id = $1
				ORDER BY seq DESC
				LIMIT $2
			)`, snapshot.ProjectID, domain.MaxVersionSnapshots)
		if execErr != nil {
			return fmt.Errorf("failed to trim snapshot list: %w", execErr)
		}
		return nil
	})
	if err != nil {
		return domain.VersionSnapshot{}, err
	}
	return inserted, nil
}

func (r *snapshotRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.VersionSnapshot, error) {
	row := r.conn.Pool.QueryRow(ctx, `
		SELECT id, project_id, project_name, kind, message, tag, timestamp_ms, data
		FROM version_snapshots WHERE id = $1`, id)
	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VersionSnapshot{}, ErrNotFound
		}
		return domain.VersionSnapshot{}, err
	}
	return snapshot, nil
}

// List returns the project's snapshots newest-inserted first.
func (r *snapshotRepository) List(ctx context.Context, projectID uuid.UUID) ([]domain.VersionSnapshot, error) {
	rows, err := r.conn.Pool.Query(ctx, `
		SELECT id, project_id, project_name, kind, message, tag, timestamp_ms, data
		FROM version_snapshots WHERE project_id = $1
		ORDER BY seq DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.VersionSnapshot
	for rows.Next() {
		snapshot, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read snapshot rows: %w", err)
	}
	return snapshots, nil
}

func (r *snapshotRepository) Count(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	err := r.conn.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM version_snapshots WHERE project_id = $1`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func scanSnapshot(row pgx.Row) (domain.VersionSnapshot, error) {
	var (
		snapshot domain.VersionSnapshot
		kind     string
		tag      pgtype.Text
		dataJSON json.RawMessage
	)
	err := row.Scan(&snapshot.ID, &snapshot.ProjectID, &snapshot.ProjectName,
		&kind, &snapshot.Message, &tag, &snapshot.TimestampMs, &dataJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VersionSnapshot{}, err
		}
		return domain.VersionSnapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	snapshot.Kind = domain.SnapshotKind(kind)
	if tag.Valid {
		snapshot.Tag = &tag.String
	}
	data, err := domain.CollectionsFromJSON(dataJSON)
	if err != nil {
		return domain.VersionSnapshot{}, fmt.Errorf("failed to unmarshal data for snapshot %s: %w", snapshot.ID, err)
	}
	snapshot.Data = data
	return snapshot, nil
}
