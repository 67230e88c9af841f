package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/km2209/onion-gateway/internal/core/domain"
)

// MySQLAdapter persists resources in a single table with a version column
// for optimistic locking and a deleted_at column as the tombstone. Expected
// schema:
//
//	CREATE TABLE IF NOT EXISTS resources (
//		seq         BIGINT AUTO_INCREMENT PRIMARY KEY,
//		id          CHAR(36) NOT NULL UNIQUE,
//		title       VARCHAR(255) NOT NULL,
//		description TEXT NOT NULL,
//		version     BIGINT NOT NULL,
//		created_at  DATETIME(6) NOT NULL,
//		updated_at  DATETIME(6) NOT NULL,
//		deleted_at  DATETIME(6) NULL
//	)
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Create(ctx context.Context, title, description string) (domain.Resource, error) {
	if err := domain.ValidateTitle(title); err != nil {
		return domain.Resource{}, err
	}

	now := time.Now().UTC()
	res := domain.Resource{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO resources (id, title, description, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, res.Title, res.Description, res.Version, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("insert resource: %w", err)
	}

	return res, nil
}

func (m *MySQLAdapter) Get(ctx context.Context, id string) (domain.Resource, error) {
	var res domain.Resource
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, description, version, created_at, updated_at
		FROM resources WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&res.ID, &res.Title, &res.Description, &res.Version, &res.CreatedAt, &res.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Resource{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Resource{}, fmt.Errorf("query resource: %w", err)
	}
	return res, nil
}

func (m *MySQLAdapter) List(ctx context.Context) ([]domain.Resource, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, title, description, version, created_at, updated_at
		FROM resources WHERE deleted_at IS NULL ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query resources: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Resource, 0)
	for rows.Next() {
		var res domain.Resource
		if err := rows.Scan(&res.ID, &res.Title, &res.Description, &res.Version, &res.CreatedAt, &res.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return out, nil
}

func (m *MySQLAdapter) Update(ctx context.Context, id string, expectedVersion int64, title, description *string) (domain.Resource, error) {
	if title != nil {
		if err := domain.ValidateTitle(*title); err != nil {
			return domain.Resource{}, err
		}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE resources
		SET title = COALESCE(?, title), description = COALESCE(?, description),
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		title, description, time.Now().UTC(), id, expectedVersion,
	)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("update resource: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.Resource{}, classifyMiss(ctx, tx, id)
	}

	var res domain.Resource
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, description, version, created_at, updated_at
		FROM resources WHERE id = ?`, id,
	).Scan(&res.ID, &res.Title, &res.Description, &res.Version, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("read back resource: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Resource{}, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

func (m *MySQLAdapter) Delete(ctx context.Context, id string, expectedVersion int64) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE resources SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND version = ? AND deleted_at IS NULL`,
		now, now, id, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return classifyMiss(ctx, tx, id)
	}
	return tx.Commit()
}

// classifyMiss distinguishes a stale version from an unknown or tombstoned
// id after a zero-row optimistic update.
func classifyMiss(ctx context.Context, tx *sql.Tx, id string) error {
	var deleted sql.NullTime
	err := tx.QueryRowContext(ctx,
		`SELECT deleted_at FROM resources WHERE id = ?`, id,
	).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("classify miss: %w", err)
	}
	if deleted.Valid {
		return domain.ErrNotFound
	}
	return domain.ErrVersionConflict
}

func (m *MySQLAdapter) Close(ctx context.Context) error {
	return m.db.Close()
}
