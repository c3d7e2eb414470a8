package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kilowulf/livdoc/internal/apperr"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// CreatePending relies on the unique index on storage_key: the insert and
// the duplicate check are one atomic statement, so two racing
// upload-completion events cannot both create a row.
func (r *PostgresRepo) CreatePending(ctx context.Context, d *Document) error {
	query := `INSERT INTO documents (storage_key, name, owner_id, source_url, status)
		VALUES ($1, $2, $3, $4, 'processing')
		ON CONFLICT (storage_key) DO NOTHING
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, d.StorageKey, d.Name, d.OwnerID, d.SourceURL).
		Scan(&d.ID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("storage key %s: %w", d.StorageKey, apperr.ErrConflict)
	}
	if err != nil {
		return err
	}
	d.Status = StatusProcessing
	return nil
}

func (r *PostgresRepo) MarkStatus(ctx context.Context, id, status string) error {
	// Terminal states never regress; re-writing the same terminal status
	// is allowed so retried writes stay idempotent.
	query := `UPDATE documents SET status = $2, updated_at = NOW()
		WHERE id = $1 AND (status NOT IN ('success', 'failed') OR status = $2)`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM documents WHERE id = $1)`
	if err := r.db.QueryRowContext(ctx, checkQuery, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	// Already terminal with a different status; refuse the regression.
	return nil
}

func (r *PostgresRepo) Get(ctx context.Context, id, ownerID string) (*Document, error) {
	d := &Document{}
	query := `SELECT id, storage_key, name, owner_id, source_url, status, created_at
		FROM documents WHERE id = $1 AND owner_id = $2`
	err := r.db.QueryRowContext(ctx, query, id, ownerID).
		Scan(&d.ID, &d.StorageKey, &d.Name, &d.OwnerID, &d.SourceURL, &d.Status, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresRepo) List(ctx context.Context, ownerID string) ([]Document, error) {
	query := `SELECT id, storage_key, name, owner_id, source_url, status, created_at
		FROM documents WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.StorageKey, &d.Name, &d.OwnerID, &d.SourceURL, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (r *PostgresRepo) Delete(ctx context.Context, id, ownerID string) error {
	query := `DELETE FROM documents WHERE id = $1 AND owner_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, ownerID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("document %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
