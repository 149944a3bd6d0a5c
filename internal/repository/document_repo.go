package repository

import (
	"context"
	"errors"
	"fmt"

	"doclens/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DocumentRepository defines methods for accessing tracked uploads.
type DocumentRepository interface {
	Create(ctx context.Context, d *model.Document) error
	GetByID(ctx context.Context, id string) (*model.Document, error)
	ListByUserID(ctx context.Context, userID string) ([]model.Document, error)
	// ListByStatus feeds the status refresher.
	ListByStatus(ctx context.Context, status string, limit int) ([]model.Document, error)
	SetArchived(ctx context.Context, id, storagePath string) error
	// SetForwarded records the analysis service's id and initial status
	// once the file has been handed over.
	SetForwarded(ctx context.Context, id, remoteID, status string) error
	SetStatus(ctx context.Context, id, status string, errorMsg *string) error
}

type documentRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDocumentRepo creates a new DocumentRepository.
func NewDocumentRepo(pool *pgxpool.Pool, logger zerolog.Logger) DocumentRepository {
	return &documentRepo{pool: pool, logger: logger}
}

func (r *documentRepo) Create(ctx context.Context, d *model.Document) error {
	const q = `
        INSERT INTO documents (user_id, file_name, doc_type, status)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, d.UserID, d.FileName, d.DocType, d.Status).Scan(
		&d.ID,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create document for user %s: %w", d.UserID, err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
        SELECT id, user_id, file_name, doc_type, remote_id, status, error_msg, storage_path, created_at, updated_at
        FROM documents
        WHERE id = $1
    `
	var d model.Document
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&d.ID,
		&d.UserID,
		&d.FileName,
		&d.DocType,
		&d.RemoteID,
		&d.Status,
		&d.ErrorMsg,
		&d.StoragePath,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch document %s: %w", id, err)
	}
	return &d, nil
}

func (r *documentRepo) ListByUserID(ctx context.Context, userID string) ([]model.Document, error) {
	const q = `
        SELECT id, user_id, file_name, doc_type, remote_id, status, error_msg, storage_path, created_at, updated_at
        FROM documents
        WHERE user_id = $1
        ORDER BY created_at DESC
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents for user %s: %w", userID, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]model.Document, error) {
	const q = `
        SELECT id, user_id, file_name, doc_type, remote_id, status, error_msg, storage_path, created_at, updated_at
        FROM documents
        WHERE status = $1
        ORDER BY updated_at ASC
        LIMIT $2
    `
	rows, err := r.pool.Query(ctx, q, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents with status %s: %w", status, err)
	}
	defer rows.Close()

	return scanDocuments(rows)
}

func (r *documentRepo) SetArchived(ctx context.Context, id, storagePath string) error {
	const q = `
        UPDATE documents
        SET storage_path = $2, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, storagePath); err != nil {
		return fmt.Errorf("set storage path for document %s: %w", id, err)
	}
	return nil
}

func (r *documentRepo) SetForwarded(ctx context.Context, id, remoteID, status string) error {
	const q = `
        UPDATE documents
        SET remote_id = $2, status = $3, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, remoteID, status); err != nil {
		return fmt.Errorf("set remote id for document %s: %w", id, err)
	}
	return nil
}

func (r *documentRepo) SetStatus(ctx context.Context, id, status string, errorMsg *string) error {
	const q = `
        UPDATE documents
        SET status = $2, error_msg = $3, updated_at = NOW()
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, id, status, errorMsg); err != nil {
		return fmt.Errorf("set status for document %s: %w", id, err)
	}
	return nil
}

func scanDocuments(rows pgx.Rows) ([]model.Document, error) {
	var docs []model.Document
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(
			&d.ID,
			&d.UserID,
			&d.FileName,
			&d.DocType,
			&d.RemoteID,
			&d.Status,
			&d.ErrorMsg,
			&d.StoragePath,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document rows: %w", err)
	}
	return docs, nil
}
