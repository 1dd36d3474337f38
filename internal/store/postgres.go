package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, version, checksum, created_at, updated_at
		FROM documents
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		var item Document
		if err := rows.Scan(&item.ID, &item.Title, &item.Version, &item.Checksum, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (Document, error) {
	var item Document
	var content []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, markdown, version, checksum, created_at, updated_at
		FROM documents
		WHERE id=$1
	`, documentID).Scan(&item.ID, &item.Title, &content, &item.Markdown, &item.Version, &item.Checksum, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	item.Content = json.RawMessage(content)
	return item, nil
}

// InsertDocument stores a new document at version zero.
func (s *PostgresStore) InsertDocument(ctx context.Context, item Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, content, markdown, version, checksum)
		VALUES ($1, $2, $3, $4, 0, $5)
	`, item.ID, item.Title, []byte(item.Content), item.Markdown, Checksum(item.Content))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// AppendSteps records batch and moves the snapshot to item in one
// transaction. It fails with ErrVersionConflict when the stored version is
// not batch.Version-1.
func (s *PostgresStore) AppendSteps(ctx context.Context, item Document, batch StepBatch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append steps: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		UPDATE documents
		SET title=$3, content=$4, markdown=$5, version=$2, checksum=$6, updated_at=NOW()
		WHERE id=$1 AND version=$2-1
	`, item.ID, batch.Version, item.Title, []byte(item.Content), item.Markdown, Checksum(item.Content))
	if err != nil {
		return fmt.Errorf("update document snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document snapshot: %w", err)
	}
	if affected == 0 {
		return ErrVersionConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO document_steps (document_id, version, steps, client_id)
		VALUES ($1, $2, $3, $4)
	`, item.ID, batch.Version, []byte(batch.Steps), batch.ClientID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrVersionConflict
	}
	if err != nil {
		return fmt.Errorf("insert steps: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append steps: %w", err)
	}
	return nil
}

// StepsSince lists the batches after version, oldest first.
func (s *PostgresStore) StepsSince(ctx context.Context, documentID string, version int) ([]StepBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, version, steps, client_id, created_at
		FROM document_steps
		WHERE document_id=$1 AND version > $2
		ORDER BY version ASC
	`, documentID, version)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	items := make([]StepBatch, 0)
	for rows.Next() {
		var item StepBatch
		var steps []byte
		if err := rows.Scan(&item.DocumentID, &item.Version, &steps, &item.ClientID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan steps: %w", err)
		}
		item.Steps = json.RawMessage(steps)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
