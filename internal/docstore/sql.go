package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps one row per document path in the documents table.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

const upsertDocument = `INSERT INTO documents (path,data,version,updated_at)
	VALUES ($1,$2,1,$3)
	ON CONFLICT (path) DO UPDATE SET data=EXCLUDED.data, version=documents.version+1, updated_at=EXCLUDED.updated_at`

func (s *SQLStore) Get(ctx context.Context, path string, dst any) (bool, error) {
	if err := checkPath(path); err != nil {
		return false, err
	}
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE path=$1`, path).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", path, err)
	}
	return true, decode([]byte(data), dst)
}

func (s *SQLStore) Set(ctx context.Context, path string, v any) error {
	if err := checkPath(path); err != nil {
		return err
	}
	buf, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, upsertDocument, path, string(buf), time.Now().Unix()); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

func (s *SQLStore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	if err := checkPath(path); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := `SELECT data FROM documents WHERE path=$1`
	if s.driver == "postgres" {
		q += ` FOR UPDATE`
	}
	var cur json.RawMessage
	var data string
	switch err := tx.QueryRowContext(ctx, q, path).Scan(&data); {
	case err == nil:
		cur = json.RawMessage(data)
	case errors.Is(err, sql.ErrNoRows):
	default:
		return fmt.Errorf("update %s: %w", path, err)
	}

	next, err := fn(cur)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	if _, err := tx.ExecContext(ctx, upsertDocument, path, string(next), time.Now().Unix()); err != nil {
		return fmt.Errorf("update %s: %w", path, err)
	}
	return tx.Commit()
}

func (s *SQLStore) Delete(ctx context.Context, path string) error {
	if err := checkPath(path); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path=$1`, path); err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
