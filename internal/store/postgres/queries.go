package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alfredjeanlab/odm/internal/idgen"
	"github.com/alfredjeanlab/odm/internal/store"
)

// executor is the subset of *sql.DB the queries use. Tests drive it through
// a sqlmock connection.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryUpsert(ctx context.Context, db executor, collection string, key any, rec store.Record) (any, error) {
	if key == nil {
		key = idgen.ObjectID()
	}
	ks, err := store.KeyString(key)
	if err != nil {
		return nil, err
	}
	body, err := store.MarshalRecord(store.WithKey(rec, key))
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO documents (collection, doc_key, body, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (collection, doc_key) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at`,
		collection, ks, body, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert %s/%s: %w", collection, ks, err)
	}
	return key, nil
}

func queryFind(ctx context.Context, db executor, collection string, key any) (store.Record, error) {
	ks, err := store.KeyString(key)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND doc_key = $2`, collection, ks)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find %s/%s: %w", collection, ks, err)
	}
	return rec, nil
}

func queryDelete(ctx context.Context, db executor, collection string, key any) error {
	ks, err := store.KeyString(key)
	if err != nil {
		return err
	}
	res, err := db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND doc_key = $2`, collection, ks)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, ks, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, ks, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func queryDrop(ctx context.Context, db executor, collection string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1`, collection); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	return nil
}

func queryList(ctx context.Context, db executor, collection string) ([]store.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT body FROM documents WHERE collection = $1 ORDER BY doc_key`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var recs []store.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func queryCollections(ctx context.Context, db executor) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
