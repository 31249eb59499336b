package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merchdesk/merchbot/internal/store"
)

// KV implements store.KV on a single Postgres table. The version column backs
// the compare-and-swap: an UPDATE guarded by WHERE version=$expect either
// applies atomically or touches zero rows.
type KV struct {
	DB    *pgxpool.Pool
	Table string
}

func NewKV(db *pgxpool.Pool) *KV {
	return &KV{DB: db, Table: "kv"}
}

// Migrate creates the backing table if missing.
func (k *KV) Migrate(ctx context.Context) error {
	_, err := k.DB.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key     TEXT PRIMARY KEY,
			value   BYTEA NOT NULL,
			version BIGINT NOT NULL
		)`, k.Table))
	if err != nil {
		return fmt.Errorf("kv migrate: %w", err)
	}
	return nil
}

func (k *KV) Get(ctx context.Context, key string) (store.Entry, error) {
	var e store.Entry
	err := k.DB.QueryRow(ctx,
		fmt.Sprintf(`SELECT value, version FROM %s WHERE key=$1`, k.Table), key,
	).Scan(&e.Value, &e.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.Entry{}, store.ErrNotFound
	}
	if err != nil {
		return store.Entry{}, fmt.Errorf("kv get: %w", err)
	}
	return e, nil
}

func (k *KV) Put(ctx context.Context, key string, value []byte, expect uint64) (uint64, error) {
	if expect == 0 {
		ct, err := k.DB.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s(key, value, version) VALUES ($1,$2,1)
			             ON CONFLICT (key) DO NOTHING`, k.Table), key, value)
		if err != nil {
			return 0, fmt.Errorf("kv insert: %w", err)
		}
		if ct.RowsAffected() != 1 {
			return 0, store.ErrVersionMismatch
		}
		return 1, nil
	}

	ct, err := k.DB.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET value=$2, version=version+1 WHERE key=$1 AND version=$3`, k.Table),
		key, value, expect)
	if err != nil {
		return 0, fmt.Errorf("kv update: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return 0, store.ErrVersionMismatch
	}
	return expect + 1, nil
}

func (k *KV) List(ctx context.Context, prefix string) ([]store.KeyEntry, error) {
	rows, err := k.DB.Query(ctx,
		fmt.Sprintf(`SELECT key, value, version FROM %s WHERE starts_with(key, $1) ORDER BY key`, k.Table),
		prefix)
	if err != nil {
		return nil, fmt.Errorf("kv list: %w", err)
	}
	defer rows.Close()

	var out []store.KeyEntry
	for rows.Next() {
		var e store.KeyEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.Version); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
