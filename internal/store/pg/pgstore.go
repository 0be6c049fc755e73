package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pocketheist.org/internal/docstore"
	"pocketheist.org/internal/ids"
)

// Store keeps documents in a single jsonb table keyed by (collection, id).
type Store struct {
	db *sql.DB
}

var _ docstore.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ListAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, data from documents where collection=$1 order by id`, collection)
	if err != nil {
		return nil, docstore.Wrap("list", collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var (
			id   string
			data []byte
		)
		if err := rows.Scan(&id, &data); err != nil {
			return nil, docstore.Wrap("list", collection, err)
		}
		docs = append(docs, docstore.Document{ID: id, Data: json.RawMessage(data)})
	}
	if err := rows.Err(); err != nil {
		return nil, docstore.Wrap("list", collection, err)
	}
	return docs, nil
}

func (s *Store) WriteNew(ctx context.Context, collection string, record any) (string, error) {
	id := ids.New()
	if err := s.write(ctx, "write", collection, id, record); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) WriteAt(ctx context.Context, collection, key string, record any) error {
	if key == "" {
		return docstore.Wrap("write", collection, errors.New("empty key"))
	}
	return s.write(ctx, "write", collection, key, record)
}

// write lets the database clock resolve pending server timestamps so every
// client agrees on the time source. Each placeholder is set by path.
func (s *Store) write(ctx context.Context, op, collection, key string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return docstore.Wrap(op, collection, err)
	}
	paths, err := docstore.ServerTimestampPaths(data)
	if err != nil {
		return docstore.Wrap(op, collection, err)
	}
	expr := "$3::jsonb"
	args := []any{collection, key, string(data)}
	for _, p := range paths {
		args = append(args, textArray(p))
		expr = fmt.Sprintf("jsonb_set(%s, $%d::text[], to_jsonb(now()))", expr, len(args))
	}
	_, err = s.db.ExecContext(ctx, `
		insert into documents(collection, id, data, updated_at)
		values ($1, $2, `+expr+`, now())
		on conflict (collection, id) do update
		set data = excluded.data, updated_at = excluded.updated_at
	`, args...)
	if err != nil {
		return docstore.Wrap(op, collection, err)
	}
	return nil
}

var arrayEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// textArray renders a postgres text[] literal.
func textArray(elems []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(arrayEscaper.Replace(e))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
