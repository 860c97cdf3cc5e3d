package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mealrecal/store"

	_ "github.com/lib/pq"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	doc_type TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	created_at TIMESTAMP WITH TIME ZONE NOT NULL,
	body JSONB NOT NULL
)`

const ownerIndex = `CREATE INDEX IF NOT EXISTS documents_owner_created_idx
	ON documents (owner_id, doc_type, created_at DESC)`

// Store keeps documents in a single Postgres table with the payload as JSONB.
type Store struct {
	db *sql.DB
}

// Open connects to dsn, checks the connection and creates the table if it is missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}
	s := New(db)
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{schema, ownerIndex} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("error creating tables: %w", err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (store.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, doc_type, owner_id, created_at, body FROM documents WHERE id = $1`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, fmt.Errorf("%s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("select %s: %w", id, err)
	}
	return d, nil
}

func (s *Store) Upsert(ctx context.Context, d store.Document) error {
	if d.ID == "" || d.Type == "" || d.OwnerID == "" {
		return errors.New("document id, type and owner are required")
	}
	if !json.Valid(d.Body) {
		return fmt.Errorf("document %s: body is not valid JSON", d.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, doc_type, owner_id, created_at, body)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			doc_type = EXCLUDED.doc_type,
			owner_id = EXCLUDED.owner_id,
			created_at = EXCLUDED.created_at,
			body = EXCLUDED.body`,
		d.ID, d.Type, d.OwnerID, d.CreatedAt.UTC(), string(d.Body))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) Scan(ctx context.Context, q store.Query) ([]store.Document, error) {
	query, args := buildScan(q)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	defer rows.Close()

	var docs []store.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// buildScan renders q as a parameterised SELECT, newest first.
func buildScan(q store.Query) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if q.Type != "" {
		add("doc_type = $%d", q.Type)
	}
	if q.OwnerID != "" {
		add("owner_id = $%d", q.OwnerID)
	}
	if !q.Since.IsZero() {
		add("created_at >= $%d", q.Since.UTC())
	}

	var b strings.Builder
	b.WriteString("SELECT id, doc_type, owner_id, created_at, body FROM documents")
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(r rowScanner) (store.Document, error) {
	var (
		d    store.Document
		body []byte
	)
	if err := r.Scan(&d.ID, &d.Type, &d.OwnerID, &d.CreatedAt, &body); err != nil {
		return store.Document{}, err
	}
	d.CreatedAt = d.CreatedAt.UTC()
	d.Body = json.RawMessage(body)
	return d, nil
}
