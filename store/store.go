package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// ErrNotFound is returned by Get when no document has the id.
var ErrNotFound = errors.New("document not found")

// Document is one entry of the single logical collection. Body is the typed payload.
type Document struct {
	ID        string          `json:"id"`
	Type      string          `json:"doc_type"`
	OwnerID   string          `json:"owner_id"`
	CreatedAt time.Time       `json:"created_at"`
	Body      json.RawMessage `json:"body"`
}

// Query selects documents of one type for one owner. Results are newest first. A zero Since
// means no lower bound and a zero Limit means no limit.
type Query struct {
	Type    string
	OwnerID string
	Since   time.Time
	Limit   int
}

// Matches reports whether d satisfies the query predicate.
func (q Query) Matches(d Document) bool {
	if q.Type != "" && d.Type != q.Type {
		return false
	}
	if q.OwnerID != "" && d.OwnerID != q.OwnerID {
		return false
	}
	return q.Since.IsZero() || !d.CreatedAt.Before(q.Since)
}

// Store is a key-indexed document store with point reads, predicate scans and upserts.
type Store interface {
	Get(ctx context.Context, id string) (Document, error)
	Scan(ctx context.Context, q Query) ([]Document, error)
	Upsert(ctx context.Context, d Document) error
}

// selectDocs applies q to docs in memory: filter, newest first, limit.
func selectDocs(docs []Document, q Query) []Document {
	var out []Document
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func validate(d Document) error {
	switch {
	case d.ID == "":
		return errors.New("document id is required")
	case d.Type == "":
		return errors.New("document type is required")
	case d.OwnerID == "":
		return errors.New("document owner is required")
	}
	return nil
}
