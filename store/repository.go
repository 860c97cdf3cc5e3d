package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mealrecal"
	"mealrecal/plan"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ConsumptionType is the discriminator for consumption records.
const ConsumptionType = "consumption_record"

// Repository maps plans and consumption records onto a Store.
type Repository struct {
	store  Store
	tracer trace.Tracer
}

func NewRepository(s Store) *Repository {
	return &Repository{store: s, tracer: otel.Tracer(mealrecal.TracerNameStore)}
}

// LatestPlan returns the newest plan for the user, or nil when there is none.
func (r *Repository) LatestPlan(ctx context.Context, userID string) (*plan.Document, error) {
	ctx, span := r.tracer.Start(ctx, "Repository.LatestPlan", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	docs, err := r.store.Scan(ctx, Query{Type: plan.DocumentType, OwnerID: userID, Limit: 1})
	if err != nil {
		span.SetStatus(codes.Error, "scan failed")
		span.RecordError(err)
		return nil, fmt.Errorf("scan plans: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	p, err := plan.DecodeDocument(docs[0].Body)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &p, nil
}

// GetPlan reads one plan by id.
func (r *Repository) GetPlan(ctx context.Context, id string) (*plan.Document, error) {
	d, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := plan.DecodeDocument(d.Body)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SavePlan upserts the plan under its id, replacing any earlier plan for the same day.
func (r *Repository) SavePlan(ctx context.Context, p plan.Document) error {
	ctx, span := r.tracer.Start(ctx, "Repository.SavePlan", trace.WithAttributes(
		attribute.String("user_id", p.UserID),
		attribute.String("day", p.Day),
	))
	defer span.End()

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	err = r.store.Upsert(ctx, Document{
		ID:        p.ID,
		Type:      plan.DocumentType,
		OwnerID:   p.UserID,
		CreatedAt: p.CreatedAt,
		Body:      body,
	})
	if err != nil {
		span.SetStatus(codes.Error, "upsert failed")
		span.RecordError(err)
		return fmt.Errorf("upsert plan: %w", err)
	}
	return nil
}

// RecentConsumption returns up to limit records logged since the given instant, newest first.
// Records whose body cannot be decoded are skipped.
func (r *Repository) RecentConsumption(ctx context.Context, userID string, since time.Time, limit int) ([]plan.ConsumptionRecord, error) {
	ctx, span := r.tracer.Start(ctx, "Repository.RecentConsumption", trace.WithAttributes(
		attribute.String("user_id", userID),
		attribute.Int("limit", limit),
	))
	defer span.End()

	docs, err := r.store.Scan(ctx, Query{Type: ConsumptionType, OwnerID: userID, Since: since, Limit: limit})
	if err != nil {
		span.SetStatus(codes.Error, "scan failed")
		span.RecordError(err)
		return nil, fmt.Errorf("scan consumption: %w", err)
	}

	records := make([]plan.ConsumptionRecord, 0, len(docs))
	for _, d := range docs {
		var rec plan.ConsumptionRecord
		if err := json.Unmarshal(d.Body, &rec); err != nil {
			slog.Warn("STORE: skipping undecodable consumption record", "id", d.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// ErrNotOwner is returned when a save would overwrite another user's document.
var ErrNotOwner = errors.New("document belongs to another user")

// SaveConsumption stores a record. The document's created-at is the logged time when it
// parses, so scans by time window line up with the record itself. A record id already held
// by a different user is rejected.
func (r *Repository) SaveConsumption(ctx context.Context, rec plan.ConsumptionRecord) error {
	if rec.ID == "" {
		return errors.New("consumption record id is required")
	}
	existing, err := r.store.Get(ctx, rec.ID)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return fmt.Errorf("load consumption record %s: %w", rec.ID, err)
	case existing.OwnerID != rec.UserID || existing.Type != ConsumptionType:
		return fmt.Errorf("save consumption record %s: %w", rec.ID, ErrNotOwner)
	}
	created, err := rec.Time()
	if err != nil {
		created = time.Now().UTC()
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode consumption record: %w", err)
	}
	return r.store.Upsert(ctx, Document{
		ID:        rec.ID,
		Type:      ConsumptionType,
		OwnerID:   rec.UserID,
		CreatedAt: created,
		Body:      body,
	})
}
