package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Kind tags how a plan was produced.
type Kind string

const (
	KindAdaptive           Kind = "adaptive_recalibrated"
	KindVegetarianFallback Kind = "safe_vegetarian_fallback"
	KindConsumptionAware   Kind = "consumption_aware"
	KindBaseline           Kind = "baseline"
)

// DocumentType is the store discriminator for meal plans.
const DocumentType = "meal_plan"

// Document is the persisted meal plan for one user and local day.
type Document struct {
	ID                string              `json:"id"`
	UserID            string              `json:"user_id"`
	Day               string              `json:"day"`
	Meals             map[MealType]string `json:"meals"`
	TotalCalories     float64             `json:"total_calories"`
	RemainingCalories float64             `json:"remaining_calories"`
	ConsumedCalories  float64             `json:"consumed_calories"`
	Warnings          []string            `json:"warnings"`
	Kind              Kind                `json:"plan_type"`
	CreatedAt         time.Time           `json:"created_at"`
}

var planNamespace = uuid.MustParse("6f1c2a44-3b0e-4f7e-9a52-0d7f4d1c8e21")

// DocumentID is stable per user and local day, so saving a recalibrated plan replaces the
// plan already stored for that day.
func DocumentID(userID, day string) string {
	return uuid.NewSHA1(planNamespace, []byte(userID+"/"+day)).String()
}

var recordNamespace = uuid.MustParse("b3d8e0a7-5c41-4d2f-8e6a-91f07c3b2d58")

// RecordID scopes a client-chosen record id to its owner, so a resent log replaces itself and
// never another user's record. An empty client id gets a random id.
func RecordID(userID, clientID string) string {
	if clientID == "" {
		return uuid.NewString()
	}
	return uuid.NewSHA1(recordNamespace, []byte(userID+"/"+clientID)).String()
}

// ErrDegeneratePlan marks a candidate plan that must not be persisted.
var ErrDegeneratePlan = errors.New("degenerate meal plan")

// DegeneratePlanError explains why a plan was rejected.
type DegeneratePlanError struct {
	Reason string
}

func (e *DegeneratePlanError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDegeneratePlan, e.Reason)
}

func (e *DegeneratePlanError) Unwrap() error { return ErrDegeneratePlan }

var placeholders = []string{
	"not specified",
	"unspecified",
	"tbd",
	"to be determined",
	"tba",
	"n/a",
	"na",
	"none",
	"null",
	"nil",
	"undefined",
	"placeholder",
	"no recommendation",
	"no recommendation available",
	"meal not specified",
	"-",
	"...",
	"?",
}

// IsPlaceholder reports whether slot text carries no real content.
func IsPlaceholder(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	// "Not specified." matches, a bare run of dots or bangs does not.
	if u := strings.TrimRight(t, ".!"); u != t && strings.IndexFunc(u, unicode.IsLetter) >= 0 {
		t = u
	}
	if t == "" {
		return true
	}
	for _, p := range placeholders {
		if t == p {
			return true
		}
	}
	return false
}

// Validate rejects plans with a missing or empty slot, or whose every slot is a placeholder.
func Validate(doc Document) error {
	if strings.TrimSpace(doc.UserID) == "" {
		return &DegeneratePlanError{Reason: "missing user id"}
	}
	allPlaceholder := true
	for _, mt := range MealTypes {
		text, ok := doc.Meals[mt]
		if !ok || strings.TrimSpace(text) == "" {
			return &DegeneratePlanError{Reason: fmt.Sprintf("%s is missing or empty", mt)}
		}
		if !IsPlaceholder(text) {
			allPlaceholder = false
		}
	}
	if allPlaceholder {
		return &DegeneratePlanError{Reason: "every meal slot is placeholder text"}
	}
	return nil
}

// legacyDocument is the old storage shape that kept one array per slot.
type legacyDocument struct {
	Document
	Breakfast []string `json:"breakfast"`
	Lunch     []string `json:"lunch"`
	Dinner    []string `json:"dinner"`
	Snacks    []string `json:"snacks"`
	Snack     []string `json:"snack"`
}

// DecodeDocument reads a stored plan in either the current or the legacy flat-array format.
// Meal keys are normalized to the four canonical slots.
func DecodeDocument(data []byte) (Document, error) {
	var raw legacyDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode meal plan: %w", err)
	}
	doc := raw.Document

	meals := make(map[MealType]string, len(MealTypes))
	for k, v := range doc.Meals {
		if mt, ok := ParseMealType(string(k)); ok {
			meals[mt] = v
		}
	}
	legacy := map[MealType][]string{
		Breakfast: raw.Breakfast,
		Lunch:     raw.Lunch,
		Dinner:    raw.Dinner,
		Snack:     append(raw.Snacks, raw.Snack...),
	}
	for mt, items := range legacy {
		if _, ok := meals[mt]; ok || len(items) == 0 {
			continue
		}
		meals[mt] = strings.Join(items, ", ")
	}
	doc.Meals = meals
	return doc, nil
}
