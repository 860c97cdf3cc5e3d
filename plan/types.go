package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MealType is one of the four daily meal slots.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// MealTypes lists every slot in canonical order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner, Snack}

// ParseMealType normalizes a free-form meal tag.
func ParseMealType(s string) (MealType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "breakfast":
		return Breakfast, true
	case "lunch":
		return Lunch, true
	case "dinner", "supper":
		return Dinner, true
	case "snack", "snacks":
		return Snack, true
	}
	return "", false
}

// ClassifyHour maps a local wall-clock hour to the slot a log written at that hour belongs to.
func ClassifyHour(hour int) MealType {
	switch {
	case hour >= 5 && hour < 11:
		return Breakfast
	case hour >= 11 && hour < 15:
		return Lunch
	case hour >= 17 && hour < 22:
		return Dinner
	default:
		return Snack
	}
}

// IsMain reports whether the slot is a main meal rather than a snack.
func (m MealType) IsMain() bool { return m != Snack }

// Title returns the slot name capitalized for display.
func (m MealType) Title() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

// Suitability is a coarse diabetes-suitability rating.
type Suitability string

const (
	SuitabilityUnknown Suitability = ""
	SuitabilityHigh    Suitability = "high"
	SuitabilityMedium  Suitability = "medium"
	SuitabilityLow     Suitability = "low"
)

// ParseSuitability accepts the rating vocabulary used by food logs. "poor" is an alias of low.
func ParseSuitability(s string) Suitability {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "good":
		return SuitabilityHigh
	case "medium", "moderate":
		return SuitabilityMedium
	case "low", "poor":
		return SuitabilityLow
	}
	return SuitabilityUnknown
}

// Nutrients is a per-item or aggregated nutrient vector.
type Nutrients struct {
	Calories      float64 `json:"calories" dynamodbav:"calories"`
	Protein       float64 `json:"protein" dynamodbav:"protein"`
	Carbohydrates float64 `json:"carbohydrates" dynamodbav:"carbohydrates"`
	Fat           float64 `json:"fat" dynamodbav:"fat"`
	Fiber         float64 `json:"fiber" dynamodbav:"fiber"`
	Sugar         float64 `json:"sugar" dynamodbav:"sugar"`
	Sodium        float64 `json:"sodium" dynamodbav:"sodium"`
}

// Add returns the component-wise sum.
func (n Nutrients) Add(o Nutrients) Nutrients {
	return Nutrients{
		Calories:      n.Calories + o.Calories,
		Protein:       n.Protein + o.Protein,
		Carbohydrates: n.Carbohydrates + o.Carbohydrates,
		Fat:           n.Fat + o.Fat,
		Fiber:         n.Fiber + o.Fiber,
		Sugar:         n.Sugar + o.Sugar,
		Sodium:        n.Sodium + o.Sodium,
	}
}

func (n Nutrients) validate() error {
	fields := map[string]float64{
		"calories":      n.Calories,
		"protein":       n.Protein,
		"carbohydrates": n.Carbohydrates,
		"fat":           n.Fat,
		"fiber":         n.Fiber,
		"sugar":         n.Sugar,
		"sodium":        n.Sodium,
	}
	for name, v := range fields {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, v)
		}
	}
	return nil
}

// ConsumptionRecord is one logged food item. LoggedAt keeps the stored RFC3339 text so that
// aggregation, not decoding, decides what to do with a corrupt timestamp.
type ConsumptionRecord struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	FoodName    string      `json:"food_name"`
	Portion     string      `json:"portion,omitempty"`
	Nutrients   Nutrients   `json:"nutrients"`
	Suitability Suitability `json:"diabetes_suitability,omitempty"`
	LoggedAt    string      `json:"logged_at"`
	MealType    MealType    `json:"meal_type"`
}

// NewConsumptionRecord builds a record stamped at loggedAt and tagged with the slot the local
// hour falls in.
func NewConsumptionRecord(id, userID, foodName, portion string, n Nutrients, s Suitability, loggedAt time.Time, loc *time.Location) (ConsumptionRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return ConsumptionRecord{}, errors.New("user id is required")
	}
	if strings.TrimSpace(foodName) == "" {
		return ConsumptionRecord{}, errors.New("food name is required")
	}
	if err := n.validate(); err != nil {
		return ConsumptionRecord{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return ConsumptionRecord{
		ID:          id,
		UserID:      userID,
		FoodName:    strings.TrimSpace(foodName),
		Portion:     portion,
		Nutrients:   n,
		Suitability: s,
		LoggedAt:    loggedAt.UTC().Format(time.RFC3339),
		MealType:    ClassifyHour(loggedAt.In(loc).Hour()),
	}, nil
}

// Time parses the stored timestamp.
func (r ConsumptionRecord) Time() (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(r.LoggedAt))
	if err != nil {
		return time.Time{}, fmt.Errorf("record %q: bad timestamp %q: %w", r.ID, r.LoggedAt, err)
	}
	return t.UTC(), nil
}
