package schedule

import (
	"fmt"

	"mealrecal/plan"
)

// Thresholds are the local hours at which each slot stops being recommended.
type Thresholds struct {
	Lunch  int // breakfast is no longer offered from this hour
	Dinner int // lunch is no longer offered from this hour
	Snack  int // dinner is no longer offered from this hour
	Close  int // nothing is offered from this hour
}

// DefaultThresholds is the standard meal-timing policy.
var DefaultThresholds = Thresholds{Lunch: 11, Dinner: 15, Snack: 19, Close: 22}

// Validate checks that the hours are in range and strictly increasing.
func (t Thresholds) Validate() error {
	hours := []int{t.Lunch, t.Dinner, t.Snack, t.Close}
	prev := 0
	for i, h := range hours {
		if h < 0 || h > 24 {
			return fmt.Errorf("threshold %d out of range: %d", i, h)
		}
		if i > 0 && h <= prev {
			return fmt.Errorf("thresholds must be strictly increasing, got %v", hours)
		}
		prev = h
	}
	return nil
}

// Remaining returns the slots still worth recommending at the given local hour, in meal order.
func (t Thresholds) Remaining(hour int) []plan.MealType {
	switch {
	case hour < t.Lunch:
		return []plan.MealType{plan.Breakfast, plan.Lunch, plan.Dinner, plan.Snack}
	case hour < t.Dinner:
		return []plan.MealType{plan.Lunch, plan.Dinner, plan.Snack}
	case hour < t.Snack:
		return []plan.MealType{plan.Dinner, plan.Snack}
	case hour < t.Close:
		return []plan.MealType{plan.Snack}
	default:
		return nil
	}
}

// Includes reports whether mt is in slots.
func Includes(slots []plan.MealType, mt plan.MealType) bool {
	for _, s := range slots {
		if s == mt {
			return true
		}
	}
	return false
}
