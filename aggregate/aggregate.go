package aggregate

import (
	"log/slog"

	"mealrecal/daywindow"
	"mealrecal/plan"
)

// Summary is today's consumption. It is recomputed on every recalibration and never stored.
type Summary struct {
	TotalCalories float64
	Totals        plan.Nutrients
	Meals         map[plan.MealType][]plan.ConsumptionRecord
	MealTotals    map[plan.MealType]plan.Nutrients
	// Skipped counts records dropped for unparsable timestamps.
	Skipped int
}

// Aggregate keeps the records logged inside the window and buckets them by meal slot.
// A record with a corrupt timestamp is skipped, never fatal.
func Aggregate(records []plan.ConsumptionRecord, w daywindow.Window) Summary {
	s := Summary{
		Meals:      make(map[plan.MealType][]plan.ConsumptionRecord),
		MealTotals: make(map[plan.MealType]plan.Nutrients),
	}

	for _, rec := range records {
		ts, err := rec.Time()
		if err != nil {
			slog.Warn("AGGREGATE: Skipping record with unparsable timestamp", "record_id", rec.ID, "logged_at", rec.LoggedAt, "error", err)
			s.Skipped++
			continue
		}
		if !w.Contains(ts) {
			continue
		}

		mt, ok := plan.ParseMealType(string(rec.MealType))
		if !ok {
			mt = plan.ClassifyHour(w.LocalHour(ts))
		}

		s.Meals[mt] = append(s.Meals[mt], rec)
		s.MealTotals[mt] = s.MealTotals[mt].Add(rec.Nutrients)
	}

	// Overall totals are derived from the per-slot totals in canonical order so the two can
	// never disagree.
	for _, mt := range plan.MealTypes {
		s.Totals = s.Totals.Add(s.MealTotals[mt])
	}
	s.TotalCalories = s.Totals.Calories

	slog.Info("AGGREGATE: Summarized consumption",
		"window_date", w.Date,
		"records_in", len(records),
		"records_today", s.Count(),
		"skipped", s.Skipped,
		"total_calories", s.TotalCalories,
	)
	return s
}

// Count returns the number of records included today.
func (s Summary) Count() int {
	n := 0
	for _, recs := range s.Meals {
		n += len(recs)
	}
	return n
}

// Consumed reports whether anything was logged under the slot today.
func (s Summary) Consumed(mt plan.MealType) bool {
	return len(s.Meals[mt]) > 0
}

// ConsumedNames returns the food names logged under the slot, in log order, without repeats.
func (s Summary) ConsumedNames(mt plan.MealType) []string {
	seen := make(map[string]bool)
	var names []string
	for _, rec := range s.Meals[mt] {
		if seen[rec.FoodName] {
			continue
		}
		seen[rec.FoodName] = true
		names = append(names, rec.FoodName)
	}
	return names
}

// LowSuitability returns today's records rated poorly for blood-glucose management.
func (s Summary) LowSuitability() []plan.ConsumptionRecord {
	var out []plan.ConsumptionRecord
	for _, mt := range plan.MealTypes {
		for _, rec := range s.Meals[mt] {
			if rec.Suitability == plan.SuitabilityLow {
				out = append(out, rec)
			}
		}
	}
	return out
}
