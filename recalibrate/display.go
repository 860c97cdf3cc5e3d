package recalibrate

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"mealrecal/aggregate"
	"mealrecal/plan"
	"mealrecal/planbuilder"
	"mealrecal/schedule"
)

const (
	consumedPrefix = "You ate:"
	heavySnack     = 200
	heavyMain      = 600
)

var recommendedPrefix = regexp.MustCompile(`(?i)^\s*recommended\s*(?:\([^)]*\))?\s*:\s*`)

// layout is what the renderer needs to turn a candidate into the four display strings.
type layout struct {
	slots       []plan.MealType
	summary     aggregate.Summary
	recommended map[plan.MealType]string
	remaining   float64
	baseline    plan.Document
	genericSafe string
}

// render produces one display string per slot. Consumed slots always report what was eaten,
// upcoming slots carry a recommendation and passed slots keep the baseline text.
func render(l layout) map[plan.MealType]string {
	meals := make(map[plan.MealType]string, len(plan.MealTypes))
	for _, mt := range plan.MealTypes {
		switch {
		case l.summary.Consumed(mt):
			meals[mt] = consumedDisplay(l.summary.ConsumedNames(mt), l.summary.MealTotals[mt].Calories)
		case schedule.Includes(l.slots, mt):
			meals[mt] = l.upcoming(mt)
		default:
			meals[mt] = passedDisplay(mt, l.baseline.Meals[mt])
		}
	}
	return meals
}

func (l layout) upcoming(mt plan.MealType) string {
	rec := strings.TrimSpace(l.recommended[mt])
	if mt == plan.Snack && planbuilder.SnackBandFor(l.remaining) != planbuilder.SnackDish {
		return rec
	}
	// Placeholders stay bare so validation can see them.
	if plan.IsPlaceholder(rec) {
		return rec
	}
	return recommendedDisplay(rec, planbuilder.PortionQualifier(l.remaining), l.genericSafe)
}

func consumedDisplay(names []string, calories float64) string {
	return fmt.Sprintf("%s %s ✓ (%.0f cal)", consumedPrefix, strings.Join(names, ", "), calories)
}

// recommendedDisplay prefixes a dish exactly once, whatever prefix the generator already added.
func recommendedDisplay(dish string, portion planbuilder.Portion, fallback string) string {
	for recommendedPrefix.MatchString(dish) {
		dish = recommendedPrefix.ReplaceAllString(dish, "")
	}
	dish = strings.TrimSpace(dish)
	if dish == "" {
		dish = fallback
	}
	if label := portion.Label(); label != "" {
		return fmt.Sprintf("Recommended (%s): %s", label, dish)
	}
	return "Recommended: " + dish
}

func passedDisplay(mt plan.MealType, baseline string) string {
	t := strings.TrimSpace(baseline)
	if t == "" || plan.IsPlaceholder(t) || strings.HasPrefix(t, consumedPrefix) {
		return fmt.Sprintf("No %s logged", mt)
	}
	return t
}

// warnings returns the overage band followed by per-slot heavy meal and suitability notes.
func warnings(remaining float64, s aggregate.Summary) []string {
	var out []string
	over := math.Max(0, -remaining)

	switch {
	case remaining < -300:
		out = append(out,
			fmt.Sprintf("You are %.0f calories over your daily target. Please stop eating for today.", over),
			"Plan lighter meals tomorrow to rebalance your intake.",
			"Consider extra physical activity today, such as a brisk 30 minute walk.",
		)
	case remaining <= 0:
		out = append(out,
			fmt.Sprintf("You have reached your daily calorie target (%.0f calories over).", over),
			"Avoid further meals today. Drink water or herbal tea if hungry.",
		)
	case remaining < 200:
		out = append(out,
			fmt.Sprintf("Caution: only %.0f calories remain for today.", remaining),
			"Choose light, low calorie options for anything else you eat today.",
		)
	case remaining < 400:
		out = append(out, fmt.Sprintf("Moderate your portions: %.0f calories remain for today.", remaining))
	}

	for _, mt := range plan.MealTypes {
		cal := s.MealTotals[mt].Calories
		switch {
		case mt == plan.Snack && cal > heavySnack:
			out = append(out, fmt.Sprintf("Your snack was heavy (%.0f cal). Keep any further snacks light today.", cal))
		case mt.IsMain() && cal > heavyMain:
			out = append(out, fmt.Sprintf("Your %s was heavy (%.0f cal). Balance it with lighter meals.", mt, cal))
		}
	}

	for _, rec := range s.LowSuitability() {
		out = append(out, fmt.Sprintf("%s has low diabetes suitability. Monitor your blood glucose and pair it with fiber or protein next time.", rec.FoodName))
	}
	return out
}

// kind tags the plan with how its recommendations were produced.
func kind(src planbuilder.Source, c plan.Constraints) plan.Kind {
	switch {
	case src == planbuilder.SourceGenerated:
		return plan.KindAdaptive
	case src == planbuilder.SourceFallback && (c.Vegetarian || c.NoEggs):
		return plan.KindVegetarianFallback
	default:
		return plan.KindConsumptionAware
	}
}
