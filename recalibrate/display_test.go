package recalibrate

import (
	"testing"
	"time"

	"mealrecal/aggregate"
	"mealrecal/daywindow"
	"mealrecal/plan"
	"mealrecal/planbuilder"

	"github.com/stretchr/testify/assert"
)

func summaryOf(recs ...plan.ConsumptionRecord) aggregate.Summary {
	w := daywindow.Resolve("UTC", time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC))
	return aggregate.Aggregate(recs, w)
}

func eaten(name string, mt plan.MealType, cal float64, s plan.Suitability) plan.ConsumptionRecord {
	return plan.ConsumptionRecord{
		ID:          name,
		UserID:      "u1",
		FoodName:    name,
		Nutrients:   plan.Nutrients{Calories: cal},
		Suitability: s,
		LoggedAt:    "2026-10-17T09:00:00Z",
		MealType:    mt,
	}
}

func TestRecommendedDisplay(t *testing.T) {
	tests := []struct {
		name    string
		dish    string
		portion planbuilder.Portion
		want    string
	}{
		{"plain", "Dal with brown rice", planbuilder.PortionNormal, "Recommended: Dal with brown rice"},
		{"light", "Dal with brown rice", planbuilder.PortionLight, "Recommended (light portion): Dal with brown rice"},
		{"moderate", "Dal with brown rice", planbuilder.PortionModerate, "Recommended (moderate portion): Dal with brown rice"},
		{"existing prefix", "Recommended: Dal with brown rice", planbuilder.PortionNormal, "Recommended: Dal with brown rice"},
		{"stacked prefixes", "recommended (light portion): RECOMMENDED: Dal", planbuilder.PortionLight, "Recommended (light portion): Dal"},
		{"prefix only", "Recommended:", planbuilder.PortionNormal, "Recommended: Healthy balanced meal option"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recommendedDisplay(tt.dish, tt.portion, "Healthy balanced meal option"))
		})
	}
}

func TestPassedDisplay(t *testing.T) {
	assert.Equal(t, "Vegetable poha", passedDisplay(plan.Breakfast, "Vegetable poha"))
	assert.Equal(t, "No breakfast logged", passedDisplay(plan.Breakfast, ""))
	assert.Equal(t, "No breakfast logged", passedDisplay(plan.Breakfast, "Not specified"))
	assert.Equal(t, "No lunch logged", passedDisplay(plan.Lunch, "You ate: Dal ✓ (300 cal)"))
}

func TestRender(t *testing.T) {
	summary := summaryOf(
		eaten("Poha", plan.Breakfast, 300, plan.SuitabilityHigh),
		eaten("Tea", plan.Breakfast, 50, plan.SuitabilityHigh),
	)
	baseline := plan.Document{Meals: map[plan.MealType]string{plan.Lunch: "Rajma chawal"}}

	t.Run("consumed, passed and upcoming", func(t *testing.T) {
		got := render(layout{
			slots:       []plan.MealType{plan.Dinner, plan.Snack},
			summary:     summary,
			recommended: map[plan.MealType]string{plan.Dinner: "Palak paneer", plan.Snack: "Roasted makhana"},
			remaining:   1650,
			baseline:    baseline,
			genericSafe: "Healthy balanced meal option",
		})
		assert.Equal(t, map[plan.MealType]string{
			plan.Breakfast: "You ate: Poha, Tea ✓ (350 cal)",
			plan.Lunch:     "Rajma chawal",
			plan.Dinner:    "Recommended: Palak paneer",
			plan.Snack:     "Recommended: Roasted makhana",
		}, got)
	})

	t.Run("snack band message is shown bare", func(t *testing.T) {
		msg := planbuilder.SnackOptional.Message()
		got := render(layout{
			slots:       []plan.MealType{plan.Snack},
			summary:     summary,
			recommended: map[plan.MealType]string{plan.Snack: msg},
			remaining:   150,
		})
		assert.Equal(t, msg, got[plan.Snack])
		assert.Equal(t, "No dinner logged", got[plan.Dinner])
	})

	t.Run("placeholders stay bare", func(t *testing.T) {
		got := render(layout{
			slots:       []plan.MealType{plan.Lunch},
			summary:     summaryOf(),
			recommended: map[plan.MealType]string{plan.Lunch: "TBD"},
			remaining:   2000,
		})
		assert.Equal(t, "TBD", got[plan.Lunch])
	})
}

func TestWarnings(t *testing.T) {
	tests := []struct {
		name      string
		remaining float64
		summary   aggregate.Summary
		want      int
		contains  string
	}{
		{"plenty left", 1600, summaryOf(), 0, ""},
		{"moderation", 350, summaryOf(), 1, "Moderate your portions: 350"},
		{"caution", 150, summaryOf(), 2, "Caution: only 150"},
		{"at target", 0, summaryOf(), 2, "reached your daily calorie target"},
		{"slightly over", -200, summaryOf(), 2, "200 calories over"},
		{"far over", -400, summaryOf(), 3, "400 calories over your daily target"},
		{"heavy snack", 1600, summaryOf(eaten("chocolate chip cookies", plan.Snack, 400, plan.SuitabilityUnknown)), 1, "Your snack was heavy (400 cal)"},
		{"snack at limit", 1800, summaryOf(eaten("apple", plan.Snack, 200, plan.SuitabilityHigh)), 0, ""},
		{"heavy main", 1300, summaryOf(eaten("biryani", plan.Lunch, 700, plan.SuitabilityMedium)), 1, "Your lunch was heavy (700 cal)"},
		{"low suitability", 1800, summaryOf(eaten("gulab jamun", plan.Snack, 150, plan.SuitabilityLow)), 1, "gulab jamun has low diabetes suitability"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := warnings(tt.remaining, tt.summary)
			assert.Len(t, got, tt.want)
			if tt.contains != "" {
				assert.Contains(t, got[0], tt.contains)
			}
		})
	}
}

func TestKind(t *testing.T) {
	veg := plan.Constraints{Vegetarian: true}
	noEgg := plan.Constraints{NoEggs: true}

	assert.Equal(t, plan.KindAdaptive, kind(planbuilder.SourceGenerated, veg))
	assert.Equal(t, plan.KindVegetarianFallback, kind(planbuilder.SourceFallback, veg))
	assert.Equal(t, plan.KindVegetarianFallback, kind(planbuilder.SourceFallback, noEgg))
	assert.Equal(t, plan.KindConsumptionAware, kind(planbuilder.SourceFallback, plan.Constraints{}))
	assert.Equal(t, plan.KindConsumptionAware, kind(planbuilder.SourceNone, veg))
}
