package planbuilder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"mealrecal"
	"mealrecal/generator/mock"
	"mealrecal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(context.Context, time.Duration) error { return nil }

func testInput() Input {
	return Input{
		UserID:           "u1",
		Date:             "2026-10-17",
		Profile:          plan.DietaryProfile{Cuisines: []string{"Indian"}, FoodPreferences: []string{"spicy"}},
		Constraints:      plan.Constraints{Vegetarian: true, NoEggs: true, Dislikes: []string{"mushroom"}},
		Target:           2000,
		Remaining:        1600,
		ConsumedCalories: 400,
		Consumed:         map[plan.MealType][]string{plan.Snack: {"chocolate chip cookies"}},
		Slots:            []plan.MealType{plan.Lunch, plan.Dinner, plan.Snack},
	}
}

func newTestBuilder(gen mealrecal.Generator) *Builder {
	p := DefaultRetryPolicy()
	p.Sleep = noSleep
	return NewBuilder(gen, BuilderOpts{Retry: p})
}

func TestNewPrompt(t *testing.T) {
	msgs := NewPrompt(testInput())
	require.Len(t, msgs, 2)
	assert.Equal(t, mealrecal.RoleSystem, msgs[0].Role)

	user := msgs[1].Content
	for _, want := range []string{
		"Remaining calories: 1600",
		"- snack: chocolate chip cookies",
		"MEALS TO PLAN (only these keys): lunch, dinner, snack",
		"Cuisine preferences: Indian",
		"Never suggest (dislikes): mushroom",
		"VEGETARIAN",
		"NO EGGS",
		"Suggest one concrete snack dish",
	} {
		assert.Contains(t, user, want)
	}
	assert.NotContains(t, user, "ALLERGIES")
}

func TestNewPrompt_SnackPolicy(t *testing.T) {
	in := testInput()
	in.Remaining = 150
	assert.Contains(t, NewPrompt(in)[1].Content, "Optional light snack only")

	in.Slots = []plan.MealType{plan.Dinner}
	assert.NotContains(t, NewPrompt(in)[1].Content, "SNACK:")
}

func TestResponseSchema(t *testing.T) {
	s := ResponseSchema([]plan.MealType{plan.Dinner, plan.Snack})
	meals := s.Properties["meals"]
	require.NotNil(t, meals)
	assert.Equal(t, []string{"dinner", "snack"}, meals.Required)
	assert.Contains(t, meals.Properties, "dinner")
	assert.NotContains(t, meals.Properties, "lunch")
}

func TestBuilder_Generated(t *testing.T) {
	gen := mock.NewGenerator(mealrecal.Success(`{"meals":{"lunch":{"name":"Chole with jeera rice","calories":550},"dinner":{"name":"Paneer bhurji with roti","calories":500},"snack":{"name":"Roasted makhana","calories":150}}}`))
	c := newTestBuilder(gen).Build(context.Background(), testInput())

	assert.Equal(t, SourceGenerated, c.Source)
	assert.Len(t, c.Attempts, 1)
	assert.Equal(t, "Chole with jeera rice", c.Meals[plan.Lunch].Name)
	assert.Equal(t, "Roasted makhana", c.Meals[plan.Snack].Name)
	assert.NotContains(t, c.Meals, plan.Breakfast)

	calls := gen.Calls()
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].Schema)
}

func TestBuilder_MissingSlotFilledFromFallback(t *testing.T) {
	gen := mock.NewGenerator(mealrecal.Success(`{"lunch":"Chole with jeera rice"}`))
	c := newTestBuilder(gen).Build(context.Background(), testInput())

	assert.Equal(t, SourceGenerated, c.Source)
	assert.NotEmpty(t, c.Meals[plan.Dinner].Name)
	assert.NotEmpty(t, c.Meals[plan.Snack].Name)
}

func TestBuilder_SnackBandOverridesGenerator(t *testing.T) {
	in := testInput()
	in.Remaining = 80
	gen := mock.NewGenerator(mealrecal.Success(`{"lunch":"Salad","dinner":"Soup","snack":"Brownie"}`))
	c := newTestBuilder(gen).Build(context.Background(), in)

	assert.Equal(t, SnackNone.Message(), c.Meals[plan.Snack].Name)
}

func TestBuilder_Fallback(t *testing.T) {
	tests := []struct {
		name        string
		gen         mealrecal.Generator
		wantCalls   int
		wantFailure string
	}{
		{
			name:        "generator exhausted",
			gen:         mock.NewGenerator(mealrecal.Failure(mealrecal.ReasonRateLimited, errors.New("throttled"))),
			wantCalls:   3,
			wantFailure: "rate_limited",
		},
		{
			name:        "unparsable response",
			gen:         mock.NewGenerator(mealrecal.Success("I am unable to plan meals.")),
			wantCalls:   1,
			wantFailure: "parse",
		},
		{
			name:        "no generator",
			wantFailure: "no generator",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestBuilder(tt.gen).Build(context.Background(), testInput())
			assert.Equal(t, SourceFallback, c.Source)
			assert.Len(t, c.Attempts, tt.wantCalls)
			assert.Contains(t, c.Failure, tt.wantFailure)
			for _, mt := range testInput().Slots {
				assert.NotEmpty(t, c.Meals[mt].Name, "slot %s", mt)
			}
		})
	}
}

func TestBuilder_NoSlots(t *testing.T) {
	gen := mock.NewGenerator()
	in := testInput()
	in.Slots = nil
	c := newTestBuilder(gen).Build(context.Background(), in)
	assert.Equal(t, SourceNone, c.Source)
	assert.Empty(t, gen.Calls())
}

func TestStaticFallback_Plan(t *testing.T) {
	f := NewStaticFallback()
	in := testInput()

	first := f.Plan(in)
	assert.Equal(t, first, f.Plan(in), "same input gives the same plan")

	for _, mt := range in.Slots {
		name := strings.ToLower(first[mt].Name)
		for _, banned := range []string{"chicken", "fish", "salmon", "egg", "mushroom"} {
			assert.NotContains(t, name, banned)
		}
	}
}

func TestStaticFallback_SnackBanding(t *testing.T) {
	f := NewStaticFallback()
	in := testInput()

	for _, tt := range []struct {
		remaining float64
		want      string
	}{
		{50, SnackNone.Message()},
		{150, SnackOptional.Message()},
		{250, SnackLight.Message()},
	} {
		in.Remaining = tt.remaining
		assert.Equal(t, tt.want, f.Plan(in)[plan.Snack].Name)
	}

	in.Remaining = 500
	snack := f.Plan(in)[plan.Snack].Name
	assert.NotEmpty(t, snack)
	assert.NotEqual(t, SnackLight.Message(), snack)
}

func TestStaticFallback_AvoidsAllergens(t *testing.T) {
	f := NewStaticFallback()
	in := testInput()
	in.Constraints = plan.Constraints{Allergens: []string{"peanuts"}}
	in.Slots = []plan.MealType{plan.Breakfast, plan.Snack}

	for d := 1; d <= 28; d++ {
		in.Date = time.Date(2026, 2, d, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		for _, dish := range f.Plan(in) {
			assert.NotContains(t, strings.ToLower(dish.Name), "peanut")
		}
	}
}
