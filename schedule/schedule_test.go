package schedule

import (
	"testing"

	"mealrecal/plan"

	"github.com/stretchr/testify/assert"
)

func TestThresholds_Remaining(t *testing.T) {
	all := []plan.MealType{plan.Breakfast, plan.Lunch, plan.Dinner, plan.Snack}
	tests := []struct {
		hour int
		want []plan.MealType
	}{
		{0, all},
		{10, all},
		{11, []plan.MealType{plan.Lunch, plan.Dinner, plan.Snack}},
		{14, []plan.MealType{plan.Lunch, plan.Dinner, plan.Snack}},
		{15, []plan.MealType{plan.Dinner, plan.Snack}},
		{18, []plan.MealType{plan.Dinner, plan.Snack}},
		{19, []plan.MealType{plan.Snack}},
		{21, []plan.MealType{plan.Snack}},
		{22, nil},
		{23, nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultThresholds.Remaining(tt.hour), "hour %d", tt.hour)
	}
}

func TestThresholds_Override(t *testing.T) {
	late := Thresholds{Lunch: 12, Dinner: 16, Snack: 21, Close: 23}
	assert.NoError(t, late.Validate())
	assert.Equal(t, []plan.MealType{plan.Breakfast, plan.Lunch, plan.Dinner, plan.Snack}, late.Remaining(11))
	assert.Equal(t, []plan.MealType{plan.Snack}, late.Remaining(22))
}

func TestThresholds_Validate(t *testing.T) {
	assert.NoError(t, DefaultThresholds.Validate())
	assert.Error(t, Thresholds{Lunch: 11, Dinner: 11, Snack: 19, Close: 22}.Validate())
	assert.Error(t, Thresholds{Lunch: 11, Dinner: 15, Snack: 19, Close: 25}.Validate())
	assert.Error(t, Thresholds{Lunch: -1, Dinner: 15, Snack: 19, Close: 22}.Validate())
}

func TestIncludes(t *testing.T) {
	slots := DefaultThresholds.Remaining(16)
	assert.True(t, Includes(slots, plan.Dinner))
	assert.False(t, Includes(slots, plan.Lunch))
}
