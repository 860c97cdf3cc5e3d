package planbuilder

import (
	"testing"

	"mealrecal/plan"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    map[plan.MealType]Dish
		wantErr bool
	}{
		{
			name: "nested meals with dish objects",
			text: `{"meals":{"lunch":{"name":"Rajma rice","calories":520},"dinner":{"dish":"Dal","kcal":"450 kcal"}},"notes":"ok"}`,
			want: map[plan.MealType]Dish{
				plan.Lunch:  {Name: "Rajma rice", Calories: 520},
				plan.Dinner: {Name: "Dal", Calories: 450},
			},
		},
		{
			name: "flat strings",
			text: `{"breakfast":"Poha","snacks":"Roasted chana","supper":"Khichdi"}`,
			want: map[plan.MealType]Dish{
				plan.Breakfast: {Name: "Poha"},
				plan.Snack:     {Name: "Roasted chana"},
				plan.Dinner:    {Name: "Khichdi"},
			},
		},
		{
			name: "chatter around the object",
			text: "Sure! Here is the plan:\n{\"lunch\": {\"description\": \"Veg biryani\"}}\nEnjoy.",
			want: map[plan.MealType]Dish{plan.Lunch: {Name: "Veg biryani"}},
		},
		{
			name: "code fence and trailing commas",
			text: "```json\n{\n  \"meals\": {\n    \"dinner\": {\"name\": \"Tofu curry\", \"calories\": 480,},\n  },\n}\n```",
			want: map[plan.MealType]Dish{plan.Dinner: {Name: "Tofu curry", Calories: 480}},
		},
		{
			name: "array of items joined",
			text: `{"snack":[{"name":"Apple","calories":80},"Almonds"]}`,
			want: map[plan.MealType]Dish{plan.Snack: {Name: "Apple, Almonds", Calories: 80}},
		},
		{
			name:    "no json",
			text:    "I cannot help with that.",
			wantErr: true,
		},
		{
			name:    "json without meal slots",
			text:    `{"summary":"nothing"}`,
			wantErr: true,
		},
		{
			name:    "broken beyond repair",
			text:    `{"lunch": "Dal" "dinner": }`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidate(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Meals)
		})
	}
}

func TestParseCandidate_Notes(t *testing.T) {
	got, err := ParseCandidate(`{"meals":{"lunch":"Dal"},"notes":"  keep it light "}`)
	require.NoError(t, err)
	assert.Equal(t, "keep it light", got.Notes)
}

func TestParseCandidate_EmptyObject(t *testing.T) {
	_, err := ParseCandidate(`{}`)
	assert.ErrorIs(t, err, ErrNoMeals)
}
