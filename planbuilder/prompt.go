package planbuilder

import (
	"fmt"
	"strings"

	"mealrecal"
	"mealrecal/plan"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

// Input is everything the builder needs to plan the rest of a day.
type Input struct {
	UserID           string
	Date             string
	Profile          plan.DietaryProfile
	Constraints      plan.Constraints
	Target           float64
	Remaining        float64
	ConsumedCalories float64
	Consumed         map[plan.MealType][]string
	Slots            []plan.MealType
}

// NewPrompt renders the system and user messages for one generation request.
func NewPrompt(in Input) []mealrecal.Message {
	return []mealrecal.Message{
		{Role: mealrecal.RoleSystem, Content: systemPrompt},
		{Role: mealrecal.RoleUser, Content: userPrompt(in)},
	}
}

func userPrompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Date: %s\n", in.Date)
	fmt.Fprintf(&b, "Daily calorie target: %.0f\n", in.Target)
	fmt.Fprintf(&b, "Consumed so far today: %.0f cal\n", in.ConsumedCalories)
	fmt.Fprintf(&b, "Remaining calories: %.0f\n\n", in.Remaining)

	b.WriteString("ALREADY EATEN TODAY:\n")
	eaten := false
	for _, mt := range plan.MealTypes {
		if names := in.Consumed[mt]; len(names) > 0 {
			fmt.Fprintf(&b, "- %s: %s\n", mt, strings.Join(names, ", "))
			eaten = true
		}
	}
	if !eaten {
		b.WriteString("- nothing logged yet\n")
	}

	b.WriteString("\nMEALS TO PLAN (only these keys): ")
	slots := make([]string, len(in.Slots))
	for i, s := range in.Slots {
		slots[i] = string(s)
	}
	b.WriteString(strings.Join(slots, ", "))
	b.WriteString("\n\n")

	writeList(&b, "Cuisine preferences", in.Profile.Cuisines)
	writeList(&b, "Food preferences", in.Profile.FoodPreferences)
	writeList(&b, "Never suggest (dislikes)", in.Constraints.Dislikes)

	b.WriteString("\nHARD CONSTRAINTS:\n")
	if in.Constraints.Vegetarian {
		b.WriteString("- VEGETARIAN: no meat, poultry, fish or seafood of any kind.\n")
	}
	if in.Constraints.NoEggs {
		b.WriteString("- NO EGGS: no eggs and no dish that usually contains egg (omelette, quiche, french toast, mayonnaise, cakes, pancakes, batters).\n")
	}
	if len(in.Constraints.Allergens) > 0 {
		fmt.Fprintf(&b, "- ALLERGIES: never include %s or anything made from them.\n", strings.Join(in.Constraints.Allergens, ", "))
	}
	if !in.Constraints.Any() {
		b.WriteString("- none\n")
	}

	if containsSlot(in.Slots, plan.Snack) {
		fmt.Fprintf(&b, "\nSNACK: %s\n", SnackBandFor(in.Remaining).instruction())
	}

	b.WriteString("\nDo not repeat dishes already eaten today. Split the remaining calories sensibly across the meals to plan.\n")
	return b.String()
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func containsSlot(slots []plan.MealType, mt plan.MealType) bool {
	for _, s := range slots {
		if s == mt {
			return true
		}
	}
	return false
}

// ResponseSchema is the structured-output hint for the requested slots.
func ResponseSchema(slots []plan.MealType) *jsonschema.Schema {
	minCalories := 0.0
	dish := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"name", "calories"},
			Properties: map[string]*jsonschema.Schema{
				"name":     {Type: "string", Description: "Dish name with a short description"},
				"calories": {Type: "number", Minimum: &minCalories},
			},
		}
	}

	meals := &jsonschema.Schema{
		Type:       "object",
		Properties: map[string]*jsonschema.Schema{},
	}
	for _, s := range slots {
		meals.Properties[string(s)] = dish()
		meals.Required = append(meals.Required, string(s))
	}

	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"meals"},
		Properties: map[string]*jsonschema.Schema{
			"meals": meals,
			"notes": {Type: "string"},
		},
	}
}

const systemPrompt = `You are a clinical dietitian recalibrating a user's meal plan for the rest of today.

FINAL OUTPUT FORMAT:
Return ONLY a JSON object, no explanations, no markdown, no code fences. Start with { and end with }.

{
  "meals": {
    "<meal>": {"name": string, "calories": number}   // one entry per meal to plan
  },
  "notes": string                                     // optional, <= 200 chars
}

RULES:
- Plan only the meals listed under MEALS TO PLAN; never add other keys.
- Every hard constraint is absolute. When unsure whether a dish complies, choose another dish.
- Follow the cuisine preferences where possible.
- Name real, specific dishes ("Vegetable khichdi with cucumber raita"), never placeholders like "TBD" or "healthy meal".
- Calories must be a single number per meal, and the total must not exceed the remaining calories.
- The JSON must be valid UTF-8 with no trailing commas.
`
