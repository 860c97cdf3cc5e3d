package planbuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"mealrecal/plan"
)

// Dish is one parsed recommendation.
type Dish struct {
	Name     string
	Calories float64
}

// Parsed is a generator response reduced to slot recommendations.
type Parsed struct {
	Meals map[plan.MealType]Dish
	Notes string
}

// ErrNoMeals means the response decoded but carried no recognizable meal slot.
var ErrNoMeals = errors.New("response contains no meal slots")

var (
	codeFence     = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	inlineFence   = regexp.MustCompile("```[a-zA-Z]*")
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseCandidate decodes generator text in three escalating passes: as-is, then the span from
// the first '{' to the last '}', then the same span after stripping code fences and trailing
// commas. Only a failure of the last pass is final.
func ParseCandidate(text string) (Parsed, error) {
	var obj map[string]any

	err := json.Unmarshal([]byte(strings.TrimSpace(text)), &obj)
	if err != nil {
		if span, ok := braceSpan(text); ok {
			err = json.Unmarshal([]byte(span), &obj)
		}
	}
	if err != nil {
		repaired := inlineFence.ReplaceAllString(codeFence.ReplaceAllString(text, ""), "")
		repaired = trailingComma.ReplaceAllString(repaired, "$1")
		span, ok := braceSpan(repaired)
		if !ok {
			return Parsed{}, fmt.Errorf("no JSON object in response: %w", err)
		}
		if err := json.Unmarshal([]byte(span), &obj); err != nil {
			return Parsed{}, fmt.Errorf("unparsable response after repair: %w", err)
		}
	}
	if obj == nil {
		return Parsed{}, ErrNoMeals
	}

	return fromObject(obj)
}

func braceSpan(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func fromObject(obj map[string]any) (Parsed, error) {
	src := obj
	for _, key := range []string{"meals", "meal_plan", "plan"} {
		if nested, ok := obj[key].(map[string]any); ok {
			src = nested
			break
		}
	}

	p := Parsed{Meals: make(map[plan.MealType]Dish)}
	if notes, ok := obj["notes"].(string); ok {
		p.Notes = strings.TrimSpace(notes)
	}

	for key, v := range src {
		mt, ok := plan.ParseMealType(key)
		if !ok {
			continue
		}
		if d, ok := dishFrom(v); ok {
			p.Meals[mt] = d
		}
	}
	if len(p.Meals) == 0 {
		return Parsed{}, ErrNoMeals
	}
	return p, nil
}

func dishFrom(v any) (Dish, bool) {
	switch val := v.(type) {
	case string:
		name := strings.TrimSpace(val)
		return Dish{Name: name}, name != ""

	case map[string]any:
		var d Dish
		for _, k := range []string{"name", "dish", "description", "title", "meal"} {
			if s, ok := val[k].(string); ok && strings.TrimSpace(s) != "" {
				d.Name = strings.TrimSpace(s)
				break
			}
		}
		for _, k := range []string{"calories", "kcal", "estimated_calories", "cal"} {
			if c, ok := number(val[k]); ok {
				d.Calories = c
				break
			}
		}
		return d, d.Name != ""

	case []any:
		var names []string
		var total float64
		for _, item := range val {
			if d, ok := dishFrom(item); ok {
				names = append(names, d.Name)
				total += d.Calories
			}
		}
		return Dish{Name: strings.Join(names, ", "), Calories: total}, len(names) > 0
	}
	return Dish{}, false
}

// number accepts JSON numbers and numeric strings such as "350" or "350 kcal".
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n >= 0
	case string:
		fields := strings.Fields(n)
		if len(fields) == 0 {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "kcal"), 64)
		return f, err == nil && f >= 0
	}
	return 0, false
}
