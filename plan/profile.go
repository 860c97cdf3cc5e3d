package plan

import "strings"

// DietaryProfile is the per-user snapshot a recalibration runs against.
type DietaryProfile struct {
	Restrictions    []string `json:"dietary_restrictions"`
	Features        []string `json:"dietary_features"`
	Allergies       []string `json:"allergies"`
	Cuisines        []string `json:"cuisine_preferences"`
	FoodPreferences []string `json:"food_preferences"`
	Dislikes        []string `json:"dislikes"`
	TargetCalories  float64  `json:"target_calories"`
	Timezone        string   `json:"timezone"`
}

// DefaultTargetCalories is used when a profile carries no target.
const DefaultTargetCalories = 2000

// Target returns the daily calorie target, defaulted when unset.
func (p DietaryProfile) Target() float64 {
	if p.TargetCalories <= 0 {
		return DefaultTargetCalories
	}
	return p.TargetCalories
}

// Constraints are the hard rules the sanitizer enforces.
type Constraints struct {
	Vegetarian bool
	NoEggs     bool
	Allergens  []string
	Dislikes   []string
}

// Any reports whether at least one dietary rule is active.
func (c Constraints) Any() bool {
	return c.Vegetarian || c.NoEggs || len(c.Allergens) > 0 || len(c.Dislikes) > 0
}

var (
	vegetarianMarkers = []string{"vegetarian", "vegan", "plant-based", "plant based", "no meat", "meat-free", "meatless"}
	noEggMarkers      = []string{"no egg", "egg-free", "egg free", "eggless", "without egg", "egg allergy", "vegan"}
)

// Constraints derives the hard rules. Each source is OR-ed: any restriction, feature tag or
// allergy asserting a rule turns it on, and nothing turns it off.
func (p DietaryProfile) Constraints() Constraints {
	var c Constraints
	tags := make([]string, 0, len(p.Restrictions)+len(p.Features))
	tags = append(tags, p.Restrictions...)
	tags = append(tags, p.Features...)

	for _, raw := range tags {
		t := strings.ToLower(raw)
		if containsAny(t, vegetarianMarkers) {
			c.Vegetarian = true
		}
		if containsAny(t, noEggMarkers) {
			c.NoEggs = true
		}
	}

	for _, raw := range p.Allergies {
		a := strings.ToLower(strings.TrimSpace(raw))
		if a == "" || isNone(a) {
			continue
		}
		if strings.Contains(a, "egg") {
			c.NoEggs = true
		}
		c.Allergens = append(c.Allergens, a)
	}

	for _, raw := range p.Dislikes {
		d := strings.ToLower(strings.TrimSpace(raw))
		if d == "" || isNone(d) {
			continue
		}
		c.Dislikes = append(c.Dislikes, d)
	}
	return c
}

func isNone(s string) bool {
	switch s {
	case "none", "n/a", "na", "no", "nil":
		return true
	}
	return false
}

// containsAny reports whether s holds one of subs that is not negated, so "non-vegetarian"
// does not assert "vegetarian".
func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		for from := 0; ; {
			i := strings.Index(s[from:], sub)
			if i < 0 {
				break
			}
			i += from
			if !negated(s[:i]) {
				return true
			}
			from = i + len(sub)
		}
	}
	return false
}

func negated(prefix string) bool {
	p := strings.TrimRight(prefix, " -")
	return strings.HasSuffix(p, "non") && (len(p) == 3 || !isLetter(p[len(p)-4]))
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z'
}
