package planbuilder

import (
	"hash/fnv"
	"strings"

	"mealrecal/plan"
)

// Option is one curated fallback dish.
type Option struct {
	Name     string
	Calories float64
}

// StaticFallback returns curated plans without calling a generator. The vegetarian pool is
// free of meat, fish and egg and is used whenever either rule is active.
type StaticFallback struct {
	standard   map[plan.MealType][]Option
	vegetarian map[plan.MealType][]Option
}

// NewStaticFallback returns the built-in option lists.
func NewStaticFallback() *StaticFallback {
	return &StaticFallback{standard: standardOptions, vegetarian: vegetarianOptions}
}

// Plan picks one option per requested slot. The choice is a pure function of the input, so the
// same user sees the same fallback for the whole local day.
func (f *StaticFallback) Plan(in Input) map[plan.MealType]Dish {
	pool := f.standard
	if in.Constraints.Vegetarian || in.Constraints.NoEggs {
		pool = f.vegetarian
	}
	avoid := append(append([]string{}, in.Constraints.Allergens...), in.Constraints.Dislikes...)

	out := make(map[plan.MealType]Dish, len(in.Slots))
	for _, mt := range in.Slots {
		if mt == plan.Snack {
			if band := SnackBandFor(in.Remaining); band != SnackDish {
				out[mt] = Dish{Name: band.Message()}
				continue
			}
		}

		options := usable(pool[mt], avoid)
		if len(options) == 0 {
			options = usable(vegetarianOptions[mt], avoid)
		}
		if len(options) == 0 {
			continue
		}
		o := options[pick(in.UserID+"/"+in.Date+"/"+string(mt), len(options))]
		out[mt] = Dish(o)
	}
	return out
}

func usable(options []Option, avoid []string) []Option {
	var out []Option
	for _, o := range options {
		name := strings.ToLower(o.Name)
		ok := true
		for _, a := range avoid {
			if a = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(a)), "s"); a != "" && strings.Contains(name, a) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, o)
		}
	}
	return out
}

func pick(key string, n int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

var standardOptions = map[plan.MealType][]Option{
	plan.Breakfast: {
		{"Vegetable poha with roasted peanuts", 320},
		{"Two boiled eggs with whole-grain toast and fruit", 380},
		{"Greek yogurt with berries and oats", 300},
		{"Moong dal chilla with mint chutney", 310},
	},
	plan.Lunch: {
		{"Grilled chicken with brown rice and sauteed vegetables", 550},
		{"Rajma with brown rice and cucumber salad", 520},
		{"Fish curry with steamed rice and a side salad", 560},
		{"Quinoa and chickpea bowl with roasted vegetables", 500},
	},
	plan.Dinner: {
		{"Baked salmon with quinoa and steamed broccoli", 520},
		{"Dal with two whole-wheat rotis and mixed vegetable sabzi", 480},
		{"Chicken and vegetable stir-fry with brown rice", 540},
		{"Palak paneer with one roti and salad", 500},
	},
	plan.Snack: {
		{"Roasted chickpeas", 150},
		{"Apple slices with a spoon of peanut butter", 190},
		{"Carrot and cucumber sticks with hummus", 140},
	},
}

var vegetarianOptions = map[plan.MealType][]Option{
	plan.Breakfast: {
		{"Vegetable poha with roasted peanuts", 320},
		{"Overnight oats with berries and chia seeds", 300},
		{"Moong dal chilla with mint chutney", 310},
		{"Vegetable upma with a side of fruit", 330},
	},
	plan.Lunch: {
		{"Rajma with brown rice and cucumber salad", 520},
		{"Chickpea and vegetable salad with quinoa", 480},
		{"Lentil soup with a side salad and whole-grain bread", 450},
		{"Vegetable pulao with cucumber raita", 500},
	},
	plan.Dinner: {
		{"Dal with two whole-wheat rotis and mixed vegetable sabzi", 480},
		{"Vegetable stir-fry with tofu and brown rice", 500},
		{"Palak paneer with one roti and salad", 500},
		{"Black bean and vegetable tacos", 460},
	},
	plan.Snack: {
		{"Roasted chickpeas", 150},
		{"Carrot and cucumber sticks with hummus", 140},
		{"Fresh fruit with a handful of almonds", 180},
		{"Roasted makhana", 120},
	},
}
