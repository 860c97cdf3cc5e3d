package planbuilder

import (
	"context"
	"log/slog"

	"mealrecal"
	"mealrecal/plan"
)

// Source says where a candidate came from.
type Source string

const (
	SourceNone      Source = "none"
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Candidate is an unsanitized recommendation for the requested slots.
type Candidate struct {
	Meals    map[plan.MealType]Dish
	Source   Source
	Notes    string
	Attempts []Attempt
	// Failure explains why the fallback was used. Empty for generated candidates.
	Failure string
}

// Builder turns a planning input into a candidate, through the generator when possible.
type Builder struct {
	gen         mealrecal.Generator
	retry       RetryPolicy
	fallback    *StaticFallback
	maxTokens   int32
	temperature float32
}

type BuilderOpts struct {
	Retry       RetryPolicy
	Fallback    *StaticFallback
	MaxTokens   int32
	Temperature float32
}

// NewBuilder wires a generator. A nil generator always uses the static fallback.
func NewBuilder(gen mealrecal.Generator, opts BuilderOpts) *Builder {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Fallback == nil {
		opts.Fallback = NewStaticFallback()
	}
	return &Builder{
		gen:         gen,
		retry:       opts.Retry,
		fallback:    opts.Fallback,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

// Build never fails: generator and parse failures degrade to the static fallback.
func (b *Builder) Build(ctx context.Context, in Input) Candidate {
	if len(in.Slots) == 0 {
		return Candidate{Source: SourceNone, Meals: map[plan.MealType]Dish{}}
	}
	if b.gen == nil {
		return b.useFallback(in, nil, "no generator configured")
	}

	req := mealrecal.GenerateRequest{
		Messages:    NewPrompt(in),
		MaxTokens:   b.maxTokens,
		Temperature: b.temperature,
		Schema:      ResponseSchema(in.Slots),
	}
	outcome := b.retry.Do(ctx, b.gen, req)
	if !outcome.OK() {
		reason := string(outcome.Result.Reason)
		if outcome.Result.Err != nil {
			reason += ": " + outcome.Result.Err.Error()
		}
		return b.useFallback(in, outcome.Attempts, reason)
	}

	parsed, err := ParseCandidate(outcome.Result.Text)
	if err != nil {
		slog.Warn("PLAN_BUILDER: unusable generator response", "user_id", in.UserID, "error", err)
		return b.useFallback(in, outcome.Attempts, "parse: "+err.Error())
	}

	fill := b.fallback.Plan(in)
	meals := make(map[plan.MealType]Dish, len(in.Slots))
	for _, mt := range in.Slots {
		d, ok := parsed.Meals[mt]
		if !ok {
			slog.Warn("PLAN_BUILDER: generator skipped a slot, using fallback", "slot", mt)
			d = fill[mt]
		}
		meals[mt] = d
	}
	enforceSnackBand(meals, in)

	return Candidate{
		Meals:    meals,
		Source:   SourceGenerated,
		Notes:    parsed.Notes,
		Attempts: outcome.Attempts,
	}
}

func (b *Builder) useFallback(in Input, attempts []Attempt, reason string) Candidate {
	slog.Warn("PLAN_BUILDER: using static fallback", "user_id", in.UserID, "reason", reason)
	meals := b.fallback.Plan(in)
	enforceSnackBand(meals, in)
	return Candidate{
		Meals:    meals,
		Source:   SourceFallback,
		Attempts: attempts,
		Failure:  reason,
	}
}

// enforceSnackBand overrides whatever was proposed for the snack when the budget calls for
// a message instead of a dish.
func enforceSnackBand(meals map[plan.MealType]Dish, in Input) {
	if !containsSlot(in.Slots, plan.Snack) {
		return
	}
	if band := SnackBandFor(in.Remaining); band != SnackDish {
		meals[plan.Snack] = Dish{Name: band.Message()}
	}
}
