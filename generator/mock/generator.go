package mock

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"mealrecal"

	"go.opentelemetry.io/otel"
)

// DefaultPlan is returned when no script is configured.
var DefaultPlan = map[string]any{
	"meals": map[string]any{
		"breakfast": map[string]any{"name": "Vegetable poha with peanuts", "calories": 350},
		"lunch":     map[string]any{"name": "Rajma with brown rice and cucumber salad", "calories": 550},
		"dinner":    map[string]any{"name": "Palak tofu with two whole-wheat rotis", "calories": 500},
		"snack":     map[string]any{"name": "Roasted makhana", "calories": 150},
	},
	"notes": "Balanced for the remaining budget.",
}

// Generator is a deterministic stand-in for a real model. It is a learning aid for the
// local runner and a scripted fake for tests.
type Generator struct {
	mu     sync.Mutex
	script []mealrecal.GenerateResult
	calls  []mealrecal.GenerateRequest
}

// NewGenerator returns results from script in order, repeating the last one. With an empty
// script every call succeeds with DefaultPlan.
func NewGenerator(script ...mealrecal.GenerateResult) *Generator {
	return &Generator{script: script}
}

func (g *Generator) Generate(ctx context.Context, req mealrecal.GenerateRequest) mealrecal.GenerateResult {
	ctx, span := otel.Tracer(mealrecal.TracerNameMock).Start(ctx, "Generator.Generate")
	defer span.End()

	g.mu.Lock()
	n := len(g.calls)
	g.calls = append(g.calls, req)
	g.mu.Unlock()

	slog.Info("GENERATOR: mock invoked", "call", n+1, "messages_len", len(req.Messages))

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return mealrecal.Failure(mealrecal.ReasonTimeout, err)
		}
		return mealrecal.Failure(mealrecal.ReasonOther, err)
	}

	if len(g.script) == 0 {
		b, err := json.Marshal(DefaultPlan)
		if err != nil {
			return mealrecal.Failure(mealrecal.ReasonOther, err)
		}
		return mealrecal.Success(string(b))
	}
	if n >= len(g.script) {
		n = len(g.script) - 1
	}
	return g.script[n]
}

// Calls returns the requests received so far.
func (g *Generator) Calls() []mealrecal.GenerateRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]mealrecal.GenerateRequest(nil), g.calls...)
}
