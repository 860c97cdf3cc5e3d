package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"mealrecal"

	"go.opentelemetry.io/otel"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int32   `json:"num_predict,omitempty"`
}

// Generator calls the Ollama chat API.
type Generator struct {
	endpoint   string
	model      string
	httpClient mealrecal.HTTPClient
	options    options
}

type Opts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   mealrecal.HTTPClient
}

func NewGenerator(opts Opts) (*Generator, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, errors.New("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Generator{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.4,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        8192,
		},
	}, nil
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string          `json:"model"`
	Messages []wireMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"`
	Options  options         `json:"options,omitempty"`
}

type wireResponse struct {
	Message    wireMessage `json:"message"`
	DoneReason string      `json:"done_reason,omitempty"`
}

// Generate sends one chat request. A response schema is passed as Ollama's structured "format".
func (g *Generator) Generate(ctx context.Context, req mealrecal.GenerateRequest) mealrecal.GenerateResult {
	ctx, span := otel.Tracer(mealrecal.TracerNameOllama).Start(ctx, "Generator.Generate")
	defer span.End()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	body := wireRequest{
		Model:   g.model,
		Stream:  false,
		Options: g.options,
	}
	if req.Temperature > 0 {
		body.Options.Temperature = float64(req.Temperature)
	}
	body.Options.NumPredict = req.MaxTokens

	for _, m := range req.Messages {
		role := string(m.Role)
		switch m.Role {
		case mealrecal.RoleSystem, mealrecal.RoleUser, mealrecal.RoleAssistant:
		default:
			slog.Warn("GENERATOR: unknown role, coercing to user", "role", m.Role)
			role = string(mealrecal.RoleUser)
		}
		body.Messages = append(body.Messages, wireMessage{Role: role, Content: m.Content})
	}

	if req.Schema != nil {
		format, err := json.Marshal(req.Schema)
		if err != nil {
			return mealrecal.Failure(mealrecal.ReasonOther, fmt.Errorf("failed to marshal response schema: %w", err))
		}
		body.Format = format
	}

	reqBytes, err := json.Marshal(body)
	if err != nil {
		return mealrecal.Failure(mealrecal.ReasonOther, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(reqBytes))
	if err != nil {
		return mealrecal.Failure(mealrecal.ReasonOther, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		reason := classify(ctx, err)
		slog.Warn("GENERATOR: Ollama request failed", "reason", reason, "error", err)
		return mealrecal.Failure(reason, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		reason := classify(ctx, err)
		slog.Warn("GENERATOR: Ollama response read failed", "reason", reason, "error", err)
		return mealrecal.Failure(reason, fmt.Errorf("ollama: read response: %w", err))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return mealrecal.Failure(mealrecal.ReasonRateLimited, fmt.Errorf("ollama: %s", resp.Status))
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return mealrecal.Failure(mealrecal.ReasonTimeout, fmt.Errorf("ollama: %s", resp.Status))
	case resp.StatusCode != http.StatusOK:
		return mealrecal.Failure(mealrecal.ReasonOther, fmt.Errorf("ollama: %s: %s", resp.Status, string(data)))
	}

	var wr wireResponse
	if err := json.Unmarshal(data, &wr); err != nil {
		slog.Warn("GENERATOR: decode failed, returning raw body", "error", err)
		return mealrecal.Success(string(data))
	}
	if wr.DoneReason == "length" {
		return mealrecal.Failure(mealrecal.ReasonOther, errors.New("ollama: response truncated at num_predict"))
	}

	slog.Info("GENERATOR: Ollama chat succeeded", "model", g.model, "content_len", len(wr.Message.Content))
	return mealrecal.Success(wr.Message.Content)
}

func classify(ctx context.Context, err error) mealrecal.FailureReason {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return mealrecal.ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return mealrecal.ReasonTimeout
	default:
		return mealrecal.ReasonOther
	}
}
