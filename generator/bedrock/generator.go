package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"mealrecal"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"go.opentelemetry.io/otel"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens   = 1024
	defaultTemperature = 0.4
	defaultTopP        = 0.9

	// SubmitToolName is the tool the model is forced to call when a response schema is given.
	SubmitToolName = "submit_meal_plan"
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// Generator calls the Bedrock Converse API.
type Generator struct {
	brc  bedrockRuntimeClient
	opts Options
}

func NewGenerator(brc bedrockRuntimeClient, opts Options) *Generator {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &Generator{brc: brc, opts: opts}
}

// Generate sends one Converse request. Errors are classified, never returned.
func (g *Generator) Generate(ctx context.Context, req mealrecal.GenerateRequest) mealrecal.GenerateResult {
	ctx, span := otel.Tracer(mealrecal.TracerNameBedrock).Start(ctx, "Generator.Generate")
	defer span.End()

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	in, err := g.converseInput(req)
	if err != nil {
		return mealrecal.Failure(mealrecal.ReasonOther, err)
	}

	out, err := g.brc.Converse(ctx, in)
	if err != nil {
		reason := classify(ctx, err)
		slog.Warn("GENERATOR: Bedrock converse failed", "reason", reason, "error", err)
		return mealrecal.Failure(reason, err)
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("GENERATOR: Bedrock converse succeeded", attrs...)

	switch out.StopReason {
	case types.StopReasonToolUse:
		text, err := toolInputFromOutput(out)
		if err != nil {
			return mealrecal.Failure(mealrecal.ReasonOther, fmt.Errorf("failed to read tool input: %w", err))
		}
		return mealrecal.Success(text)

	case types.StopReasonEndTurn, types.StopReasonStopSequence:
		return mealrecal.Success(textFromOutput(out))

	case types.StopReasonMaxTokens:
		return mealrecal.Failure(mealrecal.ReasonOther, errors.New("model hit MaxTokens limit"))

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		return mealrecal.Failure(mealrecal.ReasonOther, errors.New("model response blocked by Bedrock safety filters"))

	default:
		if text, err := toolInputFromOutput(out); err == nil && text != "" {
			return mealrecal.Success(text)
		}
		return mealrecal.Success(textFromOutput(out))
	}
}

func (g *Generator) converseInput(req mealrecal.GenerateRequest) (*bedrockruntime.ConverseInput, error) {
	var sys []types.SystemContentBlock
	var msgs []types.Message
	for _, m := range req.Messages {
		if m.Role == mealrecal.RoleSystem {
			sys = append(sys, &types.SystemContentBlockMemberText{Value: m.Content})
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == mealrecal.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		msgs = append(msgs, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}
	if len(msgs) == 0 {
		return nil, errors.New("at least one user message is required")
	}

	maxTokens, temperature := g.opts.MaxTokens, g.opts.Temperature
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temperature = req.Temperature
	}

	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(g.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(temperature),
			TopP:        aws.Float32(g.opts.TopP),
		},
	}

	if req.Schema != nil {
		spec, err := buildToolSpec(req.Schema)
		if err != nil {
			return nil, err
		}
		in.ToolConfig = &types.ToolConfiguration{
			Tools: []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
			ToolChoice: &types.ToolChoiceMemberTool{
				Value: types.SpecificToolChoice{Name: aws.String(SubmitToolName)},
			},
		}
	}
	return in, nil
}

// buildToolSpec round-trips the schema through JSON so the document encoder sees plain maps.
func buildToolSpec(schema *jsonschema.Schema) (types.ToolSpecification, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal response schema: %w", err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal response schema: %w", err)
	}

	return types.ToolSpecification{
		Name:        aws.String(SubmitToolName),
		Description: aws.String("Submit the recalibrated meal plan for the rest of the day."),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

func classify(ctx context.Context, err error) mealrecal.FailureReason {
	var (
		throttled   *types.ThrottlingException
		quota       *types.ServiceQuotaExceededException
		modelTO     *types.ModelTimeoutException
		responseErr *awshttp.ResponseError
	)
	switch {
	case errors.As(err, &throttled), errors.As(err, &quota):
		return mealrecal.ReasonRateLimited
	case errors.As(err, &responseErr) && responseErr.HTTPStatusCode() == http.StatusTooManyRequests:
		return mealrecal.ReasonRateLimited
	case errors.As(err, &modelTO), errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return mealrecal.ReasonTimeout
	default:
		return mealrecal.ReasonOther
	}
}

// textFromOutput prefers the last text block that looks like a single JSON object, otherwise
// joins every text block with newlines.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}

	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s
		}
	}
	return strings.Join(texts, "\n")
}

// toolInputFromOutput returns the JSON input of the submit tool call.
func toolInputFromOutput(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil {
		return "", nil
	}
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return "", nil
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || aws.ToString(tu.Value.Name) != SubmitToolName {
			continue
		}
		if tu.Value.Input == nil {
			return "", errors.New("tool call has no input")
		}
		data, err := tu.Value.Input.MarshalSmithyDocument()
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", nil
}
