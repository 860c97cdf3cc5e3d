package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"mealrecal"
	"mealrecal/artifact"
	"mealrecal/daywindow"
	"mealrecal/generator/bedrock"
	"mealrecal/plan"
	"mealrecal/planbuilder"
	"mealrecal/recalibrate"
	"mealrecal/sanitize"
	"mealrecal/schedule"
	"mealrecal/slack"
	"mealrecal/store"
	"mealrecal/store/dynamo"
	"mealrecal/store/postgres"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Params is the invocation payload. With a record, the record is stored first and the plan
// recalibrated; with action "current" the stored plan is returned unchanged.
type Params struct {
	Action  string                  `json:"action"`
	UserID  string                  `json:"user_id"`
	Profile plan.DietaryProfile     `json:"profile"`
	Record  *plan.ConsumptionRecord `json:"record,omitempty"`
}

type Results struct {
	Plan *plan.Document `json:"plan"`
}

type app struct {
	orch   *recalibrate.Orchestrator
	repo   *store.Repository
	tracer trace.Tracer
}

func main() {
	ctx := context.Background()

	var modelConfig mealrecal.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var genConfig mealrecal.GeneratorConfig
	if err := envdecode.Decode(&genConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var storeConfig mealrecal.StoreConfig
	if err := envdecode.Decode(&storeConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var plannerConfig mealrecal.PlannerConfig
	if err := envdecode.Decode(&plannerConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var lexiconConfig mealrecal.LexiconConfig
	if err := envdecode.Decode(&lexiconConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}
	var notifyConfig mealrecal.NotifyConfig
	if err := envdecode.Decode(&notifyConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("SETUP: Failed to load AWS config: %s", err)
	}

	tracerProvider, meterProvider, otelShutdown, err := mealrecal.InitOtel(ctx)
	if err != nil {
		log.Fatalf("SETUP: Failed to initialize OpenTelemetry: %s", err)
	}

	repo, err := newRepository(ctx, awsCfg, storeConfig)
	if err != nil {
		log.Fatalf("SETUP: Failed to create store: %s", err)
	}

	var lexSource artifact.Source
	if lexiconConfig.S3Bucket != "" {
		lexSource = artifact.NewS3Source(s3.NewFromConfig(awsCfg), lexiconConfig.S3Bucket, lexiconConfig.S3Key)
	}
	lex, err := artifact.LoadLexicon(ctx, lexSource)
	if err != nil {
		log.Fatalf("SETUP: Failed to load lexicon: %s", err)
	}
	sanitizer, err := sanitize.New(lex)
	if err != nil {
		log.Fatalf("SETUP: Failed to compile lexicon: %s", err)
	}
	slog.Info("SETUP: Lexicon loaded", "version", sanitizer.LexiconVersion(), "from_s3", lexSource != nil)

	// Retries are owned by the builder's policy, so the SDK makes one attempt per call.
	brc := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		o.RetryMaxAttempts = 1
	})
	gen := bedrock.NewGenerator(brc, bedrock.Options{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})
	builder := planbuilder.NewBuilder(gen, planbuilder.BuilderOpts{
		Retry: planbuilder.RetryPolicy{
			MaxAttempts: genConfig.MaxAttempts,
			CallTimeout: genConfig.CallTimeout,
			MaxBackoff:  genConfig.MaxBackoff,
		},
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
	})

	var notifier recalibrate.Notifier
	if notifyConfig.SlackWebhookURL != "" {
		notifier = slack.NewPlanNotifier(slack.NewClient(notifyConfig.SlackWebhookURL, http.DefaultClient), notifyConfig.SlackChannel)
	}

	orch, err := recalibrate.New(repo, builder, sanitizer, recalibrate.Opts{
		Thresholds: schedule.Thresholds{
			Lunch:  plannerConfig.LunchFrom,
			Dinner: plannerConfig.DinnerFrom,
			Snack:  plannerConfig.SnackFrom,
			Close:  plannerConfig.CloseFrom,
		},
		Logger:      mealrecal.NewStdoutRecalibrationLogger(),
		Notifier:    notifier,
		Tracer:      tracerProvider.Tracer(mealrecal.TracerNameRecalibrate),
		Meter:       meterProvider.Meter(mealrecal.TracerNameRecalibrate),
		RecentLimit: plannerConfig.RecentLimit,
		Lookback:    plannerConfig.Lookback,
	})
	if err != nil {
		log.Fatalf("SETUP: Failed to create orchestrator: %s", err)
	}

	a := &app{orch: orch, repo: repo, tracer: tracerProvider.Tracer(mealrecal.TracerNameRecalibrate)}

	// Lambda keeps the process warm between invocations, so spans and metrics are flushed by
	// the provider's shutdown hook rather than per request.
	lambda.StartWithOptions(a.handle, lambda.WithEnableSIGTERM(func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}))
}

func (a *app) handle(ctx context.Context, params Params) (Results, error) {
	ctx, span := a.tracer.Start(ctx, "lambda.handle", trace.WithAttributes(
		attribute.String("action", params.Action),
		attribute.String("user_id", params.UserID),
	))
	defer span.End()

	if params.UserID == "" {
		return Results{}, errors.New("user_id is required")
	}

	if params.Action == "current" {
		doc, err := a.orch.CurrentPlan(ctx, params.UserID)
		if err != nil {
			return Results{}, err
		}
		return Results{Plan: doc}, nil
	}

	if params.Record != nil {
		rec, err := newRecord(params.UserID, params.Profile.Timezone, *params.Record)
		if err != nil {
			return Results{}, fmt.Errorf("invalid consumption record: %w", err)
		}
		if err := a.repo.SaveConsumption(ctx, rec); err != nil {
			return Results{}, fmt.Errorf("save consumption record: %w", err)
		}
	}

	doc, err := a.orch.Recalibrate(ctx, params.UserID, params.Profile)
	if err != nil {
		slog.Error("RESULT: Recalibration failed", "user_id", params.UserID, "error", err)
		return Results{}, err
	}
	return Results{Plan: &doc}, nil
}

// newRecord validates an incoming log and tags it with the meal slot of its local hour.
func newRecord(userID, tz string, in plan.ConsumptionRecord) (plan.ConsumptionRecord, error) {
	loggedAt := time.Now()
	if in.LoggedAt != "" {
		t, err := in.Time()
		if err != nil {
			return plan.ConsumptionRecord{}, err
		}
		loggedAt = t
	}
	w := daywindow.Resolve(tz, loggedAt)
	rec, err := plan.NewConsumptionRecord(plan.RecordID(userID, in.ID), userID, in.FoodName, in.Portion, in.Nutrients, in.Suitability, loggedAt, w.Location)
	if err != nil {
		return plan.ConsumptionRecord{}, err
	}
	if mt, ok := plan.ParseMealType(string(in.MealType)); ok {
		rec.MealType = mt
	}
	return rec, nil
}

func newRepository(ctx context.Context, awsCfg aws.Config, cfg mealrecal.StoreConfig) (*store.Repository, error) {
	switch cfg.Backend {
	case "dynamodb", "dynamo":
		return store.NewRepository(dynamo.New(dynamodb.NewFromConfig(awsCfg), cfg.DynamoTable, cfg.DynamoOwnerIndex)), nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store.NewRepository(pg), nil
	default:
		return nil, fmt.Errorf("store backend %q is not supported in lambda", cfg.Backend)
	}
}
