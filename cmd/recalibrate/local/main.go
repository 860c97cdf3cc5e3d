package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mealrecal"
	"mealrecal/artifact"
	"mealrecal/daywindow"
	"mealrecal/generator/bedrock"
	"mealrecal/generator/mock"
	"mealrecal/generator/ollama"
	"mealrecal/plan"
	"mealrecal/planbuilder"
	"mealrecal/recalibrate"
	"mealrecal/sanitize"
	"mealrecal/schedule"
	"mealrecal/slack"
	"mealrecal/store"
	"mealrecal/store/postgres"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/uuid"
	"github.com/joeshaw/envdecode"
)

// Usage: local [user-id] [profile.json] [food] [calories]
//
// With a food and calorie count the item is logged at the current time before recalibrating.
func main() {
	ctx := context.Background()

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

	tracerProvider, meterProvider, otelShutdown, err := mealrecal.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	userID := argOr(1, "local-user")

	profile := plan.DietaryProfile{TargetCalories: plan.DefaultTargetCalories, Timezone: "UTC"}
	if path := argOr(2, ""); path != "" {
		p, err := artifact.LoadProfile(ctx, artifact.NewFileSource(path))
		if err != nil {
			slog.Error("SETUP: Failed to load profile", "path", path, "error", err)
			return
		}
		profile = p
	}

	repo, err := newRepository(ctx, storeConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create store", "error", err)
		return
	}

	if food := argOr(3, ""); food != "" {
		cal, err := strconv.ParseFloat(argOr(4, "0"), 64)
		if err != nil {
			slog.Error("SETUP: Calories must be a number", "error", err)
			return
		}
		now := time.Now()
		rec, err := plan.NewConsumptionRecord(uuid.NewString(), userID, food, "1 serving",
			plan.Nutrients{Calories: cal}, plan.SuitabilityUnknown, now, daywindow.Resolve(profile.Timezone, now).Location)
		if err != nil {
			slog.Error("SETUP: Invalid consumption record", "error", err)
			return
		}
		if err := repo.SaveConsumption(ctx, rec); err != nil {
			slog.Error("SETUP: Failed to log consumption", "error", err)
			return
		}
		slog.Info("SETUP: Logged consumption", "food", food, "calories", cal, "meal_type", rec.MealType)
	}

	var lexSource artifact.Source
	if lexiconConfig.Path != "" {
		lexSource = artifact.NewFileSource(lexiconConfig.Path)
	}
	lex, err := artifact.LoadLexicon(ctx, lexSource)
	if err != nil {
		slog.Error("SETUP: Failed to load lexicon", "error", err)
		return
	}
	sanitizer, err := sanitize.New(lex)
	if err != nil {
		slog.Error("SETUP: Failed to compile lexicon", "error", err)
		return
	}

	gen, modelConfig, err := newGenerator(ctx, genConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create generator", "error", err)
		return
	}
	builder := planbuilder.NewBuilder(gen, planbuilder.BuilderOpts{
		Retry: planbuilder.RetryPolicy{
			MaxAttempts: genConfig.MaxAttempts,
			CallTimeout: genConfig.CallTimeout,
			MaxBackoff:  genConfig.MaxBackoff,
		},
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
	})

	logger, cleanup, err := newRecalibrationLogger(userID)
	if err != nil {
		slog.Error("SETUP: Failed to create recalibration logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush recalibration log", "error", err)
		}
	}()

	webhook := notifyConfig.SlackWebhookURL
	if webhook == "" {
		testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(bytes.Buffer)
			body.ReadFrom(r.Body) // nolint: errcheck
			slog.Info("Received request",
				"method", r.Method,
				"path", r.URL.Path,
				"body", body.String(),
			)
			w.WriteHeader(http.StatusOK)
		}))
		defer testServer.Close()
		webhook = testServer.URL
	}

	orch, err := recalibrate.New(repo, builder, sanitizer, recalibrate.Opts{
		Thresholds: schedule.Thresholds{
			Lunch:  plannerConfig.LunchFrom,
			Dinner: plannerConfig.DinnerFrom,
			Snack:  plannerConfig.SnackFrom,
			Close:  plannerConfig.CloseFrom,
		},
		Logger:      logger,
		Notifier:    slack.NewPlanNotifier(slack.NewClient(webhook, http.DefaultClient), notifyConfig.SlackChannel),
		Tracer:      tracerProvider.Tracer(mealrecal.TracerNameRecalibrate),
		Meter:       meterProvider.Meter(mealrecal.TracerNameRecalibrate),
		RecentLimit: plannerConfig.RecentLimit,
		Lookback:    plannerConfig.Lookback,
	})
	if err != nil {
		slog.Error("SETUP: Failed to create orchestrator", "error", err)
		return
	}

	doc, err := orch.Recalibrate(ctx, userID, profile)
	if err != nil {
		slog.Error("FAILURE: Recalibration failed", "error", err)
		if errors.Is(err, plan.ErrDegeneratePlan) {
			if prior, perr := orch.CurrentPlan(ctx, userID); perr == nil && prior != nil {
				slog.Info("RESULT: Keeping previous plan", "plan_id", prior.ID, "day", prior.Day)
			}
		}
		return
	}
	mealrecal.Dump(doc)
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

func newRepository(ctx context.Context, cfg mealrecal.StoreConfig) (*store.Repository, error) {
	switch cfg.Backend {
	case "memory":
		return store.NewRepository(store.NewMemory()), nil
	case "postgres":
		pg, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return store.NewRepository(pg), nil
	default:
		return store.NewRepository(store.NewFile(cfg.FilePath)), nil
	}
}

// newGenerator picks the backend. The mock needs no model configuration.
func newGenerator(ctx context.Context, cfg mealrecal.GeneratorConfig) (mealrecal.Generator, mealrecal.ModelConfig, error) {
	var modelConfig mealrecal.ModelConfig
	if cfg.Backend == "mock" {
		slog.Info("SETUP: Using mock generator")
		return mock.NewGenerator(), modelConfig, nil
	}
	if err := envdecode.Decode(&modelConfig); err != nil {
		return nil, modelConfig, err
	}

	switch cfg.Backend {
	case "ollama":
		gen, err := ollama.NewGenerator(ollama.Opts{
			BaseEndpoint: cfg.BaseOllamaEndpoint,
			ModelID:      modelConfig.ModelID,
			HTTPClient:   http.DefaultClient,
		})
		return gen, modelConfig, err
	case "bedrock":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, modelConfig, fmt.Errorf("failed to load AWS config: %w", err)
		}
		brc := bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
			o.RetryMaxAttempts = 1
		})
		return bedrock.NewGenerator(brc, bedrock.Options{
			ModelID:     modelConfig.ModelID,
			MaxTokens:   modelConfig.MaxTokens,
			Temperature: modelConfig.Temperature,
			TopP:        modelConfig.TopP,
		}), modelConfig, nil
	default:
		return nil, modelConfig, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}

func newRecalibrationLogger(userID string) (mealrecal.RecalibrationLogger, func() error, error) {
	logFilePath := mealrecal.NewRecalibrationLogFilePath(userID)
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
		return nil, func() error { return err }, err
	}
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := mealrecal.NewFileRecalibrationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
