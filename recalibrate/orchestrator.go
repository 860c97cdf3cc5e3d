package recalibrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mealrecal"
	"mealrecal/aggregate"
	"mealrecal/daywindow"
	"mealrecal/plan"
	"mealrecal/planbuilder"
	"mealrecal/sanitize"
	"mealrecal/schedule"
	"mealrecal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Pipeline stages, in execution order.
const (
	StageLoadBaseline       = "load_baseline"
	StageAggregateToday     = "aggregate_today"
	StageDetermineRemaining = "determine_remaining_slots"
	StageBuildCandidate     = "build_candidate"
	StageSanitize           = "sanitize"
	StageComputeWarnings    = "compute_warnings"
	StageValidate           = "validate"
	StagePersist            = "persist"
)

// Notifier is told about every persisted plan. Failures are logged, never returned.
type Notifier interface {
	Notify(ctx context.Context, doc plan.Document) error
}

// Orchestrator recomputes a user's plan for the rest of the local day after a consumption log.
// It holds no per-user state: overlapping runs for one user both upsert, and the later write
// wins.
type Orchestrator struct {
	repo        *store.Repository
	builder     *planbuilder.Builder
	sanitizer   *sanitize.Sanitizer
	thresholds  schedule.Thresholds
	logger      mealrecal.RecalibrationLogger
	notifier    Notifier
	tracer      trace.Tracer
	metrics     *instruments
	now         func() time.Time
	recentLimit int
	lookback    time.Duration
}

type Opts struct {
	Thresholds  schedule.Thresholds
	Logger      mealrecal.RecalibrationLogger
	Notifier    Notifier
	Tracer      trace.Tracer
	Meter       metric.Meter
	Now         func() time.Time
	RecentLimit int
	Lookback    time.Duration
}

// New wires the pipeline. Zero options take the defaults: standard meal thresholds, the last
// 200 records over 72 hours, the global telemetry providers and the wall clock.
func New(repo *store.Repository, builder *planbuilder.Builder, sanitizer *sanitize.Sanitizer, opts Opts) (*Orchestrator, error) {
	if repo == nil || builder == nil || sanitizer == nil {
		return nil, errors.New("repository, builder and sanitizer are required")
	}
	if opts.Thresholds == (schedule.Thresholds{}) {
		opts.Thresholds = schedule.DefaultThresholds
	}
	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = mealrecal.NewNoOpRecalibrationLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(mealrecal.TracerNameRecalibrate)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(mealrecal.TracerNameRecalibrate)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = 200
	}
	if opts.Lookback <= 0 {
		opts.Lookback = 72 * time.Hour
	}

	return &Orchestrator{
		repo:        repo,
		builder:     builder,
		sanitizer:   sanitizer,
		thresholds:  opts.Thresholds,
		logger:      opts.Logger,
		notifier:    opts.Notifier,
		tracer:      opts.Tracer,
		metrics:     newInstruments(opts.Meter),
		now:         opts.Now,
		recentLimit: opts.RecentLimit,
		lookback:    opts.Lookback,
	}, nil
}

// run carries the identity of one invocation for stage logging.
type run struct {
	o      *Orchestrator
	userID string
	day    string
}

func (r run) stage(ctx context.Context, name string, began time.Time, detail any, err error) {
	entry := mealrecal.StageLog{
		Stage:     name,
		Timestamp: began,
		UserID:    r.userID,
		Day:       r.day,
		Duration:  time.Since(began),
		Detail:    detail,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := r.o.logger.LogStage(entry); lerr != nil {
		slog.Warn("RECALIBRATE: Failed to record stage", "stage", name, "error", lerr)
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attribute.Bool("failed", err != nil)))
}

// Recalibrate runs the pipeline and persists the new plan. Nothing is written before the final
// stage, so a cancelled or failed run leaves the previous plan in place. A candidate rejected
// by validation returns an error wrapping plan.ErrDegeneratePlan.
func (o *Orchestrator) Recalibrate(ctx context.Context, userID string, profile plan.DietaryProfile) (doc plan.Document, err error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Recalibrate", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	started := time.Now()
	o.metrics.runs.Add(ctx, 1)
	defer func() {
		o.metrics.duration.Record(ctx, time.Since(started).Seconds())
		if err != nil {
			o.metrics.failures.Add(ctx, 1)
			span.SetStatus(codes.Error, "recalibration failed")
			span.RecordError(err)
			slog.Error("RECALIBRATE: Run failed", "user_id", userID, "error", err)
		}
	}()

	if strings.TrimSpace(userID) == "" {
		return plan.Document{}, errors.New("user id is required")
	}

	now := o.now()
	w := daywindow.Resolve(profile.Timezone, now)
	r := run{o: o, userID: userID, day: w.Date}
	span.SetAttributes(attribute.String("day", w.Date), attribute.Bool("timezone_fallback", w.Fallback))
	slog.Info("RECALIBRATE: Starting run", "user_id", userID, "day", w.Date, "timezone", w.Location.String())

	// LOAD_BASELINE and the consumption fetch are independent reads.
	began := time.Now()
	var (
		baseline *plan.Document
		records  []plan.ConsumptionRecord
	)
	since := now.Add(-o.lookback)
	if w.Start.Before(since) {
		since = w.Start
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := o.repo.LatestPlan(gctx, userID)
		if err != nil {
			return fmt.Errorf("load baseline: %w", err)
		}
		baseline = b
		return nil
	})
	g.Go(func() error {
		recs, err := o.repo.RecentConsumption(gctx, userID, since, o.recentLimit)
		if err != nil {
			return fmt.Errorf("load consumption: %w", err)
		}
		records = recs
		return nil
	})
	if err := g.Wait(); err != nil {
		r.stage(ctx, StageLoadBaseline, began, nil, err)
		return plan.Document{}, err
	}
	if baseline == nil {
		baseline = placeholderBaseline(userID, w.Date)
	}
	r.stage(ctx, StageLoadBaseline, began, map[string]any{"baseline_kind": baseline.Kind, "baseline_day": baseline.Day}, nil)

	// AGGREGATE_TODAY
	began = time.Now()
	summary := aggregate.Aggregate(records, w)
	r.stage(ctx, StageAggregateToday, began, map[string]any{
		"records_fetched": len(records),
		"records_today":   summary.Count(),
		"skipped":         summary.Skipped,
		"total_calories":  summary.TotalCalories,
	}, nil)

	// DETERMINE_REMAINING_SLOTS
	began = time.Now()
	target := profile.Target()
	remaining := target - summary.TotalCalories
	slots := o.thresholds.Remaining(w.LocalHour(now))
	var toPlan []plan.MealType
	consumed := make(map[plan.MealType][]string)
	for _, mt := range plan.MealTypes {
		if summary.Consumed(mt) {
			consumed[mt] = summary.ConsumedNames(mt)
			continue
		}
		if schedule.Includes(slots, mt) {
			toPlan = append(toPlan, mt)
		}
	}
	r.stage(ctx, StageDetermineRemaining, began, map[string]any{
		"local_hour": w.LocalHour(now),
		"slots":      slots,
		"to_plan":    toPlan,
		"remaining":  remaining,
	}, nil)

	// BUILD_CANDIDATE
	began = time.Now()
	constraints := profile.Constraints()
	cand := o.builder.Build(ctx, planbuilder.Input{
		UserID:           userID,
		Date:             w.Date,
		Profile:          profile,
		Constraints:      constraints,
		Target:           target,
		Remaining:        remaining,
		ConsumedCalories: summary.TotalCalories,
		Consumed:         consumed,
		Slots:            toPlan,
	})
	o.metrics.attempts.Add(ctx, int64(len(cand.Attempts)))
	if cand.Source == planbuilder.SourceFallback {
		o.metrics.fallbacks.Add(ctx, 1)
	}
	r.stage(ctx, StageBuildCandidate, began, map[string]any{
		"source":   cand.Source,
		"attempts": len(cand.Attempts),
		"failure":  cand.Failure,
	}, nil)

	// SANITIZE
	began = time.Now()
	band := planbuilder.SnackBandFor(remaining)
	recommended := make(map[plan.MealType]string, len(toPlan))
	for _, mt := range toPlan {
		if mt == plan.Snack && band != planbuilder.SnackDish {
			continue
		}
		recommended[mt] = cand.Meals[mt].Name
	}
	recommended, findings := o.sanitizer.SanitizeMeals(recommended, constraints)
	// Band messages are budget policy, not dishes.
	var snackBand string
	if schedule.Includes(toPlan, plan.Snack) && band != planbuilder.SnackDish {
		snackBand = band.Message()
		recommended[plan.Snack] = snackBand
	}
	meals := render(layout{
		slots:       slots,
		summary:     summary,
		recommended: recommended,
		remaining:   remaining,
		baseline:    *baseline,
		genericSafe: o.sanitizer.GenericSafe(),
	})
	meals, more := o.sanitizeDisplays(meals, summary, constraints, snackBand)
	findings = append(findings, more...)
	for _, f := range findings {
		o.metrics.replacements.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", string(f.Reason))))
		slog.Warn("RECALIBRATE: Sanitizer replaced meal text", "user_id", userID, "slot", f.Slot, "reason", f.Reason, "match", f.Match)
	}
	r.stage(ctx, StageSanitize, began, map[string]any{
		"lexicon_version": o.sanitizer.LexiconVersion(),
		"replacements":    len(findings),
	}, nil)

	// COMPUTE_WARNINGS
	began = time.Now()
	warns := warnings(remaining, summary)
	r.stage(ctx, StageComputeWarnings, began, map[string]any{"warnings": len(warns)}, nil)

	// VALIDATE
	began = time.Now()
	doc = plan.Document{
		ID:                plan.DocumentID(userID, w.Date),
		UserID:            userID,
		Day:               w.Date,
		Meals:             meals,
		TotalCalories:     target,
		RemainingCalories: remaining,
		ConsumedCalories:  summary.TotalCalories,
		Warnings:          warns,
		Kind:              kind(cand.Source, constraints),
		CreatedAt:         now.UTC(),
	}
	if err := plan.Validate(doc); err != nil {
		o.metrics.degenerate.Add(ctx, 1)
		r.stage(ctx, StageValidate, began, nil, err)
		return plan.Document{}, fmt.Errorf("validate plan for %s: %w", userID, err)
	}
	r.stage(ctx, StageValidate, began, nil, nil)

	// PERSIST
	began = time.Now()
	if err := o.repo.SavePlan(ctx, doc); err != nil {
		r.stage(ctx, StagePersist, began, nil, err)
		return plan.Document{}, fmt.Errorf("persist plan: %w", err)
	}
	o.metrics.warnings.Record(ctx, int64(len(warns)))
	r.stage(ctx, StagePersist, began, map[string]any{"plan_id": doc.ID, "kind": doc.Kind}, nil)

	slog.Info("RECALIBRATE: Plan updated",
		"user_id", userID,
		"day", w.Date,
		"kind", doc.Kind,
		"remaining_calories", remaining,
		"warnings", len(warns),
		"duration", time.Since(started),
	)

	if o.notifier != nil {
		if nerr := o.notifier.Notify(ctx, doc); nerr != nil {
			slog.Warn("RECALIBRATE: Notification failed", "user_id", userID, "error", nerr)
		}
	}
	return doc, nil
}

// sanitizeDisplays is the final pass over every slot string before persistence. Reports of
// what was eaten are only checked for corruption; the user did eat it. A snack band message
// is left as is.
func (o *Orchestrator) sanitizeDisplays(meals map[plan.MealType]string, summary aggregate.Summary, c plan.Constraints, snackBand string) (map[plan.MealType]string, []sanitize.Finding) {
	var findings []sanitize.Finding
	for _, mt := range plan.MealTypes {
		if mt == plan.Snack && snackBand != "" && meals[mt] == snackBand {
			continue
		}
		rules := c
		if summary.Consumed(mt) {
			rules = plan.Constraints{}
		}
		clean, f := o.sanitizer.Check(meals[mt], mt, rules)
		meals[mt] = clean
		if f.Replaced {
			findings = append(findings, f)
		}
	}
	return meals, findings
}

// CurrentPlan returns the user's most recent plan, or nil when none was ever stored.
func (o *Orchestrator) CurrentPlan(ctx context.Context, userID string) (*plan.Document, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.CurrentPlan", trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	doc, err := o.repo.LatestPlan(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "load failed")
		span.RecordError(err)
		return nil, fmt.Errorf("current plan for %s: %w", userID, err)
	}
	return doc, nil
}

func placeholderBaseline(userID, day string) *plan.Document {
	meals := make(map[plan.MealType]string, len(plan.MealTypes))
	for _, mt := range plan.MealTypes {
		meals[mt] = "Not specified"
	}
	return &plan.Document{
		UserID: userID,
		Day:    day,
		Meals:  meals,
		Kind:   plan.KindBaseline,
	}
}
