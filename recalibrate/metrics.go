package recalibrate

import (
	"go.opentelemetry.io/otel/metric"
)

type instruments struct {
	runs         metric.Int64Counter
	failures     metric.Int64Counter
	degenerate   metric.Int64Counter
	fallbacks    metric.Int64Counter
	replacements metric.Int64Counter
	attempts     metric.Int64Counter
	warnings     metric.Int64Histogram
	duration     metric.Float64Histogram
}

// newInstruments registers the recalibration metrics. Registration errors fall back to the
// no-op instruments the meter returns alongside them.
func newInstruments(m metric.Meter) *instruments {
	runs, _ := m.Int64Counter("recalibration_runs_total",
		metric.WithDescription("Total number of recalibration runs started"))
	failures, _ := m.Int64Counter("recalibration_failures_total",
		metric.WithDescription("Total number of recalibration runs that returned an error"))
	degenerate, _ := m.Int64Counter("recalibration_degenerate_plans_total",
		metric.WithDescription("Total number of candidate plans rejected by validation"))
	fallbacks, _ := m.Int64Counter("recalibration_fallbacks_total",
		metric.WithDescription("Total number of runs that used the static fallback"))
	replacements, _ := m.Int64Counter("sanitizer_replacements_total",
		metric.WithDescription("Total number of meal slots rewritten by the sanitizer"))
	attempts, _ := m.Int64Counter("generator_attempts_total",
		metric.WithDescription("Total number of generator calls"))
	warnings, _ := m.Int64Histogram("recalibration_warnings",
		metric.WithDescription("Number of warnings attached to a persisted plan"))
	duration, _ := m.Float64Histogram("recalibration_duration_seconds",
		metric.WithDescription("Duration of a recalibration run in seconds"),
		metric.WithUnit("s"))

	return &instruments{
		runs:         runs,
		failures:     failures,
		degenerate:   degenerate,
		fallbacks:    fallbacks,
		replacements: replacements,
		attempts:     attempts,
		warnings:     warnings,
		duration:     duration,
	}
}
