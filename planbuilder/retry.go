package planbuilder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mealrecal"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds calls to the generator.
type RetryPolicy struct {
	MaxAttempts int
	CallTimeout time.Duration
	MaxBackoff  time.Duration

	// Sleep waits between attempts and returns early with ctx's error. Nil leaves the
	// waiting to backoff.Retry's timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy is three attempts of thirty seconds each, backoff capped at a minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, CallTimeout: 30 * time.Second, MaxBackoff: 60 * time.Second}
}

// Backoff is the delay after the given 1-based failed attempt: min(2^attempt, MaxBackoff) seconds.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	b := p.exponential()
	d := b.NextBackOff()
	for i := 1; i < attempt && d < b.MaxInterval; i++ {
		d = b.NextBackOff()
	}
	return d
}

// exponential doubles from two seconds without jitter, capped at MaxBackoff.
func (p RetryPolicy) exponential() *backoff.ExponentialBackOff {
	limit := p.MaxBackoff
	if limit <= 0 {
		limit = 60 * time.Second
	}
	initial := 2 * time.Second
	if initial > limit {
		initial = limit
	}
	return &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         limit,
	}
}

// Attempt records one generator call.
type Attempt struct {
	N       int
	Reason  mealrecal.FailureReason
	Err     error
	Backoff time.Duration
}

// Outcome is the result of the last call plus the history of every call made.
type Outcome struct {
	Result   mealrecal.GenerateResult
	Attempts []Attempt
}

// OK reports whether a call eventually succeeded.
func (o Outcome) OK() bool { return o.Result.OK() }

// Do calls gen until it succeeds or attempts run out. Every failure reason backs off before
// the next attempt; there is no sleep after the last one. It never returns an error: failure
// is reported in the Outcome.
func (p RetryPolicy) Do(ctx context.Context, gen mealrecal.Generator, req mealrecal.GenerateRequest) Outcome {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if p.CallTimeout > 0 {
		req.Timeout = p.CallTimeout
	}

	var b backoff.BackOff = p.exponential()
	var paced *pacedBackOff
	if p.Sleep != nil {
		paced = &pacedBackOff{ctx: ctx, next: b, sleep: p.Sleep}
		b = paced
	}

	var out Outcome
	operation := func() (mealrecal.GenerateResult, error) {
		n := len(out.Attempts) + 1
		if err := ctx.Err(); err != nil {
			return mealrecal.Failure(mealrecal.ReasonOther, err), backoff.Permanent(err)
		}

		res := gen.Generate(ctx, req)
		if res.OK() {
			out.Attempts = append(out.Attempts, Attempt{N: n})
			slog.Info("GENERATOR: attempt succeeded", "attempt", n)
			return res, nil
		}

		out.Attempts = append(out.Attempts, Attempt{N: n, Reason: res.Reason, Err: res.Err})
		slog.Warn("GENERATOR: attempt failed", "attempt", n, "max_attempts", maxAttempts, "reason", res.Reason, "error", res.Err)
		if res.Err != nil {
			return res, res.Err
		}
		return res, fmt.Errorf("generator failed: %s", res.Reason)
	}
	notify := func(err error, d time.Duration) {
		if paced != nil {
			d = paced.last
		}
		out.Attempts[len(out.Attempts)-1].Backoff = d
		slog.Info("GENERATOR: backing off", "attempt", len(out.Attempts), "backoff", d)
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(maxAttempts)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(notify),
	)
	out.Result = res

	switch {
	case err == nil:
	case paced != nil && paced.err != nil:
		out.Attempts[len(out.Attempts)-1].Backoff = paced.last
		out.Result = mealrecal.Failure(mealrecal.ReasonOther, paced.err)
	case ctx.Err() != nil:
		out.Result = mealrecal.Failure(mealrecal.ReasonOther, err)
	}
	return out
}

// pacedBackOff waits out each delay through an injected sleep and hands Retry a zero delay.
// A failed sleep stops the retries.
type pacedBackOff struct {
	ctx   context.Context
	next  backoff.BackOff
	sleep func(ctx context.Context, d time.Duration) error
	last  time.Duration
	err   error
}

func (b *pacedBackOff) Reset() { b.next.Reset() }

func (b *pacedBackOff) NextBackOff() time.Duration {
	b.last = b.next.NextBackOff()
	if b.last == backoff.Stop {
		return backoff.Stop
	}
	if err := b.sleep(b.ctx, b.last); err != nil {
		b.err = err
		return backoff.Stop
	}
	return 0
}
