// Package retry classifies errors as transient or fatal and executes
// operations with bounded exponential backoff, per spec §4.7. It
// generalizes the teacher's inline retry loop (internal/controller's
// detectBlockingIssues: "1s, 2s, 4s, 8s, 16s ... after 6 failed attempts")
// into a reusable, classification-aware helper shared by ORIENT's planner
// call and ACT's verifier call.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/ralph2/kernel/internal/kernel"
)

// transientSubstrings and fatalSubstrings implement spec §4.7's
// substring-based classification. Order doesn't matter within a list;
// fatal is checked first so a message that happens to contain both (e.g.
// "timeout: permission denied") is conservatively... no — fatal wins only
// on an explicit fatal match, never inferred from a transient one.
var fatalSubstrings = []string{
	"invalid api key",
	"invalid_api_key",
	"401",
	"403",
	"permission denied",
	"not found",
	"no such file or directory",
}

var transientSubstrings = []string{
	"rate limit",
	"rate_limit",
	"overloaded",
	"timeout",
	"timed out",
	"connection",
	"econnreset",
	"429",
	"500",
	"502",
	"503",
	"504",
}

// Classification is the outcome of classifying an error.
type Classification int

const (
	// Transient errors are expected to resolve if retried.
	Transient Classification = iota
	// Fatal errors will reliably recur until a human acts.
	Fatal
)

// Classifier is the structural-code override hook: a typed error can
// implement this to bypass substring matching entirely (spec §4.7:
// "override by a structural code on typed errors").
type Classifier interface {
	RetryClassification() Classification
}

// Classify returns how err should be treated by Execute. Unknown errors
// are Transient by design (spec §9: "the cost of an extra retry is small
// and the cost of a false fatal classification is high").
func Classify(err error) Classification {
	if err == nil {
		return Transient
	}

	var c Classifier
	if errors.As(err, &c) {
		return c.RetryClassification()
	}

	msg := strings.ToLower(err.Error())
	for _, s := range fatalSubstrings {
		if strings.Contains(msg, s) {
			return Fatal
		}
	}
	for _, s := range transientSubstrings {
		if strings.Contains(msg, s) {
			return Transient
		}
	}
	return Transient
}

// Options configures Execute. Zero value uses the package defaults.
type Options struct {
	MaxAttempts int           // default kernel.DefaultRetryMaxAttempts (3)
	BaseDelay   time.Duration // default 1s
	MaxDelay    time.Duration // default 16s
	// Rand, if set, replaces the default jitter source. Tests inject a
	// deterministic source to assert exact sleep sequences.
	Rand *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = kernel.DefaultRetryMaxAttempts
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 16 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// delay computes min(base*2^(n-1), max) with multiplicative jitter in
// [0.5, 1.5), for the n'th attempt (1-indexed) that is about to be retried.
func delay(o Options, attempt int) time.Duration {
	backoff := float64(o.BaseDelay) * math.Pow(2, float64(attempt-1))
	if backoff > float64(o.MaxDelay) {
		backoff = float64(o.MaxDelay)
	}
	jitter := 0.5 + o.Rand.Float64()
	return time.Duration(backoff * jitter)
}

// Execute runs fn up to opts.MaxAttempts times. A Fatal error is
// propagated immediately without sleeping (spec §4.7). On final
// exhaustion it returns a *kernel.MaxRetriesExhausted wrapping the last
// error. Sleeps honor ctx cancellation.
func Execute(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	opts = opts.withDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if Classify(err) == Fatal {
			return err
		}

		if attempt == opts.MaxAttempts {
			break
		}

		select {
		case <-time.After(delay(opts, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return &kernel.MaxRetriesExhausted{Attempts: opts.MaxAttempts, LastErr: lastErr}
}

// Result is the outcome of an async Execute, delivered on a channel so the
// caller can fan out several retried operations concurrently (C9 ACT uses
// this shape for the per-executor agent calls; see internal/phases/act.go).
type Result struct {
	Err error
}

// ExecuteAsync runs Execute on its own goroutine and returns a channel that
// receives exactly one Result. Both synchronous and task-based invocation
// forms share the same classification logic (spec §4.7).
func ExecuteAsync(ctx context.Context, opts Options, fn func(ctx context.Context) error) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		out <- Result{Err: Execute(ctx, opts, fn)}
	}()
	return out
}
