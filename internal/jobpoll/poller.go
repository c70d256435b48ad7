// Package jobpoll waits for asynchronous platform operations to finish.
package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/bundle-admin/internal/obs"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

const (
	// DefaultTimeout bounds how long a job is waited on.
	DefaultTimeout = 20 * time.Second
	// DefaultInterval is the pause between two status queries.
	DefaultInterval = time.Second
)

// ErrTimedOut is returned when no terminal state was observed in time. The
// remote job may still complete afterwards.
var ErrTimedOut = errors.New("jobpoll: timed out waiting for job")

// FailedError reports a job the platform marked as FAILED.
type FailedError struct {
	JobID      string
	UserErrors []shopify.UserError
}

func (e *FailedError) Error() string {
	return "Job failed: " + shopify.EncodeUserErrors(e.UserErrors)
}

// QueryFunc fetches the current state of a job.
type QueryFunc func(ctx context.Context, jobID string) (shopify.Operation, error)

// Options tune a single PollUntilDone call. Zero values fall back to the
// poller defaults.
type Options struct {
	Timeout  time.Duration
	Interval time.Duration
}

// Poller repeatedly queries a job until it reaches a terminal state.
type Poller struct {
	Defaults Options
	Logger   zerolog.Logger
	// Now is overridable in tests.
	Now func() time.Time
}

// PollUntilDone queries jobID until it is COMPLETE (returns the operation),
// FAILED (*FailedError) or the timeout elapses (ErrTimedOut). Query errors and
// context cancellation abort immediately.
func (p Poller) PollUntilDone(ctx context.Context, jobID string, query QueryFunc, opts Options) (shopify.Operation, error) {
	if query == nil {
		return shopify.Operation{}, errors.New("jobpoll: query function is required")
	}
	ctx, span := obs.StartSpan(ctx, "shopify.job.wait", attribute.String("shopify.job_id", jobID))
	defer span.End()
	timeout, interval := p.resolve(opts)
	start := p.now()
	deadline := start.Add(timeout)
	logger := p.Logger.With().Str("job_id", jobID).Logger()

	for attempt := 1; ; attempt++ {
		op, err := query(ctx, jobID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				p.observe("canceled", start)
				return shopify.Operation{}, ctxErr
			}
			p.observe("error", start)
			return shopify.Operation{}, fmt.Errorf("jobpoll: query job %s: %w", jobID, err)
		}
		switch op.Status {
		case shopify.OperationComplete:
			span.SetAttributes(attribute.Int("shopify.job_attempts", attempt))
			p.observe("complete", start)
			logger.Debug().Int("attempts", attempt).Msg("job_complete")
			return op, nil
		case shopify.OperationFailed:
			span.SetStatus(codes.Error, "job failed")
			p.observe("failed", start)
			logger.Warn().Int("attempts", attempt).Str("user_errors", shopify.EncodeUserErrors(op.UserErrors)).Msg("job_failed")
			return op, &FailedError{JobID: jobID, UserErrors: op.UserErrors}
		}

		now := p.now()
		if !now.Before(deadline) {
			span.SetStatus(codes.Error, "timed out")
			p.observe("timeout", start)
			logger.Warn().Int("attempts", attempt).Dur("timeout", timeout).Msg("job_timed_out")
			return shopify.Operation{}, fmt.Errorf("%w: job %s after %s", ErrTimedOut, jobID, timeout)
		}
		wait := interval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			p.observe("canceled", start)
			return shopify.Operation{}, ctx.Err()
		case <-timer.C:
		}
	}
}

func (p Poller) resolve(opts Options) (time.Duration, time.Duration) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.Defaults.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = p.Defaults.Interval
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return timeout, interval
}

func (p Poller) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Poller) observe(result string, start time.Time) {
	if obs.JobPollTotal != nil {
		obs.JobPollTotal.WithLabelValues(result).Inc()
	}
	if obs.JobPollDuration != nil {
		obs.JobPollDuration.WithLabelValues(result).Observe(obs.DurationMillis(p.now().Sub(start)))
	}
}
