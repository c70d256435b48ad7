package jobpoll_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bundle-admin/internal/jobpoll"
	"github.com/noah-isme/bundle-admin/internal/shopify"
)

func scripted(statuses ...shopify.OperationStatus) (jobpoll.QueryFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(_ context.Context, jobID string) (shopify.Operation, error) {
		n := int(calls.Add(1)) - 1
		status := statuses[len(statuses)-1]
		if n < len(statuses) {
			status = statuses[n]
		}
		op := shopify.Operation{ID: jobID, Status: status}
		if status == shopify.OperationComplete {
			op.Product = &shopify.OperationProduct{ID: "gid://shopify/Product/1"}
		}
		if status == shopify.OperationFailed {
			op.UserErrors = []shopify.UserError{{Message: "bad input"}}
		}
		return op, nil
	}, &calls
}

func TestPollUntilDoneReturnsCompletion(t *testing.T) {
	query, calls := scripted(shopify.OperationRunning, shopify.OperationRunning, shopify.OperationComplete)
	p := jobpoll.Poller{}
	op, err := p.PollUntilDone(context.Background(), "job-1", query, jobpoll.Options{Timeout: time.Second, Interval: time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, shopify.OperationComplete, op.Status)
	require.Equal(t, "gid://shopify/Product/1", op.Product.ID)
	require.EqualValues(t, 3, calls.Load())
}

func TestPollUntilDoneTimesOut(t *testing.T) {
	query, _ := scripted(shopify.OperationRunning)
	p := jobpoll.Poller{}
	start := time.Now()
	_, err := p.PollUntilDone(context.Background(), "job-2", query, jobpoll.Options{Timeout: 50 * time.Millisecond, Interval: 10 * time.Millisecond})
	elapsed := time.Since(start)
	require.ErrorIs(t, err, jobpoll.ErrTimedOut)
	var failed *jobpoll.FailedError
	require.False(t, errors.As(err, &failed))
	require.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestPollUntilDoneFailure(t *testing.T) {
	query, _ := scripted(shopify.OperationActive, shopify.OperationFailed)
	p := jobpoll.Poller{}
	_, err := p.PollUntilDone(context.Background(), "job-3", query, jobpoll.Options{Interval: time.Millisecond})
	var failed *jobpoll.FailedError
	require.True(t, errors.As(err, &failed))
	require.Equal(t, "bad input", failed.UserErrors[0].Message)
	require.Contains(t, err.Error(), `[{"message":"bad input"}]`)
	require.NotErrorIs(t, err, jobpoll.ErrTimedOut)
}

func TestPollUntilDoneHonoursCancellation(t *testing.T) {
	query, calls := scripted(shopify.OperationRunning)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	p := jobpoll.Poller{}
	start := time.Now()
	_, err := p.PollUntilDone(ctx, "job-4", query, jobpoll.Options{Timeout: 10 * time.Second, Interval: time.Second})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.EqualValues(t, 1, calls.Load())
}

func TestPollUntilDoneQueryError(t *testing.T) {
	boom := errors.New("network down")
	p := jobpoll.Poller{}
	_, err := p.PollUntilDone(context.Background(), "job-5", func(context.Context, string) (shopify.Operation, error) {
		return shopify.Operation{}, boom
	}, jobpoll.Options{})
	require.ErrorIs(t, err, boom)
}

func TestPollerUsesDefaults(t *testing.T) {
	query, calls := scripted(shopify.OperationCreated, shopify.OperationComplete)
	p := jobpoll.Poller{Defaults: jobpoll.Options{Interval: time.Millisecond}}
	_, err := p.PollUntilDone(context.Background(), "job-6", query, jobpoll.Options{})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
}
