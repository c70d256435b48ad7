package queue

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Inspector reads queue statistics; *asynq.Inspector satisfies it.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Monitor samples queue sizes into the queue gauges.
type Monitor struct {
	Inspector Inspector
	Queues    []string
	Interval  time.Duration
	Logger    zerolog.Logger
}

// Run samples until ctx is cancelled.
func (m Monitor) Run(ctx context.Context) {
	interval := m.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		m.Sample()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sample refreshes the gauges once.
func (m Monitor) Sample() {
	queues := m.Queues
	if len(queues) == 0 {
		queues = []string{"default"}
	}
	for _, q := range queues {
		info, err := m.Inspector.GetQueueInfo(q)
		if err != nil {
			// asynq only creates a queue on first enqueue.
			if errors.Is(err, asynq.ErrQueueNotFound) {
				continue
			}
			m.Logger.Warn().Err(err).Str("queue", q).Msg("inspect queue")
			continue
		}
		QueueDepth.WithLabelValues(q, "pending").Set(float64(info.Pending))
		QueueDepth.WithLabelValues(q, "active").Set(float64(info.Active))
		QueueDepth.WithLabelValues(q, "scheduled").Set(float64(info.Scheduled))
		QueueDepth.WithLabelValues(q, "retry").Set(float64(info.Retry))
		QueueDLQSize.WithLabelValues(q).Set(float64(info.Archived))
	}
}

// Instrument counts handled tasks by outcome. Tasks that will not be retried
// count as "dropped".
func Instrument(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		err := next.ProcessTask(ctx, t)
		status := "ok"
		switch {
		case err == nil:
		case errors.Is(err, asynq.SkipRetry):
			status = "dropped"
		default:
			status = "error"
		}
		QueueProcessedTotal.WithLabelValues(t.Type(), status).Inc()
		return err
	})
}
