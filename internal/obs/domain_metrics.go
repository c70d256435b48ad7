package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BundleOperationsTotal counts orchestrator outcomes by operation and result.
	BundleOperationsTotal *prometheus.CounterVec
	// JobPollTotal counts job poll outcomes (complete, failed, timeout, canceled, error).
	JobPollTotal *prometheus.CounterVec
	// JobPollDuration records wall-clock time spent waiting on platform jobs.
	JobPollDuration *prometheus.HistogramVec
	// MediaUploadTotal counts staged upload transfers by result.
	MediaUploadTotal *prometheus.CounterVec
	// WebhookReceivedTotal counts inbound platform webhooks by topic and outcome.
	WebhookReceivedTotal *prometheus.CounterVec
	// PriceDeltaWarnings counts components whose unit price could not be determined.
	PriceDeltaWarnings prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BundleOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_operations_total",
			Help:      "Count of bundle create/update outcomes.",
		}, []string{"operation", "result"})
		JobPollTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_poll_total",
			Help:      "Count of platform job polling outcomes.",
		}, []string{"result"})
		JobPollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_poll_duration_ms",
			Help:      "Time spent waiting for platform jobs in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000},
		}, []string{"result"})
		MediaUploadTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_upload_total",
			Help:      "Count of staged media uploads by outcome.",
		}, []string{"result"})
		WebhookReceivedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_received_total",
			Help:      "Count of platform webhooks by topic and outcome.",
		}, []string{"topic", "result"})
		PriceDeltaWarnings = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_delta_warnings_total",
			Help:      "Components priced at zero because no unit price was available.",
		})

		mustRegisterCollector(reg, BundleOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				BundleOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, JobPollTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				JobPollTotal = v
			}
		})
		mustRegisterCollector(reg, JobPollDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				JobPollDuration = v
			}
		})
		mustRegisterCollector(reg, MediaUploadTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				MediaUploadTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookReceivedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookReceivedTotal = v
			}
		})
		mustRegisterCollector(reg, PriceDeltaWarnings, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PriceDeltaWarnings = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}

// IncBundleOperation records an orchestrator outcome when metrics are registered.
func IncBundleOperation(operation, result string) {
	if BundleOperationsTotal != nil {
		BundleOperationsTotal.WithLabelValues(operation, result).Inc()
	}
}

// IncWebhook records a webhook outcome when metrics are registered.
func IncWebhook(topic, result string) {
	if WebhookReceivedTotal != nil {
		WebhookReceivedTotal.WithLabelValues(topic, result).Inc()
	}
}
