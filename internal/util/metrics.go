package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutSessionsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_sessions_created_total",
		Help: "Total number of hosted checkout sessions created",
	})

	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of payment webhook events received",
	}, []string{"type"})

	WebhookEventsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_events_duplicate_total",
		Help: "Total number of webhook events skipped as already processed",
	})

	WebhookSignatureFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook deliveries rejected for bad signatures",
	})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_recorded_total",
		Help: "Total number of sales recorded exactly once",
	})

	SalesDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sales_duplicate_total",
		Help: "Total number of sale recordings short-circuited as duplicates",
	})

	WalletCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_credits_total",
		Help: "Total number of seller wallet credits applied",
	})

	AmountMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "amount_mismatches_total",
		Help: "Total number of payment confirmations rejected for amount mismatch",
	})

	DownloadLinksIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "download_links_issued_total",
		Help: "Total number of download links issued",
	})

	DownloadsTrackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "downloads_tracked_total",
		Help: "Total number of download token redemptions",
	})

	WithdrawalRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "withdrawal_requests_total",
		Help: "Total number of withdrawal requests by outcome",
	}, []string{"outcome"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of notification emails dispatched",
	}, []string{"type"})

	WebhookProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_latency_seconds",
		Help:    "Latency of webhook event processing",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
