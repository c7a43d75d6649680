package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	SendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_send_total",
			Help: "Completed sends by outcome (sent, partially_indexed, replayed)",
		},
		[]string{"status"},
	)

	SendFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_send_failures_total",
			Help: "Sends that ended in the failed state, by the state they failed in",
		},
		[]string{"state"},
	)

	InboxTouchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_inbox_touch_failures_total",
			Help: "Inbox upserts that still failed after retries",
		},
	)

	InboxStaleRowsRepairedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_inbox_stale_rows_repaired_total",
			Help: "Stale inbox rows removed by read repair",
		},
	)

	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_retries_total",
			Help: "Retried store steps",
		},
		[]string{"step"},
	)

	InconsistentReadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messenger_inconsistent_reads_total",
			Help: "Reads that found messages for a conversation without participants",
		},
	)

	StoreOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messenger_store_op_duration_seconds",
			Help:    "Duration of partition store calls",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"op", "table"},
	)

	StoreOpErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messenger_store_op_errors_total",
			Help: "Failed partition store calls by error kind",
		},
		[]string{"op", "table", "kind"},
	)
)
