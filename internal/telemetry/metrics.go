package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal — запросы к flows по flow и коду ответа.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_flow_requests_total",
		Help: "Total flow requests by flow and status code",
	}, []string{"flow", "code"})

	// StageDispatchTotal — вызовы стадий по виду и статусу.
	StageDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_stage_dispatch_total",
		Help: "Total stage dispatches by kind and final status",
	}, []string{"kind", "status"})

	// StageDuration — длительность вызова стадии.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "conduit_stage_duration_seconds",
		Help:    "Stage dispatch duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// PersistFailuresTotal — ошибки записи состояния по коллекции.
	PersistFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_state_persist_failures_total",
		Help: "Total failed state upserts by collection",
	}, []string{"collection"})

	// NotifyQueueDepth — задачи в очереди обновления взаимодействий.
	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "conduit_notify_queue_depth",
		Help: "Interaction updates waiting in the queue",
	})

	// NotifyTotal — обработанные задачи по результату (ok, failed, dropped).
	NotifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conduit_notify_total",
		Help: "Processed interaction updates by outcome",
	}, []string{"outcome"})
)
