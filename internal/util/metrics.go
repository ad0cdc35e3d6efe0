package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShipmentsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_resolved_total",
		Help: "Total number of shipments fully resolved from the marketplace",
	})

	ResolutionFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shipment_resolution_failed_total",
		Help: "Total number of failed shipment resolutions",
	}, []string{"reason"})

	ResolutionEntriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipment_resolution_entries_skipped_total",
		Help: "Total number of shipment item entries skipped during resolution",
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipment_cache_hits_total",
		Help: "Total number of fresh shipment cache hits",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipment_cache_misses_total",
		Help: "Total number of shipment cache misses (absent or stale)",
	})

	EnrichmentFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_failed_total",
		Help: "Total number of failed enrichment lookups",
	}, []string{"kind"})

	CatalogSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_syncs_total",
		Help: "Total number of full vendor catalog syncs",
	})

	ShipmentsPackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_packed_total",
		Help: "Total number of shipments marked packed",
	})

	ShipmentsDispatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shipments_dispatched_total",
		Help: "Total number of shipments marked dispatched",
	})

	PickActionRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pick_action_rejected_total",
		Help: "Total number of rejected pack/dispatch actions",
	}, []string{"action", "reason"})

	TokenRefreshTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_token_refresh_total",
		Help: "Total number of marketplace token refreshes",
	})

	NotificationsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_notifications_processed_total",
		Help: "Total number of inbound marketplace notifications",
	}, []string{"outcome"})

	ResolutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shipment_resolution_latency_seconds",
		Help:    "Latency of full shipment resolution passes",
		Buckets: prometheus.DefBuckets,
	})

	EnrichmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichment_latency_seconds",
		Help:    "Latency of enrichment fan-out passes",
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
