package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_sync_sessions_opened_total",
		Help: "Sync sessions opened by outgoing sync-requests.",
	})
	deltasBuilt = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_sync_deltas_built_total",
		Help: "Delta payload sequences built for remote peers.",
	})
	deltaPayloads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_sync_delta_payloads_total",
		Help: "Individual sync-delta payloads emitted.",
	})
	deltasApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_sync_deltas_applied_total",
		Help: "Inbound sync-delta payloads applied to storage.",
	})
	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quorum_sync_cache_entries",
		Help: "Live per-channel payload cache entries.",
	})
	tombstoneCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "quorum_sync_tombstones",
		Help: "Tombstones held in the in-process log.",
	})
)
