package metadata

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_metadata_lookups_total",
		Help: "Resource metadata lookups by result (hit, miss).",
	}, []string{"result"})

	cacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resource_metadata_writes_total",
		Help: "Resource metadata writes by operation (insert, update, delete).",
	}, []string{"op"})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resource_metadata_entries",
		Help: "Entries currently held by the in-memory metadata store.",
	})
)
