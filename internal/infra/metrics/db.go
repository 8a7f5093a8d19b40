package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(dbPoolConns, dbPoolAcquireWaits) }

var (
	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "db_pool_connections",
			Help: "Connections of the Postgres pool by state.",
		},
		[]string{"state"}, // total|idle|in_use|max
	)

	dbPoolAcquireWaits = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_pool_empty_acquire_total",
			Help: "Cumulative acquires that had to wait for a free connection.",
		},
	)
)

// PoolStat is the subset of pgxpool.Stat the gauges read.
type PoolStat interface {
	TotalConns() int32
	IdleConns() int32
	AcquiredConns() int32
	MaxConns() int32
	EmptyAcquireCount() int64
}

func SetDBPoolStats(s PoolStat) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(s.AcquiredConns()))
	dbPoolConns.WithLabelValues("max").Set(float64(s.MaxConns()))
	dbPoolAcquireWaits.Set(float64(s.EmptyAcquireCount()))
}
