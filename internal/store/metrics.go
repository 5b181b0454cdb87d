package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// StatSource is anything reporting pool accounting, normally *pgxpool.Pool.
type StatSource interface {
	Stat() *pgxpool.Stat
}

// PoolCollector exports pool accounting as Prometheus metrics.
type PoolCollector struct {
	src StatSource

	acquireCount         *prometheus.Desc
	acquireDuration      *prometheus.Desc
	canceledAcquireCount *prometheus.Desc
	emptyAcquireCount    *prometheus.Desc
	newConnsCount        *prometheus.Desc
	lifetimeDestroyCount *prometheus.Desc
	idleDestroyCount     *prometheus.Desc
	acquiredConns        *prometheus.Desc
	constructingConns    *prometheus.Desc
	idleConns            *prometheus.Desc
	totalConns           *prometheus.Desc
	maxConns             *prometheus.Desc
}

// NewPoolCollector builds a collector; constLabels distinguish pools when a
// process owns more than one.
func NewPoolCollector(src StatSource, constLabels prometheus.Labels) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("billstore", "db_pool", name), help, nil, constLabels)
	}
	return &PoolCollector{
		src:                  src,
		acquireCount:         desc("acquires_total", "Successful connection acquisitions."),
		acquireDuration:      desc("acquire_duration_seconds_total", "Time spent waiting for successful acquisitions."),
		canceledAcquireCount: desc("canceled_acquires_total", "Acquisitions abandoned because the context ended."),
		emptyAcquireCount:    desc("empty_acquires_total", "Acquisitions that had to wait for a connection."),
		newConnsCount:        desc("new_connections_total", "Physical connections established."),
		lifetimeDestroyCount: desc("max_lifetime_destroys_total", "Connections closed for exceeding their lifetime."),
		idleDestroyCount:     desc("max_idle_destroys_total", "Connections closed for idling too long."),
		acquiredConns:        desc("acquired_connections", "Connections currently checked out."),
		constructingConns:    desc("constructing_connections", "Connections being established."),
		idleConns:            desc("idle_connections", "Connections idle in the pool."),
		totalConns:           desc("total_connections", "Connections owned by the pool."),
		maxConns:             desc("max_connections", "Configured pool bound."),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.acquireCount, c.acquireDuration, c.canceledAcquireCount, c.emptyAcquireCount,
		c.newConnsCount, c.lifetimeDestroyCount, c.idleDestroyCount,
		c.acquiredConns, c.constructingConns, c.idleConns, c.totalConns, c.maxConns,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stat()

	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.acquireCount, float64(s.AcquireCount()))
	counter(c.acquireDuration, s.AcquireDuration().Seconds())
	counter(c.canceledAcquireCount, float64(s.CanceledAcquireCount()))
	counter(c.emptyAcquireCount, float64(s.EmptyAcquireCount()))
	counter(c.newConnsCount, float64(s.NewConnsCount()))
	counter(c.lifetimeDestroyCount, float64(s.MaxLifetimeDestroyCount()))
	counter(c.idleDestroyCount, float64(s.MaxIdleDestroyCount()))
	gauge(c.acquiredConns, float64(s.AcquiredConns()))
	gauge(c.constructingConns, float64(s.ConstructingConns()))
	gauge(c.idleConns, float64(s.IdleConns()))
	gauge(c.totalConns, float64(s.TotalConns()))
	gauge(c.maxConns, float64(s.MaxConns()))
}
