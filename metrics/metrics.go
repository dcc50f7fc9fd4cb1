// Package metrics exposes a small set of Prometheus collectors for a
// running node: PoET rounds, sealed blocks, mempool depth, and peer
// count. Grounded on luxfi-consensus/metrics/metrics.go's
// Registry-holding wrapper shape, generalized from a bare Register
// passthrough into named counters/gauges for this chain's own signals.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the node's Prometheus collectors.
type Metrics struct {
	Registry prometheus.Registerer

	RoundsStarted prometheus.Counter
	BlocksSealed  prometheus.Counter
	TxAdmitted    prometheus.Counter
	TxIgnored     prometheus.Counter
	MempoolSize   prometheus.Gauge
	PeerCount     prometheus.Gauge
	ChainHeight   prometheus.Gauge
}

// New creates and registers the node's collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Registry: reg,
		RoundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tolchain_poet_rounds_started_total",
			Help: "Number of PoET rounds this node has started.",
		}),
		BlocksSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tolchain_blocks_sealed_total",
			Help: "Number of blocks this node has appended to its chain.",
		}),
		TxAdmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tolchain_transactions_admitted_total",
			Help: "Number of transactions admitted into the pending pool.",
		}),
		TxIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tolchain_transactions_ignored_total",
			Help: "Number of transactions rejected by signature check or precondition.",
		}),
		MempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tolchain_mempool_size",
			Help: "Current number of pending transactions.",
		}),
		PeerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tolchain_peer_count",
			Help: "Current number of connected peers.",
		}),
		ChainHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tolchain_chain_height",
			Help: "Current number of blocks in the local chain, including genesis.",
		}),
	}
	for _, c := range []prometheus.Collector{
		m.RoundsStarted, m.BlocksSealed, m.TxAdmitted, m.TxIgnored,
		m.MempoolSize, m.PeerCount, m.ChainHeight,
	} {
		_ = m.Registry.Register(c)
	}
	return m
}

// Register registers an additional collector, e.g. one built by a
// package that must not import metrics directly.
func (m *Metrics) Register(collector prometheus.Collector) error {
	return m.Registry.Register(collector)
}

// Sample refreshes the gauges from current node state. Called every
// 5 seconds by cmd/node's sampling goroutine.
func (m *Metrics) Sample(mempoolSize, peerCount, chainHeight int) {
	m.MempoolSize.Set(float64(mempoolSize))
	m.PeerCount.Set(float64(peerCount))
	m.ChainHeight.Set(float64(chainHeight))
}
