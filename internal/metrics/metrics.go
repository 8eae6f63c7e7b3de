// Package metrics exposes scheduler progress as rcrowley/go-metrics gauges
// (grounded on the teacher's datasync/chaindatafetcher/chaindata_fetcher.go,
// which keeps one registered Gauge per request type and calls Update on
// it) and mirrors the same values into a prometheus/client_golang registry
// for the httpserver's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	gometrics "github.com/rcrowley/go-metrics"
)

// Registry holds the indexer's gauges. The scheduler updates progress and
// the batch-size/commit metrics on every commit; nothing in the indexer
// calls SetTailSync, SetBlockHeight or SetIsPrimary.
type Registry struct {
	registry gometrics.Registry

	promProgress    *prometheus.GaugeVec
	promTailSync    *prometheus.GaugeVec
	promBlockHeight *prometheus.GaugeVec
	promBatchSize   prometheus.Gauge
	promCommits     prometheus.Counter
	promIsPrimary   prometheus.Gauge
}

// NewRegistry builds both registries and registers the prometheus side with
// reg (typically prometheus.DefaultRegisterer).
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		registry: gometrics.NewRegistry(),
		promProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barreleye_indexer_progress", Help: "IndexerProgress(nid), 0..1",
		}, []string{"network"}),
		promTailSync: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barreleye_indexer_tail_sync_block", Help: "IndexerTailSync(nid)",
		}, []string{"network"}),
		promBlockHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "barreleye_chain_head_block", Help: "BlockHeight(nid)",
		}, []string{"network"}),
		promBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "barreleye_warehouse_batch_size", Help: "records pending commit",
		}),
		promCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barreleye_warehouse_commits_total", Help: "batch commits since start",
		}),
		promIsPrimary: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "barreleye_is_primary", Help: "1 if this replica currently holds primary",
		}),
	}
	reg.MustRegister(r.promProgress, r.promTailSync, r.promBlockHeight, r.promBatchSize, r.promCommits, r.promIsPrimary)
	return r
}

func (r *Registry) gauge(name string) gometrics.Gauge {
	return gometrics.GetOrRegisterGauge(name, r.registry)
}

// SetProgress records IndexerProgress(nid) for network.
func (r *Registry) SetProgress(network string, value float64) {
	r.gauge("indexer.progress." + network).Update(int64(value * 1000))
	r.promProgress.WithLabelValues(network).Set(value)
}

// SetTailSync records IndexerTailSync(nid).
func (r *Registry) SetTailSync(network string, height uint64) {
	r.gauge("indexer.tail_sync." + network).Update(int64(height))
	r.promTailSync.WithLabelValues(network).Set(float64(height))
}

// SetBlockHeight records BlockHeight(nid).
func (r *Registry) SetBlockHeight(network string, height uint64) {
	r.gauge("chain.head." + network).Update(int64(height))
	r.promBlockHeight.WithLabelValues(network).Set(float64(height))
}

// ObserveCommit records one batch commit of the given size.
func (r *Registry) ObserveCommit(size int) {
	r.gauge("warehouse.batch_size").Update(int64(size))
	r.promBatchSize.Set(float64(size))
	r.promCommits.Inc()
}

// SetIsPrimary records whether this replica holds primary.
func (r *Registry) SetIsPrimary(isPrimary bool) {
	v := 0.0
	if isPrimary {
		v = 1.0
	}
	r.promIsPrimary.Set(v)
}
