package health

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	blockHeightDesc = prometheus.NewDesc(
		"synapse_block_height",
		"Height of the last accepted block", nil, nil)
	totalNodesDesc = prometheus.NewDesc(
		"synapse_total_participants",
		"Number of registered participants", nil, nil)
	activeNodesDesc = prometheus.NewDesc(
		"synapse_active_participants",
		"Participants that proposed within the inactivity window", nil, nil)
	averageReputationDesc = prometheus.NewDesc(
		"synapse_average_reputation",
		"Mean reputation across participants", nil, nil)
	consensusHealthDesc = prometheus.NewDesc(
		"synapse_consensus_health",
		"Fraction of total stake held by trusted participants", nil, nil)
)

// Describe implements prometheus.Collector.
func (r *Reporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- blockHeightDesc
	ch <- totalNodesDesc
	ch <- activeNodesDesc
	ch <- averageReputationDesc
	ch <- consensusHealthDesc
}

// Collect implements prometheus.Collector. Every scrape recomputes the
// metrics from live registry and chain state, so /metrics never serves a
// stale snapshot.
func (r *Reporter) Collect(ch chan<- prometheus.Metric) {
	m, err := r.Metrics()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(blockHeightDesc, err)
		return
	}
	ch <- prometheus.MustNewConstMetric(blockHeightDesc, prometheus.GaugeValue, float64(m.LastBlockHeight))
	ch <- prometheus.MustNewConstMetric(totalNodesDesc, prometheus.GaugeValue, float64(m.TotalNodes))
	ch <- prometheus.MustNewConstMetric(activeNodesDesc, prometheus.GaugeValue, float64(m.ActiveNodes))
	ch <- prometheus.MustNewConstMetric(averageReputationDesc, prometheus.GaugeValue, m.AverageReputation)
	ch <- prometheus.MustNewConstMetric(consensusHealthDesc, prometheus.GaugeValue, m.ConsensusHealth)
}
