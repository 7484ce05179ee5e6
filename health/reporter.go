package health

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"synapse-node/models"
	"synapse-node/registry"
	"synapse-node/repository"
)

// trustThreshold is the reputation above which a participant's stake counts
// toward consensus health.
const trustThreshold = 0.5

// Reporter produces diagnostic consensus metrics from current registry
// state. Read-only; no consensus decision depends on its output. It also
// implements prometheus.Collector, see metrics.go.
type Reporter struct {
	reg          *registry.Registry
	blocks       repository.BlockRepositoryInterface
	activeWindow time.Duration
}

func NewReporter(reg *registry.Registry, blocks repository.BlockRepositoryInterface, activeWindow time.Duration) *Reporter {
	return &Reporter{reg: reg, blocks: blocks, activeWindow: activeWindow}
}

// AverageReputation is the arithmetic mean of reputation across all
// participants, 0 for an empty registry.
func (r *Reporter) AverageReputation() float64 {
	snapshot := r.reg.All()
	if len(snapshot) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range snapshot {
		sum += p.Reputation
	}
	return sum / float64(len(snapshot))
}

// ConsensusHealth is the fraction of total stake held by participants with
// reputation above the trust threshold, 0 when total stake is zero.
func (r *Reporter) ConsensusHealth() float64 {
	snapshot := r.reg.All()
	total := r.reg.TotalStake()
	if total.IsZero() {
		return 0
	}

	trusted := new(uint256.Int)
	for _, p := range snapshot {
		if p.Reputation > trustThreshold {
			trusted.Add(trusted, p.Stake)
		}
	}
	ratio, _ := new(big.Float).Quo(
		new(big.Float).SetInt(trusted.ToBig()),
		new(big.Float).SetInt(total.ToBig()),
	).Float64()
	return ratio
}

// Metrics assembles the operator-facing snapshot.
func (r *Reporter) Metrics() (*models.ConsensusMetrics, error) {
	snapshot := r.reg.All()

	active := 0
	cutoff := time.Now().Add(-r.activeWindow)
	for _, p := range snapshot {
		if p.LastProposalTime.After(cutoff) {
			active++
		}
	}

	var height int64
	head, err := r.blocks.GetLatestBlock()
	if err != nil {
		return nil, err
	}
	if head != nil {
		height = head.Height
	}

	return &models.ConsensusMetrics{
		TotalNodes:        len(snapshot),
		ActiveNodes:       active,
		AverageReputation: r.AverageReputation(),
		ConsensusHealth:   r.ConsensusHealth(),
		LastBlockHeight:   height,
	}, nil
}
