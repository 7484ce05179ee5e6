package consensus

import (
	"math/big"
	"sort"

	"github.com/holiman/uint256"

	"synapse-node/models"
)

// Default influence split between stake and reputation. The two weights must
// sum to 1 so priority stays in [0,1].
const (
	DefaultStakeWeight      = 0.6
	DefaultReputationWeight = 0.4
)

// ProposerSelector deterministically picks the proposer for a slot from a
// registry snapshot. It holds no mutable state; every observer with the same
// snapshot reaches the same decision.
type ProposerSelector struct {
	stakeWeight      float64
	reputationWeight float64
}

func NewProposerSelector(stakeWeight, reputationWeight float64) *ProposerSelector {
	return &ProposerSelector{stakeWeight: stakeWeight, reputationWeight: reputationWeight}
}

// SnapshotStake sums the stake held by a registry snapshot. Selection always
// uses this sum rather than a second registry read, so the ordering is a pure
// function of the snapshot and two observers holding the same snapshot agree.
func SnapshotStake(snapshot []*models.Participant) *uint256.Int {
	total := new(uint256.Int)
	for _, p := range snapshot {
		total.Add(total, p.Stake)
	}
	return total
}

// Priority computes stakeWeight * stake/totalStake + reputationWeight * reputation.
// With zero total stake the stake term is 0 for every participant.
func (s *ProposerSelector) Priority(p *models.Participant, totalStake *uint256.Int) float64 {
	ratio := 0.0
	if totalStake != nil && !totalStake.IsZero() {
		q := new(big.Float).Quo(
			new(big.Float).SetInt(p.Stake.ToBig()),
			new(big.Float).SetInt(totalStake.ToBig()),
		)
		ratio, _ = q.Float64()
	}
	return s.stakeWeight*ratio + s.reputationWeight*p.Reputation
}

// Order sorts participants by descending priority, breaking ties by ID so the
// ordering is reproducible across observers. The stake total comes from the
// snapshot itself, never from a fresh registry read.
func (s *ProposerSelector) Order(snapshot []*models.Participant) []*models.Participant {
	ordered := make([]*models.Participant, len(snapshot))
	copy(ordered, snapshot)

	totalStake := SnapshotStake(snapshot)
	priorities := make(map[string]float64, len(ordered))
	for _, p := range ordered {
		priorities[p.ID] = s.Priority(p, totalStake)
	}

	sort.Slice(ordered, func(i, j int) bool {
		pi, pj := priorities[ordered[i].ID], priorities[ordered[j].ID]
		if pi != pj {
			return pi > pj
		}
		return ordered[i].ID < ordered[j].ID
	})
	return ordered
}

// Select returns the proposer for the given slot: position slot mod N in the
// priority ordering.
func (s *ProposerSelector) Select(snapshot []*models.Participant, slot int64) (*models.Participant, error) {
	if len(snapshot) == 0 {
		return nil, ErrNoEligibleProposers
	}
	ordered := s.Order(snapshot)

	idx := slot % int64(len(ordered))
	if idx < 0 {
		idx += int64(len(ordered))
	}
	return ordered[idx], nil
}
