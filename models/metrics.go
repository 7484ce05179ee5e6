package models

// ConsensusView is the opaque network-wide neural consensus produced by the
// mesh at an epoch boundary.
type ConsensusView []byte

// ConsensusMetrics is the structured snapshot exposed to operators.
type ConsensusMetrics struct {
	TotalNodes        int     `json:"total_nodes"`
	ActiveNodes       int     `json:"active_nodes"`
	AverageReputation float64 `json:"average_reputation"`
	ConsensusHealth   float64 `json:"consensus_health"`
	LastBlockHeight   int64   `json:"last_block_height"`
}

// EpochUpdateResult summarizes one epoch recomputation.
type EpochUpdateResult struct {
	Epoch             int64    `json:"epoch"`
	Evaluated         int      `json:"evaluated"`
	WeightUpdates     int      `json:"weight_updates"`
	ReputationUpdates int      `json:"reputation_updates"`
	SkippedWeight     int      `json:"skipped_weight"`
	SkippedReputation int      `json:"skipped_reputation"`
	Pruned            []string `json:"pruned"`
}
