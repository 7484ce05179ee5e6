package models

import (
	"time"

	"github.com/holiman/uint256"
)

// Participant is the consensus-relevant state of one registered node.
type Participant struct {
	ID               string       `json:"id"`                 // derived from the node's public key
	Stake            *uint256.Int `json:"stake"`              // staked token amount
	Weight           float64      `json:"weight"`             // influence multiplier in [0,1]
	Reputation       float64      `json:"reputation"`         // alignment score in [0,1]
	LastProposalTime time.Time    `json:"last_proposal_time"` // registration time if never proposed
	NeuralSignature  []byte       `json:"neural_signature"`   // digest of the last known neural contribution
}

// Copy returns a deep copy so registry snapshots cannot alias live state.
func (p *Participant) Copy() *Participant {
	cp := *p
	cp.Stake = new(uint256.Int).Set(p.Stake)
	if p.NeuralSignature != nil {
		cp.NeuralSignature = make([]byte, len(p.NeuralSignature))
		copy(cp.NeuralSignature, p.NeuralSignature)
	}
	return &cp
}
