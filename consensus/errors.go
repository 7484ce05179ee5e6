package consensus

import "errors"

// Consensus errors
var (
	ErrNoEligibleProposers  = errors.New("no eligible proposers")
	ErrStateRootUnavailable = errors.New("neural state root unavailable")
	ErrChainMismatch        = errors.New("block does not extend the accepted chain")
	ErrInvalidProposer      = errors.New("block proposer does not match slot selection")
	ErrInvalidSignature     = errors.New("invalid block signature")
	ErrInsufficientApproval = errors.New("stake-weighted approval below threshold")
	ErrUnknownBlock         = errors.New("unknown block")
)
