package consensus

import (
	"context"

	"synapse-node/models"
)

// Mesh is the neural mesh collaborator: the training/inference pipeline that
// produces state roots and the network-wide consensus view.
type Mesh interface {
	ComputeStateRoot(ctx context.Context) ([]byte, error)
	ComputeConsensus(ctx context.Context) (models.ConsensusView, error)
	LocalParticipantID() string
}

// TransactionSource supplies pending transactions for block assembly.
// PendingTransactions never blocks and returns an empty slice if none.
type TransactionSource interface {
	PendingTransactions() []models.Transaction
}

// CryptoVerifier checks a participant's signature over a block digest.
type CryptoVerifier interface {
	Verify(participantID string, digest, signature []byte) bool
}

// Signer produces the local participant's signature over a block digest.
type Signer interface {
	Sign(digest []byte) ([]byte, error)
}

// Broadcast delivers blocks to and from the rest of the network. The engine
// never talks to the transport directly beyond this interface.
type Broadcast interface {
	Publish(b *models.Block) error
	OnBlockReceived(fn func(b *models.Block))
}
