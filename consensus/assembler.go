package consensus

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"synapse-node/logger"
	"synapse-node/models"
	"synapse-node/repository"
)

// BlockAssembler builds candidate blocks for slots where the local
// participant is the selected proposer.
type BlockAssembler struct {
	mesh   Mesh
	txs    TransactionSource
	blocks repository.BlockRepositoryInterface
	signer Signer
}

func NewBlockAssembler(mesh Mesh, txs TransactionSource, blocks repository.BlockRepositoryInterface, signer Signer) *BlockAssembler {
	return &BlockAssembler{mesh: mesh, txs: txs, blocks: blocks, signer: signer}
}

// Assemble builds a candidate block on top of the current chain head. When
// the mesh cannot produce a state root the slot is skipped and the caller
// gets ErrStateRootUnavailable.
func (a *BlockAssembler) Assemble(ctx context.Context, slot int64, proposerID string) (*models.Block, error) {
	root, err := a.mesh.ComputeStateRoot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateRootUnavailable, err)
	}

	head, err := a.blocks.GetLatestBlock()
	if err != nil {
		return nil, err
	}

	var height int64 = 1
	prevHash := ""
	if head != nil {
		height = head.Height + 1
		prevHash = head.Hash()
	}

	block := &models.Block{
		Height:          height,
		Slot:            slot,
		Timestamp:       time.Now().UTC(),
		PreviousHash:    prevHash,
		Transactions:    a.txs.PendingTransactions(),
		NeuralStateRoot: root,
		Proposer:        proposerID,
		Signatures:      make(map[string][]byte),
	}

	// the proposer votes for its own block
	if a.signer != nil {
		sig, err := a.signer.Sign(block.Digest())
		if err != nil {
			return nil, err
		}
		block.Signatures[proposerID] = sig
	}

	logger.Logger.Info("Assembled candidate block",
		zap.Int64("height", block.Height),
		zap.Int64("slot", slot),
		zap.Int("transactions", len(block.Transactions)))
	return block, nil
}
