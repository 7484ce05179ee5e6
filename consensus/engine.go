package consensus

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"synapse-node/logger"
	"synapse-node/models"
	"synapse-node/registry"
)

// Engine drives the consensus tick: every slot interval it expires stale
// pending blocks, checks whether the local participant is the slot's
// proposer, and if so assembles and broadcasts a candidate block. Externally
// received blocks are routed to the validator via the broadcast callback.
type Engine struct {
	slotInterval time.Duration

	reg       *registry.Registry
	selector  *ProposerSelector
	assembler *BlockAssembler
	validator *BlockValidator
	mesh      Mesh
	broadcast Broadcast

	lastProposedSlot int64
}

func NewEngine(
	slotInterval time.Duration,
	reg *registry.Registry,
	selector *ProposerSelector,
	assembler *BlockAssembler,
	validator *BlockValidator,
	mesh Mesh,
	broadcast Broadcast,
) *Engine {
	if slotInterval < time.Second {
		slotInterval = time.Second
	}
	e := &Engine{
		slotInterval:     slotInterval,
		reg:              reg,
		selector:         selector,
		assembler:        assembler,
		validator:        validator,
		mesh:             mesh,
		broadcast:        broadcast,
		lastProposedSlot: -1,
	}
	broadcast.OnBlockReceived(e.onBlockReceived)
	return e
}

// CurrentSlot derives the slot number from wall-clock time. All observers
// with synchronized clocks agree on it.
func (e *Engine) CurrentSlot(now time.Time) int64 {
	return now.Unix() / int64(e.slotInterval/time.Second)
}

// Run executes the consensus tick loop until the context is cancelled.
// Stopping the engine leaves registry state intact for the epoch loop.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.slotInterval)
	defer ticker.Stop()

	logger.Logger.Info("Consensus engine started",
		zap.Duration("slot_interval", e.slotInterval))
	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info("Consensus engine stopped")
			return
		case now := <-ticker.C:
			e.Tick(ctx, now)
		}
	}
}

// Tick performs one consensus round. Failures skip the slot; they never
// stop the loop.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.validator.ExpirePending(now)

	slot := e.CurrentSlot(now)
	if slot == e.lastProposedSlot {
		return
	}

	snapshot := e.reg.All()
	proposer, err := e.selector.Select(snapshot, slot)
	if err != nil {
		if !errors.Is(err, ErrNoEligibleProposers) {
			logger.Logger.Warn("Proposer selection failed", zap.Error(err))
		}
		return
	}
	if proposer.ID != e.mesh.LocalParticipantID() {
		return
	}

	block, err := e.assembler.Assemble(ctx, slot, proposer.ID)
	if err != nil {
		if errors.Is(err, ErrStateRootUnavailable) {
			logger.Logger.Warn("Skipping slot, state root unavailable",
				zap.Int64("slot", slot))
		} else {
			logger.Logger.Error("Block assembly failed",
				zap.Int64("slot", slot), zap.Error(err))
		}
		return
	}
	e.lastProposedSlot = slot

	if err := e.broadcast.Publish(block); err != nil {
		logger.Logger.Error("Block broadcast failed",
			zap.Int64("height", block.Height), zap.Error(err))
	}
	if err := e.validator.HandleBlock(block); err != nil {
		logger.Logger.Warn("Own block rejected locally",
			zap.Int64("height", block.Height), zap.Error(err))
	}
}

func (e *Engine) onBlockReceived(b *models.Block) {
	if err := e.validator.HandleBlock(b); err != nil {
		logger.Logger.Warn("Received block rejected",
			zap.Int64("height", b.Height), zap.Error(err))
	}
}
