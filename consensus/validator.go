package consensus

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"

	"synapse-node/events"
	"synapse-node/logger"
	"synapse-node/models"
	"synapse-node/registry"
	"synapse-node/repository"
)

// BlockStatus tracks a candidate block through its lifecycle:
// pending -> accepted or pending -> discarded, both terminal.
type BlockStatus int

const (
	StatusUnknown BlockStatus = iota
	StatusPending
	StatusAccepted
	StatusDiscarded
)

// settledCacheSize bounds the dedup cache of terminal block hashes.
const settledCacheSize = 1024

type pendingBlock struct {
	block      *models.Block
	receivedAt time.Time
}

// BlockValidator checks externally received candidate blocks and accumulates
// stake-weighted approval until a block is accepted or times out.
type BlockValidator struct {
	mu       sync.Mutex
	reg      *registry.Registry
	selector *ProposerSelector
	verifier CryptoVerifier
	blocks   repository.BlockRepositoryInterface
	bus      *events.Bus

	thresholdBps   int64 // acceptance threshold in basis points
	pendingTimeout time.Duration

	pending map[string]*pendingBlock
	settled *lru.Cache // block hash -> BlockStatus, terminal states only
}

func NewBlockValidator(
	reg *registry.Registry,
	selector *ProposerSelector,
	verifier CryptoVerifier,
	blocks repository.BlockRepositoryInterface,
	bus *events.Bus,
	threshold float64,
	pendingTimeout time.Duration,
) *BlockValidator {
	settled, _ := lru.New(settledCacheSize)
	return &BlockValidator{
		reg:            reg,
		selector:       selector,
		verifier:       verifier,
		blocks:         blocks,
		bus:            bus,
		thresholdBps:   int64(threshold*10000 + 0.5),
		pendingTimeout: pendingTimeout,
		pending:        make(map[string]*pendingBlock),
		settled:        settled,
	}
}

// HandleBlock processes a candidate block. A block already pending absorbs
// any new signatures; a block already settled is ignored. A new block is
// validated (chain linkage, proposer, signatures) before it enters the
// pending pool.
func (v *BlockValidator) HandleBlock(b *models.Block) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	hash := b.Hash()
	if _, ok := v.settled.Get(hash); ok {
		return nil
	}

	if pb, ok := v.pending[hash]; ok {
		for id, sig := range b.Signatures {
			if err := v.addSignatureLocked(hash, pb, id, sig); err != nil {
				logger.Logger.Warn("Rejected vote on pending block",
					zap.String("block_hash", hash), zap.String("voter", id), zap.Error(err))
			}
		}
		return v.maybeAcceptLocked(hash, pb)
	}

	if err := v.validateChainLocked(b); err != nil {
		v.discardLocked(hash, b, err)
		return err
	}
	if err := v.validateProposerLocked(b); err != nil {
		v.discardLocked(hash, b, err)
		return err
	}

	digest := b.Digest()
	for id, sig := range b.Signatures {
		if _, err := v.reg.Get(id); err != nil {
			v.discardLocked(hash, b, fmt.Errorf("%w: unknown voter %s", ErrInvalidSignature, id))
			return ErrInvalidSignature
		}
		if !v.verifier.Verify(id, digest, sig) {
			v.discardLocked(hash, b, fmt.Errorf("%w: voter %s", ErrInvalidSignature, id))
			return ErrInvalidSignature
		}
	}

	pb := &pendingBlock{block: b.Copy(), receivedAt: time.Now()}
	v.pending[hash] = pb
	logger.Logger.Info("Block pending approval",
		zap.String("block_hash", hash), zap.Int64("height", b.Height))

	return v.maybeAcceptLocked(hash, pb)
}

// AddSignature records one participant's vote on a pending block.
func (v *BlockValidator) AddSignature(blockHash, participantID string, sig []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	pb, ok := v.pending[blockHash]
	if !ok {
		return ErrUnknownBlock
	}
	if err := v.addSignatureLocked(blockHash, pb, participantID, sig); err != nil {
		return err
	}
	return v.maybeAcceptLocked(blockHash, pb)
}

func (v *BlockValidator) addSignatureLocked(hash string, pb *pendingBlock, participantID string, sig []byte) error {
	if _, voted := pb.block.Signatures[participantID]; voted {
		return nil
	}
	if _, err := v.reg.Get(participantID); err != nil {
		return fmt.Errorf("%w: unknown voter %s", ErrInvalidSignature, participantID)
	}
	if !v.verifier.Verify(participantID, pb.block.Digest(), sig) {
		return fmt.Errorf("%w: voter %s", ErrInvalidSignature, participantID)
	}
	pb.block.Signatures[participantID] = append([]byte(nil), sig...)
	return nil
}

func (v *BlockValidator) validateChainLocked(b *models.Block) error {
	head, err := v.blocks.GetLatestBlock()
	if err != nil {
		return err
	}

	if head == nil {
		if b.Height != 1 || b.PreviousHash != "" {
			return fmt.Errorf("%w: expected genesis successor at height 1", ErrChainMismatch)
		}
		return nil
	}
	if b.Height != head.Height+1 {
		return fmt.Errorf("%w: height %d does not follow %d", ErrChainMismatch, b.Height, head.Height)
	}
	if b.PreviousHash != head.Hash() {
		return fmt.Errorf("%w: previous hash does not match chain head", ErrChainMismatch)
	}
	return nil
}

func (v *BlockValidator) validateProposerLocked(b *models.Block) error {
	expected, err := v.selector.Select(v.reg.All(), b.Slot)
	if err != nil {
		return err
	}
	if expected.ID != b.Proposer {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidProposer, expected.ID, b.Proposer)
	}
	return nil
}

// maybeAcceptLocked accepts the block once the stake held by its voters
// reaches the threshold. The comparison is exact integer arithmetic:
// approved * 10000 >= total * thresholdBps.
func (v *BlockValidator) maybeAcceptLocked(hash string, pb *pendingBlock) error {
	total := v.reg.TotalStake()
	if total.IsZero() {
		return nil
	}

	approved := new(big.Int)
	for id := range pb.block.Signatures {
		p, err := v.reg.Get(id)
		if err != nil {
			continue // voter pruned since signing
		}
		approved.Add(approved, p.Stake.ToBig())
	}

	lhs := new(big.Int).Mul(approved, big.NewInt(10000))
	rhs := new(big.Int).Mul(total.ToBig(), big.NewInt(v.thresholdBps))
	if lhs.Cmp(rhs) < 0 {
		return nil
	}

	if err := v.blocks.PutBlock(pb.block); err != nil {
		return err
	}
	delete(v.pending, hash)
	v.settled.Add(hash, StatusAccepted)

	if err := v.reg.Touch(pb.block.Proposer, pb.block.Timestamp); err != nil {
		logger.Logger.Warn("Failed to record proposal time",
			zap.String("proposer", pb.block.Proposer), zap.Error(err))
	}

	logger.Logger.Info("Block accepted",
		zap.String("block_hash", hash),
		zap.Int64("height", pb.block.Height),
		zap.String("proposer", pb.block.Proposer),
		zap.Int("signatures", len(pb.block.Signatures)))
	if v.bus != nil {
		v.bus.Publish(events.Event{
			Type:          events.BlockAccepted,
			ParticipantID: pb.block.Proposer,
			BlockHeight:   pb.block.Height,
			Detail:        pb.block.Copy(),
		})
	}
	return nil
}

func (v *BlockValidator) discardLocked(hash string, b *models.Block, reason error) {
	v.settled.Add(hash, StatusDiscarded)
	delete(v.pending, hash)

	logger.Logger.Warn("Block discarded",
		zap.String("block_hash", hash), zap.Int64("height", b.Height), zap.Error(reason))
	if v.bus != nil {
		v.bus.Publish(events.Event{
			Type:        events.BlockDiscarded,
			BlockHeight: b.Height,
			Detail:      reason.Error(),
		})
	}
}

// ExpirePending discards blocks that stayed pending past the timeout.
func (v *BlockValidator) ExpirePending(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for hash, pb := range v.pending {
		if now.Sub(pb.receivedAt) > v.pendingTimeout {
			v.discardLocked(hash, pb.block, ErrInsufficientApproval)
		}
	}
}

// Status reports the lifecycle state of a block hash.
func (v *BlockValidator) Status(blockHash string) BlockStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.pending[blockHash]; ok {
		return StatusPending
	}
	if st, ok := v.settled.Get(blockHash); ok {
		return st.(BlockStatus)
	}
	return StatusUnknown
}
