package epoch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"synapse-node/events"
	"synapse-node/logger"
	"synapse-node/models"
	"synapse-node/registry"
)

// PerformanceEvaluator scores a participant's epoch performance (proposal
// success rate, validation accuracy, participation) in [0,1].
type PerformanceEvaluator interface {
	Evaluate(ctx context.Context, participantID string) (float64, error)
}

// ConsensusProvider exposes the mesh's network-wide neural consensus.
type ConsensusProvider interface {
	ComputeConsensus(ctx context.Context) (models.ConsensusView, error)
}

// AlignmentScorer measures agreement between a participant's last neural
// contribution and the network consensus, in [0,1].
type AlignmentScorer interface {
	Score(ctx context.Context, p *models.Participant, view models.ConsensusView) (float64, error)
}

// Config holds the epoch tunables.
type Config struct {
	Duration            time.Duration // epoch length
	MaxInactivity       time.Duration // liveness threshold for pruning
	MaxWeightAdjustment float64       // weight drift bound per epoch
	MaxReputationChange float64       // reputation drift bound per epoch
}

// DefaultConfig returns the default epoch configuration
func DefaultConfig() Config {
	return Config{
		Duration:            5 * time.Minute,
		MaxInactivity:       time.Hour,
		MaxWeightAdjustment: 0.1,
		MaxReputationChange: 0.1,
	}
}

// Coordinator is the only writer of weight, reputation and membership. Once
// per epoch it re-weights every participant and prunes the inactive.
type Coordinator struct {
	cfg    Config
	reg    *registry.Registry
	eval   PerformanceEvaluator
	mesh   ConsensusProvider
	scorer AlignmentScorer
	bus    *events.Bus

	epoch int64
}

func NewCoordinator(cfg Config, reg *registry.Registry, eval PerformanceEvaluator, mesh ConsensusProvider, scorer AlignmentScorer, bus *events.Bus) *Coordinator {
	return &Coordinator{cfg: cfg, reg: reg, eval: eval, mesh: mesh, scorer: scorer, bus: bus}
}

// Run executes the epoch tick loop until the context is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Duration)
	defer ticker.Stop()

	logger.Logger.Info("Epoch coordinator started",
		zap.Duration("epoch_duration", c.cfg.Duration))
	for {
		select {
		case <-ctx.Done():
			logger.Logger.Info("Epoch coordinator stopped")
			return
		case now := <-ticker.C:
			c.RunEpoch(ctx, now)
		}
	}
}

// RunEpoch performs one epoch recomputation over a snapshot taken at epoch
// start: weight update, reputation update, then pruning. A failure while
// evaluating one participant never aborts the epoch for the others.
func (c *Coordinator) RunEpoch(ctx context.Context, now time.Time) *models.EpochUpdateResult {
	c.epoch++
	result := &models.EpochUpdateResult{Epoch: c.epoch}
	snapshot := c.reg.All()
	result.Evaluated = len(snapshot)

	newWeight := make(map[string]float64, len(snapshot))
	newReputation := make(map[string]float64, len(snapshot))
	for _, p := range snapshot {
		newWeight[p.ID] = p.Weight
		newReputation[p.ID] = p.Reputation
	}

	// step 1: weight from observed performance
	for _, p := range snapshot {
		score, err := c.eval.Evaluate(ctx, p.ID)
		if err != nil {
			logger.Logger.Warn("Performance evaluation failed, keeping weight",
				zap.String("participant_id", p.ID), zap.Error(err))
			result.SkippedWeight++
			continue
		}
		newWeight[p.ID] = boundedAdjust(p.Weight, score, c.cfg.MaxWeightAdjustment)
		result.WeightUpdates++
	}

	// step 2: reputation from neural alignment
	view, err := c.mesh.ComputeConsensus(ctx)
	if err != nil {
		logger.Logger.Warn("Neural consensus unavailable, skipping reputation step",
			zap.Int64("epoch", c.epoch), zap.Error(err))
		result.SkippedReputation = len(snapshot)
	} else {
		for _, p := range snapshot {
			alignment, err := c.scorer.Score(ctx, p, view)
			if err != nil {
				logger.Logger.Warn("Alignment scoring failed, keeping reputation",
					zap.String("participant_id", p.ID), zap.Error(err))
				result.SkippedReputation++
				continue
			}
			newReputation[p.ID] = boundedAdjust(p.Reputation, alignment, c.cfg.MaxReputationChange)
			result.ReputationUpdates++
		}
	}

	for _, p := range snapshot {
		if err := c.reg.UpdateAfterEpoch(p.ID, newWeight[p.ID], newReputation[p.ID]); err != nil {
			// participant removed since the snapshot was taken
			logger.Logger.Debug("Skipping epoch update for removed participant",
				zap.String("participant_id", p.ID))
		}
	}

	// step 3: prune participants inactive beyond the liveness threshold
	for _, p := range snapshot {
		if now.Sub(p.LastProposalTime) <= c.cfg.MaxInactivity {
			continue
		}
		if err := c.reg.Remove(p.ID); err != nil {
			continue
		}
		result.Pruned = append(result.Pruned, p.ID)
		logger.Logger.Info("Pruned inactive participant",
			zap.String("participant_id", p.ID),
			zap.Time("last_proposal", p.LastProposalTime))
		if c.bus != nil {
			c.bus.Publish(events.Event{Type: events.ParticipantPruned, ParticipantID: p.ID})
		}
	}

	logger.Logger.Info("Epoch completed",
		zap.Int64("epoch", c.epoch),
		zap.Int("weight_updates", result.WeightUpdates),
		zap.Int("reputation_updates", result.ReputationUpdates),
		zap.Int("pruned", len(result.Pruned)))
	if c.bus != nil {
		c.bus.Publish(events.Event{Type: events.EpochCompleted, Detail: result})
	}
	return result
}

// boundedAdjust moves cur toward the score with at most maxDelta drift,
// clamped to [0,1]. A score of 0.5 leaves the value unchanged.
func boundedAdjust(cur, score, maxDelta float64) float64 {
	v := cur + (score-0.5)*maxDelta
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
