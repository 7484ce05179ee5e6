package epoch_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synapse-node/epoch"
	"synapse-node/events"
	"synapse-node/logger"
	"synapse-node/models"
	"synapse-node/registry"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

type stubEvaluator struct {
	scores map[string]float64
	errs   map[string]error
}

func (s *stubEvaluator) Evaluate(_ context.Context, id string) (float64, error) {
	if err := s.errs[id]; err != nil {
		return 0, err
	}
	return s.scores[id], nil
}

type stubProvider struct {
	view models.ConsensusView
	err  error
}

func (s *stubProvider) ComputeConsensus(context.Context) (models.ConsensusView, error) {
	return s.view, s.err
}

type stubScorer struct {
	scores map[string]float64
	errs   map[string]error
}

func (s *stubScorer) Score(_ context.Context, p *models.Participant, _ models.ConsensusView) (float64, error) {
	if err := s.errs[p.ID]; err != nil {
		return 0, err
	}
	return s.scores[p.ID], nil
}

func testConfig() epoch.Config {
	cfg := epoch.DefaultConfig()
	cfg.MaxInactivity = time.Hour
	return cfg
}

func newTestCoordinator(reg *registry.Registry, eval *stubEvaluator, provider *stubProvider, scorer *stubScorer, bus *events.Bus) *epoch.Coordinator {
	return epoch.NewCoordinator(testConfig(), reg, eval, provider, scorer, bus)
}

func TestBoundedDrift(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.UpdateAfterEpoch("a", 0.5, 0.5))

	eval := &stubEvaluator{scores: map[string]float64{"a": 1.0}}
	scorer := &stubScorer{scores: map[string]float64{"a": 0.0}}
	c := newTestCoordinator(reg, eval, &stubProvider{view: models.ConsensusView{0x01}}, scorer, nil)

	c.RunEpoch(context.Background(), time.Now())

	p, err := reg.Get("a")
	require.NoError(t, err)
	// extreme scores move weight and reputation by at most maxAdjustment/2
	require.InDelta(t, 0.55, p.Weight, 1e-9)
	require.InDelta(t, 0.45, p.Reputation, 1e-9)
}

func TestClampingAtBounds(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.UpdateAfterEpoch("a", 1.0, 0.01))

	eval := &stubEvaluator{scores: map[string]float64{"a": 1.0}}
	scorer := &stubScorer{scores: map[string]float64{"a": 0.0}}
	c := newTestCoordinator(reg, eval, &stubProvider{view: models.ConsensusView{0x01}}, scorer, nil)

	for i := 0; i < 5; i++ {
		c.RunEpoch(context.Background(), time.Now())
	}

	p, err := reg.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1.0, p.Weight)
	require.Equal(t, 0.0, p.Reputation)
}

func TestEvaluationFailureIsIsolated(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.Register("b", uint256.NewInt(100), nil))
	require.NoError(t, reg.UpdateAfterEpoch("a", 0.5, 0.5))
	require.NoError(t, reg.UpdateAfterEpoch("b", 0.5, 0.5))

	eval := &stubEvaluator{
		scores: map[string]float64{"b": 1.0},
		errs:   map[string]error{"a": errors.New("evaluator unreachable")},
	}
	scorer := &stubScorer{scores: map[string]float64{"a": 0.5, "b": 0.5}}
	c := newTestCoordinator(reg, eval, &stubProvider{view: models.ConsensusView{0x01}}, scorer, nil)

	result := c.RunEpoch(context.Background(), time.Now())
	require.Equal(t, 1, result.SkippedWeight)
	require.Equal(t, 1, result.WeightUpdates)

	a, _ := reg.Get("a")
	b, _ := reg.Get("b")
	require.Equal(t, 0.5, a.Weight, "failed evaluation leaves weight unchanged")
	require.InDelta(t, 0.55, b.Weight, 1e-9)
}

func TestConsensusUnavailableSkipsReputationStep(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.UpdateAfterEpoch("a", 0.5, 0.5))

	eval := &stubEvaluator{scores: map[string]float64{"a": 1.0}}
	scorer := &stubScorer{scores: map[string]float64{"a": 1.0}}
	c := newTestCoordinator(reg, eval, &stubProvider{err: errors.New("consensus unavailable")}, scorer, nil)

	result := c.RunEpoch(context.Background(), time.Now())
	require.Equal(t, 1, result.SkippedReputation)
	require.Zero(t, result.ReputationUpdates)

	p, _ := reg.Get("a")
	require.Equal(t, 0.5, p.Reputation, "reputation untouched without a consensus view")
	require.InDelta(t, 0.55, p.Weight, 1e-9, "weight step still runs")
}

func TestPruneInactiveParticipant(t *testing.T) {
	bus := events.NewBus()
	sub, cancel := bus.Subscribe()
	defer cancel()

	reg := registry.NewRegistry(nil, bus)
	require.NoError(t, reg.Register("stale", uint256.NewInt(100), nil))
	require.NoError(t, reg.Register("fresh", uint256.NewInt(100), nil))

	now := time.Now()
	require.NoError(t, reg.Touch("stale", now.Add(-3661*time.Second)))
	require.NoError(t, reg.Touch("fresh", now.Add(-time.Minute)))

	cfg := testConfig()
	cfg.MaxInactivity = 3600 * time.Second
	eval := &stubEvaluator{scores: map[string]float64{"stale": 0.5, "fresh": 0.5}}
	scorer := &stubScorer{scores: map[string]float64{"stale": 0.5, "fresh": 0.5}}
	c := epoch.NewCoordinator(cfg, reg, eval, &stubProvider{view: models.ConsensusView{0x01}}, scorer, bus)

	result := c.RunEpoch(context.Background(), now)
	require.Equal(t, []string{"stale"}, result.Pruned)

	_, err := reg.Get("stale")
	require.ErrorIs(t, err, registry.ErrParticipantNotFound)
	_, err = reg.Get("fresh")
	require.NoError(t, err)

	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-sub:
			if ev.Type == events.ParticipantPruned {
				require.Equal(t, "stale", ev.ParticipantID)
				return
			}
		case <-deadline:
			t.Fatal("expected a pruned event")
		}
	}
}
