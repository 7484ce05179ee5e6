package registry_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synapse-node/events"
	"synapse-node/logger"
	"synapse-node/registry"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func TestRegisterAndGet(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)

	err := reg.Register("node-a", uint256.NewInt(100), []byte{0x01})
	require.NoError(t, err)

	p, err := reg.Get("node-a")
	require.NoError(t, err)
	require.Equal(t, "node-a", p.ID)
	require.Equal(t, uint256.NewInt(100), p.Stake)
	require.Equal(t, 1.0, p.Weight)
	require.Equal(t, 1.0, p.Reputation)
	require.False(t, p.LastProposalTime.IsZero())
}

func TestRegisterDuplicate(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)

	require.NoError(t, reg.Register("node-a", uint256.NewInt(100), nil))
	err := reg.Register("node-a", uint256.NewInt(200), nil)
	require.ErrorIs(t, err, registry.ErrDuplicateParticipant)
}

func TestRegisterBelowMinStake(t *testing.T) {
	reg := registry.NewRegistry(uint256.NewInt(50), nil)

	err := reg.Register("node-a", uint256.NewInt(49), nil)
	require.ErrorIs(t, err, registry.ErrInsufficientStake)
	require.NoError(t, reg.Register("node-a", uint256.NewInt(50), nil))
}

func TestGetNotFound(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)

	_, err := reg.Get("missing")
	require.ErrorIs(t, err, registry.ErrParticipantNotFound)
}

func TestTotalStakeComputedFresh(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)

	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.Register("b", uint256.NewInt(200), nil))
	require.Equal(t, uint256.NewInt(300), reg.TotalStake())

	require.NoError(t, reg.Remove("b"))
	require.Equal(t, uint256.NewInt(100), reg.TotalStake())
}

func TestUpdateAfterEpochClamps(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))

	require.NoError(t, reg.UpdateAfterEpoch("a", 1.7, -0.3))
	p, err := reg.Get("a")
	require.NoError(t, err)
	require.Equal(t, 1.0, p.Weight)
	require.Equal(t, 0.0, p.Reputation)
}

func TestStakeChanges(t *testing.T) {
	reg := registry.NewRegistry(uint256.NewInt(100), nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(150), nil))

	require.NoError(t, reg.IncreaseStake("a", uint256.NewInt(50)))
	p, _ := reg.Get("a")
	require.Equal(t, uint256.NewInt(200), p.Stake)

	// withdrawing below the minimum is rejected
	err := reg.DecreaseStake("a", uint256.NewInt(150))
	require.ErrorIs(t, err, registry.ErrInsufficientStake)

	require.NoError(t, reg.DecreaseStake("a", uint256.NewInt(100)))
	p, _ = reg.Get("a")
	require.Equal(t, uint256.NewInt(100), p.Stake)
}

func TestSnapshotIsolation(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), []byte{0x01}))

	snapshot := reg.All()
	require.Len(t, snapshot, 1)
	snapshot[0].Stake.SetUint64(999)
	snapshot[0].Weight = 0.2

	p, err := reg.Get("a")
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(100), p.Stake)
	require.Equal(t, 1.0, p.Weight)
}

func TestDeregisterPublishesEvent(t *testing.T) {
	bus := events.NewBus()
	sub, cancel := bus.Subscribe()
	defer cancel()

	reg := registry.NewRegistry(nil, bus)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))
	require.NoError(t, reg.Deregister("a"))

	var seen []events.EventType
	for len(seen) < 2 {
		select {
		case ev := <-sub:
			seen = append(seen, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	require.Equal(t, events.ParticipantRegistered, seen[0])
	require.Equal(t, events.ParticipantLeft, seen[1])
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("a", uint256.NewInt(100), nil))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = reg.All()
				_ = reg.TotalStake()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = reg.UpdateAfterEpoch("a", 0.5, 0.5)
				_ = reg.Touch("a", time.Now())
			}
		}()
	}
	wg.Wait()

	p, err := reg.Get("a")
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(100), p.Stake)
}
