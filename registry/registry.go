package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"synapse-node/events"
	"synapse-node/logger"
	"synapse-node/models"
)

var (
	ErrDuplicateParticipant = errors.New("participant with ID already exists")
	ErrParticipantNotFound  = errors.New("participant not found")
	ErrInsufficientStake    = errors.New("stake below protocol minimum")
)

// Registry owns the authoritative participant state. All mutation goes
// through its methods; snapshots are deep copies so readers never observe a
// partially updated record.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*models.Participant
	minStake     *uint256.Int
	bus          *events.Bus
}

// NewRegistry creates a registry enforcing the given minimum stake.
// The bus may be nil when no consumer subscribes (tests).
func NewRegistry(minStake *uint256.Int, bus *events.Bus) *Registry {
	if minStake == nil {
		minStake = uint256.NewInt(0)
	}
	return &Registry{
		participants: make(map[string]*models.Participant),
		minStake:     new(uint256.Int).Set(minStake),
		bus:          bus,
	}
}

// Register adds a new participant with initial weight 1 and neutral reputation
func (r *Registry) Register(id string, initialStake *uint256.Int, neuralSignature []byte) error {
	if initialStake == nil {
		initialStake = uint256.NewInt(0)
	}
	if initialStake.Lt(r.minStake) {
		return ErrInsufficientStake
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[id]; exists {
		return ErrDuplicateParticipant
	}

	p := &models.Participant{
		ID:               id,
		Stake:            new(uint256.Int).Set(initialStake),
		Weight:           1.0,
		Reputation:       1.0,
		LastProposalTime: time.Now(),
		NeuralSignature:  append([]byte(nil), neuralSignature...),
	}
	r.participants[id] = p

	logger.Logger.Info("Participant registered",
		zap.String("participant_id", id), zap.String("stake", initialStake.Dec()))
	r.publish(events.Event{Type: events.ParticipantRegistered, ParticipantID: id})
	return nil
}

// Get returns a copy of the participant's current state
func (r *Registry) Get(id string) (*models.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[id]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	return p.Copy(), nil
}

// All returns a snapshot of every participant, taken under a single lock
func (r *Registry) All() []*models.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*models.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		snapshot = append(snapshot, p.Copy())
	}
	return snapshot
}

// Size returns the current participant count
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// TotalStake sums all stakes. Computed fresh on every call so callers never
// see a stale total after concurrent pruning.
func (r *Registry) TotalStake() *uint256.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := new(uint256.Int)
	for _, p := range r.participants {
		total.Add(total, p.Stake)
	}
	return total
}

// UpdateAfterEpoch applies the epoch's recomputed weight and reputation,
// clamped to [0,1]
func (r *Registry) UpdateAfterEpoch(id string, newWeight, newReputation float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Weight = clamp01(newWeight)
	p.Reputation = clamp01(newReputation)
	return nil
}

// Touch records a successful proposal at time t
func (r *Registry) Touch(id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.LastProposalTime = t
	return nil
}

// UpdateNeuralSignature replaces the participant's last known neural contribution digest
func (r *Registry) UpdateNeuralSignature(id string, sig []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.NeuralSignature = append([]byte(nil), sig...)
	return nil
}

// IncreaseStake adds tokens to an existing participant's stake
func (r *Registry) IncreaseStake(id string, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	p.Stake = new(uint256.Int).Add(p.Stake, amount)

	r.publish(events.Event{Type: events.StakeChanged, ParticipantID: id})
	return nil
}

// DecreaseStake withdraws tokens; the remaining stake may not drop below the
// protocol minimum
func (r *Registry) DecreaseStake(id string, amount *uint256.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[id]
	if !ok {
		return ErrParticipantNotFound
	}
	if amount.Gt(p.Stake) {
		return ErrInsufficientStake
	}
	remaining := new(uint256.Int).Sub(p.Stake, amount)
	if remaining.Lt(r.minStake) {
		return ErrInsufficientStake
	}
	p.Stake = remaining

	r.publish(events.Event{Type: events.StakeChanged, ParticipantID: id})
	return nil
}

// Remove deletes a participant; used by epoch pruning
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[id]; !ok {
		return ErrParticipantNotFound
	}
	delete(r.participants, id)
	return nil
}

// Deregister removes a participant voluntarily and notifies subscribers
func (r *Registry) Deregister(id string) error {
	if err := r.Remove(id); err != nil {
		return err
	}
	logger.Logger.Info("Participant deregistered", zap.String("participant_id", id))
	r.publish(events.Event{Type: events.ParticipantLeft, ParticipantID: id})
	return nil
}

func (r *Registry) publish(ev events.Event) {
	if r.bus != nil {
		r.bus.Publish(ev)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
