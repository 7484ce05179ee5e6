package consensus_test

import (
	"context"
	"errors"
	"sync"

	"synapse-node/models"
)

// in-memory stand-in for the LevelDB block repository
type memBlockRepo struct {
	mu     sync.Mutex
	head   *models.Block
	blocks map[int64]*models.Block
}

func newMemBlockRepo() *memBlockRepo {
	return &memBlockRepo{blocks: make(map[int64]*models.Block)}
}

func (m *memBlockRepo) PutBlock(b *models.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := b.Copy()
	m.blocks[b.Height] = cp
	m.head = cp
	return nil
}

func (m *memBlockRepo) GetBlock(height int64) (*models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[height]
	if !ok {
		return nil, errors.New("not found")
	}
	return b.Copy(), nil
}

func (m *memBlockRepo) GetLatestBlock() (*models.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.head == nil {
		return nil, nil
	}
	return m.head.Copy(), nil
}

type stubMesh struct {
	root    []byte
	rootErr error
	localID string
	calls   int
}

func (s *stubMesh) ComputeStateRoot(ctx context.Context) ([]byte, error) {
	s.calls++
	if s.rootErr != nil {
		return nil, s.rootErr
	}
	return s.root, nil
}

func (s *stubMesh) ComputeConsensus(ctx context.Context) (models.ConsensusView, error) {
	return models.ConsensusView(s.root), nil
}

func (s *stubMesh) LocalParticipantID() string { return s.localID }

type stubTxSource struct {
	txs []models.Transaction
}

func (s *stubTxSource) PendingTransactions() []models.Transaction {
	return append([]models.Transaction(nil), s.txs...)
}

// okVerifier accepts every signature
type okVerifier struct{}

func (okVerifier) Verify(string, []byte, []byte) bool { return true }

// rejectVerifier rejects every signature
type rejectVerifier struct{}

func (rejectVerifier) Verify(string, []byte, []byte) bool { return false }
