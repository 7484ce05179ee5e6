package mempool

import (
	"sync"

	"synapse-node/models"
)

// Mempool is an in-memory transaction queue feeding block assembly.
type Mempool struct {
	mu  sync.Mutex
	txs []models.Transaction
	ids map[string]bool
}

func New() *Mempool {
	return &Mempool{ids: make(map[string]bool)}
}

// Add queues a transaction; duplicates by ID are ignored.
func (m *Mempool) Add(tx models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[tx.ID] {
		return
	}
	m.ids[tx.ID] = true
	m.txs = append(m.txs, tx)
}

// PendingTransactions returns the queued transactions in arrival order.
// Never blocks; empty slice when the pool is empty.
func (m *Mempool) PendingTransactions() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, len(m.txs))
	copy(out, m.txs)
	return out
}

// Remove drops transactions included in an accepted block.
func (m *Mempool) Remove(txIDs []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(txIDs))
	for _, id := range txIDs {
		drop[id] = true
	}

	kept := m.txs[:0]
	for _, tx := range m.txs {
		if drop[tx.ID] {
			delete(m.ids, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}
	m.txs = kept
}

// Size returns the number of queued transactions.
func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}
