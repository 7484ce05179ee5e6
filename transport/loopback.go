package transport

import (
	"sync"

	"synapse-node/models"
)

// Loopback is an in-process broadcast for single-node operation and tests.
// Published blocks are delivered straight back to the registered callbacks;
// a networked deployment swaps in a real gossip transport behind the same
// interface.
type Loopback struct {
	mu        sync.Mutex
	callbacks []func(b *models.Block)
}

func NewLoopback() *Loopback {
	return &Loopback{}
}

// Publish delivers the block to every registered callback.
func (l *Loopback) Publish(b *models.Block) error {
	l.mu.Lock()
	callbacks := make([]func(*models.Block), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.mu.Unlock()

	for _, fn := range callbacks {
		fn(b.Copy())
	}
	return nil
}

// OnBlockReceived registers a callback for delivered blocks.
func (l *Loopback) OnBlockReceived(fn func(b *models.Block)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks = append(l.callbacks, fn)
}
