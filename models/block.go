package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Transaction is an opaque record carried in a block; the engine never
// inspects the payload.
type Transaction struct {
	ID      string `json:"id"`
	Payload []byte `json:"payload"`
}

// Block anchors a neural state root into the chain for one slot.
type Block struct {
	Height          int64             `json:"height"`
	Slot            int64             `json:"slot"`
	Timestamp       time.Time         `json:"timestamp"`
	PreviousHash    string            `json:"previous_hash"` // empty for genesis
	Transactions    []Transaction     `json:"transactions"`
	NeuralStateRoot []byte            `json:"neural_state_root"`
	Proposer        string            `json:"proposer"`
	Signatures      map[string][]byte `json:"signatures"` // voter id -> signature
}

// Digest returns the content digest voters sign: sha256 over the block
// with the signatures cleared, so accumulating votes does not change it.
func (b *Block) Digest() []byte {
	tmp := *b
	tmp.Signatures = nil
	data, _ := json.Marshal(tmp)
	sum := sha256.Sum256(data)
	return sum[:]
}

// Hash is the block identity used for chaining, hex encoded.
func (b *Block) Hash() string {
	return hex.EncodeToString(b.Digest())
}

// Copy returns a deep copy of the block.
func (b *Block) Copy() *Block {
	cp := *b
	if b.Transactions != nil {
		cp.Transactions = make([]Transaction, len(b.Transactions))
		copy(cp.Transactions, b.Transactions)
	}
	if b.NeuralStateRoot != nil {
		cp.NeuralStateRoot = append([]byte(nil), b.NeuralStateRoot...)
	}
	cp.Signatures = make(map[string][]byte, len(b.Signatures))
	for id, sig := range b.Signatures {
		cp.Signatures[id] = append([]byte(nil), sig...)
	}
	return &cp
}
