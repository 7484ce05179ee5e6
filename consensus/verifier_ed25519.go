package consensus

import (
	"crypto/ed25519"
	"sync"
)

// Ed25519Verifier verifies block signatures against registered public keys.
type Ed25519Verifier struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{keys: make(map[string]ed25519.PublicKey)}
}

// RegisterKey associates a participant ID with its public key.
func (v *Ed25519Verifier) RegisterKey(participantID string, pub ed25519.PublicKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[participantID] = pub
}

// RemoveKey drops a participant's key, e.g. after deregistration.
func (v *Ed25519Verifier) RemoveKey(participantID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys, participantID)
}

// Verify reports whether the signature is valid for the participant's key.
func (v *Ed25519Verifier) Verify(participantID string, digest, signature []byte) bool {
	v.mu.RLock()
	pub, ok := v.keys[participantID]
	v.mu.RUnlock()

	if !ok || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, digest, signature)
}

// Ed25519Signer signs block digests with the local private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

func NewEd25519Signer(priv ed25519.PrivateKey) *Ed25519Signer {
	return &Ed25519Signer{priv: priv}
}

func (s *Ed25519Signer) Sign(digest []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, digest), nil
}
