package consensus_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"synapse-node/consensus"
	"synapse-node/registry"
	"synapse-node/transport"
)

func TestTickSkipsWhenNotProposer(t *testing.T) {
	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register("someone-else", uint256.NewInt(100), nil))

	mesh := &stubMesh{root: []byte{0x01}, localID: "local"}
	repo := newMemBlockRepo()
	selector := newSelector()
	assembler := consensus.NewBlockAssembler(mesh, &stubTxSource{}, repo, nil)
	validator := consensus.NewBlockValidator(reg, selector, okVerifier{}, repo, nil, 0.67, time.Minute)
	engine := consensus.NewEngine(time.Second, reg, selector, assembler, validator, mesh, transport.NewLoopback())

	engine.Tick(context.Background(), time.Now())

	require.Zero(t, mesh.calls, "assembly must not run when the local node is not the proposer")
	head, err := repo.GetLatestBlock()
	require.NoError(t, err)
	require.Nil(t, head)
}

func TestTickProposesAndAcceptsOwnBlock(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	localID := hex.EncodeToString(pub)

	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register(localID, uint256.NewInt(100), nil))

	verifier := consensus.NewEd25519Verifier()
	verifier.RegisterKey(localID, pub)

	mesh := &stubMesh{root: []byte{0x01}, localID: localID}
	repo := newMemBlockRepo()
	selector := newSelector()
	assembler := consensus.NewBlockAssembler(mesh, &stubTxSource{}, repo, consensus.NewEd25519Signer(priv))
	validator := consensus.NewBlockValidator(reg, selector, verifier, repo, nil, 0.67, time.Minute)
	engine := consensus.NewEngine(time.Second, reg, selector, assembler, validator, mesh, transport.NewLoopback())

	engine.Tick(context.Background(), time.Now())

	// sole participant: its own signature carries 100% of the stake
	head, err := repo.GetLatestBlock()
	require.NoError(t, err)
	require.NotNil(t, head)
	require.Equal(t, int64(1), head.Height)
	require.Equal(t, localID, head.Proposer)
}

func TestTickSkipsSlotOnStateRootFailure(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	localID := hex.EncodeToString(pub)

	reg := registry.NewRegistry(nil, nil)
	require.NoError(t, reg.Register(localID, uint256.NewInt(100), nil))

	mesh := &stubMesh{rootErr: consensus.ErrStateRootUnavailable, localID: localID}
	repo := newMemBlockRepo()
	selector := newSelector()
	assembler := consensus.NewBlockAssembler(mesh, &stubTxSource{}, repo, nil)
	validator := consensus.NewBlockValidator(reg, selector, okVerifier{}, repo, nil, 0.67, time.Minute)
	engine := consensus.NewEngine(time.Second, reg, selector, assembler, validator, mesh, transport.NewLoopback())

	engine.Tick(context.Background(), time.Now())

	head, err := repo.GetLatestBlock()
	require.NoError(t, err)
	require.Nil(t, head, "slot must be skipped without a state root")
}
