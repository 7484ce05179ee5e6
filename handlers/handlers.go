package handlers

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"synapse-node/consensus"
	"synapse-node/health"
	"synapse-node/logger"
	"synapse-node/mempool"
	"synapse-node/models"
	"synapse-node/registry"
	"synapse-node/repository"
)

// Handler contains the HTTP handlers for the consensus node API
type Handler struct {
	Registry *registry.Registry
	Reporter *health.Reporter
	Blocks   repository.BlockRepositoryInterface
	Pool     *mempool.Mempool
	Verifier *consensus.Ed25519Verifier
}

// NewHandler creates and returns a new Handler instance
func NewHandler(reg *registry.Registry, reporter *health.Reporter, blocks repository.BlockRepositoryInterface, pool *mempool.Mempool, verifier *consensus.Ed25519Verifier) *Handler {
	return &Handler{Registry: reg, Reporter: reporter, Blocks: blocks, Pool: pool, Verifier: verifier}
}

type registerRequest struct {
	PublicKey       []byte `json:"public_key"`
	Stake           string `json:"stake"` // decimal token amount
	NeuralSignature []byte `json:"neural_signature"`
}

// RegisterParticipant handles POST requests to register a new node. The
// participant ID is derived from the submitted public key.
func (h *Handler) RegisterParticipant(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode register request", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if len(req.PublicKey) != ed25519.PublicKeySize {
		writeError(w, http.StatusBadRequest, "public_key must be a 32-byte ed25519 key")
		return
	}

	stake, err := uint256.FromDecimal(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, "stake must be a non-negative decimal integer")
		return
	}

	id := hex.EncodeToString(req.PublicKey)
	if err := h.Registry.Register(id, stake, req.NeuralSignature); err != nil {
		logger.Logger.Error("Failed to register participant", zap.String("participant_id", id), zap.Error(err))
		switch {
		case errors.Is(err, registry.ErrDuplicateParticipant):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	h.Verifier.RegisterKey(id, ed25519.PublicKey(req.PublicKey))

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Participant registered successfully",
		"participant_id": id,
	})
}

// ListParticipants handles GET requests for the full participant snapshot
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"participants": h.Registry.All(),
	})
}

// GetParticipant handles GET requests for one participant's state
func (h *Handler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.Registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetReputation handles GET requests for a node's reputation score
func (h *Handler) GetReputation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := h.Registry.Get(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"participant_id": id,
		"reputation":     p.Reputation,
	})
}

type stakeRequest struct {
	Amount   string `json:"amount"`
	Increase bool   `json:"increase"`
}

// UpdateStake handles POST requests to add or withdraw stake
func (h *Handler) UpdateStake(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req stakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be a non-negative decimal integer")
		return
	}

	if req.Increase {
		err = h.Registry.IncreaseStake(id, amount)
	} else {
		err = h.Registry.DecreaseStake(id, amount)
	}
	if err != nil {
		logger.Logger.Error("Failed to update stake", zap.String("participant_id", id), zap.Error(err))
		switch {
		case errors.Is(err, registry.ErrParticipantNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Stake updated successfully"})
}

// DeregisterParticipant handles DELETE requests for voluntary exit
func (h *Handler) DeregisterParticipant(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.Registry.Deregister(id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.Verifier.RemoveKey(id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Participant deregistered successfully"})
}

// GetMetrics handles GET requests for the consensus metrics snapshot
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := h.Reporter.Metrics()
	if err != nil {
		logger.Logger.Error("Failed to collect metrics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// GetLatestBlock handles GET requests for the chain head
func (h *Handler) GetLatestBlock(w http.ResponseWriter, r *http.Request) {
	head, err := h.Blocks.GetLatestBlock()
	if err != nil {
		logger.Logger.Error("Failed to load chain head", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if head == nil {
		writeError(w, http.StatusNotFound, "no blocks accepted yet")
		return
	}
	writeJSON(w, http.StatusOK, head)
}

// GetBlock handles GET requests for an accepted block by height
func (h *Handler) GetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseInt(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "height must be an integer")
		return
	}
	b, err := h.Blocks.GetBlock(height)
	if err != nil {
		writeError(w, http.StatusNotFound, "block not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// SubmitTransaction handles POST requests to queue a transaction for the
// next assembled block
func (h *Handler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if tx.ID == "" {
		writeError(w, http.StatusBadRequest, "transaction id is required")
		return
	}
	h.Pool.Add(tx)
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "Transaction queued"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
