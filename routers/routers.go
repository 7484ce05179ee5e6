package routers

import (
	"net/http"

	"github.com/gorilla/mux"

	"synapse-node/handlers"
)

// RegisterRoutes sets up all the HTTP routes for the consensus node
func RegisterRoutes(r *mux.Router, h *handlers.Handler, promHandler http.Handler) {

	// Registers a new participant; the ID is derived from its public key
	r.HandleFunc("/participants", h.RegisterParticipant).Methods("POST")

	// Snapshot of all registered participants
	r.HandleFunc("/participants", h.ListParticipants).Methods("GET")

	// One participant's consensus state
	r.HandleFunc("/participants/{id}", h.GetParticipant).Methods("GET")

	// Voluntary exit, distinct from liveness pruning
	r.HandleFunc("/participants/{id}", h.DeregisterParticipant).Methods("DELETE")

	// Reputation score for a node
	r.HandleFunc("/participants/{id}/reputation", h.GetReputation).Methods("GET")

	// Adds or withdraws stake for a participant
	r.HandleFunc("/participants/{id}/stake", h.UpdateStake).Methods("POST")

	// Operator-facing consensus metrics snapshot
	r.HandleFunc("/consensus/metrics", h.GetMetrics).Methods("GET")

	// Chain head and accepted blocks
	r.HandleFunc("/blocks/latest", h.GetLatestBlock).Methods("GET")
	r.HandleFunc("/blocks/{height}", h.GetBlock).Methods("GET")

	// Queues a transaction for the next assembled block
	r.HandleFunc("/transactions", h.SubmitTransaction).Methods("POST")

	// Prometheus scrape endpoint
	if promHandler != nil {
		r.Handle("/metrics", promHandler).Methods("GET")
	}
}
