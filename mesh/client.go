package mesh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"synapse-node/models"
)

// Client talks to the neural mesh service over HTTP. The mesh owns model
// training and inference; this node only consumes its state roots, consensus
// views and scoring endpoints.
type Client struct {
	baseURL string
	localID string
	http    *http.Client
}

// NewClient creates a mesh client. The timeout bounds every collaborator
// call so a slow mesh degrades a single slot or epoch step, not the loops.
func NewClient(baseURL, localID string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		localID: localID,
		http:    &http.Client{Timeout: timeout},
	}
}

// LocalParticipantID returns the identity this node participates under.
func (c *Client) LocalParticipantID() string {
	return c.localID
}

// ComputeStateRoot fetches the current neural state root.
func (c *Client) ComputeStateRoot(ctx context.Context) ([]byte, error) {
	var out struct {
		Root []byte `json:"root"`
	}
	if err := c.get(ctx, "/v1/neural_state/root", &out); err != nil {
		return nil, err
	}
	return out.Root, nil
}

// ComputeConsensus fetches the network-wide neural consensus view.
func (c *Client) ComputeConsensus(ctx context.Context) (models.ConsensusView, error) {
	var out struct {
		Consensus []byte `json:"consensus"`
	}
	if err := c.get(ctx, "/v1/neural_state/consensus", &out); err != nil {
		return nil, err
	}
	return models.ConsensusView(out.Consensus), nil
}

// Evaluate fetches a participant's performance score for the closing epoch.
func (c *Client) Evaluate(ctx context.Context, participantID string) (float64, error) {
	var out struct {
		Score float64 `json:"score"`
	}
	if err := c.get(ctx, "/v1/nodes/"+participantID+"/performance", &out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

// Score asks the mesh how well a participant's last contribution aligns with
// the consensus view. The scoring formula lives mesh-side.
func (c *Client) Score(ctx context.Context, p *models.Participant, view models.ConsensusView) (float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"participant_id":   p.ID,
		"neural_signature": p.NeuralSignature,
		"consensus":        []byte(view),
	})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/alignment", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("mesh alignment request failed: %s", resp.Status)
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Score, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mesh request %s failed: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
