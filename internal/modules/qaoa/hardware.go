package qaoa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/quantfolio/internal/modules/qubo"
)

// HardwareMaxQubits is the largest universe the hardware tier accepts.
// Larger problems are routed to the simulator before any session is opened.
const HardwareMaxQubits = 5

// couplingTerm is the wire form of one pairwise Hamiltonian coefficient.
type couplingTerm struct {
	I     int     `json:"i"`
	J     int     `json:"j"`
	Value float64 `json:"value"`
}

// evaluateRequest is the wire form of a single circuit evaluation.
type evaluateRequest struct {
	Linear     []float64      `json:"linear"`
	Couplings  []couplingTerm `json:"couplings"`
	Offset     float64        `json:"offset"`
	Parameters []float64      `json:"parameters"`
	Shots      int            `json:"shots"`
}

// evaluateResponse carries the measured distribution back.
type evaluateResponse struct {
	Counts map[string]int `json:"counts"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
}

// HardwareClient talks to a remote quantum runtime over HTTP. A session is
// acquired once per request and reused for every evaluation in the loop, so
// there is no repeated queue wait between search steps. The client performs
// no internal retries; any failure maps to ErrEvaluatorUnavailable and the
// optimizer's fallback policy takes over.
type HardwareClient struct {
	baseURL    string
	credential string
	httpClient *http.Client
	sessionID  string
	backend    string
	log        zerolog.Logger
}

// NewHardwareClient creates a client for the given runtime endpoint.
func NewHardwareClient(baseURL, credential string, log zerolog.Logger) *HardwareClient {
	return &HardwareClient{
		baseURL:    baseURL,
		credential: credential,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log.With().Str("component", "hardware_client").Logger(),
	}
}

// OpenSession acquires a dedicated hardware session. Must be called before
// the first Evaluate.
func (c *HardwareClient) OpenSession(ctx context.Context) error {
	body, err := c.post(ctx, c.baseURL+"/v1/sessions", map[string]any{
		"min_qubits": HardwareMaxQubits,
	})
	if err != nil {
		return err
	}

	var resp sessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("malformed session response: %v: %w", err, ErrEvaluatorUnavailable)
	}
	if resp.SessionID == "" {
		return fmt.Errorf("runtime returned empty session id: %w", ErrEvaluatorUnavailable)
	}

	c.sessionID = resp.SessionID
	c.backend = resp.Backend
	c.log.Info().Str("session", resp.SessionID).Str("backend", resp.Backend).Msg("Hardware session acquired")
	return nil
}

// Name identifies the backend for reporting.
func (c *HardwareClient) Name() string {
	if c.backend != "" {
		return c.backend
	}
	return "quantum-runtime"
}

// Evaluate submits one circuit execution to the open session.
func (c *HardwareClient) Evaluate(ctx context.Context, ham qubo.IsingCoefficients, params []float64, shots int) (Counts, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("no open session: %w", ErrEvaluatorUnavailable)
	}

	couplings := make([]couplingTerm, 0, len(ham.J))
	for key, v := range ham.J {
		couplings = append(couplings, couplingTerm{I: key[0], J: key[1], Value: v})
	}

	body, err := c.post(ctx, fmt.Sprintf("%s/v1/sessions/%s/jobs", c.baseURL, c.sessionID), evaluateRequest{
		Linear:     ham.H,
		Couplings:  couplings,
		Offset:     ham.Offset,
		Parameters: params,
		Shots:      shots,
	})
	if err != nil {
		return nil, err
	}

	var resp evaluateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("malformed job response: %v: %w", err, ErrEvaluatorUnavailable)
	}
	if len(resp.Counts) == 0 {
		return nil, fmt.Errorf("runtime returned empty distribution: %w", ErrEvaluatorUnavailable)
	}

	return Counts(resp.Counts), nil
}

// Close releases the hardware session. Failure to close is logged, not
// surfaced; the session expires server-side anyway.
func (c *HardwareClient) Close(ctx context.Context) {
	if c.sessionID == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/v1/sessions/%s", c.baseURL, c.sessionID), nil)
	if err == nil {
		req.Header.Set("Authorization", "Bearer "+c.credential)
		if resp, err := c.httpClient.Do(req); err == nil {
			resp.Body.Close()
		} else {
			c.log.Warn().Err(err).Msg("Failed to close hardware session")
		}
	}
	c.sessionID = ""
}

// post sends a JSON request and returns the response body. Any transport or
// non-2xx failure wraps ErrEvaluatorUnavailable.
func (c *HardwareClient) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("runtime request failed: %v: %w", err, ErrEvaluatorUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read runtime response: %v: %w", err, ErrEvaluatorUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runtime returned status %d: %s: %w", resp.StatusCode, truncate(body, 200), ErrEvaluatorUnavailable)
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
