package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MergeConfig contains text-merge client configuration.
type MergeConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// MergeClient calls the text-generation collaborator for the two semantic
// merge tasks: summary merging and action deduplication. Both callers treat
// failures as degradations, never as chunk failures.
type MergeClient struct {
	config     MergeConfig
	httpClient *http.Client
}

// NewMergeClient creates a text-merge client.
func NewMergeClient(config MergeConfig) (*MergeClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &MergeClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

const mergeSummariesPrompt = `Merge summary A (earlier) and summary B (newer) into ONE summary that preserves every distinct fact from both, removes redundancy, resolves surface contradictions by choosing the more inclusive wording, stays within 2-6 sentences, and is plain prose with no list formatting.`

const mergeActionsPrompt = `Deduplicate this action item list. Merge semantically equivalent items into one clear imperative line each, keep every distinct task, keep phrasing concise. Return a JSON array of strings only.`

type mergeRequest struct {
	Task     string   `json:"task"`
	Model    string   `json:"model,omitempty"`
	Prompt   string   `json:"prompt"`
	SummaryA string   `json:"summary_a,omitempty"`
	SummaryB string   `json:"summary_b,omitempty"`
	Raw      []string `json:"raw,omitempty"`
	Baseline []string `json:"baseline,omitempty"`
}

type mergeResponse struct {
	Text    string   `json:"text,omitempty"`
	Actions []string `json:"actions,omitempty"`
}

// MergeSummaries implements SummaryMerger. An empty result is an error so
// the caller falls back to the deterministic merge instead of wiping the
// running summary.
func (c *MergeClient) MergeSummaries(ctx context.Context, prev, current string) (string, error) {
	resp, err := c.call(ctx, mergeRequest{
		Task:     "merge_summaries",
		Model:    c.config.Model,
		Prompt:   mergeSummariesPrompt,
		SummaryA: prev,
		SummaryB: current,
	})
	if err != nil {
		return "", err
	}

	merged := strings.TrimSpace(resp.Text)
	if merged == "" {
		return "", fmt.Errorf("merge response contains no text")
	}
	return merged, nil
}

// MergeActions implements ActionMerger. A response that is not a list of
// non-empty strings is an error; the caller keeps the syntactic baseline.
func (c *MergeClient) MergeActions(ctx context.Context, raw, baseline []string) ([]string, error) {
	resp, err := c.call(ctx, mergeRequest{
		Task:     "dedupe_actions",
		Model:    c.config.Model,
		Prompt:   mergeActionsPrompt,
		Raw:      raw,
		Baseline: baseline,
	})
	if err != nil {
		return nil, err
	}

	if resp.Actions == nil {
		return nil, fmt.Errorf("merge response contains no action list")
	}
	for i, a := range resp.Actions {
		if strings.TrimSpace(a) == "" {
			return nil, fmt.Errorf("merge response action %d is empty", i)
		}
	}
	return resp.Actions, nil
}

func (c *MergeClient) call(ctx context.Context, req mergeRequest) (*mergeResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode merge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("merge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read merge response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("merge HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed mergeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("malformed merge response: %w", err)
	}
	return &parsed, nil
}
