package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

// TranscribeConfig contains transcription client configuration.
type TranscribeConfig struct {
	Endpoint      string
	APIKey        string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// TranscribeClient calls the transcription collaborator over HTTP. Audio is
// uploaded as multipart form data together with the session context fields.
type TranscribeClient struct {
	config     TranscribeConfig
	httpClient *http.Client
	semaphore  chan struct{}
}

// NewTranscribeClient creates a transcription client.
func NewTranscribeClient(config TranscribeConfig) (*TranscribeClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 8
	}

	return &TranscribeClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		semaphore: make(chan struct{}, config.MaxConcurrent),
	}, nil
}

type transcribeResponse struct {
	Transcript []wireLine `json:"transcript"`
	Summary    string     `json:"summary"`
	Action     []string   `json:"action"`
}

// TranscribeChunk implements Transcriber.
func (c *TranscribeClient) TranscribeChunk(ctx context.Context, req TranscribeRequest) (*ChunkTranscription, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	body, contentType, err := c.buildRequest(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("transcription HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("malformed transcription response: %w", err)
	}

	return validateTranscription(parsed)
}

// validateTranscription converts the wire payload into the typed result,
// rejecting schema violations. An empty transcript is a failure: the
// collaborator contract requires an explicit error on unintelligible input,
// so silence here means the response is unusable.
func validateTranscription(parsed transcribeResponse) (*ChunkTranscription, error) {
	if len(parsed.Transcript) == 0 {
		return nil, fmt.Errorf("transcription response contains no transcript lines")
	}

	lines := make([]transcript.Line, 0, len(parsed.Transcript))
	for i, w := range parsed.Transcript {
		if err := w.validate(i); err != nil {
			return nil, fmt.Errorf("invalid transcription response: %w", err)
		}
		lines = append(lines, transcript.Line{
			Speaker: w.Speaker,
			Text:    w.Text,
			StartMs: w.StartMs,
			EndMs:   w.EndMs,
			Notes:   w.Notes,
		})
	}

	return &ChunkTranscription{
		Lines:   lines,
		Summary: parsed.Summary,
		Actions: parsed.Action,
	}, nil
}

func (c *TranscribeClient) buildRequest(req TranscribeRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "chunk")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"mime_type":            req.MimeType,
		"model":                c.config.Model,
		"speaker_instruction":  speakerInstruction(req.KnownSpeakers),
		"prior_summary":        req.PriorSummary,
		"timestamp_convention": "chunk_relative_ms",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
