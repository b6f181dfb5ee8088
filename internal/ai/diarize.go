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

// DiarizeConfig contains diarization client configuration.
type DiarizeConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string
	Timeout  time.Duration
}

// DiarizeClient calls the diarization collaborator over HTTP. The
// collaborator returns utterances with zero-based speaker indices and
// second-precision boundaries; the client maps them onto the same
// "Speaker N" label space and millisecond timeline the transcription uses.
type DiarizeClient struct {
	config     DiarizeConfig
	httpClient *http.Client
}

// NewDiarizeClient creates a diarization client.
func NewDiarizeClient(config DiarizeConfig) (*DiarizeClient, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	return &DiarizeClient{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

type diarizeResponse struct {
	Utterances []struct {
		Speaker int     `json:"speaker"`
		Start   float64 `json:"start"` // seconds
		End     float64 `json:"end"`   // seconds
	} `json:"utterances"`
}

// DiarizeChunk implements Diarizer.
func (c *DiarizeClient) DiarizeChunk(ctx context.Context, audio []byte, mimeType string) ([]transcript.Segment, error) {
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("file", "chunk")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := fileWriter.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	fields := map[string]string{
		"mime_type":  mimeType,
		"model":      c.config.Model,
		"language":   c.config.Language,
		"diarize":    "true",
		"utterances": "true",
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	httpReq.Header.Set("Authorization", "Token "+c.config.APIKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("diarization request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read diarization response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("diarization HTTP error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed diarizeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("malformed diarization response: %w", err)
	}

	segments := make([]transcript.Segment, 0, len(parsed.Utterances))
	for i, u := range parsed.Utterances {
		if u.Speaker < 0 {
			return nil, fmt.Errorf("invalid diarization response: utterance %d has negative speaker index", i)
		}
		if u.End < u.Start {
			return nil, fmt.Errorf("invalid diarization response: utterance %d ends before it starts", i)
		}
		segments = append(segments, transcript.Segment{
			Speaker: fmt.Sprintf("Speaker %d", u.Speaker+1),
			StartMs: int64(u.Start*1000 + 0.5),
			EndMs:   int64(u.End*1000 + 0.5),
		})
	}

	return segments, nil
}
