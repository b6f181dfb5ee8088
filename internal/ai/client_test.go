package ai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribeChunkParsesResponse(t *testing.T) {
	var gotAuth, gotInstruction string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		gotInstruction = r.FormValue("speaker_instruction")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"transcript": [
				{"speaker": "Speaker 1", "text": "hello there", "start_ms": 0, "end_ms": 1500, "notes": ""},
				{"speaker": "Speaker 2", "text": "hi", "start_ms": 1500, "end_ms": 2000, "notes": "laughter"}
			],
			"summary": "Two people greet each other.",
			"action": ["Schedule a follow-up"]
		}`))
	}))
	defer server.Close()

	client, err := NewTranscribeClient(TranscribeConfig{
		Endpoint: server.URL,
		APIKey:   "test-key",
	})
	if err != nil {
		t.Fatalf("NewTranscribeClient failed: %v", err)
	}

	result, err := client.TranscribeChunk(context.Background(), TranscribeRequest{
		Audio:         []byte("fake-audio"),
		MimeType:      "audio/webm",
		KnownSpeakers: []string{"Speaker 1"},
		PriorSummary:  "Earlier context.",
	})
	if err != nil {
		t.Fatalf("TranscribeChunk failed: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if !strings.Contains(gotInstruction, "Speaker 1") || !strings.Contains(gotInstruction, "Speaker 2") {
		t.Errorf("speaker instruction missing known/next labels: %q", gotInstruction)
	}

	if len(result.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(result.Lines))
	}
	if result.Lines[1].Notes != "laughter" {
		t.Errorf("expected notes preserved, got %q", result.Lines[1].Notes)
	}
	if result.Summary != "Two people greet each other." {
		t.Errorf("unexpected summary %q", result.Summary)
	}
	if len(result.Actions) != 1 || result.Actions[0] != "Schedule a follow-up" {
		t.Errorf("unexpected actions %v", result.Actions)
	}
}

func TestTranscribeChunkRejectsEmptyTranscript(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"transcript": [], "summary": "", "action": []}`))
	}))
	defer server.Close()

	client, _ := NewTranscribeClient(TranscribeConfig{Endpoint: server.URL, APIKey: "k"})

	_, err := client.TranscribeChunk(context.Background(), TranscribeRequest{
		Audio:    []byte("x"),
		MimeType: "audio/webm",
	})
	if err == nil {
		t.Fatal("expected error for empty transcript")
	}
}

func TestTranscribeChunkRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "empty speaker",
			body: `{"transcript": [{"speaker": "", "text": "x", "start_ms": 0, "end_ms": 10}]}`,
		},
		{
			name: "end before start",
			body: `{"transcript": [{"speaker": "Speaker 1", "text": "x", "start_ms": 100, "end_ms": 50}]}`,
		},
		{
			name: "not json",
			body: `definitely not json`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewTranscribeClient(TranscribeConfig{Endpoint: server.URL, APIKey: "k"})
			_, err := client.TranscribeChunk(context.Background(), TranscribeRequest{
				Audio:    []byte("x"),
				MimeType: "audio/webm",
			})
			if err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTranscribeChunkRejectsEmptyAudio(t *testing.T) {
	client, _ := NewTranscribeClient(TranscribeConfig{Endpoint: "http://localhost:0", APIKey: "k"})
	if _, err := client.TranscribeChunk(context.Background(), TranscribeRequest{}); err == nil {
		t.Fatal("expected error for empty audio payload")
	}
}

func TestDiarizeChunkMapsSpeakersAndUnits(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"utterances": [
			{"speaker": 0, "start": 0.0, "end": 4.2},
			{"speaker": 1, "start": 4.2, "end": 9.75}
		]}`))
	}))
	defer server.Close()

	client, err := NewDiarizeClient(DiarizeConfig{Endpoint: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewDiarizeClient failed: %v", err)
	}

	segments, err := client.DiarizeChunk(context.Background(), []byte("fake-audio"), "audio/wav")
	if err != nil {
		t.Fatalf("DiarizeChunk failed: %v", err)
	}

	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Speaker != "Speaker 1" || segments[1].Speaker != "Speaker 2" {
		t.Errorf("zero-based indices must map to Speaker N labels: %+v", segments)
	}
	if segments[0].EndMs != 4200 {
		t.Errorf("expected seconds converted to ms, got %d", segments[0].EndMs)
	}
	if segments[1].EndMs != 9750 {
		t.Errorf("expected seconds converted to ms, got %d", segments[1].EndMs)
	}
}

func TestDiarizeChunkRejectsInvalidUtterances(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"utterances": [{"speaker": 0, "start": 5.0, "end": 1.0}]}`))
	}))
	defer server.Close()

	client, _ := NewDiarizeClient(DiarizeConfig{Endpoint: server.URL, APIKey: "k"})
	if _, err := client.DiarizeChunk(context.Background(), []byte("x"), "audio/wav"); err == nil {
		t.Fatal("expected error for utterance ending before it starts")
	}
}

func TestMergeSummaries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "  Merged summary.  "}`))
	}))
	defer server.Close()

	client, err := NewMergeClient(MergeConfig{Endpoint: server.URL, APIKey: "k"})
	if err != nil {
		t.Fatalf("NewMergeClient failed: %v", err)
	}

	merged, err := client.MergeSummaries(context.Background(), "A.", "B.")
	if err != nil {
		t.Fatalf("MergeSummaries failed: %v", err)
	}
	if merged != "Merged summary." {
		t.Errorf("expected trimmed merge text, got %q", merged)
	}
}

func TestMergeSummariesRejectsEmptyText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "   "}`))
	}))
	defer server.Close()

	client, _ := NewMergeClient(MergeConfig{Endpoint: server.URL, APIKey: "k"})
	if _, err := client.MergeSummaries(context.Background(), "A.", "B."); err == nil {
		t.Fatal("expected error for empty merge text")
	}
}

func TestMergeActionsRejectsMalformedList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing list", body: `{"text": "not a list"}`},
		{name: "empty entry", body: `{"actions": ["ok", "  "]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := NewMergeClient(MergeConfig{Endpoint: server.URL, APIKey: "k"})
			if _, err := client.MergeActions(context.Background(), []string{"a"}, []string{"a"}); err == nil {
				t.Fatal("expected error for malformed action list")
			}
		})
	}
}

func TestMergeActionsReturnsList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"actions": ["Email the client", "Ship the fix"]}`))
	}))
	defer server.Close()

	client, _ := NewMergeClient(MergeConfig{Endpoint: server.URL, APIKey: "k"})
	actions, err := client.MergeActions(context.Background(), []string{"email the client", "Email the client."}, []string{"email the client"})
	if err != nil {
		t.Fatalf("MergeActions failed: %v", err)
	}
	if len(actions) != 2 {
		t.Errorf("expected 2 actions, got %v", actions)
	}
}
