package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rishabhpillay/transcript-server/internal/ai"
	"github.com/rishabhpillay/transcript-server/internal/metrics"
	"github.com/rishabhpillay/transcript-server/internal/retry"
	"github.com/rishabhpillay/transcript-server/internal/session"
	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

var (
	// ErrEmptyAudio is returned for chunks with no audio payload.
	ErrEmptyAudio = errors.New("chunk has no audio payload")
	// ErrInvalidSequence is returned for non-positive sequence numbers.
	ErrInvalidSequence = errors.New("chunk sequence number must be positive")
	// ErrSessionComplete is returned when a chunk arrives for a finalized
	// session. Finalized sessions are never mutated again.
	ErrSessionComplete = errors.New("session is already complete")
)

// Chunk is one submitted unit of audio.
type Chunk struct {
	SessionID string
	Sequence  int
	IsFinal   bool
	MimeType  string
	Audio     []byte
}

// Result reports what one chunk submission did to its session.
type Result struct {
	Session   *session.Session
	Created   bool
	Completed bool
	// Duplicate is set when the sequence number was already applied to the
	// session; the submission was treated as a no-op client retry.
	Duplicate bool
	// Degraded lists semantic merge steps that fell back to their
	// deterministic path. The chunk still succeeded.
	Degraded []string
}

// Config contains orchestrator tuning.
type Config struct {
	RetryPolicy     retry.Policy
	ConflictRetries int
}

// Orchestrator consolidates chunks into session documents.
type Orchestrator struct {
	store       session.Store
	audio       *session.AudioStore
	transcriber ai.Transcriber
	diarizer    ai.Diarizer      // nil when diarization is disabled
	summaries   ai.SummaryMerger // nil when semantic merging is disabled
	actions     ai.ActionMerger  // nil when semantic merging is disabled
	config      Config
	logger      *slog.Logger
	metrics     *metrics.Metrics

	// Per-session locks serialize the apply phase so two chunks for the
	// same session never interleave their read-modify-write cycles.
	// External calls happen before the lock is taken.
	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// NewOrchestrator wires the orchestrator. diarizer, summaries and actions
// may be nil; the corresponding steps then use their deterministic paths.
func NewOrchestrator(
	store session.Store,
	audio *session.AudioStore,
	transcriber ai.Transcriber,
	diarizer ai.Diarizer,
	summaries ai.SummaryMerger,
	actions ai.ActionMerger,
	config Config,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	if config.ConflictRetries < 1 {
		config.ConflictRetries = 3
	}

	return &Orchestrator{
		store:       store,
		audio:       audio,
		transcriber: transcriber,
		diarizer:    diarizer,
		summaries:   summaries,
		actions:     actions,
		config:      config,
		logger:      logger,
		metrics:     m,
		locks:       make(map[string]*sync.Mutex),
	}
}

func (o *Orchestrator) lockFor(sessionID string) *sync.Mutex {
	o.locksMu.Lock()
	defer o.locksMu.Unlock()

	mu, ok := o.locks[sessionID]
	if !ok {
		mu = &sync.Mutex{}
		o.locks[sessionID] = mu
	}
	return mu
}

// ProcessChunk runs the full consolidation flow for one chunk: validate,
// transcribe, diarize and align outside any lock, then apply the result to
// the session record inside the per-session critical section. A failure
// before the apply phase leaves the session untouched, so callers can
// resubmit the same chunk safely.
func (o *Orchestrator) ProcessChunk(ctx context.Context, chunk Chunk) (*Result, error) {
	if len(chunk.Audio) == 0 {
		return nil, ErrEmptyAudio
	}
	if chunk.Sequence < 1 {
		return nil, ErrInvalidSequence
	}
	if chunk.SessionID != "" && !session.IsValidID(chunk.SessionID) {
		return nil, fmt.Errorf("rejecting session id %q: %w", chunk.SessionID, session.ErrInvalidID)
	}

	start := time.Now()
	o.metrics.ChunksReceived.Inc()

	sessionID := chunk.SessionID
	if sessionID == "" {
		sessionID = session.New("").ID
	}

	logger := o.logger.With(
		slog.String("session_id", sessionID),
		slog.Int("sequence", chunk.Sequence),
		slog.Bool("is_final", chunk.IsFinal),
	)

	// Cheap pre-checks against the current record. The snapshot also seeds
	// the transcription context (known speakers, prior summary); both are
	// prompt hints, so mild staleness is harmless.
	snapshot, err := o.store.Find(ctx, sessionID)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		o.metrics.ChunksFailed.Inc()
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	if snapshot != nil {
		if snapshot.IsComplete {
			return nil, ErrSessionComplete
		}
		if snapshot.HasSequence(chunk.Sequence) {
			logger.Info("Skipping already-applied chunk submission")
			o.metrics.ChunksDuplicate.Inc()
			return &Result{Session: snapshot, Duplicate: true}, nil
		}
	}

	var knownSpeakers []string
	var priorSummary string
	if snapshot != nil {
		knownSpeakers = snapshot.Speakers
		priorSummary = snapshot.Summary
	}

	lines, chunkResult, err := o.transcribeAndAlign(ctx, chunk, knownSpeakers, priorSummary, logger)
	if err != nil {
		o.metrics.ChunksFailed.Inc()
		return nil, err
	}

	handle, err := o.audio.Put(sessionID, chunk.Sequence, chunk.Audio)
	if err != nil {
		o.metrics.ChunksFailed.Inc()
		return nil, fmt.Errorf("failed to store chunk audio: %w", err)
	}

	result, err := o.apply(ctx, sessionID, chunk, lines, chunkResult, handle, logger)
	if err != nil {
		o.metrics.ChunksFailed.Inc()
		return nil, err
	}

	o.metrics.RecordChunkProcessed(time.Since(start).Seconds(), len(lines))
	logger.Info("Chunk consolidated",
		slog.Int("lines", len(lines)),
		slog.Int("speakers", len(result.Session.Speakers)),
		slog.Bool("completed", result.Completed),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// transcribeAndAlign runs the external transcription and diarization calls
// and aligns the two signals. A failure in either call aborts the chunk.
func (o *Orchestrator) transcribeAndAlign(
	ctx context.Context,
	chunk Chunk,
	knownSpeakers []string,
	priorSummary string,
	logger *slog.Logger,
) ([]transcript.Line, *ai.ChunkTranscription, error) {
	transcribeStart := time.Now()
	tr, err := retry.Do(ctx, o.config.RetryPolicy, "transcribe chunk", func(ctx context.Context) (*ai.ChunkTranscription, error) {
		return o.transcriber.TranscribeChunk(ctx, ai.TranscribeRequest{
			Audio:         chunk.Audio,
			MimeType:      chunk.MimeType,
			KnownSpeakers: knownSpeakers,
			PriorSummary:  priorSummary,
		})
	})
	o.metrics.RecordCollaborator("transcription", time.Since(transcribeStart).Seconds(), err)
	if err != nil {
		logger.Error("Transcription failed", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("chunk transcription failed: %w", err)
	}

	lines := tr.Lines
	if o.diarizer != nil {
		diarizeStart := time.Now()
		segments, err := retry.Do(ctx, o.config.RetryPolicy, "diarize chunk", func(ctx context.Context) ([]transcript.Segment, error) {
			return o.diarizer.DiarizeChunk(ctx, chunk.Audio, chunk.MimeType)
		})
		o.metrics.RecordCollaborator("diarization", time.Since(diarizeStart).Seconds(), err)
		if err != nil {
			logger.Error("Diarization failed", slog.String("error", err.Error()))
			return nil, nil, fmt.Errorf("chunk diarization failed: %w", err)
		}
		lines = transcript.AlignSpeakers(segments, lines)
	}

	tagged := make([]transcript.Line, len(lines))
	copy(tagged, lines)
	for i := range tagged {
		tagged[i].SourceSequence = chunk.Sequence
	}

	return tagged, tr, nil
}

// apply mutates the session record under the per-session lock. The store's
// version check backs up the lock: if another writer slipped in (a second
// process, for instance), the apply is recomputed from a fresh read.
func (o *Orchestrator) apply(
	ctx context.Context,
	sessionID string,
	chunk Chunk,
	lines []transcript.Line,
	tr *ai.ChunkTranscription,
	audioHandle string,
	logger *slog.Logger,
) (*Result, error) {
	mu := o.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	var lastErr error
	for attempt := 0; attempt < o.config.ConflictRetries; attempt++ {
		result := &Result{}

		s, err := o.store.Find(ctx, sessionID)
		if errors.Is(err, session.ErrNotFound) {
			s = session.New(sessionID)
			createErr := o.store.Create(ctx, s)
			if createErr != nil && !errors.Is(createErr, session.ErrAlreadyExists) {
				return nil, fmt.Errorf("failed to create session %s: %w", sessionID, createErr)
			}
			if createErr == nil {
				o.metrics.SessionsCreated.Inc()
				result.Created = true
			}
			s, err = o.store.Find(ctx, sessionID)
			if err != nil {
				return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
		}

		if s.IsComplete {
			return nil, ErrSessionComplete
		}
		if s.HasSequence(chunk.Sequence) {
			o.metrics.ChunksDuplicate.Inc()
			result.Session = s
			result.Duplicate = true
			return result, nil
		}

		loadedVersion := s.Version

		s.Speakers = transcript.ReconcileSpeakers(s.Speakers, transcript.ChunkSpeakers(lines))
		s.Transcript = append(s.Transcript, lines...)
		s.AudioChunks = append(s.AudioChunks, session.AudioChunkRef{
			Sequence:  chunk.Sequence,
			Handle:    audioHandle,
			MimeType:  chunk.MimeType,
			SizeBytes: int64(len(chunk.Audio)),
		})

		// The semantic merges run while the lock is held: their inputs and
		// outputs are session state, and releasing the lock around the
		// collaborator call would let another chunk interleave between merge
		// and save. Hold time is bounded by the collaborator timeout times
		// the retry attempt count.
		s.Summary = o.mergeSummary(ctx, s.Summary, tr.Summary, result, logger)
		s.Actions = transcript.AppendActions(s.Actions, tr.Actions)

		if chunk.IsFinal {
			s.Actions = o.finalizeActions(ctx, s.Actions, result, logger)
			s.IsComplete = true
			result.Completed = true
		}

		s.UpdatedAt = time.Now().UTC()

		if err := o.store.Save(ctx, s, loadedVersion); err != nil {
			if errors.Is(err, session.ErrVersionConflict) {
				o.metrics.VersionConflicts.Inc()
				logger.Warn("Session save conflicted, re-reading",
					slog.Int("attempt", attempt+1),
					slog.Uint64("loaded_version", loadedVersion),
				)
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to save session %s: %w", sessionID, err)
		}

		if result.Completed {
			o.metrics.SessionsCompleted.Inc()
		}
		result.Session = s
		return result, nil
	}

	return nil, fmt.Errorf("session %s update conflicted %d times: %w",
		sessionID, o.config.ConflictRetries, lastErr)
}

// mergeSummary folds the chunk summary into the running summary. Semantic
// merge failures degrade to the deterministic merge; they never fail the
// chunk.
func (o *Orchestrator) mergeSummary(ctx context.Context, prev, current string, result *Result, logger *slog.Logger) string {
	if prev == "" && current == "" {
		return ""
	}
	if prev == "" {
		return current
	}
	if current == "" {
		return prev
	}

	if o.summaries == nil {
		return transcript.MergeSummariesFallback(prev, current)
	}

	mergeStart := time.Now()
	merged, err := retry.Do(ctx, o.config.RetryPolicy, "merge summaries", func(ctx context.Context) (string, error) {
		return o.summaries.MergeSummaries(ctx, prev, current)
	})
	o.metrics.RecordCollaborator("summary_merge", time.Since(mergeStart).Seconds(), err)
	if err != nil || merged == "" {
		if err != nil {
			logger.Warn("Semantic summary merge failed, using deterministic merge",
				slog.String("error", err.Error()))
		}
		o.metrics.RecordDegradedMerge("summary")
		result.Degraded = append(result.Degraded, "summary merge fell back to deterministic merge")
		return transcript.MergeSummariesFallback(prev, current)
	}
	return merged
}

// finalizeActions runs the expensive semantic dedup once, at completion.
// The accepted result passes through the syntactic dedup once more; any
// failure keeps the syntactic baseline.
func (o *Orchestrator) finalizeActions(ctx context.Context, raw []string, result *Result, logger *slog.Logger) []string {
	baseline := transcript.DedupeActions(raw)
	if len(baseline) == 0 || o.actions == nil {
		return baseline
	}

	mergeStart := time.Now()
	merged, err := retry.Do(ctx, o.config.RetryPolicy, "dedupe actions", func(ctx context.Context) ([]string, error) {
		return o.actions.MergeActions(ctx, raw, baseline)
	})
	o.metrics.RecordCollaborator("action_merge", time.Since(mergeStart).Seconds(), err)
	if err != nil {
		logger.Warn("Semantic action dedup failed, keeping syntactic baseline",
			slog.String("error", err.Error()))
		o.metrics.RecordDegradedMerge("actions")
		result.Degraded = append(result.Degraded, "action dedup fell back to syntactic baseline")
		return baseline
	}

	return transcript.DedupeActions(merged)
}

// GetSession returns the current session document.
func (o *Orchestrator) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return o.store.Find(ctx, id)
}

// ListSessions returns all sessions, newest first.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]*session.Session, error) {
	return o.store.List(ctx)
}
