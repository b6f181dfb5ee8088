package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rishabhpillay/transcript-server/internal/transcript"
)

func TestNewAssignsID(t *testing.T) {
	s := New("")
	if s.ID == "" {
		t.Error("expected generated id for empty input")
	}

	s2 := New("my-session")
	if s2.ID != "my-session" {
		t.Errorf("expected caller-provided id kept, got %q", s2.ID)
	}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := New("s1")
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Create(ctx, New("s1")); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}

	found, err := store.Find(ctx, "s1")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found.ID != "s1" || found.Version != 0 {
		t.Errorf("unexpected session: %+v", found)
	}

	if _, err := store.Find(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreSaveDetectsConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, New("s1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, _ := store.Find(ctx, "s1")
	second, _ := store.Find(ctx, "s1")

	first.Summary = "from first writer"
	if err := store.Save(ctx, first, first.Version); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if first.Version != 1 {
		t.Errorf("expected version bumped to 1, got %d", first.Version)
	}

	second.Summary = "from second writer"
	if err := store.Save(ctx, second, second.Version); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	// The losing writer re-reads and reapplies.
	fresh, _ := store.Find(ctx, "s1")
	if fresh.Summary != "from first writer" {
		t.Errorf("expected first writer's update preserved, got %q", fresh.Summary)
	}
}

func TestMemoryStoreFindReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	s := New("s1")
	s.Transcript = append(s.Transcript, transcript.Line{Speaker: "Speaker 1", Text: "hello"})
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	found, _ := store.Find(ctx, "s1")
	found.Transcript[0].Text = "mutated"
	found.Speakers = append(found.Speakers, "Speaker 2")

	again, _ := store.Find(ctx, "s1")
	if again.Transcript[0].Text != "hello" {
		t.Errorf("store state leaked through Find: %+v", again.Transcript[0])
	}
	if len(again.Speakers) != 0 {
		t.Errorf("store state leaked through Find: %v", again.Speakers)
	}
}

func TestMemoryStoreConcurrentSavesLoseAtMostToConflict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Create(ctx, New("s1")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	conflicts := make([]bool, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := store.Find(ctx, "s1")
			if err != nil {
				t.Errorf("Find failed: %v", err)
				return
			}
			s.Actions = append(s.Actions, "task")
			if err := store.Save(ctx, s, s.Version); err != nil {
				if !errors.Is(err, ErrVersionConflict) {
					t.Errorf("unexpected Save error: %v", err)
				}
				conflicts[i] = true
			}
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, c := range conflicts {
		if !c {
			winners++
		}
	}

	final, _ := store.Find(ctx, "s1")
	if int(final.Version) != winners {
		t.Errorf("expected version %d after %d successful saves, got %d", winners, winners, final.Version)
	}
	if len(final.Actions) != winners {
		t.Errorf("expected %d appended actions, got %d", winners, len(final.Actions))
	}
}

func TestHasSequence(t *testing.T) {
	s := New("s1")
	s.AudioChunks = append(s.AudioChunks, AudioChunkRef{Sequence: 2, Handle: "h"})
	s.Transcript = append(s.Transcript, transcript.Line{Speaker: "Speaker 1", SourceSequence: 5})

	if !s.HasSequence(2) {
		t.Error("expected sequence 2 present via audio refs")
	}
	if !s.HasSequence(5) {
		t.Error("expected sequence 5 present via transcript lines")
	}
	if s.HasSequence(3) {
		t.Error("sequence 3 should be absent")
	}
}

func TestAudioStorePutRejectsPathShapedIDs(t *testing.T) {
	store, err := NewAudioStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewAudioStore failed: %v", err)
	}

	ids := []string{"../escape", "a/b", `a\b`, "..", ".", ""}
	for _, id := range ids {
		if _, err := store.Put(id, 1, []byte("audio")); !errors.Is(err, ErrInvalidID) {
			t.Errorf("id %q: expected ErrInvalidID, got %v", id, err)
		}
	}
}

func TestAudioStorePutWritesUnderRoot(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAudioStore(dir)
	if err != nil {
		t.Fatalf("NewAudioStore failed: %v", err)
	}

	handle, err := store.Put("rec-1", 3, []byte("audio"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if handle != filepath.Join("rec-1", "chunk-000003.bin") {
		t.Errorf("unexpected handle %q", handle)
	}
	if _, err := os.Stat(filepath.Join(dir, handle)); err != nil {
		t.Errorf("expected chunk written under the audio root: %v", err)
	}
}
