// Package ledger implements the append-only thread log used to reconstruct
// transcripts and to build bounded context windows for follow-up prompts.
// Entries are immutable once appended; a correction is a new annotation
// entry referencing the original, never an in-place rewrite.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EntryType categorizes a thread entry.
type EntryType string

const (
	// EntryStatement is an ordinary utterance by an agent or the user.
	EntryStatement EntryType = "statement"

	// EntryActionOutput records the output of a completed action.
	EntryActionOutput EntryType = "action-output"

	// EntryReviewDecision records a human review decision for a phase.
	EntryReviewDecision EntryType = "review-decision"

	// EntryAnnotation is commentary attached to an earlier entry,
	// identified by Ref.
	EntryAnnotation EntryType = "annotation"
)

// Entry is one immutable record in a thread. ThreadID partitions entries by
// phase or by team.
type Entry struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"threadId"`
	Seq       int       `json:"seq"` // per-thread, starts at 1
	Timestamp time.Time `json:"timestamp"`
	SpeakerID string    `json:"speakerId"`
	Type      EntryType `json:"entryType"`
	Content   string    `json:"content"`
	Ref       int       `json:"ref,omitempty"` // Seq of the annotated entry, annotations only
}

// Ledger is a per-run collection of threads. Thread-safe.
type Ledger struct {
	mu      sync.RWMutex
	threads map[string][]Entry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{threads: make(map[string][]Entry)}
}

// Append validates and appends an entry to threadID, assigning its sequence
// number and timestamp. Returns the stored entry.
func (l *Ledger) Append(threadID, speakerID string, entryType EntryType, content string) (Entry, error) {
	if threadID == "" {
		return Entry{}, fmt.Errorf("ledger: empty thread id")
	}
	if speakerID == "" {
		return Entry{}, fmt.Errorf("ledger: empty speaker id")
	}
	if content == "" {
		return Entry{}, fmt.Errorf("ledger: empty content")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(threadID, speakerID, entryType, content, 0), nil
}

// Annotate appends an annotation entry referencing the entry with sequence
// number ref in the same thread. The range check and the append happen under
// one lock so a concurrent Append cannot slip between them.
func (l *Ledger) Annotate(threadID, speakerID string, ref int, commentary string) (Entry, error) {
	if speakerID == "" {
		return Entry{}, fmt.Errorf("ledger: empty speaker id")
	}
	if commentary == "" {
		return Entry{}, fmt.Errorf("ledger: empty content")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ref < 1 || ref > len(l.threads[threadID]) {
		return Entry{}, fmt.Errorf("ledger: annotation target %d out of range for thread %s", ref, threadID)
	}
	return l.appendLocked(threadID, speakerID, EntryAnnotation, commentary, ref), nil
}

// appendLocked stores a new entry. Callers hold l.mu.
func (l *Ledger) appendLocked(threadID, speakerID string, entryType EntryType, content string, ref int) Entry {
	e := Entry{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Seq:       len(l.threads[threadID]) + 1,
		Timestamp: time.Now().UTC(),
		SpeakerID: speakerID,
		Type:      entryType,
		Content:   content,
		Ref:       ref,
	}
	l.threads[threadID] = append(l.threads[threadID], e)
	return e
}

// Read returns every entry in threadID with Seq > sinceSeq, in order.
// Pass 0 to read the full thread.
func (l *Ledger) Read(threadID string, sinceSeq int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.threads[threadID]
	if sinceSeq <= 0 {
		return append([]Entry(nil), entries...)
	}
	for i, e := range entries {
		if e.Seq > sinceSeq {
			return append([]Entry(nil), entries[i:]...)
		}
	}
	return nil
}

// Tail returns the last n entries of threadID, in order.
func (l *Ledger) Tail(threadID string, n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entries := l.threads[threadID]
	if n <= 0 || len(entries) == 0 {
		return nil
	}
	if n > len(entries) {
		n = len(entries)
	}
	return append([]Entry(nil), entries[len(entries)-n:]...)
}

// Threads returns the IDs of all threads with at least one entry.
func (l *Ledger) Threads() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.threads))
	for id := range l.threads {
		ids = append(ids, id)
	}
	return ids
}
