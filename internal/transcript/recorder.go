package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock supplies capture timestamps. Tests inject a fixed clock so recorded
// transcripts are byte-identical across runs.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Recorder accumulates entries for one session.
//
// Index and TurnNumber are assigned in record order, starting at 0 and 1.
// Thread-safety: Recorder is safe for concurrent use, though a session
// normally records from a single goroutine.
type Recorder struct {
	mu       sync.Mutex
	clock    Clock
	id       string
	source   Source
	started  time.Time
	entries  []Entry
	metadata map[string]string
}

// NewRecorder starts a recording. A nil clock means SystemClock.
func NewRecorder(source Source, clock Clock) *Recorder {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Recorder{
		clock:    clock,
		id:       uuid.Must(uuid.NewV7()).String(),
		source:   source,
		started:  clock.Now(),
		metadata: make(map[string]string),
	}
}

// SetMetadata attaches an opaque key/value pair to the transcript.
func (r *Recorder) SetMetadata(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata[key] = value
}

// Record appends one command/output pair and returns the stored entry.
func (r *Recorder) Record(command, output string) Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := r.clock.Now()
	e := Entry{
		Index:      len(r.entries),
		Command:    command,
		Output:     output,
		TurnNumber: len(r.entries) + 1,
		CapturedAt: &at,
	}
	r.entries = append(r.entries, e)
	return e
}

// Len returns the number of recorded entries.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Finish returns the transcript recorded so far. The recorder may keep
// recording; later entries do not affect the returned value.
func (r *Recorder) Finish() *Transcript {
	r.mu.Lock()
	defer r.mu.Unlock()

	var meta map[string]string
	if len(r.metadata) > 0 {
		meta = copyMetadata(r.metadata)
	}
	return &Transcript{
		ID:        r.id,
		Source:    r.source,
		StartedAt: r.started,
		EndedAt:   r.clock.Now(),
		Entries:   append([]Entry(nil), r.entries...),
		Metadata:  meta,
	}
}
