package recording

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/go-openapi/strfmt"
)

// ErrClosed is returned when writing to a closed recorder.
var ErrClosed = errors.New("recorder is closed")

// Recorder streams entries into a JSON array. The array is only complete
// once Close returns.
type Recorder struct {
	w io.Writer
	// NonzeroStart times the first entry from when the recorder was created
	// rather than recording it with a delta of zero.
	nonzeroStart bool
	now          func() time.Time

	mu      sync.Mutex
	created time.Time
	last    time.Time
	count   int
	// opened is set once any byte of the array has reached w.
	opened bool
	closed bool
}

var NonzeroStart = opts.ForName[Recorder, bool]("nonzeroStart")

// NewRecorder creates a recorder that writes to w.
func NewRecorder(w io.Writer, options ...opts.Option[Recorder]) (*Recorder, error) {
	r := &Recorder{w: w, now: time.Now}
	if err := opts.Apply(r, options); err != nil {
		return nil, fmt.Errorf("recording: %w", err)
	}
	r.created = r.now()
	return r, nil
}

// Write appends a message to the recording.
func (r *Recorder) Write(topic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	now := r.now()
	var delta time.Duration
	switch {
	case r.count > 0:
		delta = now.Sub(r.last)
	case r.nonzeroStart:
		delta = now.Sub(r.created)
	}

	row, err := json.Marshal(Entry{
		Topic:      topic,
		Message:    Message{Type: BufferType, Data: Bytes(payload)},
		DeltaTime:  uint64(delta.Milliseconds()),
		RecordedAt: strfmt.DateTime(now),
	})
	if err != nil {
		return fmt.Errorf("recording: encode %s: %w", topic, err)
	}

	sep := ",\n"
	if !r.opened {
		sep = "[\n"
	}
	buf := make([]byte, 0, len(sep)+len(row))
	buf = append(append(buf, sep...), row...)
	n, err := r.w.Write(buf)
	if n > 0 {
		r.opened = true
	}
	if err != nil {
		return fmt.Errorf("recording: write: %w", err)
	}
	r.last = now
	r.count++
	return nil
}

// Count returns the number of entries written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close terminates the JSON array. It does not close the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	end := "\n]\n"
	if !r.opened {
		end = "[]\n"
	}
	if _, err := io.WriteString(r.w, end); err != nil {
		return fmt.Errorf("recording: close: %w", err)
	}
	return nil
}
