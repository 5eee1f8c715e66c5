package audithook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// WriterRecorder writes each event as one JSON line.
type WriterRecorder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewWriterRecorder returns a Recorder writing JSON lines to w.
func NewWriterRecorder(w io.Writer) *WriterRecorder {
	return &WriterRecorder{enc: json.NewEncoder(w)}
}

// Record implements Recorder.
func (r *WriterRecorder) Record(_ context.Context, event *AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(event); err != nil {
		return fmt.Errorf("audit_hook: write event: %w", err)
	}
	return nil
}
