package relay

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/papercomputeco/chatrelay/pkg/sse"
)

// Sink receives a streamed reply.
type Sink interface {
	// Fragment forwards one non-empty piece of the reply. An error means
	// the caller is gone.
	Fragment(text string) error

	// Done signals that the reply is complete and persisted.
	Done() error
}

// SSESink writes fragments as `data: {"delta":...}` events and completion as
// an `event: done` event.
type SSESink struct {
	w io.Writer
}

// NewSSESink creates a sink writing to w.
func NewSSESink(w io.Writer) *SSESink {
	return &SSESink{w: w}
}

type deltaPayload struct {
	Delta string `json:"delta"`
}

func (s *SSESink) Fragment(text string) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(deltaPayload{Delta: text}); err != nil {
		return err
	}

	return sse.WriteEvent(s.w, sse.Event{Data: string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))})
}

func (s *SSESink) Done() error {
	return sse.WriteEvent(s.w, sse.Event{Type: "done", Data: "{}"})
}
