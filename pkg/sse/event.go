// Package sse provides a minimal, purpose-built SSE (Server-Sent Events)
// frame decoder and encoder for the chatrelay relay.
//
// Decoding is pull based: raw bytes go in through Decoder.Feed and complete
// frames come out of Decoder.Next, so callers decide when to read more from
// the network and can check for cancellation between reads. Reader wraps a
// Decoder around an io.Reader for callers that do not need that control.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the upstream byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n" (per the SSE spec, multiple data fields are joined
	// with a single newline).
	Data string

	// Lines holds each "data:" line of the event separately, in order.
	// Completion providers put one JSON chunk per data line, so relays
	// inspect these rather than the joined Data.
	Lines []string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}
