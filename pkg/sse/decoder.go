package sse

import (
	"bytes"
	"strings"
)

// Decoder turns raw SSE bytes into events. Bytes are handed over with Feed
// in whatever chunks the transport produced; Next yields every event whose
// terminating blank line has arrived. Incomplete lines stay buffered until
// the next Feed, and fields of a partially received event are carried over
// as well, so chunk boundaries never change the decoded result.
type Decoder struct {
	buf []byte
	off int

	// current accumulates fields for the event being built.
	current *Event
	hasData bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{current: &Event{}}
}

// Feed appends raw bytes to the decode buffer.
func (d *Decoder) Feed(p []byte) {
	if d.off > 0 && d.off == len(d.buf) {
		d.buf = d.buf[:0]
		d.off = 0
	}
	d.buf = append(d.buf, p...)
}

// Next returns the next complete event. The second return value is false
// when more bytes are needed before another event can be produced.
func (d *Decoder) Next() (*Event, bool) {
	for {
		i := bytes.IndexByte(d.buf[d.off:], '\n')
		if i < 0 {
			d.compact()
			return nil, false
		}

		line := d.buf[d.off : d.off+i]
		d.off += i + 1
		line = bytes.TrimSuffix(line, []byte{'\r'})

		// A blank line signals the end of the current event.
		if len(line) == 0 {
			if d.hasData {
				return d.take(), true
			}

			// Blank line with no accumulated fields: leading blank lines
			// or keep-alive newlines.
			continue
		}

		// Lines starting with ':' are comments.
		if line[0] == ':' {
			continue
		}

		d.parseLine(string(line))
	}
}

// Flush returns an event that was still being built when the source ended
// without a trailing blank line, including a final line that never received
// its newline.
func (d *Decoder) Flush() (*Event, bool) {
	if rest := bytes.TrimSuffix(d.buf[d.off:], []byte{'\r'}); len(rest) > 0 && rest[0] != ':' {
		d.parseLine(string(rest))
	}
	d.buf = d.buf[:0]
	d.off = 0

	if !d.hasData {
		return nil, false
	}
	return d.take(), true
}

// Buffered reports the number of undecoded bytes held by the decoder.
func (d *Decoder) Buffered() int {
	return len(d.buf) - d.off
}

// parseLine processes a single non-empty, non-comment SSE line and
// accumulates the field into the current event.
//
// Per the SSE spec, a line has the form "field:value" where the first
// space after the colon is optional and stripped if present.
func (d *Decoder) parseLine(line string) {
	var field, value string

	if before, after, ok := strings.Cut(line, ":"); ok {
		field = before
		value = strings.TrimPrefix(after, " ")
	} else {
		field = line
	}

	switch field {
	case "data":
		if d.hasData && len(d.current.Lines) > 0 {
			d.current.Data += "\n"
		}
		d.current.Data += value
		d.current.Lines = append(d.current.Lines, value)
		d.hasData = true
	case "event":
		d.current.Type = value
		d.hasData = true
	case "id":
		d.current.ID = value
		d.hasData = true
	default:
		// "retry" and unknown fields are ignored per the SSE spec.
	}
}

func (d *Decoder) take() *Event {
	ev := d.current
	d.current = &Event{}
	d.hasData = false
	return ev
}

// compact drops consumed bytes so the buffer only grows with the size of a
// single unterminated line.
func (d *Decoder) compact() {
	if d.off == 0 {
		return
	}
	n := copy(d.buf, d.buf[d.off:])
	d.buf = d.buf[:n]
	d.off = 0
}
