package sse

import (
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// Reader reads SSE events from a source io.Reader using a Decoder.
type Reader struct {
	src io.Reader
	dec *Decoder
	buf []byte
	eof bool
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return &Reader{
		src: src,
		dec: NewDecoder(),
		buf: make([]byte, readChunkSize),
	}
}

// Next returns the next parsed SSE event. It blocks until a complete event
// is available (terminated by a blank line in the stream).
// Next returns nil, nil when the source is exhausted.
func (r *Reader) Next() (*Event, error) {
	for {
		if ev, ok := r.dec.Next(); ok {
			return ev, nil
		}

		if r.eof {
			if ev, ok := r.dec.Flush(); ok {
				return ev, nil
			}
			return nil, nil
		}

		n, err := r.src.Read(r.buf)
		if n > 0 {
			r.dec.Feed(r.buf[:n])
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			r.eof = true
		}
	}
}
