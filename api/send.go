package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/relay"
)

// SendRequest is the body of POST /v1/conversations/:id/send.
type SendRequest struct {
	Text        string     `json:"text"`
	Attachments []string   `json:"attachments,omitempty"`
	Params      llm.Params `json:"params"`
}

func (s *Server) handleSend(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid conversation id")
	}

	var req SendRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, while a streamed
	// session keeps running in its own goroutine.
	ctx, cancel := context.WithCancel(context.Background())
	stopWatch := watchHangup(c.Context().Conn(), cancel)

	session, err := s.engine.Open(ctx, relay.SendRequest{
		CallerID:       callerID(c),
		ConversationID: id,
		Text:           req.Text,
		Attachments:    req.Attachments,
		Params:         req.Params,
	})
	if err != nil {
		stopWatch()
		cancel()
		return s.writeError(c, err)
	}

	if !session.Streaming() {
		defer cancel()
		result, err := session.Complete(ctx)
		stopWatch()
		if err != nil {
			return s.writeError(c, err)
		}
		return c.JSON(result)
	}

	s.headers.SetStreamResponseHeaders(c)

	// pw.Write blocks until fasthttp's chunked body writer consumes the
	// data and flushes it, so every fragment reaches the socket as it is
	// produced. A failed write means the caller is gone.
	pr, pw := io.Pipe()
	go s.streamSession(ctx, cancel, stopWatch, session, pw)

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// watchHangup cancels the session as soon as the caller closes its side of
// conn. The request body has been read in full by then, so the only thing
// a well-behaved caller can send before the reply ends is EOF. The returned
// stop ends the watch and hands conn back to fasthttp for the next request;
// it must run before the response body is closed.
func watchHangup(conn net.Conn, cancel context.CancelFunc) (stop func()) {
	if conn == nil {
		return func() {}
	}

	var stopped atomic.Bool
	done := make(chan struct{})

	go func() {
		defer close(done)
		buf := make([]byte, 512)
		for {
			if _, err := conn.Read(buf); err != nil {
				if !stopped.Load() {
					cancel()
				}
				return
			}
		}
	}()

	return func() {
		if !stopped.CompareAndSwap(false, true) {
			return
		}
		_ = conn.SetReadDeadline(time.Now())
		<-done
		_ = conn.SetReadDeadline(time.Time{})
	}
}

func (s *Server) streamSession(ctx context.Context, cancel context.CancelFunc, stopWatch func(), session *relay.Session, pw *io.PipeWriter) {
	defer cancel()
	defer pw.Close()
	defer stopWatch()

	w := &cancelOnErrorWriter{w: pw, cancel: cancel}
	err := session.Stream(ctx, relay.NewSSESink(w))
	if err == nil || errors.Is(err, relay.ErrClientDisconnected) {
		return
	}

	// Headers are already sent; the failure travels as an error event.
	resp := llm.ErrorResponse{Error: relay.Kind(err), Detail: err.Error()}
	var upstreamErr *relay.UpstreamError
	if errors.As(err, &upstreamErr) {
		resp.UpstreamStatus = upstreamErr.Status
		resp.UpstreamBody = upstreamErr.Body
	}
	data, _ := json.Marshal(resp)
	if werr := sse.WriteEvent(w, sse.Event{Type: "error", Data: string(data)}); werr != nil {
		s.logger.Debug("could not report stream failure",
			"conversation_id", session.ConversationID(),
			"error", werr,
		)
	}
}

// cancelOnErrorWriter cancels the session as soon as a write to the caller
// fails.
type cancelOnErrorWriter struct {
	w      io.Writer
	cancel context.CancelFunc
}

func (w *cancelOnErrorWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	if err != nil {
		w.cancel()
	}
	return n, err
}
