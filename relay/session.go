package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

const readChunkSize = 32 * 1024

// Result is the reply of a non-streaming send.
type Result struct {
	Reply string `json:"reply"`

	// Choices lists every alternative when the upstream returned more
	// than one.
	Choices []string `json:"choices,omitempty"`
}

// Session is one in-flight relay call. It is driven by exactly one of
// Stream or Complete and is not safe for concurrent use.
type Session struct {
	engine     *Engine
	req        SendRequest
	conv       *storage.Conversation
	credential *credential.Resolved
	upstream   *upstream.Request
	resp       *http.Response
	userTurnID int64
	startedAt  time.Time

	eventStream bool
	state       State
	fragments   int
}

// State returns the current lifecycle stage.
func (s *Session) State() State {
	return s.state
}

// Streaming reports whether the caller asked for a streamed reply.
func (s *Session) Streaming() bool {
	return s.req.Params.Stream
}

// ConversationID returns the conversation the session appends to.
func (s *Session) ConversationID() int64 {
	return s.conv.ID
}

// Close releases the upstream response. Stream and Complete close it
// themselves; Close is only needed for a session that is abandoned.
func (s *Session) Close() error {
	if s.resp == nil {
		return nil
	}
	return s.resp.Body.Close()
}

// Stream forwards the reply to sink fragment by fragment, persists it as one
// assistant turn and signals sink.Done. If ctx is cancelled or sink fails
// before persistence, nothing is persisted, Done is not sent and
// ErrClientDisconnected is returned.
func (s *Session) Stream(ctx context.Context, sink Sink) error {
	defer s.Close()

	if !s.Streaming() {
		return invalid("session was not opened for streaming")
	}

	var (
		reply string
		err   error
	)
	if s.eventStream {
		s.state = StateStreaming
		reply, err = s.relayEvents(ctx, sink)
	} else {
		s.state = StateBuffering
		reply, err = s.emulate(ctx, sink)
	}
	if err != nil {
		return s.fail(err)
	}

	replies := []string{reply}
	ids, err := s.persist(ctx, replies)
	if err != nil {
		return s.fail(err)
	}

	s.state = StateDone
	if err := sink.Done(); err != nil {
		s.engine.logger.Debug("caller gone before done event",
			"conversation_id", s.conv.ID,
			"error", err,
		)
	}

	s.finish(ids, replies)
	return nil
}

// Complete reads the whole reply, persists one assistant turn per choice and
// returns the result.
func (s *Session) Complete(ctx context.Context) (*Result, error) {
	defer s.Close()

	s.state = StateBuffering

	var replies []string
	if s.eventStream {
		reply, err := s.relayEvents(ctx, nil)
		if err != nil {
			return nil, s.fail(err)
		}
		replies = []string{reply}
	} else {
		resp, err := s.readResponse(ctx)
		if err != nil {
			return nil, s.fail(err)
		}
		replies = resp.Texts()
	}

	if len(replies) == 0 {
		replies = []string{""}
	}

	ids, err := s.persist(ctx, replies)
	if err != nil {
		return nil, s.fail(err)
	}
	s.state = StateDone
	s.finish(ids, replies)

	result := &Result{Reply: replies[0]}
	if len(replies) > 1 {
		result.Choices = replies
	}
	return result, nil
}

// relayEvents decodes the upstream event stream. Fragments are accumulated
// and, when sink is non-nil, forwarded. The context is checked after every
// read and before every forward.
func (s *Session) relayEvents(ctx context.Context, sink Sink) (string, error) {
	var reply strings.Builder
	dec := sse.NewDecoder()
	prov := s.upstream.Provider
	buf := make([]byte, readChunkSize)

	handle := func(ev *sse.Event) error {
		for _, line := range ev.Lines {
			line = strings.TrimSpace(line)
			if line == "" || line == "[DONE]" {
				continue
			}

			chunk, err := prov.ParseStreamChunk([]byte(line))
			if err != nil || chunk == nil || chunk.Content == "" {
				continue
			}
			reply.WriteString(chunk.Content)

			if sink == nil {
				continue
			}
			if ctx.Err() != nil {
				return ErrClientDisconnected
			}
			if err := sink.Fragment(chunk.Content); err != nil {
				return fmt.Errorf("%w: %w", ErrClientDisconnected, err)
			}
			s.fragments++
		}
		return nil
	}

	for {
		n, readErr := s.resp.Body.Read(buf)
		if ctx.Err() != nil {
			return "", ErrClientDisconnected
		}

		if n > 0 {
			dec.Feed(buf[:n])
			for ev, ok := dec.Next(); ok; ev, ok = dec.Next() {
				if err := handle(ev); err != nil {
					return "", err
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			if ev, ok := dec.Flush(); ok {
				if err := handle(ev); err != nil {
					return "", err
				}
			}
			return reply.String(), nil
		}
		if readErr != nil {
			return "", &UpstreamError{Err: readErr}
		}
	}
}

// emulate forwards the first choice of a single JSON response one character
// at a time.
func (s *Session) emulate(ctx context.Context, sink Sink) (string, error) {
	resp, err := s.readResponse(ctx)
	if err != nil {
		return "", err
	}

	reply := ""
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Text
	}

	for _, r := range reply {
		if ctx.Err() != nil {
			return "", ErrClientDisconnected
		}
		if err := sink.Fragment(string(r)); err != nil {
			return "", fmt.Errorf("%w: %w", ErrClientDisconnected, err)
		}
		s.fragments++
	}

	return reply, nil
}

func (s *Session) readResponse(ctx context.Context) (*llm.ChatResponse, error) {
	body, err := io.ReadAll(s.resp.Body)
	if ctx.Err() != nil {
		return nil, ErrClientDisconnected
	}
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}

	resp, err := s.upstream.Provider.ParseResponse(body)
	if err != nil {
		return nil, &UpstreamError{
			Status: s.resp.StatusCode,
			Body:   string(body),
			Err:    fmt.Errorf("decoding upstream response: %w", err),
		}
	}

	return resp, nil
}

// persist appends one assistant turn per reply and touches the
// conversation. A caller that is already gone gets nothing persisted; once
// persisting has started it runs to completion.
func (s *Session) persist(ctx context.Context, replies []string) ([]int64, error) {
	if ctx.Err() != nil {
		return nil, ErrClientDisconnected
	}
	s.state = StatePersisting

	ctx = context.WithoutCancel(ctx)
	store := s.engine.config.Store

	ids := make([]int64, 0, len(replies))
	for _, reply := range replies {
		id, err := store.AppendTurn(ctx, s.conv.ID, s.req.CallerID, llm.RoleAssistant, reply)
		if err != nil {
			return nil, fmt.Errorf("appending assistant turn: %w", err)
		}
		ids = append(ids, id)
	}

	if err := store.TouchConversation(ctx, s.conv.ID); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	return ids, nil
}

// fail records a failed session and returns err.
func (s *Session) fail(err error) error {
	m := s.engine.config.Metrics
	name := s.upstream.Provider.Name()

	if errors.Is(err, ErrClientDisconnected) {
		s.state = StateCancelled
		m.ObserveCancellation(name)
		m.ObserveRequest(name, s.mode(), metrics.OutcomeCancelled)
		s.engine.logger.Info("relay cancelled by caller",
			"conversation_id", s.conv.ID,
			"fragments", s.fragments,
		)
		return err
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		m.ObserveRequest(name, s.mode(), metrics.OutcomeUpstreamError)
	} else {
		m.ObserveRequest(name, s.mode(), metrics.OutcomeError)
	}
	s.engine.logger.Error("relay failed",
		"conversation_id", s.conv.ID,
		"state", s.state.String(),
		"error", err,
	)
	return err
}

// finish records a completed session and enqueues its turn event.
func (s *Session) finish(ids []int64, replies []string) {
	m := s.engine.config.Metrics
	name := s.upstream.Provider.Name()
	m.ObserveRequest(name, s.mode(), metrics.OutcomeOK)
	m.AddFragments(name, s.fragments)

	completedAt := time.Now()
	s.engine.logger.Info("relay complete",
		"conversation_id", s.conv.ID,
		"provider", name,
		"mode", s.mode(),
		"fragments", s.fragments,
		"duration", completedAt.Sub(s.startedAt),
	)

	events := s.engine.config.Events
	if events == nil {
		return
	}

	events.Enqueue(worker.Job{Event: &eventstream.TurnPersistedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTurnPersisted,
		EventID:       uuid.NewString(),
		EmittedAt:     completedAt.UTC(),
		Source: eventstream.EventSource{
			Provider:     name,
			Model:        s.upstream.Payload.Model,
			CredentialID: s.credential.Credential.ID,
			Shared:       s.credential.Credential.Shared,
		},
		RequestMeta: eventstream.TurnRequestMeta{
			StartedAt:   s.startedAt.UTC(),
			CompletedAt: completedAt.UTC(),
			DurationMs:  completedAt.Sub(s.startedAt).Milliseconds(),
			Streaming:   s.Streaming(),
			Emulated:    s.Streaming() && !s.eventStream,
			HTTPStatus:  s.resp.StatusCode,
		},
		Conversation: eventstream.ConversationMeta{
			ConversationID:   s.conv.ID,
			OwnerID:          s.req.CallerID,
			UserTurnID:       s.userTurnID,
			AssistantTurnIDs: ids,
		},
		Replies: replies,
	}})
}

func (s *Session) mode() string {
	switch {
	case !s.Streaming():
		return metrics.ModeBuffered
	case s.resp != nil && !s.eventStream:
		return metrics.ModeEmulated
	default:
		return metrics.ModeStream
	}
}
