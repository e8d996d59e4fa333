// Package relay relays a conversation turn to an upstream LLM provider,
// streams the reply back to the caller and persists it once complete.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/assembler"
	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
	"github.com/papercomputeco/chatrelay/relay/header"
)

const maxErrorBody = 64 * 1024

// SendRequest is one caller message to relay.
type SendRequest struct {
	CallerID       string
	ConversationID int64
	Text           string
	Attachments    []string
	Params         llm.Params
}

// Engine relays send requests. It holds no per-request state and is safe
// for concurrent use.
type Engine struct {
	config     *Config
	httpClient *http.Client
	headers    *header.Handler
	logger     *slog.Logger
}

// New creates an Engine.
func New(c *Config) (*Engine, error) {
	if c.Store == nil {
		return nil, errors.New("conversation store is required")
	}
	if c.Resolver == nil {
		return nil, errors.New("credential resolver is required")
	}
	if c.Assembler == nil {
		return nil, errors.New("assembler is required")
	}
	if c.Builder == nil {
		return nil, errors.New("upstream builder is required")
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{
			// LLM requests can be slow, especially with reasoning models
			Timeout: 5 * time.Minute,
		}
	}

	headers := c.Headers
	if headers == nil {
		headers = header.NewHandler("")
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Engine{
		config:     c,
		httpClient: client,
		headers:    headers,
		logger:     log,
	}, nil
}

// Send opens a session and drives it to completion. Streaming requests
// deliver the reply through sink and return a nil Result; non-streaming
// requests return the Result and leave sink unused.
func (e *Engine) Send(ctx context.Context, req SendRequest, sink Sink) (*Result, error) {
	s, err := e.Open(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.Streaming() {
		return nil, s.Stream(ctx, sink)
	}
	return s.Complete(ctx)
}

// Open validates the request, appends the caller's turn and performs the
// upstream call. The returned session owns the open upstream response; ctx
// governs that response, so it must stay live until the session ends.
// Nothing is forwarded to the caller before Open returns, so every error
// can still be reported as a regular response.
func (e *Engine) Open(ctx context.Context, req SendRequest) (*Session, error) {
	startedAt := time.Now()

	if strings.TrimSpace(req.Params.Provider) == "" {
		req.Params.Provider = e.config.DefaultProvider
	}
	if err := validate(req); err != nil {
		return nil, err
	}
	providerName := provider.Normalize(req.Params.Provider)

	conv, err := e.config.Store.GetConversation(ctx, req.ConversationID)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrConversationNotFound, req.ConversationID)
		}
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv.OwnerID != req.CallerID {
		return nil, fmt.Errorf("%w: %d", ErrConversationNotFound, req.ConversationID)
	}

	resolved, err := e.config.Resolver.Resolve(ctx, req.CallerID, providerName, credentialOptions(req.Params))
	if err != nil {
		return nil, err
	}

	history, err := e.config.Store.ListTurns(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("listing turns: %w", err)
	}

	turn := assembler.NewTurn{
		Text:         req.Text,
		Attachments:  req.Attachments,
		Multimodal:   req.Params.SendImages && e.visionEnabled(),
		ImageQuality: req.Params.ImageQuality,
	}

	userTurnID, err := e.config.Store.AppendTurn(ctx, conv.ID, req.CallerID, llm.RoleUser, turn.DisplayText())
	if err != nil {
		return nil, fmt.Errorf("appending user turn: %w", err)
	}

	messages, err := e.config.Assembler.Assemble(ctx, history, turn, req.Params.ContextLength)
	if err != nil {
		return nil, fmt.Errorf("assembling context: %w", err)
	}

	upReq, err := e.config.Builder.Build(messages, req.Params, resolved.Config)
	if err != nil {
		if errors.Is(err, upstream.ErrNoMessages) || errors.Is(err, upstream.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, err
	}

	s := &Session{
		engine:     e,
		req:        req,
		conv:       conv,
		credential: resolved,
		upstream:   upReq,
		userTurnID: userTurnID,
		startedAt:  startedAt,
		state:      StateSending,
	}

	resp, err := e.do(ctx, s)
	if err != nil {
		s.state = StateCancelled
		if ctx.Err() != nil {
			e.config.Metrics.ObserveCancellation(providerName)
			e.config.Metrics.ObserveRequest(providerName, s.mode(), metrics.OutcomeCancelled)
			return nil, ErrClientDisconnected
		}
		e.config.Metrics.ObserveRequest(providerName, s.mode(), metrics.OutcomeUpstreamError)
		return nil, err
	}
	s.resp = resp
	s.eventStream = header.IsEventStream(resp)

	e.logger.Debug("upstream responded",
		"provider", providerName,
		"model", upReq.Payload.Model,
		"conversation_id", conv.ID,
		"event_stream", s.eventStream,
		"duration", time.Since(startedAt),
	)

	return s, nil
}

// do performs the upstream call and returns the open response for 2xx
// statuses.
func (e *Engine) do(ctx context.Context, s *Session) (*http.Response, error) {
	body, err := encodePayload(s.upstream.Payload)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.upstream.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	e.headers.SetUpstreamRequestHeaders(httpReq, s.credential.Secret(), s.upstream.Payload.Stream)

	e.logger.Debug("forwarding request to upstream",
		"url", s.upstream.Endpoint,
		"messages", len(s.upstream.Payload.Messages),
		"stream", s.upstream.Payload.Stream,
	)

	sentAt := time.Now()
	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		e.logger.Error("upstream request failed", "error", err)
		return nil, &UpstreamError{Err: err}
	}
	e.config.Metrics.ObserveUpstreamLatency(s.upstream.Provider.Name(), time.Since(sentAt))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e.logger.Error("upstream returned error",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return resp, nil
}

func (e *Engine) visionEnabled() bool {
	return e.config.Vision != nil && e.config.Vision()
}

func validate(req SendRequest) error {
	if strings.TrimSpace(req.CallerID) == "" {
		return invalid("caller identity required")
	}
	if strings.TrimSpace(req.Text) == "" {
		return invalid("text required")
	}
	if name := provider.Normalize(req.Params.Provider); !provider.IsSupported(name) {
		return invalid("unknown provider %q", name)
	}
	if req.Params.ContextLength < 0 {
		return invalid("context_length must not be negative")
	}
	if n := req.Params.N; n != nil && *n < 1 {
		return invalid("n must be at least 1")
	}
	return nil
}

func credentialOptions(p llm.Params) credential.Options {
	if p.UseShared {
		return credential.Options{PreferShared: true, ExplicitID: p.SharedCredentialID}
	}
	return credential.Options{ExplicitID: p.CredentialID}
}

func encodePayload(payload llm.ChatRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
