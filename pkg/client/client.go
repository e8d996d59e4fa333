// Package client is a Go client for the chatrelay API server, used by the
// chat and keys commands.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/sse"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay"
)

// DefaultIdentityHeader is the header the API server reads the caller from
// unless configured otherwise.
const DefaultIdentityHeader = "X-Chatrelay-User"

// Config configures a Client.
type Config struct {
	// Target is the API server URL (e.g. "http://localhost:8080").
	Target string

	// Identity is sent as the caller identity on every request.
	Identity string

	// IdentityHeader defaults to DefaultIdentityHeader.
	IdentityHeader string

	// HTTPClient defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client
}

// Client talks to a chatrelay API server.
type Client struct {
	target     string
	identity   string
	header     string
	httpClient *http.Client
}

// APIError is a non-2xx response from the API server.
type APIError struct {
	Status   int
	Response llm.ErrorResponse
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("chatrelay returned status %d: %s", e.Status, e.Response.Error)
	if e.Response.Detail != "" {
		msg += ": " + e.Response.Detail
	}
	if e.Response.UpstreamStatus != 0 {
		msg += fmt.Sprintf(" (upstream status %d)", e.Response.UpstreamStatus)
	}
	return msg
}

// New creates a Client.
func New(c Config) (*Client, error) {
	target := strings.TrimRight(strings.TrimSpace(c.Target), "/")
	if target == "" {
		return nil, errors.New("api target is required")
	}
	if strings.TrimSpace(c.Identity) == "" {
		return nil, errors.New("identity is required")
	}

	header := c.IdentityHeader
	if header == "" {
		header = DefaultIdentityHeader
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			// Replies can take minutes to finish streaming.
			Timeout: 5 * time.Minute,
		}
	}

	return &Client{
		target:     target,
		identity:   c.Identity,
		header:     header,
		httpClient: httpClient,
	}, nil
}

// ListConversations returns the caller's conversations, most recently
// updated first.
func (c *Client) ListConversations(ctx context.Context) ([]*storage.Conversation, error) {
	var resp api.ConversationsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

// CreateConversation starts a conversation. An empty title lets the server
// pick its default.
func (c *Client) CreateConversation(ctx context.Context, title string) (*storage.Conversation, error) {
	var conv storage.Conversation
	body := map[string]string{"title": title}
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// Messages returns the transcript of a conversation in order.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]*storage.Turn, error) {
	var resp api.MessagesResponse
	path := "/v1/conversations/" + strconv.FormatInt(conversationID, 10) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Send posts a user turn and returns the assistant reply. When
// req.Params.Stream is set, onDelta is called with every fragment as it
// arrives; otherwise it is called once with the whole reply.
func (c *Client) Send(ctx context.Context, conversationID int64, req api.SendRequest, onDelta func(string)) (string, error) {
	if onDelta == nil {
		onDelta = func(string) {}
	}

	path := "/v1/conversations/" + strconv.FormatInt(conversationID, 10) + "/send"
	resp, err := c.request(ctx, http.MethodPost, path, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		var result relay.Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return "", fmt.Errorf("decoding reply: %w", err)
		}
		onDelta(result.Reply)
		return result.Reply, nil
	}

	return readStream(resp.Body, onDelta)
}

func readStream(body io.Reader, onDelta func(string)) (string, error) {
	var reply strings.Builder
	reader := sse.NewReader(body)

	for {
		ev, err := reader.Next()
		if err != nil {
			return reply.String(), fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return reply.String(), errors.New("stream ended before the reply was complete")
		}

		switch ev.Type {
		case "done":
			return reply.String(), nil

		case "error":
			var apiErr llm.ErrorResponse
			if err := json.Unmarshal([]byte(ev.Data), &apiErr); err != nil {
				return reply.String(), fmt.Errorf("decoding stream error: %w", err)
			}
			return reply.String(), &APIError{Status: http.StatusOK, Response: apiErr}

		default:
			var delta struct {
				Delta string `json:"delta"`
			}
			if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
				return reply.String(), fmt.Errorf("decoding fragment: %w", err)
			}
			reply.WriteString(delta.Delta)
			onDelta(delta.Delta)
		}
	}
}

// ListCredentials returns the caller's credentials and the shared pool.
// Secrets are never returned.
func (c *Client) ListCredentials(ctx context.Context) ([]*storage.Credential, error) {
	var resp api.CredentialsResponse
	if err := c.do(ctx, http.MethodGet, "/v1/credentials", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Credentials, nil
}

// CreateCredential stores a provider credential.
func (c *Client) CreateCredential(ctx context.Context, req api.CreateCredentialRequest) (*storage.Credential, error) {
	var cred storage.Credential
	if err := c.do(ctx, http.MethodPost, "/v1/credentials", req, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

// DeleteCredential removes a credential the caller owns.
func (c *Client) DeleteCredential(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/v1/credentials/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.target+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(c.header, c.identity)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request to %s: %w", c.target, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
		apiErr.Response = llm.ErrorResponse{
			Error:  http.StatusText(resp.StatusCode),
			Detail: strings.TrimSpace(string(body)),
		}
	}
	return apiErr
}
