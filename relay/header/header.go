// Package header provides header handling for the chatrelay relay.
//
// The relay sits between a caller and an upstream LLM provider like so:
//
//	Caller <--> Relay <--> Upstream LLM Provider
//
// and each leg gets its own headers: caller headers are never forwarded
// upstream, and upstream headers are never copied back to the caller.
package header

import (
	"mime"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// DefaultIdentityHeader carries the trusted caller identity set by whatever
// sits in front of the relay.
const DefaultIdentityHeader = "X-Chatrelay-User"

const eventStreamType = "text/event-stream"

// Handler manages headers on both legs of a relay call.
type Handler struct {
	identityHeader string
}

// NewHandler creates a new header Handler. An empty identityHeader selects
// DefaultIdentityHeader.
func NewHandler(identityHeader string) *Handler {
	if strings.TrimSpace(identityHeader) == "" {
		identityHeader = DefaultIdentityHeader
	}
	return &Handler{identityHeader: identityHeader}
}

// IdentityHeader returns the name of the caller identity header.
func (h *Handler) IdentityHeader() string {
	return h.identityHeader
}

// CallerID returns the trimmed caller identity of the request, or "" when
// the header is missing.
func (h *Handler) CallerID(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(h.identityHeader))
}

// SetUpstreamRequestHeaders sets the headers of an outgoing completion
// request. Only the bearer secret and content negotiation are sent.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request, secret string, streaming bool) {
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set("Authorization", "Bearer "+secret)
	}
	if streaming {
		req.Header.Set("Accept", eventStreamType)
	} else {
		req.Header.Set("Accept", "application/json")
	}
}

// SetStreamResponseHeaders prepares the caller response for an event
// stream. Buffering proxies in front of the relay are asked not to hold
// fragments back.
func (h *Handler) SetStreamResponseHeaders(c *fiber.Ctx) {
	c.Set(fiber.HeaderContentType, eventStreamType)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")
}

// IsEventStream reports whether the upstream response is an event stream.
func IsEventStream(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), eventStreamType)
	}
	return mediaType == eventStreamType
}
