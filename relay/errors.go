package relay

import (
	"errors"
	"fmt"

	"github.com/papercomputeco/chatrelay/pkg/credential"
)

var (
	// ErrInvalidRequest is wrapped by every validation failure.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConversationNotFound is returned when the conversation does not
	// exist or belongs to another caller.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrClientDisconnected ends a session whose caller went away. It is
	// never reported to the caller.
	ErrClientDisconnected = errors.New("client disconnected")
)

// UpstreamError is a failed upstream call: either a non-2xx response
// (Status and Body set) or a transport failure (Err set).
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream request failed: %v", e.Err)
	}
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Error kinds reported to callers.
const (
	KindInvalidRequest        = "invalid_request"
	KindNoCredentialAvailable = "no_credential_available"
	KindNoSharedCredential    = "no_shared_credential"
	KindCredentialNotFound    = "credential_not_found"
	KindNotFound              = "not_found"
	KindUpstream              = "upstream_error"
	KindClientDisconnected    = "client_disconnected"
	KindInternal              = "internal"
)

// Kind maps err to its machine-readable kind.
func Kind(err error) string {
	var upstreamErr *UpstreamError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, credential.ErrNoCredentialAvailable):
		return KindNoCredentialAvailable
	case errors.Is(err, credential.ErrNoSharedCredential):
		return KindNoSharedCredential
	case errors.Is(err, credential.ErrCredentialNotFound):
		return KindCredentialNotFound
	case errors.Is(err, ErrConversationNotFound):
		return KindNotFound
	case errors.As(err, &upstreamErr):
		return KindUpstream
	case errors.Is(err, ErrClientDisconnected):
		return KindClientDisconnected
	default:
		return KindInternal
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
