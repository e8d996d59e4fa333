package relay

import (
	"log/slog"
	"net/http"

	"github.com/papercomputeco/chatrelay/pkg/assembler"
	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/upstream"
	"github.com/papercomputeco/chatrelay/relay/header"
	"github.com/papercomputeco/chatrelay/relay/worker"
)

// Config is the relay engine configuration.
type Config struct {
	// Store holds conversations and their turns.
	Store storage.ConversationStore

	// Resolver selects the upstream credential.
	Resolver *credential.Resolver

	// Assembler builds the upstream turn list.
	Assembler *assembler.Assembler

	// Builder builds the upstream payload and endpoint.
	Builder *upstream.Builder

	// Events publishes a turn event after each persisted reply. Optional.
	Events *worker.Pool

	// Metrics records relay activity. Optional.
	Metrics *metrics.Metrics

	// HTTPClient performs upstream calls. Defaults to a client with a
	// 5 minute timeout.
	HTTPClient *http.Client

	// Headers sets upstream request headers. Defaults to a Handler with the
	// default identity header.
	Headers *header.Handler

	// DefaultProvider names the provider used when a request names none.
	// Empty falls back to provider.Default.
	DefaultProvider string

	// Vision reports whether multimodal sends are enabled. It is consulted
	// on every send so the setting can change at runtime. Nil means
	// disabled.
	Vision func() bool

	Logger *slog.Logger
}
