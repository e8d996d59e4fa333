// Package api provides the HTTP API of the chat relay: conversations, the
// send relay, uploads and credentials.
package api

import (
	"github.com/papercomputeco/chatrelay/pkg/metrics"
	"github.com/papercomputeco/chatrelay/pkg/uploads"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// IdentityHeader names the request header carrying the caller identity.
	// Defaults to X-Chatrelay-User.
	IdentityHeader string

	// Uploads stores attachment files. Upload routes are not registered
	// when nil.
	Uploads *uploads.Store

	// Metrics is exposed on /metrics when set.
	Metrics *metrics.Metrics
}
