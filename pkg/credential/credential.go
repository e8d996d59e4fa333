// Package credential selects the upstream provider credential used for a
// relay request.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	// ErrNoCredentialAvailable is returned when the caller owns no
	// credential for the provider.
	ErrNoCredentialAvailable = errors.New("no credential available")

	// ErrNoSharedCredential is returned when the shared pool has no
	// credential for the provider.
	ErrNoSharedCredential = errors.New("no shared credential")

	// ErrCredentialNotFound is returned when an explicitly requested
	// credential does not exist or does not match the requested scope.
	ErrCredentialNotFound = errors.New("credential not found")
)

// Config is the typed provider configuration stored with a credential.
type Config struct {
	BaseURL string `json:"base_url,omitempty"`
	Model   string `json:"model,omitempty"`
}

// ParseConfig parses raw credential configuration text. Empty text yields
// an empty Config.
func ParseConfig(raw string) (Config, error) {
	var cfg Config
	if strings.TrimSpace(raw) == "" {
		return cfg, nil
	}

	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid credential config: %w", err)
	}

	return cfg, nil
}

// Options scope a resolution.
type Options struct {
	// PreferShared selects from the shared pool instead of the caller's
	// own credentials.
	PreferShared bool

	// ExplicitID names a specific credential. It must match the scope
	// selected by PreferShared.
	ExplicitID *int64
}

// Resolved is a usable credential and its parsed configuration.
type Resolved struct {
	Credential *storage.Credential
	Provider   string
	Config     Config
}

// Secret returns the upstream bearer secret.
func (r *Resolved) Secret() string {
	return r.Credential.Secret
}

// Resolver selects credentials from a credential store.
type Resolver struct {
	store  storage.CredentialStore
	logger *slog.Logger
}

// NewResolver creates a Resolver over store.
func NewResolver(store storage.CredentialStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{store: store, logger: log}
}

// Resolve picks one credential for callerID and providerName. An explicit
// id wins, then the newest shared credential when PreferShared is set,
// then the caller's newest own credential.
func (r *Resolver) Resolve(ctx context.Context, callerID, providerName string, opts Options) (*Resolved, error) {
	name := provider.Normalize(providerName)

	var (
		cred *storage.Credential
		err  error
	)

	switch {
	case opts.ExplicitID != nil:
		cred, err = r.explicit(ctx, callerID, name, *opts.ExplicitID, opts.PreferShared)
	case opts.PreferShared:
		cred, err = r.store.LatestSharedCredential(ctx, name)
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w for provider %q", ErrNoSharedCredential, name)
		}
	default:
		cred, err = r.store.LatestOwnedCredential(ctx, callerID, name)
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w for provider %q", ErrNoCredentialAvailable, name)
		}
	}
	if err != nil {
		return nil, err
	}

	cfg, err := ParseConfig(cred.Config)
	if err != nil {
		r.logger.Warn("ignoring credential config",
			"credential_id", cred.ID,
			"error", err,
		)
		cfg = Config{}
	}

	return &Resolved{
		Credential: cred,
		Provider:   name,
		Config:     cfg,
	}, nil
}

func (r *Resolver) explicit(ctx context.Context, callerID, providerName string, id int64, shared bool) (*storage.Credential, error) {
	cred, err := r.store.GetCredential(ctx, id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %d", ErrCredentialNotFound, id)
		}
		return nil, err
	}

	inScope := cred.OwnerID != "" && cred.OwnerID == callerID
	if shared {
		inScope = cred.Shared
	}

	if !inScope || cred.Provider != providerName {
		return nil, fmt.Errorf("%w: %d", ErrCredentialNotFound, id)
	}

	return cred, nil
}
