// Package storage defines the persistence contracts of the relay: the
// conversation log and the credential records.
package storage

import (
	"context"
)

// ConversationStore is the durable, ordered log of turns per conversation.
// Every method is a single atomic operation; callers never get a
// transaction spanning two calls.
type ConversationStore interface {
	// CreateConversation stores a new conversation owned by ownerID.
	CreateConversation(ctx context.Context, ownerID, title string) (*Conversation, error)

	// GetConversation returns the conversation or a NotFoundError.
	GetConversation(ctx context.Context, id int64) (*Conversation, error)

	// ListConversations returns ownerID's conversations, most recently
	// updated first.
	ListConversations(ctx context.Context, ownerID string) ([]*Conversation, error)

	// RenameConversation sets the title and bumps updated_at.
	RenameConversation(ctx context.Context, id int64, title string) error

	// DeleteConversation removes the conversation and all of its turns.
	DeleteConversation(ctx context.Context, id int64) error

	// AppendTurn stores a turn at the end of the conversation and returns
	// its id. Ids are strictly increasing in insertion order.
	AppendTurn(ctx context.Context, conversationID int64, ownerID, role, content string) (int64, error)

	// ListTurns returns the conversation's turns in insertion order.
	ListTurns(ctx context.Context, conversationID int64) ([]*Turn, error)

	// TouchConversation sets updated_at to now.
	TouchConversation(ctx context.Context, id int64) error
}

// CredentialStore holds upstream provider credentials.
type CredentialStore interface {
	// CreateCredential stores c and returns the assigned id. ID and
	// CreatedAt on c are filled in.
	CreateCredential(ctx context.Context, c *Credential) (int64, error)

	// GetCredential returns the credential or a NotFoundError.
	GetCredential(ctx context.Context, id int64) (*Credential, error)

	// LatestSharedCredential returns the most recently created shared
	// credential for provider, or a NotFoundError.
	LatestSharedCredential(ctx context.Context, provider string) (*Credential, error)

	// LatestOwnedCredential returns the most recently created credential
	// owned by ownerID for provider, or a NotFoundError.
	LatestOwnedCredential(ctx context.Context, ownerID, provider string) (*Credential, error)

	// ListCredentials returns the credentials owned by ownerID plus every
	// shared credential, newest first.
	ListCredentials(ctx context.Context, ownerID string) ([]*Credential, error)

	// DeleteCredential removes the credential.
	DeleteCredential(ctx context.Context, id int64) error
}

// Driver is a complete storage backend.
type Driver interface {
	ConversationStore
	CredentialStore

	// Close closes the store and releases any resources.
	Close() error
}
