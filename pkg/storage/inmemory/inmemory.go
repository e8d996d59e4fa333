// Package inmemory provides a map-backed storage driver for tests and
// single-process development runs.
package inmemory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

// Driver implements storage.Driver using in-memory maps.
type Driver struct {
	// mu is a read write sync mutex guarding every map and counter below
	mu sync.RWMutex

	conversations map[int64]*storage.Conversation
	turns         map[int64][]*storage.Turn
	credentials   map[int64]*storage.Credential

	nextConversationID int64
	nextTurnID         int64
	nextCredentialID   int64

	now func() time.Time
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[int64]*storage.Conversation),
		turns:         make(map[int64][]*storage.Turn),
		credentials:   make(map[int64]*storage.Credential),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *Driver) CreateConversation(_ context.Context, ownerID, title string) (*storage.Conversation, error) {
	if ownerID == "" {
		return nil, errors.New("conversation owner is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextConversationID++
	now := s.now()
	conv := &storage.Conversation{
		ID:        s.nextConversationID,
		OwnerID:   ownerID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.conversations[conv.ID] = conv

	clone := *conv
	return &clone, nil
}

func (s *Driver) GetConversation(_ context.Context, id int64) (*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "conversation", ID: id}
	}

	clone := *conv
	return &clone, nil
}

func (s *Driver) ListConversations(_ context.Context, ownerID string) ([]*storage.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.OwnerID == ownerID {
			clone := *conv
			result = append(result, &clone)
		}
	}

	slices.SortFunc(result, func(a, b *storage.Conversation) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	return result, nil
}

func (s *Driver) RenameConversation(_ context.Context, id int64, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}

	conv.Title = title
	conv.UpdatedAt = s.now()
	return nil
}

func (s *Driver) DeleteConversation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[id]; !ok {
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}

	delete(s.conversations, id)
	delete(s.turns, id)
	return nil
}

func (s *Driver) AppendTurn(_ context.Context, conversationID int64, ownerID, role, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.conversations[conversationID]; !ok {
		return 0, storage.NotFoundError{Kind: "conversation", ID: conversationID}
	}

	s.nextTurnID++
	turn := &storage.Turn{
		ID:             s.nextTurnID,
		ConversationID: conversationID,
		OwnerID:        ownerID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now(),
	}
	s.turns[conversationID] = append(s.turns[conversationID], turn)

	return turn.ID, nil
}

func (s *Driver) ListTurns(_ context.Context, conversationID int64) ([]*storage.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[conversationID]
	result := make([]*storage.Turn, 0, len(turns))
	for _, t := range turns {
		clone := *t
		result = append(result, &clone)
	}

	return result, nil
}

func (s *Driver) TouchConversation(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return storage.NotFoundError{Kind: "conversation", ID: id}
	}

	conv.UpdatedAt = s.now()
	return nil
}

func (s *Driver) CreateCredential(_ context.Context, c *storage.Credential) (int64, error) {
	if c == nil {
		return 0, errors.New("cannot store nil credential")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextCredentialID++
	c.ID = s.nextCredentialID
	c.CreatedAt = s.now()

	clone := *c
	s.credentials[c.ID] = &clone

	return c.ID, nil
}

func (s *Driver) GetCredential(_ context.Context, id int64) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.credentials[id]
	if !ok {
		return nil, storage.NotFoundError{Kind: "credential", ID: id}
	}

	clone := *c
	return &clone, nil
}

func (s *Driver) LatestSharedCredential(_ context.Context, provider string) (*storage.Credential, error) {
	return s.latest(func(c *storage.Credential) bool {
		return c.Shared && c.Provider == provider
	})
}

func (s *Driver) LatestOwnedCredential(_ context.Context, ownerID, provider string) (*storage.Credential, error) {
	return s.latest(func(c *storage.Credential) bool {
		return ownerID != "" && c.OwnerID == ownerID && c.Provider == provider
	})
}

func (s *Driver) ListCredentials(_ context.Context, ownerID string) ([]*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*storage.Credential, 0)
	for _, c := range s.credentials {
		if c.Shared || (ownerID != "" && c.OwnerID == ownerID) {
			clone := *c
			result = append(result, &clone)
		}
	}
	slices.SortFunc(result, newestFirst)

	return result, nil
}

func (s *Driver) DeleteCredential(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.credentials[id]; !ok {
		return storage.NotFoundError{Kind: "credential", ID: id}
	}

	delete(s.credentials, id)
	return nil
}

// Close is a no-op for the in-memory driver.
func (s *Driver) Close() error {
	return nil
}

func (s *Driver) latest(match func(*storage.Credential) bool) (*storage.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *storage.Credential
	for _, c := range s.credentials {
		if !match(c) {
			continue
		}
		if best == nil || newestFirst(c, best) < 0 {
			best = c
		}
	}

	if best == nil {
		return nil, storage.NotFoundError{Kind: "credential"}
	}

	clone := *best
	return &clone, nil
}

func newestFirst(a, b *storage.Credential) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
