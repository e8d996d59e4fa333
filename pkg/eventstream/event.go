// Package eventstream defines the events emitted after relay results are
// persisted and the publisher contract their transports implement.
package eventstream

import (
	"time"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnPersisted is emitted after an assistant reply is persisted.
	EventTypeTurnPersisted = "chatrelay.turn.persisted"
)

// TurnPersistedEvent is a transport-neutral event payload for a persisted
// assistant reply.
type TurnPersistedEvent struct {
	SchemaVersion int              `json:"schema_version"`
	EventType     string           `json:"event_type"`
	EventID       string           `json:"event_id"`
	EmittedAt     time.Time        `json:"emitted_at"`
	Source        EventSource      `json:"source"`
	RequestMeta   TurnRequestMeta  `json:"request_meta"`
	Conversation  ConversationMeta `json:"conversation"`

	// Replies holds the persisted assistant texts, one per choice.
	Replies []string `json:"replies"`
}

// EventSource identifies which upstream produced the reply.
type EventSource struct {
	Provider     string `json:"provider"`
	Model        string `json:"model,omitempty"`
	CredentialID int64  `json:"credential_id,omitempty"`
	Shared       bool   `json:"shared,omitempty"`
}

// TurnRequestMeta captures request lifecycle metadata for the event.
type TurnRequestMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	Streaming   bool      `json:"streaming"`

	// Emulated marks a streamed reply produced from a single JSON upstream
	// response.
	Emulated   bool `json:"emulated,omitempty"`
	HTTPStatus int  `json:"http_status"`
}

// ConversationMeta locates the persisted turns.
type ConversationMeta struct {
	ConversationID   int64   `json:"conversation_id"`
	OwnerID          string  `json:"owner_id"`
	UserTurnID       int64   `json:"user_turn_id"`
	AssistantTurnIDs []int64 `json:"assistant_turn_ids"`
}
