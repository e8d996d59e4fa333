package storage

import "time"

// Conversation is a titled chat owned by a single identity.
type Conversation struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is one persisted message of a conversation.
type Turn struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	OwnerID        string    `json:"owner_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Credential is an upstream provider secret. An empty OwnerID marks a
// globally shared credential without an owner.
type Credential struct {
	ID       int64  `json:"id"`
	OwnerID  string `json:"owner_id,omitempty"`
	Provider string `json:"provider"`
	Label    string `json:"label"`

	// Secret is never serialized.
	Secret string `json:"-"`

	// Config is the raw JSON configuration text ({"base_url":..,"model":..}).
	Config string `json:"config,omitempty"`

	Shared    bool      `json:"shared"`
	CreatedAt time.Time `json:"created_at"`
}

// VisibleTo reports whether callerID may select the credential.
func (c *Credential) VisibleTo(callerID string) bool {
	return c.Shared || (c.OwnerID != "" && c.OwnerID == callerID)
}
