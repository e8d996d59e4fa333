package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"unicode/utf8"
)

// Role values used in upstream turn lists.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single turn in an upstream turn list.
type Message struct {
	Role    string  `json:"role"`    // "system", "user", "assistant"
	Content Content `json:"content"` // plain text or multi-part
}

// Content is either plain text or an ordered list of parts. It marshals to a
// JSON string in the first case and to an array of parts in the second, which
// is the shape chat-completions providers accept for vision requests.
type Content struct {
	Text  string
	Parts []ContentPart
}

// ContentPart is one element of multi-part content.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image either by network URL or by an embedded
// data URI.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role:    role,
		Content: Content{Text: text},
	}
}

// NewMultipartMessage creates a message whose content is the given parts.
func NewMultipartMessage(role string, parts ...ContentPart) Message {
	if parts == nil {
		parts = []ContentPart{}
	}
	return Message{
		Role:    role,
		Content: Content{Parts: parts},
	}
}

// TextPart returns a text content part.
func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

// ImagePart returns an image content part. An empty detail is omitted.
func ImagePart(url, detail string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: url, Detail: detail}}
}

// GetText returns the text of the message. For multi-part content the text
// parts are concatenated.
func (m *Message) GetText() string {
	if !m.Content.IsMultipart() {
		return m.Content.Text
	}

	var result string
	for _, part := range m.Content.Parts {
		if part.Type == "text" {
			result += part.Text
		}
	}
	return result
}

// IsMultipart reports whether the content is a list of parts.
func (c Content) IsMultipart() bool {
	return c.Parts != nil
}

// Size is the length used for context budgeting: the character count of
// plain text, or the length of the serialized form of multi-part content.
func (c Content) Size() int {
	if !c.IsMultipart() {
		return utf8.RuneCountInString(c.Text)
	}

	raw, err := marshalNoEscape(c.Parts)
	if err != nil {
		return 0
	}
	return utf8.RuneCount(raw)
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsMultipart() {
		return marshalNoEscape(c.Parts)
	}
	return marshalNoEscape(c.Text)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Content{}
		return nil
	case data[0] == '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*c = Content{Text: text}
		return nil
	case data[0] == '[':
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		if parts == nil {
			parts = []ContentPart{}
		}
		*c = Content{Parts: parts}
		return nil
	default:
		return errors.New("content must be a string or an array of parts")
	}
}

// marshalNoEscape encodes v without HTML escaping so sizes and wire bytes
// match the text the caller wrote.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
