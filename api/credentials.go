package api

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/credential"
	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/llm/provider"
	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const maxLabelLength = 100

// CredentialsResponse lists the credentials visible to the caller. Secrets
// are never included.
type CredentialsResponse struct {
	Credentials []*storage.Credential `json:"credentials"`
}

// CreateCredentialRequest is the body of POST /v1/credentials. Config is
// either a JSON object or a string holding one.
type CreateCredentialRequest struct {
	Provider string          `json:"provider"`
	Label    string          `json:"label"`
	Secret   string          `json:"secret"`
	Shared   bool            `json:"shared"`
	Config   json.RawMessage `json:"config,omitempty"`
}

func (s *Server) handleListCredentials(c *fiber.Ctx) error {
	creds, err := s.storer.ListCredentials(c.Context(), callerID(c))
	if err != nil {
		return s.writeError(c, err)
	}
	if creds == nil {
		creds = []*storage.Credential{}
	}
	return c.JSON(CredentialsResponse{Credentials: creds})
}

func (s *Server) handleCreateCredential(c *fiber.Ctx) error {
	var req CreateCredentialRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	if strings.TrimSpace(req.Secret) == "" {
		return badRequest(c, "secret required")
	}

	name := provider.Normalize(req.Provider)
	if !provider.IsSupported(name) {
		return badRequest(c, "unknown provider "+name)
	}

	raw, err := configText(req.Config)
	if err != nil {
		return badRequest(c, "config must be a JSON object")
	}
	if _, err := credential.ParseConfig(raw); err != nil {
		return badRequest(c, err.Error())
	}

	label := strings.TrimSpace(req.Label)
	if r := []rune(label); len(r) > maxLabelLength {
		label = string(r[:maxLabelLength])
	}

	cred := &storage.Credential{
		OwnerID:  callerID(c),
		Provider: name,
		Label:    label,
		Secret:   strings.TrimSpace(req.Secret),
		Config:   raw,
		Shared:   req.Shared,
	}
	if _, err := s.storer.CreateCredential(c.Context(), cred); err != nil {
		return s.writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(cred)
}

func (s *Server) handleDeleteCredential(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return badRequest(c, "invalid credential id")
	}

	cred, err := s.storer.GetCredential(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return notFound(c, "credential not found")
		}
		return s.writeError(c, err)
	}
	if cred.OwnerID != callerID(c) {
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{
			Error:  "forbidden",
			Detail: "only the owner may delete a credential",
		})
	}

	if err := s.storer.DeleteCredential(c.Context(), id); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// configText normalizes the config field to its stored JSON text.
func configText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	return string(raw), nil
}
