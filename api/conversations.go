package api

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

const (
	defaultTitle   = "New chat"
	maxTitleLength = 100
)

// ConversationsResponse lists a caller's conversations.
type ConversationsResponse struct {
	Conversations []*storage.Conversation `json:"conversations"`
}

// MessagesResponse is the transcript of a conversation.
type MessagesResponse struct {
	ConversationID int64           `json:"conversation_id"`
	Messages       []*storage.Turn `json:"messages"`
}

type titleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.storer.ListConversations(c.Context(), callerID(c))
	if err != nil {
		return s.writeError(c, err)
	}
	if convs == nil {
		convs = []*storage.Conversation{}
	}
	return c.JSON(ConversationsResponse{Conversations: convs})
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req titleRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body")
		}
	}

	title := normalizeTitle(req.Title)
	if title == "" {
		title = defaultTitle
	}

	conv, err := s.storer.CreateConversation(c.Context(), callerID(c), title)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) handleRenameConversation(c *fiber.Ctx) error {
	conv, err := s.ownedConversation(c)
	if err != nil || conv == nil {
		return err
	}

	var req titleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	title := normalizeTitle(req.Title)
	if title == "" {
		return badRequest(c, "title required")
	}

	if err := s.storer.RenameConversation(c.Context(), conv.ID, title); err != nil {
		return s.writeError(c, err)
	}

	updated, err := s.storer.GetConversation(c.Context(), conv.ID)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(updated)
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	conv, err := s.ownedConversation(c)
	if err != nil || conv == nil {
		return err
	}

	if err := s.storer.DeleteConversation(c.Context(), conv.ID); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	conv, err := s.ownedConversation(c)
	if err != nil || conv == nil {
		return err
	}

	turns, err := s.storer.ListTurns(c.Context(), conv.ID)
	if err != nil {
		return s.writeError(c, err)
	}
	if turns == nil {
		turns = []*storage.Turn{}
	}
	return c.JSON(MessagesResponse{ConversationID: conv.ID, Messages: turns})
}

// ownedConversation loads the :id conversation for the caller. When it
// returns a nil conversation the response has already been written.
func (s *Server) ownedConversation(c *fiber.Ctx) (*storage.Conversation, error) {
	id, err := pathID(c)
	if err != nil {
		return nil, badRequest(c, "invalid conversation id")
	}

	conv, err := s.storer.GetConversation(c.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, notFound(c, "conversation not found")
		}
		return nil, s.writeError(c, err)
	}
	if conv.OwnerID != callerID(c) {
		return nil, notFound(c, "conversation not found")
	}
	return conv, nil
}

func pathID(c *fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// normalizeTitle trims the title and caps it at maxTitleLength runes.
func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= maxTitleLength {
		return title
	}
	return strings.TrimSpace(string([]rune(title)[:maxTitleLength]))
}
