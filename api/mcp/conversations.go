package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/utils"
)

const previewLength = 80

var (
	listConversationsToolName    = "list_conversations"
	listConversationsDescription = "List the conversations owned by an identity, most recently updated first, with a preview of the latest turn."

	transcriptToolName    = "conversation_transcript"
	transcriptDescription = "Return every turn of a conversation in order. The owner identity must match the conversation owner."
)

// ListConversationsInput represents the input arguments for the list_conversations tool.
type ListConversationsInput struct {
	OwnerID string `json:"owner_id" jsonschema:"the identity whose conversations to list"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of conversations to return (default: 20)"`
}

// ConversationSummary is one listed conversation.
type ConversationSummary struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
	Preview   string    `json:"preview"`
}

// ListConversationsOutput represents the output of the list_conversations tool.
type ListConversationsOutput struct {
	OwnerID       string                `json:"owner_id"`
	Conversations []ConversationSummary `json:"conversations"`
	Count         int                   `json:"count"`
}

// TranscriptInput represents the input arguments for the conversation_transcript tool.
type TranscriptInput struct {
	OwnerID        string `json:"owner_id" jsonschema:"the identity owning the conversation"`
	ConversationID int64  `json:"conversation_id" jsonschema:"the conversation to read"`
}

// Turn represents a single turn in a conversation.
type Turn struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	Text string `json:"text"`
}

// TranscriptOutput represents the output of the conversation_transcript tool.
type TranscriptOutput struct {
	ConversationID int64  `json:"conversation_id"`
	Title          string `json:"title"`
	Turns          []Turn `json:"turns"`
	Count          int    `json:"count"`
}

func (s *Server) handleListConversations(ctx context.Context, _ *mcp.CallToolRequest, input ListConversationsInput) (*mcp.CallToolResult, ListConversationsOutput, error) {
	logger := s.config.Logger

	if input.OwnerID == "" {
		return toolError("owner_id is required"), ListConversationsOutput{}, nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	logger.Debug("MCP list conversations request",
		"owner_id", input.OwnerID,
		"limit", limit,
	)

	convs, err := s.config.Store.ListConversations(ctx, input.OwnerID)
	if err != nil {
		logger.Error("failed to list conversations", "error", err)
		return toolError(fmt.Sprintf("Failed to list conversations: %v", err)), ListConversationsOutput{}, nil
	}
	if len(convs) > limit {
		convs = convs[:limit]
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		turns, err := s.config.Store.ListTurns(ctx, conv.ID)
		if err != nil {
			logger.Warn("failed to list turns for conversation",
				"conversation_id", conv.ID,
				"error", err,
			)
			continue
		}
		summaries = append(summaries, summarize(conv, turns))
	}

	output := ListConversationsOutput{
		OwnerID:       input.OwnerID,
		Conversations: summaries,
		Count:         len(summaries),
	}
	return textResult(output), output, nil
}

func (s *Server) handleTranscript(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
	logger := s.config.Logger

	conv, err := s.config.Store.GetConversation(ctx, input.ConversationID)
	if err != nil || conv.OwnerID != input.OwnerID {
		if err != nil && !storage.IsNotFound(err) {
			logger.Error("failed to load conversation", "error", err)
		}
		return toolError(fmt.Sprintf("Conversation %d not found", input.ConversationID)), TranscriptOutput{}, nil
	}

	turns, err := s.config.Store.ListTurns(ctx, conv.ID)
	if err != nil {
		logger.Error("failed to list turns", "error", err)
		return toolError(fmt.Sprintf("Failed to list turns: %v", err)), TranscriptOutput{}, nil
	}

	output := TranscriptOutput{
		ConversationID: conv.ID,
		Title:          conv.Title,
		Turns:          make([]Turn, 0, len(turns)),
		Count:          len(turns),
	}
	for _, t := range turns {
		output.Turns = append(output.Turns, Turn{ID: t.ID, Role: t.Role, Text: t.Content})
	}

	return textResult(output), output, nil
}

// summarize builds the listing entry of a conversation from its turns.
func summarize(conv *storage.Conversation, turns []*storage.Turn) ConversationSummary {
	preview := ""
	if len(turns) > 0 {
		preview = utils.Truncate(turns[len(turns)-1].Content, previewLength)
	}

	return ConversationSummary{
		ID:        conv.ID,
		Title:     conv.Title,
		UpdatedAt: conv.UpdatedAt,
		Turns:     len(turns),
		Preview:   preview,
	}
}

// textResult serializes structured output as JSON into a TextContent block
// for clients that do not read structured content.
func textResult(output any) *mcp.CallToolResult {
	jsonBytes, err := json.Marshal(output)
	if err != nil {
		return toolError(fmt.Sprintf("Failed to serialize results: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonBytes)},
		},
	}
}

func toolError(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}
