package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay"
	"github.com/papercomputeco/chatrelay/relay/header"
)

const callerKey = "caller"

// Server is the API server for conversations and the send relay.
type Server struct {
	config  Config
	storer  storage.Driver
	engine  *relay.Engine
	headers *header.Handler
	logger  *slog.Logger
	app     *fiber.App
}

// NewServer creates a new API server.
// The storer is injected to allow sharing with the relay engine and the MCP
// server.
func NewServer(config Config, storer storage.Driver, engine *relay.Engine, logger *slog.Logger) (*Server, error) {
	if storer == nil {
		return nil, errors.New("storage driver is required")
	}
	if engine == nil {
		return nil, errors.New("relay engine is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024 * 1024,
	})

	s := &Server{
		config:  config,
		storer:  storer,
		engine:  engine,
		headers: header.NewHandler(config.IdentityHeader),
		logger:  logger,
		app:     app,
	}

	app.Get("/ping", s.handlePing)
	if config.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(config.Metrics.Handler()))
	}
	if config.Uploads != nil {
		app.Get("/uploads/:name", s.handleUploadFile)
	}

	v1 := app.Group("/v1", s.requireIdentity)

	v1.Get("/conversations", s.handleListConversations)
	v1.Post("/conversations", s.handleCreateConversation)
	v1.Patch("/conversations/:id", s.handleRenameConversation)
	v1.Delete("/conversations/:id", s.handleDeleteConversation)
	v1.Get("/conversations/:id/messages", s.handleListMessages)
	v1.Post("/conversations/:id/send", s.handleSend)

	if config.Uploads != nil {
		v1.Post("/uploads", s.handleUpload)
		v1.Get("/uploads", s.handleListUploads)
	}

	v1.Get("/credentials", s.handleListCredentials)
	v1.Post("/credentials", s.handleCreateCredential)
	v1.Delete("/credentials/:id", s.handleDeleteCredential)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// requireIdentity rejects requests without a caller identity.
func (s *Server) requireIdentity(c *fiber.Ctx) error {
	caller := s.headers.CallerID(c)
	if caller == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{
			Error:  "unauthorized",
			Detail: s.headers.IdentityHeader() + " header required",
		})
	}
	c.Locals(callerKey, caller)
	return c.Next()
}

func callerID(c *fiber.Ctx) string {
	caller, _ := c.Locals(callerKey).(string)
	return caller
}
