package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/relay"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind string) int {
	switch kind {
	case relay.KindInvalidRequest,
		relay.KindNoCredentialAvailable,
		relay.KindNoSharedCredential,
		relay.KindCredentialNotFound:
		return fiber.StatusBadRequest
	case relay.KindNotFound:
		return fiber.StatusNotFound
	case relay.KindUpstream:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError reports err to the caller as an llm.ErrorResponse. Internal
// errors are logged and their detail withheld.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	kind := relay.Kind(err)
	if storage.IsNotFound(err) {
		kind = relay.KindNotFound
	}

	resp := llm.ErrorResponse{Error: kind, Detail: err.Error()}

	var upstreamErr *relay.UpstreamError
	if errors.As(err, &upstreamErr) {
		resp.UpstreamStatus = upstreamErr.Status
		resp.UpstreamBody = upstreamErr.Body
	}

	status := statusFor(kind)
	if status == fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		resp.Detail = "internal error"
	}

	return c.Status(status).JSON(resp)
}

func badRequest(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
		Error:  relay.KindInvalidRequest,
		Detail: detail,
	})
}

func notFound(c *fiber.Ctx, detail string) error {
	return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{
		Error:  relay.KindNotFound,
		Detail: detail,
	})
}
