package api

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatrelay/pkg/uploads"
)

// UploadsResponse lists stored files.
type UploadsResponse struct {
	Files []uploads.File `json:"files"`
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest(c, "multipart form with files required")
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		return badRequest(c, "no files uploaded")
	}
	if len(headers) > uploads.MaxFiles {
		return badRequest(c, fmt.Sprintf("at most %d files per upload", uploads.MaxFiles))
	}
	for _, fh := range headers {
		if !uploads.IsImage(fh.Filename) {
			return badRequest(c, fmt.Sprintf("%s: only image files are allowed", uploads.Sanitize(fh.Filename)))
		}
	}

	caller := callerID(c)
	files := make([]uploads.File, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			return s.writeError(c, fmt.Errorf("opening upload: %w", err))
		}

		stored, err := s.config.Uploads.Save(caller, fh.Filename, src)
		src.Close()
		if err != nil {
			if errors.Is(err, uploads.ErrNotImage) {
				return badRequest(c, err.Error())
			}
			return s.writeError(c, err)
		}
		files = append(files, *stored)
	}

	s.logger.Debug("stored uploads",
		"caller", caller,
		"count", len(files),
	)

	return c.JSON(UploadsResponse{Files: files})
}

func (s *Server) handleListUploads(c *fiber.Ctx) error {
	files, err := s.config.Uploads.List(callerID(c))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(UploadsResponse{Files: files})
}

// handleUploadFile serves a stored upload by name.
func (s *Server) handleUploadFile(c *fiber.Ctx) error {
	path := s.config.Uploads.Path(c.Params("name"))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return notFound(c, "upload not found")
	}

	c.Set(fiber.HeaderContentType, uploads.MIMEType(path))
	return c.SendFile(path)
}
