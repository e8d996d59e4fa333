// Package assembler builds the upstream turn list for a relay request from
// persisted history, the caller's new turn and its attachments.
package assembler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/chatrelay/pkg/llm"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/pkg/storage"
	"github.com/papercomputeco/chatrelay/pkg/uploads"
)

const defaultConcurrency = 4

// Loader reads the content of a stored attachment by reference.
type Loader interface {
	Read(ctx context.Context, ref string) ([]byte, error)
}

// AttachmentError describes an attachment that could not be loaded. It is
// logged and the attachment is skipped; it never fails a request.
type AttachmentError struct {
	Ref string
	Err error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("loading attachment %q: %v", e.Ref, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// NewTurn is the caller's message being sent.
type NewTurn struct {
	Text        string
	Attachments []string

	// Multimodal sends the attachments as image parts instead of folding
	// their references into the text.
	Multimodal bool

	// ImageQuality sets the detail level of image parts. Empty and "auto"
	// leave it unset.
	ImageQuality string
}

// DisplayText is the text persisted and replayed for the turn.
func (t NewTurn) DisplayText() string {
	return DisplayText(t.Text, t.Attachments)
}

// DisplayText appends an attachment note to text when attachments exist.
func DisplayText(text string, attachments []string) string {
	if len(attachments) == 0 {
		return text
	}
	return text + " [attachments: " + strings.Join(attachments, ", ") + "]"
}

// Config is the configuration for an Assembler.
type Config struct {
	// Loader resolves local attachment references.
	Loader Loader

	// Concurrency bounds parallel attachment loads. Defaults to 4.
	Concurrency int

	Logger *slog.Logger
}

// Assembler builds upstream turn lists.
type Assembler struct {
	loader      Loader
	concurrency int
	logger      *slog.Logger
}

// New creates an Assembler.
func New(c *Config) *Assembler {
	concurrency := c.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Assembler{
		loader:      c.Loader,
		concurrency: concurrency,
		logger:      log,
	}
}

// Assemble maps history to messages, appends turn as the final user message
// and trims the result to budget characters. History must not include turn.
func (a *Assembler) Assemble(ctx context.Context, history []*storage.Turn, turn NewTurn, budget int) ([]llm.Message, error) {
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		msgs = append(msgs, llm.NewTextMessage(t.Role, t.Content))
	}

	if turn.Multimodal && len(turn.Attachments) > 0 {
		parts, err := a.imageParts(ctx, turn)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, llm.NewMultipartMessage(llm.RoleUser,
			append([]llm.ContentPart{llm.TextPart(turn.Text)}, parts...)...))
	} else {
		msgs = append(msgs, llm.NewTextMessage(llm.RoleUser, turn.DisplayText()))
	}

	return Trim(msgs, budget), nil
}

// imageParts resolves every attachment to an image part, preserving
// attachment order and dropping the ones that fail to load.
func (a *Assembler) imageParts(ctx context.Context, turn NewTurn) ([]llm.ContentPart, error) {
	detail := ""
	if q := strings.TrimSpace(turn.ImageQuality); q != "" && q != "auto" {
		detail = q
	}

	urls := make([]string, len(turn.Attachments))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, ref := range turn.Attachments {
		g.Go(func() error {
			url, err := a.resolve(ctx, ref)
			if err != nil {
				a.logger.Warn("skipping attachment", "error", &AttachmentError{Ref: ref, Err: err})
				return nil
			}
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts := make([]llm.ContentPart, 0, len(urls))
	for _, url := range urls {
		if url != "" {
			parts = append(parts, llm.ImagePart(url, detail))
		}
	}

	return parts, nil
}

// resolve returns the image URL for ref. Data URIs and network URLs pass
// through; anything else is loaded and embedded as a base64 data URI.
func (a *Assembler) resolve(ctx context.Context, ref string) (string, error) {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") {
		return ref, nil
	}

	if a.loader == nil {
		return "", errors.New("no attachment loader configured")
	}

	data, err := a.loader.Read(ctx, ref)
	if err != nil {
		return "", err
	}

	return "data:" + uploads.MIMEType(ref) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Trim keeps the longest contiguous suffix of msgs whose summed size fits
// within budget. The last message is always kept. A budget of zero or less
// disables trimming.
func Trim(msgs []llm.Message, budget int) []llm.Message {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	total := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		size := msgs[i].Content.Size()
		if total+size > budget && start < len(msgs) {
			break
		}
		total += size
		start = i
	}

	return msgs[start:]
}
