// Package uploads stores caller attachments in a local directory and reads
// them back by reference.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RoutePrefix is the URL prefix under which stored files are served.
const RoutePrefix = "/uploads/"

// MaxFiles is the maximum number of files accepted in a single upload.
const MaxFiles = 12

// ErrNotImage is returned when a file's extension is not an accepted image
// type.
var ErrNotImage = errors.New("only image uploads are accepted")

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"webp": "image/webp",
	"gif":  "image/gif",
}

// File describes a stored upload.
type File struct {
	// Name is the original (sanitized) file name.
	Name string `json:"name"`

	// URL is the reference used to address the file, /uploads/<stored name>.
	URL string `json:"url"`

	Size int64 `json:"size"`
}

// Store is a directory of uploaded files.
type Store struct {
	dir string
	now func() time.Time
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating uploads dir: %w", err)
	}

	return &Store{dir: dir, now: time.Now}, nil
}

// Dir returns the root directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes r under a name unique to ownerID and returns the stored file.
func (s *Store) Save(ownerID, originalName string, r io.Reader) (*File, error) {
	safe := Sanitize(filepath.Base(originalName))
	if !IsImage(safe) {
		return nil, fmt.Errorf("%w: %s", ErrNotImage, safe)
	}

	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	name := fmt.Sprintf("%s%d-%s-%s", ownerPrefix(ownerID), s.now().UnixMilli(), random, safe)

	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating upload: %w", err)
	}
	defer f.Close()

	n, err := io.Copy(f, r)
	if err != nil {
		return nil, fmt.Errorf("writing upload: %w", err)
	}

	return &File{Name: safe, URL: RoutePrefix + name, Size: n}, nil
}

// List returns the files uploaded by ownerID, oldest first.
func (s *Store) List(ownerID string) ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading uploads dir: %w", err)
	}

	prefix := ownerPrefix(ownerID)
	files := make([]File, 0)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}

		info, err := e.Info()
		if err != nil {
			continue
		}

		files = append(files, File{
			Name: originalName(strings.TrimPrefix(e.Name(), prefix)),
			URL:  RoutePrefix + e.Name(),
			Size: info.Size(),
		})
	}

	slices.SortStableFunc(files, func(a, b File) int {
		return strings.Compare(a.URL, b.URL)
	})

	return files, nil
}

// Read returns the content of the file addressed by ref. Only the base name
// of ref is used, so references cannot escape the store directory.
func (s *Store) Read(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := filepath.Base(ref)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid upload reference %q", ref)
	}

	return os.ReadFile(filepath.Join(s.dir, name))
}

// Path returns the on-disk path for a stored file name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Sanitize replaces every character outside [a-zA-Z0-9._-] with '_'.
func Sanitize(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// IsImage reports whether name has an accepted image extension.
func IsImage(name string) bool {
	_, ok := mimeTypes[extension(name)]
	return ok
}

// MIMEType returns the image MIME type for name, or
// application/octet-stream for unknown extensions.
func MIMEType(name string) string {
	if t, ok := mimeTypes[extension(name)]; ok {
		return t
	}
	return "application/octet-stream"
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func ownerPrefix(ownerID string) string {
	return "uid-" + Sanitize(ownerID) + "-"
}

// originalName strips "<millis>-<random>-" from a stored name remainder.
func originalName(rest string) string {
	parts := strings.SplitN(rest, "-", 3)
	if len(parts) != 3 {
		return rest
	}
	if _, err := strconv.ParseInt(parts[0], 10, 64); err != nil {
		return rest
	}
	return parts[2]
}
