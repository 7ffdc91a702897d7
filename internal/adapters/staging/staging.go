// Package staging manages the spool directory received fax images land in.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const stampLayout = "20060102150405"

// Dir is a staging directory on the local filesystem.
type Dir struct {
	root string
	now  func() time.Time
}

var _ ports.Staging = (*Dir)(nil)

// New creates the directory if needed and returns a Dir rooted at it.
func New(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving staging dir %q: %w", root, err)
	}

	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("creating staging dir %q: %w", abs, err)
	}

	return &Dir{root: abs, now: time.Now}, nil
}

// Root returns the absolute staging directory.
func (d *Dir) Root() string {
	return d.root
}

// NewCapturePath returns <root>/fax<timestamp>-<uuid>. Nothing is created.
func (d *Dir) NewCapturePath() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generating capture name: %w", err)
	}

	name := fmt.Sprintf("fax%s-%s", d.now().UTC().Format(stampLayout), id)

	return filepath.Join(d.root, name), nil
}

// Open opens a staged file. Paths outside the staging directory are refused.
func (d *Dir) Open(path string) (io.ReadCloser, error) {
	if err := d.contains(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}

	return f, nil
}

// Remove deletes a staged file. A missing file is not an error.
func (d *Dir) Remove(path string) error {
	if err := d.contains(path); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing staged file: %w", err)
	}

	return nil
}

func (d *Dir) contains(path string) error {
	rel, err := filepath.Rel(d.root, filepath.Clean(path))
	if err != nil || rel == "." || rel == ".." || filepath.IsAbs(rel) || len(rel) > 2 && rel[:3] == ".."+string(filepath.Separator) {
		return domain.NewValidationError("path", fmt.Sprintf("%q is outside the staging directory", path))
	}

	return nil
}
