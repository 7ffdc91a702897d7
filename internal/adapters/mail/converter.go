// Package mail delivers received faxes through the host's mail tooling: a
// TIFF to PDF converter and a sendmail-compatible transfer agent.
package mail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/jsamuelsen/callrelay/internal/ports"
)

// maxStderr caps how much of a failing program's stderr ends up in an error.
const maxStderr = 512

// Converter runs a tiff2pdf-compatible program that writes the PDF to stdout.
type Converter struct {
	path    string
	timeout time.Duration
}

var _ ports.ImageConverter = (*Converter)(nil)

// NewConverter creates a converter running the program at path. A zero
// timeout leaves the run bounded by the caller's context only.
func NewConverter(path string, timeout time.Duration) *Converter {
	return &Converter{path: path, timeout: timeout}
}

// ToPDF converts the TIFF at tiffPath.
func (c *Converter) ToPDF(ctx context.Context, tiffPath string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var stdout bytes.Buffer
	stderr := &boundedBuffer{limit: maxStderr}

	cmd := exec.CommandContext(ctx, c.path, tiffPath)
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return nil, runError(c.path, err, stderr)
	}

	return stdout.Bytes(), nil
}

func runError(program string, err error, stderr *boundedBuffer) error {
	msg := strings.TrimSpace(stderr.String())

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && msg != "" {
		return fmt.Errorf("%s exited with %d: %s", program, exitErr.ExitCode(), msg)
	}

	return fmt.Errorf("running %s: %w", program, err)
}

// boundedBuffer keeps the first limit bytes written to it and drops the rest.
type boundedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
