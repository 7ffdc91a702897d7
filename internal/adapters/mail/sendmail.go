package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

// errTransferAgentExited stops the composer when sendmail quits before
// reading the whole message.
var errTransferAgentExited = errors.New("mail transfer agent exited")

// Sendmail hands composed messages to a sendmail-compatible program, which
// reads the recipients from the message headers.
type Sendmail struct {
	path    string
	args    []string
	timeout time.Duration
}

var _ ports.Mailer = (*Sendmail)(nil)

// NewSendmail creates a mailer running the program at path as "path -ti".
func NewSendmail(path string, timeout time.Duration) *Sendmail {
	return &Sendmail{path: path, args: []string{"-ti"}, timeout: timeout}
}

// Send composes env and streams it to the transfer agent's stdin.
func (s *Sendmail) Send(ctx context.Context, env ports.Envelope) error {
	if env.To == "" {
		return domain.NewValidationError("to", "no recipient")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	pr, pw := io.Pipe()
	stderr := &boundedBuffer{limit: maxStderr}

	cmd := exec.CommandContext(ctx, s.path, s.args...)
	cmd.Stdin = pr
	cmd.Stderr = stderr

	var g errgroup.Group

	g.Go(func() error {
		err := Compose(pw, env)
		pw.CloseWithError(err)

		if errors.Is(err, errTransferAgentExited) {
			return nil
		}

		return err
	})

	g.Go(func() error {
		err := cmd.Run()
		pr.CloseWithError(errTransferAgentExited)

		if err != nil {
			return runError(s.path, err, stderr)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("sending mail to %s: %w", env.To, err)
	}

	return nil
}
