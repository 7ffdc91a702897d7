package mail

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"strings"
	"time"

	"github.com/jsamuelsen/callrelay/internal/ports"
)

// base64LineLen is the line length of base64 bodies (RFC 2045).
const base64LineLen = 76

var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

// Compose writes env as a multipart/mixed message: a quoted-printable text
// part followed by the attachment, if any, in base64.
func Compose(w io.Writer, env ports.Envelope) error {
	bw := bufio.NewWriter(w)
	mw := multipart.NewWriter(bw)

	date := env.Date
	if date.IsZero() {
		date = time.Now()
	}

	headers := [][2]string{
		{"From", env.From},
		{"To", env.To},
		{"Subject", mime.QEncoding.Encode("utf-8", env.Subject)},
		{"Date", date.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()})},
	}

	for _, h := range headers {
		if _, err := fmt.Fprintf(bw, "%s: %s\r\n", h[0], headerSanitizer.Replace(h[1])); err != nil {
			return err
		}
	}

	if _, err := bw.WriteString("\r\n"); err != nil {
		return err
	}

	if err := writeText(mw, env.Body); err != nil {
		return fmt.Errorf("writing text part: %w", err)
	}

	if env.Attachment != nil {
		if err := writeAttachment(mw, env.Attachment); err != nil {
			return fmt.Errorf("writing attachment %q: %w", env.Attachment.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}

	return bw.Flush()
}

func writeText(mw *multipart.Writer, body string) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Disposition":       {"inline"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return err
	}

	qp := quotedprintable.NewWriter(part)
	if _, err := io.WriteString(qp, body); err != nil {
		return err
	}

	return qp.Close()
}

func writeAttachment(mw *multipart.Writer, a *ports.Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}

	lw := &lineWriter{w: part, max: base64LineLen}
	enc := base64.NewEncoder(base64.StdEncoding, lw)

	if _, err := enc.Write(a.Data); err != nil {
		return err
	}

	if err := enc.Close(); err != nil {
		return err
	}

	return lw.finish()
}

// lineWriter breaks its input into CRLF-terminated lines of at most max bytes.
type lineWriter struct {
	w   io.Writer
	max int
	n   int
}

func (l *lineWriter) Write(p []byte) (int, error) {
	written := 0

	for len(p) > 0 {
		chunk := min(l.max-l.n, len(p))

		if _, err := l.w.Write(p[:chunk]); err != nil {
			return written, err
		}

		written += chunk
		l.n += chunk
		p = p[chunk:]

		if l.n == l.max {
			if _, err := io.WriteString(l.w, "\r\n"); err != nil {
				return written, err
			}

			l.n = 0
		}
	}

	return written, nil
}

// finish terminates a partial last line.
func (l *lineWriter) finish() error {
	if l.n == 0 {
		return nil
	}

	l.n = 0
	_, err := io.WriteString(l.w, "\r\n")

	return err
}
