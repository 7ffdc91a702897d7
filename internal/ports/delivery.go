package ports

import (
	"context"
	"io"
	"time"
)

// FaxMail is everything needed to mail one received fax.
type FaxMail struct {
	From    string
	To      string
	Subject string
	Body    string

	// ImagePath is the staged TIFF written by the call leg.
	ImagePath string

	Pages      int
	ReceivedAt time.Time
}

// FaxDelivery turns a received fax into an email.
type FaxDelivery interface {
	Deliver(ctx context.Context, mail FaxMail) error
}

// ImageConverter converts a staged TIFF into a PDF document.
type ImageConverter interface {
	// ToPDF returns the converted document. An empty result with a nil error
	// means the converter ran but produced nothing.
	ToPDF(ctx context.Context, tiffPath string) ([]byte, error)
}

// Attachment is a single file attached to an outgoing mail.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Envelope is a text mail with at most one attachment.
type Envelope struct {
	From       string
	To         string
	Subject    string
	Body       string
	Date       time.Time
	Attachment *Attachment
}

// Mailer composes and hands off an envelope to the local mail transfer agent.
type Mailer interface {
	Send(ctx context.Context, env Envelope) error
}

// Staging owns the directory the engine writes received fax images into.
type Staging interface {
	// NewCapturePath returns a fresh, unused absolute file path.
	NewCapturePath() (string, error)

	// Open opens a staged file for reading.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a staged file. A missing file is not an error.
	Remove(path string) error
}
