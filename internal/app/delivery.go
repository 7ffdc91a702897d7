package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeTIFF = "image/tiff"

	attachmentLayout = "fax2006-01-02_15-04-05"
)

// FaxMailerDeps are the collaborators of FaxMailer. All are required.
type FaxMailerDeps struct {
	Converter ports.ImageConverter
	Mailer    ports.Mailer
	Staging   ports.Staging
	Executor  *Executor
}

// FaxMailer implements ports.FaxDelivery: it converts the staged TIFF to PDF
// and mails it, attaching the TIFF itself when conversion yields nothing.
type FaxMailer struct {
	converter ports.ImageConverter
	mailer    ports.Mailer
	staging   ports.Staging
	exec      *Executor
}

var _ ports.FaxDelivery = (*FaxMailer)(nil)

// NewFaxMailer creates a FaxMailer. It panics on a missing collaborator.
func NewFaxMailer(deps FaxMailerDeps) *FaxMailer {
	if deps.Converter == nil || deps.Mailer == nil || deps.Staging == nil {
		panic("app: FaxMailer requires Converter, Mailer and Staging")
	}

	exec := deps.Executor
	if exec == nil {
		exec = NewExecutor(nil)
	}

	return &FaxMailer{
		converter: deps.Converter,
		mailer:    deps.Mailer,
		staging:   deps.Staging,
		exec:      exec,
	}
}

// conversion is the outcome of the PDF conversion, failure included.
type conversion struct {
	pdf []byte
	err error
}

// Deliver mails one received fax.
func (m *FaxMailer) Deliver(ctx context.Context, mail ports.FaxMail) error {
	_, err := Execute(ctx, m.exec, Operation[ports.FaxMail, conversion, *ports.Attachment, string]{
		Name:     "fax.deliver",
		Validate: validateFaxMail,
		Perform:  m.convert,
		Verify:   m.attachment,
		Archive:  m.send,
		Respond: func(_ context.Context, _ ports.FaxMail, a *ports.Attachment) (string, error) {
			return a.Name, nil
		},
	}, mail)

	return err
}

func validateFaxMail(_ context.Context, mail ports.FaxMail) error {
	switch {
	case mail.To == "":
		return domain.NewValidationError("to", "delivery address is empty")
	case mail.From == "":
		return domain.NewValidationError("from", "sender address is empty")
	case mail.ImagePath == "":
		return domain.NewValidationError("image_path", "no image to deliver")
	case mail.Pages <= 0:
		return domain.NewValidationError("pages", "must be positive")
	}

	return nil
}

func (m *FaxMailer) convert(ctx context.Context, mail ports.FaxMail) (conversion, error) {
	pdf, err := m.converter.ToPDF(ctx, mail.ImagePath)
	return conversion{pdf: pdf, err: err}, nil
}

func (m *FaxMailer) attachment(ctx context.Context, mail ports.FaxMail, c conversion) (*ports.Attachment, error) {
	base := mail.ReceivedAt.Format(attachmentLayout)

	if c.err == nil && len(c.pdf) > 0 {
		return &ports.Attachment{Name: base + ".pdf", ContentType: contentTypePDF, Data: c.pdf}, nil
	}

	logging.FromContext(ctx).WarnContext(ctx, "pdf conversion produced nothing, attaching tiff",
		slog.String("path", mail.ImagePath),
		slog.Any("error", c.err),
	)

	f, err := m.staging.Open(mail.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("opening staged image: %w", errors.Join(err, c.err))
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading staged image: %w", err)
	}

	if len(data) == 0 {
		return nil, domain.NewValidationError("image", "staged image is empty")
	}

	return &ports.Attachment{Name: base + ".tif", ContentType: contentTypeTIFF, Data: data}, nil
}

func (m *FaxMailer) send(ctx context.Context, mail ports.FaxMail, a *ports.Attachment) error {
	return m.mailer.Send(ctx, ports.Envelope{
		From:       mail.From,
		To:         mail.To,
		Subject:    mail.Subject,
		Body:       mail.Body,
		Date:       mail.ReceivedAt,
		Attachment: a,
	})
}
