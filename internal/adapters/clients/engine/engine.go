// Package engine is the outbound adapter to the telephony engine's message bus.
// Messages are posted as JSON envelopes and answered synchronously.
package engine

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/callrelay/internal/adapters/clients"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const (
	messagesPath = "/api/v1/messages"

	// maxReplyBytes bounds how much of a reply is decoded.
	maxReplyBytes = 1 << 20
)

// message is the envelope the engine accepts. UserData names the call leg
// the message is about.
type message struct {
	Name     string            `json:"name"`
	ID       string            `json:"id"`
	Params   map[string]string `json:"params"`
	RetValue string            `json:"retValue"`
	UserData string            `json:"userData,omitempty"`
}

type reply struct {
	Handled  bool              `json:"handled"`
	RetValue string            `json:"retValue"`
	Params   map[string]string `json:"params"`
}

// Adapter implements ports.Engine over the instrumented HTTP client.
type Adapter struct {
	client  *clients.Client
	service string
	newID   func() string
}

// New creates an engine adapter. service names the engine in errors and health output.
func New(client *clients.Client, service string) *Adapter {
	return &Adapter{
		client:  client,
		service: service,
		newID:   uuid.NewString,
	}
}

// Route implements ports.Engine.
func (a *Adapter) Route(ctx context.Context, req ports.RouteRequest) (string, error) {
	msg := message{
		Name: domain.HookCallRoute,
		Params: map[string]string{
			domain.ParamID:         req.ID,
			domain.ParamCaller:     req.Caller,
			domain.ParamCallerName: req.CallerName,
			domain.ParamCalled:     req.Called,
		},
		UserData: resourceID(req.Resource),
	}

	r, err := a.dispatch(ctx, msg)
	if err != nil {
		return "", err
	}

	if !r.Handled {
		return "", fmt.Errorf("routing %q: %w", req.Called, ErrNotHandled)
	}

	return r.RetValue, nil
}

// Execute implements ports.Engine.
func (a *Adapter) Execute(ctx context.Context, req ports.ExecuteRequest) error {
	msg := message{
		Name: domain.HookCallExecute,
		Params: map[string]string{
			domain.ParamID:         req.ID,
			domain.ParamCaller:     req.Caller,
			domain.ParamCallerName: req.CallerName,
			domain.ParamCalled:     req.Called,
			domain.ParamCallTo:     req.CallTo,
			domain.ParamStatus:     req.Status,
		},
		UserData: resourceID(req.Resource),
	}

	r, err := a.dispatch(ctx, msg)
	if err != nil {
		return err
	}

	if !r.Handled {
		return fmt.Errorf("executing %q: %w", req.CallTo, ErrNotHandled)
	}

	return nil
}

func (a *Adapter) dispatch(ctx context.Context, msg message) (*reply, error) {
	msg.ID = a.newID()

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.Name, err)
	}

	resp, err := a.client.Post(clients.WithOperation(ctx, msg.Name), messagesPath, body)
	if err != nil {
		return nil, mapClientError(err, a.service, msg.Name)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, mapStatus(resp, a.service, msg.Name)
	}

	var r reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&r); err != nil {
		return nil, domain.NewUnavailableError(a.service, fmt.Sprintf("decoding %s reply: %v", msg.Name, err))
	}

	return &r, nil
}

// Name implements ports.HealthChecker.
func (a *Adapter) Name() string { return a.service }

// Check implements ports.HealthChecker. The engine is reported unhealthy
// while the client's circuit breaker is open and its open window has not
// run out; after that the next message is let through as a trial.
func (a *Adapter) Check(context.Context) error {
	cb := a.client.Circuit()
	if cb.State != clients.StateOpen || cb.RetryIn <= 0 {
		return nil
	}

	return domain.NewUnavailableError(a.service,
		fmt.Sprintf("circuit breaker open after %s, retry in %s", cmp.Or(cb.LastCause, "failures"), cb.RetryIn.Round(time.Second)))
}

func resourceID(r domain.Resource) string {
	if r == nil {
		return ""
	}

	return r.ID()
}

var (
	_ ports.Engine        = (*Adapter)(nil)
	_ ports.HealthChecker = (*Adapter)(nil)
)
