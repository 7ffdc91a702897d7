// Package app contains the call procedures and the services that drive them.
//
// FaxRouting and Forwarding are relay modules: they install handlers on the
// relay and keep their per-call state in a callstate.Store of their own.
// Service is the entry point used by the inbound adapters.
//
// What does NOT belong here:
//   - HTTP specifics (that's adapters/http)
//   - SQL, subprocesses and the engine wire format (that's the other adapters)
package app

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// InboundMessage is an engine message as received by an ingress adapter.
type InboundMessage struct {
	Name     string
	RetValue string
	Params   map[string]string

	// ResourceID names the call-leg handle attached to the message, if any.
	ResourceID string
}

// DispatchResult is the engine-visible outcome of a relayed message.
type DispatchResult struct {
	Handled  bool
	RetValue string
	Params   map[string]string
}

// Service relays inbound messages and exposes the call state for inspection.
type Service struct {
	relay   *relay.Relay
	handles *relay.Handles
	stores  map[string]*callstate.Store
	logger  *slog.Logger
}

// ServiceConfig holds optional configuration for the service.
type ServiceConfig struct {
	Logger *slog.Logger
}

// NewService creates the service. stores maps module names to their call state.
func NewService(r *relay.Relay, handles *relay.Handles, stores map[string]*callstate.Store, cfg *ServiceConfig) *Service {
	logger := slog.Default()
	if cfg != nil && cfg.Logger != nil {
		logger = cfg.Logger
	}

	return &Service{
		relay:   r,
		handles: handles,
		stores:  stores,
		logger:  logger.With(slog.String("component", "app.Service")),
	}
}

// Relay dispatches one inbound message. The attached handle is referenced for
// the duration of the dispatch; procedures that keep it take their own reference.
func (s *Service) Relay(ctx context.Context, in InboundMessage) (*DispatchResult, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("relaying message: %w", domain.NewValidationError("name", "cannot be empty"))
	}

	msg := domain.NewMessage(in.Name)
	msg.RetValue = in.RetValue
	maps.Copy(msg.Params, in.Params)

	if in.ResourceID != "" {
		h, release := s.handles.Acquire(in.ResourceID)
		defer release()

		msg.Resource = h
	}

	ctx = logging.Ensure(ctx, s.logger)
	if id := msg.Get(domain.ParamID); id != "" {
		ctx = logging.WithCallID(ctx, id)
	}

	handled := s.relay.Dispatch(ctx, msg)

	logging.FromContext(ctx).DebugContext(ctx, "message relayed",
		slog.String("hook", in.Name),
		slog.Bool("handled", handled),
		slog.String("ret_value", msg.RetValue),
	)

	return &DispatchResult{Handled: handled, RetValue: msg.RetValue, Params: msg.Params}, nil
}

// ModuleCalls is the call state of one module.
type ModuleCalls struct {
	Module string `json:"module"`
	callstate.Snapshot
}

// Calls returns the call state of every module, ordered by module name.
func (s *Service) Calls(_ context.Context) []ModuleCalls {
	names := slices.Sorted(maps.Keys(s.stores))

	out := make([]ModuleCalls, 0, len(names))
	for _, name := range names {
		out = append(out, ModuleCalls{Module: name, Snapshot: s.stores[name].Snapshot()})
	}

	return out
}

// Module returns the call state of one module.
// Returns domain.ErrNotFound if no module of that name has a store.
func (s *Service) Module(_ context.Context, name string) (*ModuleCalls, error) {
	store, ok := s.stores[name]
	if !ok {
		return nil, domain.NewNotFoundError("module", name)
	}

	return &ModuleCalls{Module: name, Snapshot: store.Snapshot()}, nil
}

// Limits returns the limiter counts of every module that has any.
func (s *Service) Limits(ctx context.Context) map[string]map[string]int {
	out := make(map[string]map[string]int)

	for _, mc := range s.Calls(ctx) {
		if len(mc.Limits) > 0 {
			out[mc.Module] = mc.Limits
		}
	}

	return out
}

// Hooks lists the installed relay handlers.
func (s *Service) Hooks(_ context.Context) []relay.HookInfo {
	return s.relay.Hooks()
}

// LiveHandles returns the number of referenced call-leg handles.
func (s *Service) LiveHandles() int {
	return s.handles.Len()
}
