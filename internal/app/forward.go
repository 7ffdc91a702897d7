package app

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

// ForwardModuleName owns the forwarding relay handlers.
const ForwardModuleName = "forwarder"

// StatusOutgoing tags the execute request of a forwarded call.
const StatusOutgoing = "outgoing"

// Disconnect reasons that trigger forwarding.
const (
	ReasonNoAnswer = "noanswer"
	ReasonNoRoute  = "noroute"
	ReasonLooping  = "looping"
)

// ForwardConfig is the read-only configuration of the forwarding procedure.
type ForwardConfig struct {
	Account            string
	ExecutePriority    int
	DisconnectPriority int
	AnswerPriority     int
	UnloadTimeout      time.Duration
}

// ForwardingDeps are the collaborators of Forwarding. All are required.
type ForwardingDeps struct {
	Store     *callstate.Store
	Directory ports.Directory
	Engine    ports.Engine
	Logger    *slog.Logger
}

// Forwarding bounds the answer wait of calls that have a forwarding rule and
// redirects them to the rule's target when they go unanswered.
type Forwarding struct {
	store     *callstate.Store
	directory ports.Directory
	engine    ports.Engine
	cfg       ForwardConfig
	logger    *slog.Logger
}

// NewForwarding creates the forwarding procedure. It panics on a missing collaborator.
func NewForwarding(deps ForwardingDeps, cfg ForwardConfig) *Forwarding {
	if deps.Store == nil || deps.Directory == nil || deps.Engine == nil {
		panic("app: Forwarding requires Store, Directory and Engine")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.UnloadTimeout <= 0 {
		cfg.UnloadTimeout = callstate.DefaultUnloadTimeout
	}

	return &Forwarding{
		store:     deps.Store,
		directory: deps.Directory,
		engine:    deps.Engine,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app.Forwarding")),
	}
}

// ExecuteEvent is a call about to be placed.
type ExecuteEvent struct {
	CallID   string
	Called   string
	Resource domain.Resource
}

// ExecuteOutcome reports whether OnExecute registered the call.
type ExecuteOutcome struct {
	Registered bool

	// MaxCall is the answer-wait hint to set on the message, "" for none.
	MaxCall string
}

// Apply writes the answer-wait hint onto the engine message.
func (o ExecuteOutcome) Apply(msg *domain.Message) {
	if o.MaxCall != "" {
		msg.Set(domain.ParamMaxCall, o.MaxCall)
	}
}

// OnExecute registers a call whose number has a forwarding rule and bounds
// its answer wait to the rule's delay. It never claims the call.
func (w *Forwarding) OnExecute(ctx context.Context, ev ExecuteEvent) ExecuteOutcome {
	ctx = logging.WithCallID(logging.Ensure(ctx, w.logger), ev.CallID)
	logger := logging.FromContext(ctx)

	if ev.CallID == "" || ev.Called == "" {
		return ExecuteOutcome{}
	}

	rule, err := w.directory.ForwardRule(ctx, w.cfg.Account, ev.Called)
	if err != nil {
		if domain.IsNoRule(err) {
			logger.DebugContext(ctx, "no forwarding rule", slog.String("called", ev.Called))
		} else {
			logger.WarnContext(ctx, "forwarding rule lookup failed",
				slog.String("called", ev.Called),
				slog.Any("error", err),
			)
		}

		return ExecuteOutcome{}
	}

	c := domain.NewCallContext(ev.CallID, rule.SourceNumber, &domain.ForwardContext{
		ForwardTarget: rule.ForwardTarget,
		AnswerDelay:   rule.Delay,
	}, ev.Resource)

	if err := w.store.Register(c); err != nil {
		c.Close()
		logger.ErrorContext(ctx, "forwarded call already registered", slog.Any("error", err))

		return ExecuteOutcome{}
	}

	delay := strconv.Itoa(rule.Delay)

	logger.InfoContext(ctx, "call registered for forwarding",
		slog.String("source", rule.SourceNumber),
		slog.String("target", rule.ForwardTarget),
		slog.String("delay", delay),
		slog.Int("registered", w.store.Len()),
	)

	return ExecuteOutcome{Registered: true, MaxCall: delay}
}

// DisconnectEvent reports a disconnected call leg.
type DisconnectEvent struct {
	ID       string
	TargetID string
	Reason   string
}

// DisconnectResult is what OnDisconnected did.
type DisconnectResult int

const (
	// DisconnectUnknown means neither id was registered.
	DisconnectUnknown DisconnectResult = iota

	// DisconnectLegCleared retired a leg correlated by its target id.
	DisconnectLegCleared

	// DisconnectNotForwarded retired the call; the reason did not call for forwarding.
	DisconnectNotForwarded

	// DisconnectForwarded retired the call after the forward was executed.
	DisconnectForwarded

	// DisconnectForwardFailed retired the call; routing or execution failed.
	DisconnectForwardFailed
)

// OnDisconnected cleans up a forwarded leg, or forwards the original call if
// it ended for lack of an answer, and always retires what it correlated.
// The original call is retired before forwarding, so only one of several
// disconnects racing on the same id forwards it.
func (w *Forwarding) OnDisconnected(ctx context.Context, ev DisconnectEvent) DisconnectResult {
	ctx = logging.WithCallID(logging.Ensure(ctx, w.logger), ev.ID)
	logger := logging.FromContext(ctx)

	if ev.TargetID != "" {
		if _, ok := w.store.Retire(ev.TargetID); ok {
			logger.InfoContext(ctx, "forwarded leg cleared",
				slog.String("target_id", ev.TargetID),
				slog.Int("registered", w.store.Len()),
			)

			return DisconnectLegCleared
		}
	}

	if ev.ID == "" {
		return DisconnectUnknown
	}

	// Claimed before the engine is asked anything: a racing disconnect finds
	// nothing, and the forwarded execute may register the same id again.
	c, done, ok := w.store.Claim(ev.ID)
	if !ok {
		return DisconnectUnknown
	}
	defer done()

	fwd, ok := c.Forward()
	if !ok {
		logger.ErrorContext(ctx, "registered call has no forward payload", slog.String("kind", string(c.Kind())))
		return DisconnectNotForwarded
	}

	switch ev.Reason {
	case ReasonNoAnswer, ReasonNoRoute, ReasonLooping:
	default:
		logger.DebugContext(ctx, "disconnected without forwarding", slog.String("reason", ev.Reason))
		return DisconnectNotForwarded
	}

	source := c.DestinationKey

	logger.InfoContext(ctx, "forwarding call",
		slog.String("reason", ev.Reason),
		slog.String("source", source),
		slog.String("target", fwd.ForwardTarget),
	)

	callTo, err := w.engine.Route(ctx, ports.RouteRequest{
		ID:         ev.ID,
		Caller:     source,
		CallerName: source,
		Called:     fwd.ForwardTarget,
		Resource:   c.Resource(),
	})

	switch {
	case err != nil:
		logger.WarnContext(ctx, "forward routing failed",
			slog.String("target", fwd.ForwardTarget),
			slog.Any("error", err),
		)

		return DisconnectForwardFailed
	case callTo == "" || callTo == domain.RetValueReject || callTo == domain.RetValueError:
		logger.WarnContext(ctx, "forward routing refused",
			slog.String("target", fwd.ForwardTarget),
			slog.String("ret_value", callTo),
		)

		return DisconnectForwardFailed
	}

	err = w.engine.Execute(ctx, ports.ExecuteRequest{
		ID:         ev.ID,
		Caller:     source,
		CallerName: source,
		Called:     fwd.ForwardTarget,
		CallTo:     callTo,
		Status:     StatusOutgoing,
		Resource:   c.Resource(),
	})
	if err != nil {
		logger.WarnContext(ctx, "forward execute failed",
			slog.String("callto", callTo),
			slog.Any("error", err),
		)

		return DisconnectForwardFailed
	}

	logger.InfoContext(ctx, "call forwarded", slog.String("callto", callTo))

	return DisconnectForwarded
}

// AnswerEvent reports an answered call.
type AnswerEvent struct {
	TargetID string
}

// OnAnswered retires the call correlated by the target id. It reports
// whether anything was retired.
func (w *Forwarding) OnAnswered(ctx context.Context, ev AnswerEvent) bool {
	if ev.TargetID == "" {
		return false
	}

	if _, ok := w.store.Retire(ev.TargetID); !ok {
		return false
	}

	ctx = logging.WithCallID(logging.Ensure(ctx, w.logger), ev.TargetID)
	logging.FromContext(ctx).InfoContext(ctx, "answered before forwarding",
		slog.Int("registered", w.store.Len()),
	)

	return true
}

// Name implements relay.Module.
func (w *Forwarding) Name() string {
	return ForwardModuleName
}

// Install implements relay.Module.
func (w *Forwarding) Install(r *relay.Relay) {
	r.Install(ForwardModuleName, domain.HookChanDisconnected, w.cfg.DisconnectPriority, w.handleDisconnected)
	r.Install(ForwardModuleName, domain.HookCallExecute, w.cfg.ExecutePriority, w.handleExecute)
	r.Install(ForwardModuleName, domain.HookCallAnswered, w.cfg.AnswerPriority, w.handleAnswered)
}

// Unload implements relay.Module.
func (w *Forwarding) Unload(_ context.Context, uninstall func()) error {
	return unloadUnderLock(w.store, w.cfg.UnloadTimeout, uninstall)
}

func (w *Forwarding) handleExecute(ctx context.Context, msg *domain.Message) bool {
	out := w.OnExecute(ctx, ExecuteEvent{
		CallID:   msg.Get(domain.ParamID),
		Called:   msg.Get(domain.ParamCalled),
		Resource: msg.Resource,
	})
	out.Apply(msg)

	return false
}

func (w *Forwarding) handleDisconnected(ctx context.Context, msg *domain.Message) bool {
	w.OnDisconnected(ctx, DisconnectEvent{
		ID:       msg.Get(domain.ParamID),
		TargetID: msg.Get(domain.ParamTargetID),
		Reason:   msg.Get(domain.ParamReason),
	})

	return false
}

func (w *Forwarding) handleAnswered(ctx context.Context, msg *domain.Message) bool {
	w.OnAnswered(ctx, AnswerEvent{TargetID: msg.Get(domain.ParamTargetID)})

	return false
}
