package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

const (
	// FaxModuleName owns the fax relay handlers.
	FaxModuleName = "fax2email"

	// FaxReceiveTarget prefixes the capture path in an accepted route.
	FaxReceiveTarget = "fax/receive"

	busyError  = "busy"
	busyReason = "Busy there"

	defaultFaxLimit = 1
)

// FaxConfig is the read-only configuration of the fax routing procedure.
type FaxConfig struct {
	Account        string
	EmailFrom      string
	RoutePriority  int
	HangupPriority int
	UnloadTimeout  time.Duration

	// DeliveryTimeout bounds one delivery. Zero leaves it unbounded.
	DeliveryTimeout time.Duration
}

// FaxRoutingDeps are the collaborators of FaxRouting. All are required.
type FaxRoutingDeps struct {
	Store     *callstate.Store
	Directory ports.Directory
	Delivery  ports.FaxDelivery
	Staging   ports.Staging
	Logger    *slog.Logger
}

// FaxRouting admits inbound fax calls under a per-number limit and mails the
// received image when the call hangs up.
type FaxRouting struct {
	store     *callstate.Store
	directory ports.Directory
	delivery  ports.FaxDelivery
	staging   ports.Staging
	cfg       FaxConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewFaxRouting creates the fax routing procedure. It panics on a missing collaborator.
func NewFaxRouting(deps FaxRoutingDeps, cfg FaxConfig) *FaxRouting {
	if deps.Store == nil || deps.Directory == nil || deps.Delivery == nil || deps.Staging == nil {
		panic("app: FaxRouting requires Store, Directory, Delivery and Staging")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.UnloadTimeout <= 0 {
		cfg.UnloadTimeout = callstate.DefaultUnloadTimeout
	}

	return &FaxRouting{
		store:     deps.Store,
		directory: deps.Directory,
		delivery:  deps.Delivery,
		staging:   deps.Staging,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app.FaxRouting")),
		now:       time.Now,
	}
}

// RouteEvent is an inbound route request for a possible fax call.
type RouteEvent struct {
	CallID   string
	Called   string
	Caller   string
	Resource domain.Resource
}

// RouteResult is what OnRoute decided.
type RouteResult int

const (
	// RouteDeclined leaves the event to other handlers.
	RouteDeclined RouteResult = iota

	// RouteBusy refuses the call because the number is at its limit.
	RouteBusy

	// RouteAccepted registered the call and named a receiving target.
	RouteAccepted
)

// RouteOutcome is the result of OnRoute.
type RouteOutcome struct {
	Result RouteResult

	// Target is the receiving target for RouteAccepted.
	Target string

	// CapturePath is the staging file named by Target.
	CapturePath string
}

// Handled reports whether the event was claimed.
func (o RouteOutcome) Handled() bool {
	return o.Result != RouteDeclined
}

// Apply writes the outcome onto the engine message.
func (o RouteOutcome) Apply(msg *domain.Message) {
	switch o.Result {
	case RouteBusy:
		msg.Set(domain.ParamError, busyError)
		msg.Set(domain.ParamReason, busyReason)
		msg.RetValue = domain.RetValueReject
	case RouteAccepted:
		msg.RetValue = o.Target
	case RouteDeclined:
	}
}

// OnRoute looks up the dialed number and, on a hit, admits the call under the
// number's limit.
func (f *FaxRouting) OnRoute(ctx context.Context, ev RouteEvent) RouteOutcome {
	ctx = logging.WithCallID(logging.Ensure(ctx, f.logger), ev.CallID)
	logger := logging.FromContext(ctx)

	if ev.CallID == "" || ev.Called == "" {
		logger.DebugContext(ctx, "route event without id or called number")
		return RouteOutcome{}
	}

	rule, err := f.directory.FaxRule(ctx, f.cfg.Account, ev.Called)
	if err != nil {
		if domain.IsNoRule(err) {
			logger.DebugContext(ctx, "no fax rule", slog.String("called", ev.Called))
		} else {
			logger.WarnContext(ctx, "fax rule lookup failed",
				slog.String("called", ev.Called),
				slog.Any("error", err),
			)
		}

		return RouteOutcome{}
	}

	path, err := f.staging.NewCapturePath()
	if err != nil {
		logger.ErrorContext(ctx, "allocating capture path", slog.Any("error", err))
		return RouteOutcome{}
	}

	limit := rule.Limit
	if limit <= 0 {
		limit = defaultFaxLimit
	}

	c := domain.NewCallContext(ev.CallID, ev.Called, &domain.FaxContext{
		DeliveryAddress: rule.DeliveryAddress,
		OriginCaller:    ev.Caller,
		CapturePath:     path,
	}, ev.Resource)

	verdict, err := f.store.Admit(c, limit)
	if verdict != callstate.Accepted {
		c.Close()
	}

	switch {
	case err != nil:
		logger.ErrorContext(ctx, "fax call already registered",
			slog.String("called", ev.Called),
			slog.Any("error", err),
		)

		return RouteOutcome{}
	case verdict == callstate.Rejected:
		logger.InfoContext(ctx, "fax number busy",
			slog.String("called", ev.Called),
			slog.Int("limit", limit),
		)

		return RouteOutcome{Result: RouteBusy}
	}

	logger.InfoContext(ctx, "fax call registered",
		slog.String("called", ev.Called),
		slog.String("caller", ev.Caller),
		slog.String("capture_path", path),
	)

	return RouteOutcome{
		Result:      RouteAccepted,
		Target:      FaxReceiveTarget + path,
		CapturePath: path,
	}
}

// FaxDetails are the fax session parameters reported at hangup.
type FaxDetails struct {
	Type        string
	ECM         string
	Caller      string
	RemoteIdent string
}

// HangupEvent reports the end of a call leg.
type HangupEvent struct {
	LastPeerID string

	// Address is where the leg wrote the received image, if reported.
	Address string

	// Pages is nil when the leg did not report a page count.
	Pages *int

	Fax FaxDetails
}

// HangupResult is what OnHangup did.
type HangupResult int

const (
	// HangupUnknown means no fax call was registered under the peer id.
	HangupUnknown HangupResult = iota

	// HangupNoPages retired the call without mailing anything.
	HangupNoPages

	// HangupDelivered retired the call and mailed the fax.
	HangupDelivered

	// HangupDeliveryFailed retired the call; mailing failed and the file was kept.
	HangupDeliveryFailed
)

// OnHangup retires the fax call correlated by the last peer id and mails the
// received image if any pages arrived.
func (f *FaxRouting) OnHangup(ctx context.Context, ev HangupEvent) HangupResult {
	if ev.LastPeerID == "" {
		return HangupUnknown
	}

	c, ok := f.store.Retire(ev.LastPeerID)
	if !ok {
		return HangupUnknown
	}

	ctx = logging.WithCallID(logging.Ensure(ctx, f.logger), c.ID)
	logger := logging.FromContext(ctx)

	fax, ok := c.Fax()
	if !ok {
		logger.ErrorContext(ctx, "retired call has no fax payload", slog.String("kind", string(c.Kind())))
		return HangupUnknown
	}

	path := fax.CapturePath
	if ev.Address != "" {
		path = "/" + strings.TrimLeft(ev.Address, "/")
	}

	if ev.Pages == nil || *ev.Pages <= 0 {
		logger.WarnContext(ctx, "fax has zero pages",
			slog.String("called", c.DestinationKey),
			slog.String("path", path),
		)

		return HangupNoPages
	}

	pages := *ev.Pages
	mail := ports.FaxMail{
		From:       f.cfg.EmailFrom,
		To:         fax.DeliveryAddress,
		Subject:    faxSubject(fax.OriginCaller, ev.Fax.RemoteIdent, pages, c.DestinationKey),
		Body:       faxBody(ev.Fax),
		ImagePath:  path,
		Pages:      pages,
		ReceivedAt: f.now(),
	}

	// The call is already retired; an engine that stops waiting for the
	// hangup reply must not kill the converter or sendmail halfway.
	dctx := context.WithoutCancel(ctx)
	if f.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(dctx, f.cfg.DeliveryTimeout)
		defer cancel()
	}

	if err := f.delivery.Deliver(dctx, mail); err != nil {
		logger.ErrorContext(ctx, "fax delivery failed",
			slog.String("to", fax.DeliveryAddress),
			slog.String("path", path),
			slog.Any("error", err),
		)

		return HangupDeliveryFailed
	}

	if err := f.staging.Remove(path); err != nil {
		logger.WarnContext(ctx, "removing delivered fax", slog.String("path", path), slog.Any("error", err))
	}

	logger.InfoContext(ctx, "fax delivered",
		slog.String("to", fax.DeliveryAddress),
		slog.Int("pages", pages),
	)

	return HangupDelivered
}

func faxSubject(caller, remoteIdent string, pages int, called string) string {
	return fmt.Sprintf("Fax from %s (%s), %d pages, received by %s", caller, remoteIdent, pages, called)
}

func faxBody(d FaxDetails) string {
	return fmt.Sprintf("Faxtype: %s\nFaxECM: %s\nFaxCaller: %s\n", d.Type, d.ECM, d.Caller)
}

// Name implements relay.Module.
func (f *FaxRouting) Name() string {
	return FaxModuleName
}

// Install implements relay.Module.
func (f *FaxRouting) Install(r *relay.Relay) {
	r.Install(FaxModuleName, domain.HookCallRoute, f.cfg.RoutePriority, f.handleRoute)
	r.Install(FaxModuleName, domain.HookChanHangup, f.cfg.HangupPriority, f.handleHangup)
}

// Unload implements relay.Module.
func (f *FaxRouting) Unload(_ context.Context, uninstall func()) error {
	return unloadUnderLock(f.store, f.cfg.UnloadTimeout, uninstall)
}

func (f *FaxRouting) handleRoute(ctx context.Context, msg *domain.Message) bool {
	out := f.OnRoute(ctx, RouteEvent{
		CallID:   msg.Get(domain.ParamID),
		Called:   msg.Get(domain.ParamCalled),
		Caller:   msg.Get(domain.ParamCaller),
		Resource: msg.Resource,
	})
	out.Apply(msg)

	return out.Handled()
}

func (f *FaxRouting) handleHangup(ctx context.Context, msg *domain.Message) bool {
	ev := HangupEvent{
		LastPeerID: msg.Get(domain.ParamLastPeerID),
		Address:    msg.Get(domain.ParamAddress),
		Fax: FaxDetails{
			Type:        msg.Get(domain.ParamFaxType),
			ECM:         msg.Get(domain.ParamFaxECM),
			Caller:      msg.Get(domain.ParamFaxCaller),
			RemoteIdent: msg.Get(domain.ParamFaxIdentRemote),
		},
	}

	if raw, ok := msg.Lookup(domain.ParamFaxPages); ok {
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			n = 0
		}
		ev.Pages = &n
	}

	f.OnHangup(ctx, ev)

	return false
}

// unloadUnderLock runs uninstall while holding the store's critical section.
func unloadUnderLock(store *callstate.Store, timeout time.Duration, uninstall func()) error {
	unlock, err := store.TryLock(timeout)
	if err != nil {
		return err
	}
	defer unlock()

	uninstall()

	return nil
}
