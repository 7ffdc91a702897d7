// Package relay dispatches engine bus messages to the handlers installed by
// the call procedures.
//
// A handler is installed under a hook name with a priority. Dispatch offers a
// message to the hook's handlers in ascending priority, ties broken by install
// order, and stops at the first handler that reports the message handled.
package relay

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/platform/logging"
)

// HandlerFunc processes one message. Returning true stops dispatch.
type HandlerFunc func(ctx context.Context, msg *domain.Message) bool

// Module is a set of handlers installed and removed together.
type Module interface {
	// Name identifies the module; it is also the owner of its handlers.
	Name() string

	// Install registers the module's handlers.
	Install(r *Relay)

	// Unload removes the module by calling uninstall while it holds whatever
	// guards its state. A module that cannot get that guard returns
	// domain.ErrBusy without calling uninstall.
	Unload(ctx context.Context, uninstall func()) error
}

// HookInfo describes one installed handler.
type HookInfo struct {
	Hook     string `json:"hook"`
	Owner    string `json:"owner"`
	Priority int    `json:"priority"`
}

type hook struct {
	owner    string
	priority int
	seq      uint64
	fn       HandlerFunc
}

// Relay is the in-process message dispatcher.
type Relay struct {
	mu      sync.RWMutex
	hooks   map[string][]hook
	modules []Module
	seq     uint64

	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// Config holds optional dependencies for the relay.
type Config struct {
	Logger  *slog.Logger
	Metrics *Metrics
}

// New creates an empty relay.
func New(cfg Config) *Relay {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		hooks:   make(map[string][]hook),
		logger:  logger.With(slog.String("component", "relay")),
		tracer:  otel.Tracer("github.com/jsamuelsen/callrelay/internal/app/relay"),
		metrics: cfg.Metrics,
	}
}

// Install registers fn for the named hook.
func (r *Relay) Install(owner, name string, priority int, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	hs := append(r.hooks[name], hook{owner: owner, priority: priority, seq: r.seq, fn: fn})
	slices.SortFunc(hs, func(a, b hook) int {
		return cmp.Or(cmp.Compare(a.priority, b.priority), cmp.Compare(a.seq, b.seq))
	})
	r.hooks[name] = hs

	r.logger.Debug("handler installed",
		slog.String("hook", name),
		slog.String("owner", owner),
		slog.Int("priority", priority),
	)
}

// Uninstall removes every handler installed by owner and returns how many were removed.
func (r *Relay) Uninstall(owner string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, hs := range r.hooks {
		kept := slices.DeleteFunc(hs, func(h hook) bool { return h.owner == owner })
		removed += len(hs) - len(kept)

		if len(kept) == 0 {
			delete(r.hooks, name)
			continue
		}
		r.hooks[name] = kept
	}

	return removed
}

// Hooks lists the installed handlers ordered by hook name, then dispatch order.
func (r *Relay) Hooks() []HookInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	slices.Sort(names)

	var out []HookInfo
	for _, name := range names {
		for _, h := range r.hooks[name] {
			out = append(out, HookInfo{Hook: name, Owner: h.owner, Priority: h.priority})
		}
	}

	return out
}

// Load installs m and remembers it for UnloadAll.
func (r *Relay) Load(m Module) {
	m.Install(r)

	r.mu.Lock()
	r.modules = append(r.modules, m)
	r.mu.Unlock()

	r.logger.Info("module loaded", slog.String("module", m.Name()))
}

// Unload lets m remove its handlers. If m refuses, its handlers stay
// installed and the error is returned.
func (r *Relay) Unload(ctx context.Context, m Module) error {
	n := 0

	if err := m.Unload(ctx, func() { n = r.Uninstall(m.Name()) }); err != nil {
		return fmt.Errorf("unloading %s: %w", m.Name(), err)
	}

	r.mu.Lock()
	r.modules = slices.DeleteFunc(r.modules, func(x Module) bool { return x.Name() == m.Name() })
	r.mu.Unlock()

	r.logger.Info("module unloaded", slog.String("module", m.Name()), slog.Int("handlers", n))

	return nil
}

// UnloadAll unloads every loaded module in reverse load order.
func (r *Relay) UnloadAll(ctx context.Context) error {
	r.mu.RLock()
	mods := slices.Clone(r.modules)
	r.mu.RUnlock()

	var errs []error
	for _, m := range slices.Backward(mods) {
		if err := r.Unload(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Dispatch offers msg to the handlers of msg.Name and reports whether one handled it.
func (r *Relay) Dispatch(ctx context.Context, msg *domain.Message) bool {
	r.mu.RLock()
	hs := slices.Clone(r.hooks[msg.Name])
	r.mu.RUnlock()

	ctx, span := r.tracer.Start(ctx, "relay.dispatch "+msg.Name,
		trace.WithAttributes(
			attribute.String("relay.hook", msg.Name),
			attribute.Int("relay.handlers", len(hs)),
		),
	)
	defer span.End()

	ctx = logging.WithHook(logging.Ensure(ctx, r.logger), msg.Name)
	logger := logging.FromContext(ctx)
	start := time.Now()

	handled := false
	owner := ""

	for _, h := range hs {
		logging.Trace(ctx, logger, "offering message", slog.String("owner", h.owner))

		if h.fn(ctx, msg) {
			handled = true
			owner = h.owner
			break
		}
	}

	span.SetAttributes(
		attribute.Bool("relay.handled", handled),
		attribute.String("relay.owner", owner),
	)

	if r.metrics != nil {
		r.metrics.observe(msg.Name, handled, time.Since(start))
	}

	return handled
}
