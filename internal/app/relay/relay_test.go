package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/callrelay/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recorder(calls *[]string, mu *sync.Mutex, name string, handled bool) HandlerFunc {
	return func(_ context.Context, _ *domain.Message) bool {
		mu.Lock()
		*calls = append(*calls, name)
		mu.Unlock()

		return handled
	}
}

func TestRelay_DispatchOrdersByPriorityThenInstallOrder(t *testing.T) {
	r := New(Config{Logger: discardLogger()})

	var (
		mu    sync.Mutex
		calls []string
	)

	r.Install("b", domain.HookCallRoute, 10, recorder(&calls, &mu, "b10", false))
	r.Install("a", domain.HookCallRoute, 1, recorder(&calls, &mu, "a1", false))
	r.Install("c", domain.HookCallRoute, 10, recorder(&calls, &mu, "c10", false))

	handled := r.Dispatch(context.Background(), domain.NewMessage(domain.HookCallRoute))

	assert.False(t, handled)
	assert.Equal(t, []string{"a1", "b10", "c10"}, calls)
}

func TestRelay_DispatchStopsAtFirstHandled(t *testing.T) {
	r := New(Config{Logger: discardLogger()})

	var (
		mu    sync.Mutex
		calls []string
	)

	r.Install("a", domain.HookChanHangup, 5, recorder(&calls, &mu, "a", true))
	r.Install("b", domain.HookChanHangup, 10, recorder(&calls, &mu, "b", true))

	handled := r.Dispatch(context.Background(), domain.NewMessage(domain.HookChanHangup))

	assert.True(t, handled)
	assert.Equal(t, []string{"a"}, calls)
}

func TestRelay_DispatchUnknownHook(t *testing.T) {
	r := New(Config{Logger: discardLogger()})

	assert.False(t, r.Dispatch(context.Background(), domain.NewMessage("engine.timer")))
}

func TestRelay_Uninstall(t *testing.T) {
	r := New(Config{Logger: discardLogger()})
	noop := func(context.Context, *domain.Message) bool { return false }

	r.Install("fax", domain.HookCallRoute, 10, noop)
	r.Install("fax", domain.HookChanHangup, 10, noop)
	r.Install("forward", domain.HookCallExecute, 10, noop)

	assert.Equal(t, 2, r.Uninstall("fax"))
	assert.Equal(t, []HookInfo{{Hook: domain.HookCallExecute, Owner: "forward", Priority: 10}}, r.Hooks())
	assert.Equal(t, 0, r.Uninstall("fax"))
}

type fakeModule struct {
	name      string
	unloadErr error
	unloads   int
}

func (m *fakeModule) Name() string { return m.name }

func (m *fakeModule) Install(r *Relay) {
	r.Install(m.name, domain.HookCallRoute, 10, func(context.Context, *domain.Message) bool { return true })
}

func (m *fakeModule) Unload(_ context.Context, uninstall func()) error {
	m.unloads++
	if m.unloadErr != nil {
		return m.unloadErr
	}

	uninstall()

	return nil
}

func TestRelay_LoadUnload(t *testing.T) {
	r := New(Config{Logger: discardLogger()})
	m := &fakeModule{name: "fax"}

	r.Load(m)
	require.Len(t, r.Hooks(), 1)

	require.NoError(t, r.Unload(context.Background(), m))
	assert.Empty(t, r.Hooks())
	assert.Equal(t, 1, m.unloads)
}

func TestRelay_UnloadRefusedKeepsHandlers(t *testing.T) {
	r := New(Config{Logger: discardLogger()})
	m := &fakeModule{name: "fax", unloadErr: domain.ErrBusy}

	r.Load(m)

	err := r.Unload(context.Background(), m)
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Len(t, r.Hooks(), 1)
	assert.True(t, r.Dispatch(context.Background(), domain.NewMessage(domain.HookCallRoute)))
}

func TestRelay_UnloadAllJoinsErrors(t *testing.T) {
	r := New(Config{Logger: discardLogger()})
	ok := &fakeModule{name: "forward"}
	busy := &fakeModule{name: "fax", unloadErr: domain.ErrBusy}

	r.Load(busy)
	r.Load(ok)

	err := r.UnloadAll(context.Background())

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrBusy))
	assert.Equal(t, 1, ok.unloads)
	assert.Equal(t, 1, busy.unloads)
	assert.Equal(t, []HookInfo{{Hook: domain.HookCallRoute, Owner: "fax", Priority: 10}}, r.Hooks())
}

func TestRelay_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(Config{Logger: discardLogger(), Metrics: NewMetrics(reg)})
	r.Install("fax", domain.HookCallRoute, 10, func(context.Context, *domain.Message) bool { return true })

	r.Dispatch(context.Background(), domain.NewMessage(domain.HookCallRoute))
	r.Dispatch(context.Background(), domain.NewMessage(domain.HookCallRoute))
	r.Dispatch(context.Background(), domain.NewMessage(domain.HookChanHangup))

	m := r.metrics
	assert.InDelta(t, 2, testutil.ToFloat64(m.messages.WithLabelValues(domain.HookCallRoute, "true")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.messages.WithLabelValues(domain.HookChanHangup, "false")), 0)
}

func TestHandles_RetainRelease(t *testing.T) {
	table := NewHandles()

	h, release := table.Acquire("sip/1")
	assert.Equal(t, "sip/1", h.ID())
	assert.Equal(t, 1, table.Refs("sip/1"))

	dropStored := h.Retain()
	assert.Equal(t, 2, table.Refs("sip/1"))

	release()
	release()
	assert.Equal(t, 1, table.Refs("sip/1"), "a release func counts once")

	dropStored()
	assert.Equal(t, 0, table.Refs("sip/1"))
	assert.Equal(t, 0, table.Len())
}

func TestHandles_ReacquireAfterRelease(t *testing.T) {
	table := NewHandles()

	_, release := table.Acquire("sip/1")
	release()

	h, release := table.Acquire("sip/1")
	defer release()

	assert.Equal(t, 1, table.Refs(h.ID()))
	assert.Equal(t, 1, table.Len())
}

func TestHandles_ConcurrentAcquireKeepsHolderTracked(t *testing.T) {
	table := NewHandles()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		untraced int
	)

	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for range 200 {
				h, release := table.Acquire("sip/1")

				table.mu.Lock()
				tracked := table.live["sip/1"] == h && h.refs > 0
				table.mu.Unlock()

				if !tracked {
					mu.Lock()
					untraced++
					mu.Unlock()
				}

				release()
			}
		}()
	}

	wg.Wait()

	assert.Zero(t, untraced, "every holder's handle is the one the table tracks")
	assert.Equal(t, 0, table.Len())
	assert.Equal(t, 0, table.Refs("sip/1"))
}

func TestWatchGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	table := NewHandles()
	WatchHandles(reg, table)

	_, release := table.Acquire("sip/1")
	defer release()

	n, err := testutil.GatherAndCount(reg, "callrelay_relay_live_handles")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type fixedLen int

func (f fixedLen) Len() int { return int(f) }

func TestWatchStore_PerModule(t *testing.T) {
	reg := prometheus.NewRegistry()
	WatchStore(reg, "fax2email", fixedLen(2))
	WatchStore(reg, "forwarder", fixedLen(5))

	n, err := testutil.GatherAndCount(reg, "callrelay_callstate_registered_calls")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
