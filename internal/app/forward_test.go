package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/callrelay/internal/app/callstate"
	"github.com/jsamuelsen/callrelay/internal/app/relay"
	"github.com/jsamuelsen/callrelay/internal/domain"
	"github.com/jsamuelsen/callrelay/internal/mocks"
	"github.com/jsamuelsen/callrelay/internal/ports"
)

type forwardFixture struct {
	fwd    *Forwarding
	store  *callstate.Store
	dir    *mocks.MockDirectory
	engine *mocks.MockEngine
}

func newForwardFixture(t *testing.T) *forwardFixture {
	t.Helper()

	fx := &forwardFixture{
		store:  callstate.NewStore(),
		dir:    mocks.NewMockDirectory(t),
		engine: mocks.NewMockEngine(t),
	}

	fx.fwd = NewForwarding(ForwardingDeps{
		Store:     fx.store,
		Directory: fx.dir,
		Engine:    fx.engine,
		Logger:    discardLogger(),
	}, ForwardConfig{
		Account:            "default",
		ExecutePriority:    10,
		DisconnectPriority: 1,
		AnswerPriority:     10,
		UnloadTimeout:      20 * time.Millisecond,
	})

	return fx
}

func (fx *forwardFixture) rule(source, target string, delay int) {
	fx.dir.EXPECT().ForwardRule(mock.Anything, "default", source).
		Return(&ports.ForwardRule{SourceNumber: source, ForwardTarget: target, Delay: delay}, nil).
		Maybe()
}

func TestNewForwarding_PanicsWithoutCollaborators(t *testing.T) {
	assert.Panics(t, func() {
		NewForwarding(ForwardingDeps{Store: callstate.NewStore()}, ForwardConfig{})
	})
}

func TestForwarding_ForwardsOnNoAnswer(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	ctx := context.Background()
	leg := &fakeLeg{id: "sip/1"}

	out := fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: leg})
	require.True(t, out.Registered)
	assert.Equal(t, "20", out.MaxCall)
	assert.Equal(t, 1, fx.store.Len())
	assert.Equal(t, int32(1), leg.held())

	fx.engine.EXPECT().Route(mock.Anything, ports.RouteRequest{
		ID:         "c1",
		Caller:     "100",
		CallerName: "100",
		Called:     "200",
		Resource:   leg,
	}).Return("sip/200@pbx", nil).Once()

	fx.engine.EXPECT().Execute(mock.Anything, ports.ExecuteRequest{
		ID:         "c1",
		Caller:     "100",
		CallerName: "100",
		Called:     "200",
		CallTo:     "sip/200@pbx",
		Status:     StatusOutgoing,
		Resource:   leg,
	}).Return(nil).Once()

	res := fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c1", Reason: ReasonNoAnswer})

	assert.Equal(t, DisconnectForwarded, res)
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(0), leg.held())
}

func TestForwarding_ForwardingReasons(t *testing.T) {
	for _, reason := range []string{ReasonNoAnswer, ReasonNoRoute, ReasonLooping} {
		t.Run(reason, func(t *testing.T) {
			fx := newForwardFixture(t)
			fx.rule("100", "200", 20)
			ctx := context.Background()

			require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100"}).Registered)

			fx.engine.EXPECT().Route(mock.Anything, mock.Anything).Return("sip/200", nil).Once()
			fx.engine.EXPECT().Execute(mock.Anything, mock.Anything).Return(nil).Once()

			assert.Equal(t, DisconnectForwarded, fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c1", Reason: reason}))
		})
	}
}

func TestForwarding_AnsweredCallIsNotForwarded(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	ctx := context.Background()
	leg := &fakeLeg{id: "sip/2"}

	require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c2", Called: "100", Resource: leg}).Registered)

	assert.True(t, fx.fwd.OnAnswered(ctx, AnswerEvent{TargetID: "c2"}))
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(0), leg.held())

	// No engine expectations: a Route or Execute call fails the test.
	assert.Equal(t, DisconnectUnknown, fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c2", Reason: ReasonNoAnswer}))
	assert.False(t, fx.fwd.OnAnswered(ctx, AnswerEvent{TargetID: "c2"}))
}

func TestForwarding_ForwardedLegIsCleared(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("200", "300", 15)
	ctx := context.Background()

	out := fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c3", Called: "200"})
	require.True(t, out.Registered)
	assert.Equal(t, "15", out.MaxCall)

	res := fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c3", TargetID: "c3", Reason: "normal"})

	assert.Equal(t, DisconnectLegCleared, res)
	assert.Equal(t, 0, fx.store.Len())
}

func TestForwarding_NotForwardedReasonRetires(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	ctx := context.Background()

	require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100"}).Registered)

	assert.Equal(t, DisconnectNotForwarded, fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c1", Reason: "normal"}))
	assert.Equal(t, 0, fx.store.Len())
}

func TestForwarding_FailuresStillRetire(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mocks.MockEngine)
	}{
		{
			name: "route error",
			setup: func(e *mocks.MockEngine) {
				e.EXPECT().Route(mock.Anything, mock.Anything).
					Return("", domain.NewUnavailableError("engine", "timeout")).Once()
			},
		},
		{
			name: "route refused",
			setup: func(e *mocks.MockEngine) {
				e.EXPECT().Route(mock.Anything, mock.Anything).Return(domain.RetValueReject, nil).Once()
			},
		},
		{
			name: "route error sentinel",
			setup: func(e *mocks.MockEngine) {
				e.EXPECT().Route(mock.Anything, mock.Anything).Return(domain.RetValueError, nil).Once()
			},
		},
		{
			name: "route empty",
			setup: func(e *mocks.MockEngine) {
				e.EXPECT().Route(mock.Anything, mock.Anything).Return("", nil).Once()
			},
		},
		{
			name: "execute error",
			setup: func(e *mocks.MockEngine) {
				e.EXPECT().Route(mock.Anything, mock.Anything).Return("sip/200", nil).Once()
				e.EXPECT().Execute(mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newForwardFixture(t)
			fx.rule("100", "200", 20)
			ctx := context.Background()
			leg := &fakeLeg{id: "sip/1"}

			require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: leg}).Registered)
			tt.setup(fx.engine)

			res := fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c1", Reason: ReasonNoAnswer})

			assert.Equal(t, DisconnectForwardFailed, res)
			assert.Equal(t, 0, fx.store.Len())
			assert.Equal(t, int32(0), leg.held())
		})
	}
}

func TestForwarding_OnExecuteSkips(t *testing.T) {
	tests := []struct {
		name  string
		ev    ExecuteEvent
		setup func(*forwardFixture)
	}{
		{
			name: "no rule",
			ev:   ExecuteEvent{CallID: "c1", Called: "999"},
			setup: func(fx *forwardFixture) {
				fx.dir.EXPECT().ForwardRule(mock.Anything, "default", "999").
					Return(nil, domain.NewNoRuleError("forwarder", "999"))
			},
		},
		{
			name: "directory unavailable",
			ev:   ExecuteEvent{CallID: "c1", Called: "999"},
			setup: func(fx *forwardFixture) {
				fx.dir.EXPECT().ForwardRule(mock.Anything, "default", "999").
					Return(nil, domain.NewUnavailableError("directory", "closed"))
			},
		},
		{
			name:  "no called number",
			ev:    ExecuteEvent{CallID: "c1"},
			setup: func(*forwardFixture) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newForwardFixture(t)
			tt.setup(fx)

			out := fx.fwd.OnExecute(context.Background(), tt.ev)

			assert.False(t, out.Registered)
			assert.Empty(t, out.MaxCall)
			assert.Equal(t, 0, fx.store.Len())
		})
	}
}

func TestForwarding_DuplicateExecute(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	ctx := context.Background()
	first := &fakeLeg{id: "sip/1"}
	second := &fakeLeg{id: "sip/2"}

	require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: first}).Registered)

	out := fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: second})

	assert.False(t, out.Registered)
	assert.Equal(t, 1, fx.store.Len())
	assert.Equal(t, int32(1), first.held())
	assert.Equal(t, int32(0), second.held())
}

func TestForwarding_RelayHandlers(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	r := relay.New(relay.Config{Logger: discardLogger()})
	r.Load(fx.fwd)
	ctx := context.Background()

	exec := domain.NewMessage(domain.HookCallExecute)
	exec.Set(domain.ParamID, "c1")
	exec.Set(domain.ParamCalled, "100")

	assert.False(t, r.Dispatch(ctx, exec), "execute is observed, never claimed")
	assert.Equal(t, "20", exec.Get(domain.ParamMaxCall))
	assert.Equal(t, 1, fx.store.Len())

	answered := domain.NewMessage(domain.HookCallAnswered)
	answered.Set(domain.ParamTargetID, "c1")

	assert.False(t, r.Dispatch(ctx, answered))
	assert.Equal(t, 0, fx.store.Len())

	disc := domain.NewMessage(domain.HookChanDisconnected)
	disc.Set(domain.ParamID, "c1")
	disc.Set(domain.ParamReason, ReasonNoAnswer)

	assert.False(t, r.Dispatch(ctx, disc))
}

func TestForwarding_UnloadBusy(t *testing.T) {
	fx := newForwardFixture(t)
	r := relay.New(relay.Config{Logger: discardLogger()})
	r.Load(fx.fwd)

	unlock, err := fx.store.TryLock(time.Second)
	require.NoError(t, err)

	err = r.Unload(context.Background(), fx.fwd)
	require.ErrorIs(t, err, domain.ErrBusy)
	assert.Len(t, r.Hooks(), 3)

	unlock()

	require.NoError(t, r.Unload(context.Background(), fx.fwd))
	assert.Empty(t, r.Hooks())
}

func TestForwarding_RacingDisconnectsForwardOnce(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	ctx := context.Background()
	leg := &fakeLeg{id: "sip/1"}

	require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: leg}).Registered)

	routing := make(chan struct{})
	proceed := make(chan struct{})

	fx.engine.EXPECT().Route(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, ports.RouteRequest) (string, error) {
			close(routing)
			<-proceed

			return "sip/200@pbx", nil
		}).Once()
	fx.engine.EXPECT().Execute(mock.Anything, mock.Anything).Return(nil).Once()

	ev := DisconnectEvent{ID: "c1", Reason: ReasonNoAnswer}
	first := make(chan DisconnectResult, 1)

	go func() { first <- fx.fwd.OnDisconnected(ctx, ev) }()

	<-routing
	assert.Equal(t, DisconnectUnknown, fx.fwd.OnDisconnected(ctx, ev), "the call is already claimed")
	assert.Equal(t, int32(1), leg.held(), "the forwarding handler keeps the leg while routing")

	close(proceed)

	assert.Equal(t, DisconnectForwarded, <-first)
	assert.Equal(t, 0, fx.store.Len())
	assert.Equal(t, int32(0), leg.held())
}

func TestForwarding_ForwardedExecuteReentersWithSameID(t *testing.T) {
	fx := newForwardFixture(t)
	fx.rule("100", "200", 20)
	fx.rule("200", "300", 30)
	ctx := context.Background()
	leg := &fakeLeg{id: "sip/1"}

	require.True(t, fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: "c1", Called: "100", Resource: leg}).Registered)

	var nested ExecuteOutcome

	fx.engine.EXPECT().Route(mock.Anything, mock.Anything).Return("sip/200@pbx", nil).Once()
	fx.engine.EXPECT().Execute(mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, req ports.ExecuteRequest) error {
			nested = fx.fwd.OnExecute(ctx, ExecuteEvent{CallID: req.ID, Called: req.Called, Resource: req.Resource})
			return nil
		}).Once()

	res := fx.fwd.OnDisconnected(ctx, DisconnectEvent{ID: "c1", Reason: ReasonNoAnswer})

	assert.Equal(t, DisconnectForwarded, res)
	assert.True(t, nested.Registered, "the forwarded execute is tracked under the reused id")
	assert.Equal(t, "30", nested.MaxCall)

	c, ok := fx.store.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "200", c.DestinationKey)
	assert.Equal(t, int32(1), leg.held(), "only the forwarded leg's context holds the handle")
}
