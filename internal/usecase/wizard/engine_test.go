package wizard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"tg-content-assistant/internal/adapters/session"
	"tg-content-assistant/internal/domain"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

type fakeRunner struct {
	actions []Action
	err     error
}

func (f *fakeRunner) Run(_ context.Context, _ int64, action Action) (Result, error) {
	f.actions = append(f.actions, action)
	if f.err != nil {
		return Result{}, f.err
	}
	switch action.Kind {
	case ActionCreateStyle:
		return Result{Style: &domain.Style{ID: 1, Name: action.Style.Name, Examples: action.Style.Examples}}, nil
	case ActionSchedulePost:
		return Result{Job: &domain.ScheduledJob{ID: "job", FireTime: action.Schedule.FireTime}}, nil
	}
	return Result{}, nil
}

func newTestEngine(runner ActionRunner) (*Engine, *session.Memory) {
	store := session.NewMemory(0)
	return NewEngine(store, runner, fixedClock(testEnv.Now), time.UTC, zerolog.Nop()), store
}

func TestEngineStyleFlow(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	engine, _ := newTestEngine(runner)

	out, err := engine.Start(ctx, 7, KindStyleCreate, domain.Fields{})
	require.NoError(t, err)
	require.Equal(t, StageStyleExamples, out.Directive.Stage)

	for _, example := range []string{"ex1", "ex2", "ex3"} {
		out, err = engine.Handle(ctx, 7, text(example))
		require.NoError(t, err)
		require.Equal(t, DirectivePrompt, out.Directive.Kind)
	}
	out, err = engine.Handle(ctx, 7, Event{Kind: EventDone})
	require.NoError(t, err)
	require.Equal(t, StageStyleName, out.Directive.Stage)

	out, err = engine.Handle(ctx, 7, text("Сухой"))
	require.NoError(t, err)
	require.Equal(t, DirectiveCompleted, out.Directive.Kind)
	require.NotNil(t, out.Result.Style)
	require.Equal(t, "ex1\n\n---\n\nex2\n\n---\n\nex3", out.Result.Style.Examples)
	require.Len(t, runner.actions, 1)

	_, ok, err := engine.Active(ctx, 7)
	require.NoError(t, err)
	require.False(t, ok, "после завершения сессия должна удаляться")
}

func TestEngineInvalidLinkKeepsFields(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(&fakeRunner{})

	_, err := engine.Start(ctx, 7, KindChannelCreate, domain.Fields{})
	require.NoError(t, err)
	_, err = engine.Handle(ctx, 7, text("Новости"))
	require.NoError(t, err)

	out, err := engine.Handle(ctx, 7, text("daily_news"))
	require.NoError(t, err)
	require.Equal(t, DirectiveReprompt, out.Directive.Kind)
	require.ErrorIs(t, out.Err, domain.ErrValidationFailed)

	s, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StageChannelLink, s.Stage)
	require.Equal(t, "Новости", *s.Fields.ChannelName)
	require.Nil(t, s.Fields.ChannelLink)
}

func TestEngineRepromptsOnInvalidTimeFromScheduler(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{err: domain.ErrInvalidTime}
	engine, store := newTestEngine(runner)

	_, err := engine.Start(ctx, 7, KindPostSchedule, domain.Fields{PostID: int64Ptr(5)})
	require.NoError(t, err)
	_, err = engine.Handle(ctx, 7, choice("3"))
	require.NoError(t, err)

	out, err := engine.Handle(ctx, 7, text("2025-01-01 09:00"))
	require.NoError(t, err)
	require.Equal(t, DirectiveReprompt, out.Directive.Kind)
	require.Equal(t, ReasonPastTime, out.Directive.Reason)

	s, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StageScheduleTime, s.Stage)
	require.Equal(t, int64(3), *s.Fields.ChannelID)
}

func TestEngineAbortsOnDomainErrors(t *testing.T) {
	cases := []struct {
		cause  error
		reason string
	}{
		{domain.ErrInsufficientBalance, ReasonNoBalance},
		{domain.ErrImmutable, ReasonImmutable},
		{errors.Join(domain.ErrTransformFailed, domain.ErrContentPolicy), ReasonContentPolicy},
		{domain.ErrTransformFailed, ReasonTransform},
	}
	for _, tc := range cases {
		cause, reason := tc.cause, tc.reason
		ctx := context.Background()
		engine, store := newTestEngine(&fakeRunner{err: cause})
		_, err := engine.Start(ctx, 7, KindPostCreate, domain.Fields{StyleID: int64Ptr(1)})
		require.NoError(t, err)

		out, err := engine.Handle(ctx, 7, text("черновик"))
		require.NoError(t, err)
		require.Equal(t, DirectiveFailed, out.Directive.Kind)
		require.Equal(t, reason, out.Directive.Reason)
		require.ErrorIs(t, out.Err, cause)

		_, ok, err := store.Get(ctx, 7)
		require.NoError(t, err)
		require.False(t, ok, "сессия должна удаляться при %v", cause)
	}
}

func TestEngineKeepsSessionOnInternalError(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(&fakeRunner{err: errors.New("connection refused")})
	_, err := engine.Start(ctx, 7, KindPostCreate, domain.Fields{})
	require.NoError(t, err)
	_, err = engine.Handle(ctx, 7, Event{Kind: EventDone})
	require.NoError(t, err)

	out, err := engine.Handle(ctx, 7, text("текст"))
	require.NoError(t, err)
	require.Equal(t, DirectiveFailed, out.Directive.Kind)
	require.Equal(t, ReasonInternal, out.Directive.Reason)

	s, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, StagePostContent, s.Stage)
}

func TestEngineCancelAndIdle(t *testing.T) {
	ctx := context.Background()
	runner := &fakeRunner{}
	engine, _ := newTestEngine(runner)

	out, err := engine.Handle(ctx, 7, text("привет"))
	require.NoError(t, err)
	require.Equal(t, DirectiveIdle, out.Directive.Kind)

	_, err = engine.Start(ctx, 7, KindChannelCreate, domain.Fields{})
	require.NoError(t, err)
	out, err = engine.Handle(ctx, 7, Event{Kind: EventCancel})
	require.NoError(t, err)
	require.Equal(t, DirectiveCancelled, out.Directive.Kind)

	out, err = engine.Handle(ctx, 7, Event{Kind: EventCancel})
	require.NoError(t, err)
	require.Equal(t, DirectiveCancelled, out.Directive.Kind)
	require.Empty(t, runner.actions)
}

func TestEngineStartOverwritesSession(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(&fakeRunner{})

	_, err := engine.Start(ctx, 7, KindChannelCreate, domain.Fields{})
	require.NoError(t, err)
	_, err = engine.Handle(ctx, 7, text("Новости"))
	require.NoError(t, err)

	_, err = engine.Handle(ctx, 7, Event{Kind: EventStart, Wizard: KindStyleCreate})
	require.NoError(t, err)
	s, ok, err := store.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindStyleCreate, s.Wizard)
	require.Nil(t, s.Fields.ChannelName)
}
