package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
	"tg-content-assistant/internal/usecase/channels"
)

// Outcome описывает результат обработки события для слоя доставки сообщений.
type Outcome struct {
	Directive Directive
	Result    Result
	// Err содержит доменную ошибку, которую нужно показать пользователю.
	Err error
}

// Engine связывает хранилище сессий, переходы и завершающие действия.
type Engine struct {
	store  domain.SessionStore
	runner ActionRunner
	clock  domain.Clock
	loc    *time.Location
	logger zerolog.Logger
}

// NewEngine создаёт движок диалогов.
func NewEngine(store domain.SessionStore, runner ActionRunner, clock domain.Clock, loc *time.Location, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, runner: runner, clock: clock, loc: loc, logger: logger}
}

// Start начинает диалог kind, заменяя активную сессию пользователя.
func (e *Engine) Start(ctx context.Context, userID int64, kind domain.WizardKind, seed domain.Fields) (Outcome, error) {
	session, directive, err := Begin(userID, kind, seed, e.clock.Now())
	if err != nil {
		return Outcome{}, err
	}
	unlock, err := e.store.Lock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("блокировка сессии: %w", err)
	}
	defer unlock()
	if err := e.store.Put(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("сохранение сессии: %w", err)
	}
	metrics.ObserveWizard(string(kind), "started")
	return Outcome{Directive: directive}, nil
}

// Active возвращает активную сессию пользователя.
func (e *Engine) Active(ctx context.Context, userID int64) (domain.Session, bool, error) {
	return e.store.Get(ctx, userID)
}

// Handle применяет событие к активной сессии пользователя.
// Ошибка возвращается только при сбое хранилища сессий; доменные ошибки
// передаются в Outcome.Err вместе с подходящей директивой.
func (e *Engine) Handle(ctx context.Context, userID int64, ev Event) (Outcome, error) {
	if ev.Kind == EventStart {
		return e.Start(ctx, userID, ev.Wizard, ev.Seed)
	}
	unlock, err := e.store.Lock(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("блокировка сессии: %w", err)
	}
	defer unlock()

	session, ok, err := e.store.Get(ctx, userID)
	if err != nil {
		return Outcome{}, fmt.Errorf("чтение сессии: %w", err)
	}
	if !ok {
		if ev.Kind == EventCancel {
			return Outcome{Directive: Directive{Kind: DirectiveCancelled}}, nil
		}
		return Outcome{Directive: Directive{Kind: DirectiveIdle}}, nil
	}

	var step Step
	env := Env{Now: e.clock.Now(), Location: e.loc}
	err = e.store.ReadFields(ctx, userID, func(fields domain.Fields) error {
		session.Fields = fields
		step = Transition(session, ev, env)
		return nil
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("чтение полей сессии: %w", err)
	}

	logger := e.logger.With().
		Int64("user", userID).
		Str("wizard", string(session.Wizard)).
		Str("stage", string(session.Stage)).
		Logger()

	if step.Action != nil {
		return e.execute(ctx, session, step, logger)
	}
	if step.End {
		if err := e.store.Delete(ctx, userID); err != nil {
			return Outcome{}, fmt.Errorf("удаление сессии: %w", err)
		}
		metrics.ObserveWizard(string(session.Wizard), string(step.Directive.Kind))
		return Outcome{Directive: step.Directive, Err: step.Err}, nil
	}
	if !step.Delta.IsZero() {
		if err := e.store.MergeFields(ctx, userID, step.Delta); err != nil {
			return Outcome{}, fmt.Errorf("сохранение полей сессии: %w", err)
		}
	}
	if step.Next != session.Stage {
		if err := e.store.SetStage(ctx, userID, step.Next); err != nil {
			return Outcome{}, fmt.Errorf("смена шага сессии: %w", err)
		}
	}
	metrics.ObserveWizard(string(session.Wizard), string(step.Directive.Kind))
	logger.Debug().Str("next", string(step.Next)).Str("directive", string(step.Directive.Kind)).Msg("шаг диалога")
	return Outcome{Directive: step.Directive, Err: step.Err}, nil
}

func (e *Engine) execute(ctx context.Context, session domain.Session, step Step, logger zerolog.Logger) (Outcome, error) {
	result, err := e.runner.Run(ctx, session.UserID, *step.Action)
	if err == nil {
		if err := e.store.Delete(ctx, session.UserID); err != nil {
			return Outcome{}, fmt.Errorf("удаление сессии: %w", err)
		}
		metrics.ObserveWizard(string(session.Wizard), string(DirectiveCompleted))
		logger.Info().Str("action", string(step.Action.Kind)).Msg("диалог завершён")
		return Outcome{Directive: step.Directive, Result: result}, nil
	}

	directive := Directive{Wizard: session.Wizard, Stage: session.Stage, Reason: ReasonFor(err)}
	switch {
	case errors.Is(err, domain.ErrValidationFailed), errors.Is(err, domain.ErrInvalidTime):
		directive.Kind = DirectiveReprompt
		if session.Fields.EditField != nil {
			directive.Field = *session.Fields.EditField
		}
	case abortsWizard(err):
		directive.Kind = DirectiveFailed
		if err := e.store.Delete(ctx, session.UserID); err != nil {
			return Outcome{}, fmt.Errorf("удаление сессии: %w", err)
		}
		logger.Warn().Err(err).Str("action", string(step.Action.Kind)).Msg("диалог прерван")
	default:
		// Сессия сохраняется: пользователь может повторить ввод или отменить диалог.
		directive.Kind = DirectiveFailed
		logger.Error().Err(err).Str("action", string(step.Action.Kind)).Msg("не удалось выполнить действие диалога")
	}
	metrics.ObserveWizard(string(session.Wizard), string(directive.Kind))
	return Outcome{Directive: directive, Err: err}, nil
}

func abortsWizard(err error) bool {
	for _, target := range []error{
		domain.ErrNotFound,
		domain.ErrImmutable,
		domain.ErrInsufficientBalance,
		domain.ErrTransformFailed,
		domain.ErrAlreadyFired,
		channels.ErrChannelLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// ReasonFor возвращает ключ сообщения для доменной ошибки.
func ReasonFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, channels.ErrLinkInvalid):
		return ReasonInvalidLink
	case errors.Is(err, domain.ErrInvalidTime):
		return ReasonPastTime
	case errors.Is(err, domain.ErrValidationFailed):
		return ReasonValidation
	case errors.Is(err, domain.ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, domain.ErrImmutable):
		return ReasonImmutable
	case errors.Is(err, domain.ErrInsufficientBalance):
		return ReasonNoBalance
	case errors.Is(err, domain.ErrContentPolicy):
		return ReasonContentPolicy
	case errors.Is(err, domain.ErrTransformFailed):
		return ReasonTransform
	case errors.Is(err, domain.ErrAlreadyFired):
		return ReasonAlreadyFired
	case errors.Is(err, channels.ErrChannelLimit):
		return ReasonChannelLimit
	default:
		return ReasonInternal
	}
}
