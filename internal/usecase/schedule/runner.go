package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/keylock"
	"tg-content-assistant/internal/infra/metrics"
)

const (
	outcomeDelivered = "delivered"
	outcomeRetry     = "retry"
	outcomeFailed    = "failed"
)

// minWait не даёт циклу крутиться вхолостую, пока чужой захват задачи не истёк.
const minWait = time.Second

// RunnerConfig задаёт параметры цикла публикации.
type RunnerConfig struct {
	Owner       string
	Tick        time.Duration
	LeaseTTL    time.Duration
	MaxAttempts int
	BatchSize   int
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.Owner == "" {
		c.Owner = "scheduler"
	}
	if c.Tick <= 0 {
		c.Tick = 30 * time.Second
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 2 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Runner доставляет задачи, время которых наступило.
type Runner struct {
	jobs   domain.JobStore
	posts  domain.PostRepo
	sender domain.ChannelSender
	clock  domain.Clock
	cfg    RunnerConfig
	locks  *keylock.Map[string]
	wake   chan struct{}
	logger zerolog.Logger
}

// NewRunner создаёт цикл публикации.
func NewRunner(jobs domain.JobStore, posts domain.PostRepo, sender domain.ChannelSender, clock domain.Clock, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Runner{
		jobs:   jobs,
		posts:  posts,
		sender: sender,
		clock:  clock,
		cfg:    cfg.withDefaults(),
		locks:  keylock.New[string](),
		wake:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Wake просит цикл проверить очередь досрочно.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Notify реализует Notifier для запуска в одном процессе с ботом.
func (r *Runner) Notify(context.Context) error {
	r.Wake()
	return nil
}

// Run обрабатывает очередь до отмены контекста. Первый проход выполняется
// сразу, поэтому просроченные за время простоя задачи уходят при старте.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().Dur("tick", r.cfg.Tick).Int("max_attempts", r.cfg.MaxAttempts).Msg("планировщик публикаций запущен")
	for {
		if _, err := r.Tick(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("ошибка прохода планировщика")
		}
		timer := time.NewTimer(r.nextWait(ctx))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info().Msg("планировщик публикаций остановлен")
			return nil
		case <-r.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (r *Runner) nextWait(ctx context.Context) time.Duration {
	wait := r.cfg.Tick
	next, ok, err := r.jobs.NextAttemptAt(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("не удалось получить время ближайшей задачи")
		return wait
	}
	if ok {
		if until := next.Sub(r.clock.Now()); until < wait {
			wait = until
		}
	}
	if wait < minWait {
		wait = minWait
	}
	return wait
}

// Tick выполняет один проход: задачи берутся по возрастанию времени публикации
// и доставляются последовательно. Возвращает число доставленных задач.
func (r *Runner) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.SchedulerTickSeconds.Observe(time.Since(start).Seconds()) }()

	if repaired, err := r.jobs.RepairPublished(ctx); err != nil {
		r.logger.Warn().Err(err).Msg("не удалось сверить отметки публикации")
	} else if repaired > 0 {
		r.logger.Info().Int("posts", repaired).Msg("посты с доставленными задачами отмечены опубликованными")
	}

	due, err := r.jobs.ListDue(ctx, r.clock.Now(), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("выборка задач: %w", err)
	}
	delivered := 0
	var errs []error
	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.process(ctx, job)
		if err != nil {
			errs = append(errs, err)
		}
		if ok {
			delivered++
		}
	}
	if pending, err := r.jobs.CountJobs(ctx, domain.JobPending); err == nil {
		metrics.SchedulerPendingJobs.Set(float64(pending))
	}
	return delivered, errors.Join(errs...)
}

func (r *Runner) process(ctx context.Context, job domain.ScheduledJob) (bool, error) {
	unlock, ok := r.locks.TryLock(job.ID)
	if !ok {
		return false, nil
	}
	defer unlock()

	// Выборка могла устареть: другой планировщик успел доставить задачу или
	// перенести попытку. Дальше работаем только с захваченной строкой.
	fresh, claimed, err := r.jobs.ClaimJob(ctx, job.ID, r.cfg.Owner, r.clock.Now(), r.cfg.LeaseTTL)
	if err != nil {
		return false, fmt.Errorf("захват задачи %s: %w", job.ID, err)
	}
	if !claimed {
		return false, nil
	}
	job = fresh
	logger := r.logger.With().
		Str("job_id", job.ID).
		Int64("post", job.PostID).
		Str("channel", job.Payload.ChannelTag).
		Int("attempt", job.Attempts+1).
		Logger()

	deliverCtx, cancel := context.WithTimeout(ctx, r.cfg.LeaseTTL/2)
	err = r.sender.Deliver(deliverCtx, job.Payload.ChannelTag, job.Payload.Content, job.Payload.PhotoRef)
	cancel()
	if err != nil {
		return false, r.recordFailure(ctx, job, err, logger)
	}

	at := r.clock.Now()
	if marked, err := r.posts.MarkPublished(ctx, job.PostID, at); err != nil {
		logger.Error().Err(err).Msg("пост доставлен, но не отмечен опубликованным, исправим на следующем проходе")
	} else if !marked {
		logger.Debug().Msg("пост уже отмечен опубликованным")
	}
	if err := r.jobs.MarkJobDelivered(ctx, job.ID, at); err != nil {
		logger.Error().Err(err).Msg("пост доставлен, но задача не закрыта")
		return true, fmt.Errorf("закрытие задачи %s: %w", job.ID, err)
	}
	metrics.ObserveDelivery(outcomeDelivered)
	logger.Info().Dur("delay", at.Sub(job.FireTime)).Msg("пост опубликован")
	return true, nil
}

func (r *Runner) recordFailure(ctx context.Context, job domain.ScheduledJob, cause error, logger zerolog.Logger) error {
	attempts := job.Attempts + 1
	final := errors.Is(cause, domain.ErrDestinationInvalid) || errors.Is(cause, domain.ErrValidationFailed) ||
		attempts >= r.cfg.MaxAttempts
	next := r.clock.Now().Add(r.cfg.Tick)
	if err := r.jobs.RecordJobFailure(ctx, job.ID, attempts, cause.Error(), next, final); err != nil {
		return fmt.Errorf("фиксация ошибки доставки %s: %w", job.ID, err)
	}
	if final {
		metrics.ObserveDelivery(outcomeFailed)
		logger.Error().Err(cause).Msg("публикация не удалась, задача закрыта")
		return nil
	}
	metrics.ObserveDelivery(outcomeRetry)
	logger.Warn().Err(cause).Time("next_attempt", next).Msg("публикация не удалась, повторим позже")
	return nil
}
