package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
)

// jobNamespace задаёт пространство имён детерминированных идентификаторов задач.
var jobNamespace = uuid.MustParse("3b0d8f5e-6a51-4c1e-9d0b-5f3f0c8e2a17")

// JobID выводит идентификатор задачи из поста, канала и времени публикации.
// Повторная постановка с теми же параметрами даёт тот же идентификатор.
func JobID(postID, channelID int64, fireTime time.Time) string {
	name := fmt.Sprintf("%d:%d:%d", postID, channelID, fireTime.UTC().Unix())
	return uuid.NewSHA1(jobNamespace, []byte(name)).String()
}

// Notifier будит цикл публикации после изменения очереди.
type Notifier interface {
	Notify(ctx context.Context) error
}

// Service ставит посты в очередь публикации и управляет задачами.
type Service struct {
	jobs     domain.JobStore
	posts    domain.PostRepo
	channels domain.ChannelRepo
	notifier Notifier
	clock    domain.Clock
	logger   zerolog.Logger
}

// NewService создаёт сервис расписания. notifier может быть nil.
func NewService(jobs domain.JobStore, posts domain.PostRepo, channels domain.ChannelRepo, notifier Notifier, clock domain.Clock, logger zerolog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Service{jobs: jobs, posts: posts, channels: channels, notifier: notifier, clock: clock, logger: logger}
}

// Schedule ставит пост в очередь публикации в канал. Содержимое поста
// фиксируется в задаче и не перечитывается при доставке.
func (s *Service) Schedule(ctx context.Context, ownerID, postID, channelID int64, fireTime time.Time) (domain.ScheduledJob, error) {
	fireTime = fireTime.UTC().Truncate(time.Second)
	now := s.clock.Now()
	if err := ValidateFireTime(fireTime, now); err != nil {
		return domain.ScheduledJob{}, err
	}
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("получение поста: %w", err)
	}
	if post.OwnerID != ownerID {
		return domain.ScheduledJob{}, fmt.Errorf("пост %d: %w", postID, domain.ErrNotFound)
	}
	if post.IsPublished {
		return domain.ScheduledJob{}, domain.ErrImmutable
	}
	channel, err := s.channels.GetChannel(ctx, channelID)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("получение канала: %w", err)
	}
	if channel.OwnerID != ownerID {
		return domain.ScheduledJob{}, fmt.Errorf("канал %d: %w", channelID, domain.ErrNotFound)
	}

	job := domain.ScheduledJob{
		ID:            JobID(postID, channelID, fireTime),
		PostID:        postID,
		ChannelID:     channelID,
		OwnerID:       ownerID,
		FireTime:      fireTime,
		NextAttemptAt: fireTime,
		Status:        domain.JobPending,
		Payload: domain.JobPayload{
			ChannelTag: channel.Tag(),
			Title:      post.Title,
			Content:    post.Content,
			PhotoRef:   post.PhotoRef,
		},
	}
	created, err := s.jobs.InsertJob(ctx, job)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("сохранение задачи: %w", err)
	}
	if !created {
		existing, err := s.jobs.GetJob(ctx, job.ID)
		if err != nil {
			return domain.ScheduledJob{}, fmt.Errorf("получение задачи: %w", err)
		}
		return existing, nil
	}
	if err := s.posts.SetScheduledTime(ctx, postID, &fireTime); err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("сохранение времени публикации: %w", err)
	}
	s.wake(ctx)
	s.logger.Info().Str("job_id", job.ID).Int64("post", postID).Str("channel", job.Payload.ChannelTag).
		Time("fire_time", fireTime).Msg("публикация запланирована")
	return job, nil
}

// Cancel удаляет ожидающую задачу. Отсутствующая или уже выполненная задача
// не считается ошибкой. Если задача прямо сейчас доставляется, возвращает ErrJobBusy.
func (s *Service) Cancel(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("получение задачи: %w", err)
	}
	if job.Fired() {
		return nil
	}
	deleted, err := s.jobs.DeletePendingJob(ctx, jobID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	if !deleted {
		current, err := s.jobs.GetJob(ctx, jobID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("получение задачи: %w", err)
		}
		if current.Fired() {
			return nil
		}
		return domain.ErrJobBusy
	}
	s.clearScheduledTime(ctx, job)
	s.logger.Info().Str("job_id", jobID).Int64("post", job.PostID).Msg("публикация отменена")
	return nil
}

// CancelOwned отменяет задачу, только если она принадлежит пользователю.
func (s *Service) CancelOwned(ctx context.Context, ownerID int64, jobID string) error {
	job, err := s.jobs.GetJob(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("получение задачи: %w", err)
	}
	if job.OwnerID != ownerID {
		return fmt.Errorf("задача %s: %w", jobID, domain.ErrNotFound)
	}
	return s.Cancel(ctx, jobID)
}

// Reschedule переносит ожидающую задачу на новое время. Старая задача
// удаляется и новая создаётся в одной транзакции.
func (s *Service) Reschedule(ctx context.Context, jobID string, fireTime time.Time) (domain.ScheduledJob, error) {
	fireTime = fireTime.UTC().Truncate(time.Second)
	old, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("получение задачи: %w", err)
	}
	if old.Fired() {
		return domain.ScheduledJob{}, domain.ErrAlreadyFired
	}
	now := s.clock.Now()
	if err := ValidateFireTime(fireTime, now); err != nil {
		return domain.ScheduledJob{}, err
	}

	next := old
	next.ID = JobID(old.PostID, old.ChannelID, fireTime)
	next.FireTime = fireTime
	next.NextAttemptAt = fireTime
	next.Status = domain.JobPending
	next.Attempts = 0
	next.LastError = ""
	next.DeliveredAt = nil
	if next.ID == old.ID {
		return old, nil
	}

	replaced, err := s.jobs.ReplaceJob(ctx, old.ID, next, now)
	if err != nil {
		return domain.ScheduledJob{}, fmt.Errorf("перенос задачи: %w", err)
	}
	if !replaced {
		current, err := s.jobs.GetJob(ctx, old.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.ScheduledJob{}, fmt.Errorf("задача %s: %w", jobID, domain.ErrNotFound)
		case err != nil:
			return domain.ScheduledJob{}, fmt.Errorf("получение задачи: %w", err)
		case current.Fired():
			return domain.ScheduledJob{}, domain.ErrAlreadyFired
		default:
			return domain.ScheduledJob{}, domain.ErrJobBusy
		}
	}
	if err := s.posts.SetScheduledTime(ctx, old.PostID, &fireTime); err != nil {
		s.logger.Warn().Err(err).Int64("post", old.PostID).Msg("не удалось обновить время публикации поста")
	}
	s.wake(ctx)
	s.logger.Info().Str("job_id", next.ID).Str("previous_job_id", old.ID).Time("fire_time", fireTime).Msg("публикация перенесена")
	return next, nil
}

// ListJobs возвращает задачи со статусом; пустой статус означает все.
func (s *Service) ListJobs(ctx context.Context, status domain.JobStatus, limit int) ([]domain.ScheduledJob, error) {
	if limit <= 0 {
		limit = 50
	}
	jobs, err := s.jobs.ListJobs(ctx, status, limit)
	if err != nil {
		return nil, fmt.Errorf("получение задач: %w", err)
	}
	return jobs, nil
}

func (s *Service) clearScheduledTime(ctx context.Context, job domain.ScheduledJob) {
	post, err := s.posts.GetPost(ctx, job.PostID)
	if err != nil || post.ScheduledTime == nil || !post.ScheduledTime.Equal(job.FireTime) {
		return
	}
	if err := s.posts.SetScheduledTime(ctx, job.PostID, nil); err != nil {
		s.logger.Warn().Err(err).Int64("post", job.PostID).Msg("не удалось сбросить время публикации")
	}
}

func (s *Service) wake(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("не удалось разбудить планировщик")
	}
}
