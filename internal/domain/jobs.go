package domain

import (
	"context"
	"time"
)

// JobStatus описывает состояние задачи отложенной публикации.
type JobStatus string

const (
	// JobPending ожидает наступления времени публикации.
	JobPending JobStatus = "pending"
	// JobDelivered доставлена в канал.
	JobDelivered JobStatus = "delivered"
	// JobFailed исчерпала попытки или канал недоступен.
	JobFailed JobStatus = "failed"
)

// JobPayload фиксирует содержимое поста на момент подтверждения расписания.
type JobPayload struct {
	ChannelTag string `json:"channel_tag"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content"`
	PhotoRef   string `json:"photo_ref,omitempty"`
}

// ScheduledJob описывает отложенную публикацию поста в канал.
type ScheduledJob struct {
	ID            string
	PostID        int64
	ChannelID     int64
	OwnerID       int64
	FireTime      time.Time
	NextAttemptAt time.Time
	Payload       JobPayload
	Status        JobStatus
	Attempts      int
	LastError     string
	DeliveredAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fired сообщает, что задача больше не ожидает запуска.
func (j ScheduledJob) Fired() bool {
	return j.Status == JobDelivered || j.Status == JobFailed
}

// JobStore хранит задачи публикации и даёт эксклюзивный захват задачи.
type JobStore interface {
	// InsertJob создаёт задачу; при совпадении идентификатора возвращает false без ошибки.
	InsertJob(ctx context.Context, job ScheduledJob) (bool, error)
	GetJob(ctx context.Context, id string) (ScheduledJob, error)
	// DeletePendingJob удаляет ожидающую и не захваченную задачу.
	DeletePendingJob(ctx context.Context, id string, now time.Time) (bool, error)
	// DeletePendingForChannel удаляет ожидающие незахваченные задачи поста в канал.
	DeletePendingForChannel(ctx context.Context, postID, channelID int64, now time.Time) (int, error)
	// ReplaceJob атомарно удаляет ожидающую задачу oldID и создаёт next.
	// Если oldID не в состоянии pending или захвачена, возвращает false.
	ReplaceJob(ctx context.Context, oldID string, next ScheduledJob, now time.Time) (bool, error)
	// ListDue возвращает ожидающие задачи с next_attempt_at <= now, старые первыми.
	ListDue(ctx context.Context, now time.Time, limit int) ([]ScheduledJob, error)
	// NextAttemptAt возвращает ближайшее время попытки среди ожидающих задач.
	NextAttemptAt(ctx context.Context) (time.Time, bool, error)
	// ClaimJob захватывает ожидающую задачу, срок попытки которой наступил, владельцем
	// owner на ttl и возвращает её актуальное состояние. false означает, что задачу
	// уже захватили, закрыли или перенесли на более позднюю попытку.
	ClaimJob(ctx context.Context, id, owner string, now time.Time, ttl time.Duration) (ScheduledJob, bool, error)
	MarkJobDelivered(ctx context.Context, id string, at time.Time) error
	// RecordJobFailure фиксирует неудачную попытку; final переводит задачу в failed.
	RecordJobFailure(ctx context.Context, id string, attempts int, lastErr string, nextAttempt time.Time, final bool) error
	// RepairPublished отмечает опубликованными посты, у которых есть доставленная
	// задача, а флаг не выставлен. Возвращает число исправленных постов.
	RepairPublished(ctx context.Context) (int, error)
	ListJobs(ctx context.Context, status JobStatus, limit int) ([]ScheduledJob, error)
	CountJobs(ctx context.Context, status JobStatus) (int, error)
}
