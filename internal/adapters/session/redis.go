package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/cache"
	"tg-content-assistant/internal/infra/metrics"
)

// Redis хранит сессии в Redis, чтобы несколько экземпляров шлюза
// видели одно состояние диалога.
type Redis struct {
	client  *redis.Client
	locker  *cache.Locker
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
}

var _ domain.SessionStore = (*Redis)(nil)

// NewRedis создаёт хранилище; ttl <= 0 отключает истечение.
func NewRedis(client *redis.Client, ttl, lockTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = 2 * time.Minute
	}
	return &Redis{
		client:  client,
		locker:  cache.NewLocker(client),
		prefix:  "wizard:session:",
		ttl:     ttl,
		lockTTL: lockTTL,
	}
}

func (r *Redis) key(userID int64) string {
	return r.prefix + strconv.FormatInt(userID, 10)
}

// Lock захватывает пользователя через распределённую блокировку.
func (r *Redis) Lock(ctx context.Context, userID int64) (func(), error) {
	return r.locker.Acquire(ctx, r.key(userID)+":lock", r.lockTTL)
}

// Get возвращает сессию.
func (r *Redis) Get(ctx context.Context, userID int64) (domain.Session, bool, error) {
	start := time.Now()
	raw, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "session_get", "sessions", start, nil)
		return domain.Session{}, false, nil
	}
	metrics.ObserveNetworkRequest("redis", "session_get", "sessions", start, err)
	if err != nil {
		return domain.Session{}, false, err
	}
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return domain.Session{}, false, fmt.Errorf("распаковка сессии: %w", err)
	}
	return s, true, nil
}

// Put заменяет сессию целиком.
func (r *Redis) Put(ctx context.Context, s domain.Session) error {
	s.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("упаковка сессии: %w", err)
	}
	ttl := r.ttl
	if ttl < 0 {
		ttl = 0
	}
	start := time.Now()
	err = r.client.Set(ctx, r.key(s.UserID), raw, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "session_put", "sessions", start, err)
	return err
}

func (r *Redis) update(ctx context.Context, userID int64, fn func(*domain.Session)) error {
	s, ok, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	fn(&s)
	return r.Put(ctx, s)
}

// SetStage меняет шаг. Вызывающий должен держать Lock.
func (r *Redis) SetStage(ctx context.Context, userID int64, stage domain.Stage) error {
	return r.update(ctx, userID, func(s *domain.Session) { s.Stage = stage })
}

// MergeFields дописывает поля. Вызывающий должен держать Lock.
func (r *Redis) MergeFields(ctx context.Context, userID int64, delta domain.Fields) error {
	return r.update(ctx, userID, func(s *domain.Session) { s.Fields = s.Fields.Merge(delta) })
}

// ReadFields передаёт поля в fn.
func (r *Redis) ReadFields(ctx context.Context, userID int64, fn func(domain.Fields) error) error {
	s, ok, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return fn(s.Fields)
}

// Delete удаляет сессию.
func (r *Redis) Delete(ctx context.Context, userID int64) error {
	start := time.Now()
	err := r.client.Del(ctx, r.key(userID)).Err()
	metrics.ObserveNetworkRequest("redis", "session_delete", "sessions", start, err)
	return err
}
