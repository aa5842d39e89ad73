package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisWakeQueue передаёт сигналы «появилась новая задача» между процессами
// через Redis list. Сигналы не несут данных: получатель сам читает хранилище.
type RedisWakeQueue struct {
	client *redis.Client
	key    string
}

// NewRedisWakeQueue создаёт очередь по указанному ключу.
func NewRedisWakeQueue(client *redis.Client, key string) *RedisWakeQueue {
	return &RedisWakeQueue{client: client, key: key}
}

// Notify публикует сигнал. Очередь обрезается, чтобы не копить дубликаты.
func (q *RedisWakeQueue) Notify(ctx context.Context) error {
	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.key, time.Now().UTC().Format(time.RFC3339Nano))
	pipe.LTrim(ctx, q.key, 0, 15)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push wake: %w", err)
	}
	return nil
}

// Pop блокирующе ждёт сигнал.
func (q *RedisWakeQueue) Pop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}
		if len(res) != 2 {
			return errors.New("redis queue: unexpected response")
		}
		return nil
	}
}

// Listen вызывает wake на каждый сигнал, пока ctx не отменён.
func (q *RedisWakeQueue) Listen(ctx context.Context, logger zerolog.Logger, wake func()) {
	for {
		err := q.Pop(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Error().Err(err).Msg("wake queue: ошибка чтения")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		wake()
	}
}
