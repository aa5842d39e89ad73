package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-content-assistant/internal/infra/metrics"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker реализует блокировку по ключу через SET NX PX.
type Locker struct {
	client *redis.Client
	retry  time.Duration
}

// NewLocker создаёт блокировщик.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client, retry: 25 * time.Millisecond}
}

// Acquire ждёт, пока ключ освободится, и удерживает его не дольше ttl.
// Возвращённая функция снимает блокировку, только если она всё ещё наша.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	for {
		start := time.Now()
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		metrics.ObserveNetworkRequest("redis", "lock_acquire", "locks", start, err)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// Once выполняет функцию, если ключ ещё не задан.
func (l *Locker) Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error {
	ok, err := l.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := fn(); err != nil {
		_ = l.client.Del(ctx, key).Err()
		return err
	}
	return nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("cache: не удалось сгенерировать токен")
	}
	return hex.EncodeToString(buf), nil
}
