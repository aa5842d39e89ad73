package keylock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	m := New[int64]()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(context.Background(), 1)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	if maxInside.Load() != 1 {
		t.Fatalf("ожидали не более одного владельца, получили %d", maxInside.Load())
	}
	if m.Len() != 0 {
		t.Fatalf("карта должна опустеть, осталось %d", m.Len())
	}
}

func TestTryLockAndContextCancel(t *testing.T) {
	m := New[string]()
	unlock, ok := m.TryLock("job")
	if !ok {
		t.Fatal("первый TryLock должен пройти")
	}
	if _, ok := m.TryLock("job"); ok {
		t.Fatal("второй TryLock не должен пройти")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "job"); err == nil {
		t.Fatal("ожидали ошибку по таймауту")
	}
	unlock()
	unlock()
	if _, ok := m.TryLock("other"); !ok {
		t.Fatal("другой ключ должен быть свободен")
	}
}
