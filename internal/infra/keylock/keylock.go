package keylock

import (
	"context"
	"sync"
)

// Map выдаёт взаимоисключающую блокировку на ключ.
// Записи без владельцев и ожидающих удаляются.
type Map[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// New создаёт пустую карту блокировок.
func New[K comparable]() *Map[K] {
	return &Map[K]{locks: make(map[K]*entry)}
}

// Lock ждёт освобождения ключа или отмены ctx.
func (m *Map[K]) Lock(ctx context.Context, key K) (func(), error) {
	e := m.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return m.unlocker(key, e), nil
	case <-ctx.Done():
		m.release(key, e)
		return nil, ctx.Err()
	}
}

// TryLock захватывает ключ, только если он свободен.
func (m *Map[K]) TryLock(key K) (func(), bool) {
	e := m.acquire(key)
	select {
	case e.sem <- struct{}{}:
		return m.unlocker(key, e), true
	default:
		m.release(key, e)
		return nil, false
	}
}

// Len возвращает число ключей, которые сейчас удерживаются или ожидаются.
func (m *Map[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

func (m *Map[K]) acquire(key K) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	return e
}

func (m *Map[K]) release(key K, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

func (m *Map[K]) unlocker(key K, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			m.release(key, e)
		})
	}
}
