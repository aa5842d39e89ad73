package session

import (
	"context"
	"sync"
	"time"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/keylock"
)

// Memory хранит сессии в памяти процесса.
// Просроченные сессии удаляются лениво при обращении.
type Memory struct {
	mu       sync.Mutex
	sessions map[int64]domain.Session
	locks    *keylock.Map[int64]
	ttl      time.Duration
	now      func() time.Time
}

var _ domain.SessionStore = (*Memory)(nil)

// NewMemory создаёт хранилище; ttl <= 0 отключает истечение.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		sessions: make(map[int64]domain.Session),
		locks:    keylock.New[int64](),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Lock захватывает пользователя.
func (m *Memory) Lock(ctx context.Context, userID int64) (func(), error) {
	return m.locks.Lock(ctx, userID)
}

func (m *Memory) load(userID int64) (domain.Session, bool) {
	s, ok := m.sessions[userID]
	if !ok {
		return domain.Session{}, false
	}
	if m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, userID)
		return domain.Session{}, false
	}
	return s, true
}

// Get возвращает копию сессии.
func (m *Memory) Get(_ context.Context, userID int64) (domain.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.load(userID)
	if !ok {
		return domain.Session{}, false, nil
	}
	s.Fields = s.Fields.Clone()
	return s, true, nil
}

// Put заменяет сессию целиком.
func (m *Memory) Put(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Fields = s.Fields.Clone()
	s.UpdatedAt = m.now()
	m.sessions[s.UserID] = s
	return nil
}

// SetStage меняет шаг.
func (m *Memory) SetStage(_ context.Context, userID int64, stage domain.Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.load(userID)
	if !ok {
		return domain.ErrNotFound
	}
	s.Stage = stage
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
	return nil
}

// MergeFields дописывает поля.
func (m *Memory) MergeFields(_ context.Context, userID int64, delta domain.Fields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.load(userID)
	if !ok {
		return domain.ErrNotFound
	}
	s.Fields = s.Fields.Merge(delta)
	s.UpdatedAt = m.now()
	m.sessions[userID] = s
	return nil
}

// ReadFields передаёт копию полей в fn.
func (m *Memory) ReadFields(_ context.Context, userID int64, fn func(domain.Fields) error) error {
	m.mu.Lock()
	s, ok := m.load(userID)
	m.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}
	return fn(s.Fields.Clone())
}

// Delete удаляет сессию.
func (m *Memory) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}
