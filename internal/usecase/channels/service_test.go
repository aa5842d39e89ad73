package channels

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tg-content-assistant/internal/domain"
)

func TestParseChannelLink(t *testing.T) {
	cases := map[string]string{
		"https://t.me/golang_news":   "@golang_news",
		" https://t.me/golang_news/": "@golang_news",
		"https://t.me/":              "",
		"http://t.me/golang_news":    "",
		"t.me/golang_news":           "",
		"@golang_news":               "",
		"https://t.me/a/b":           "",
		"https://t.me/abc":           "",
		"https://t.me/abcd":          "",
		"https://t.me/abcde":         "@abcde",
		"https://t.me/" + strings.Repeat("n", 32): "@" + strings.Repeat("n", 32),
		"https://t.me/" + strings.Repeat("n", 33): "",
	}
	for input, expected := range cases {
		_, tag, err := ParseChannelLink(input)
		if expected == "" {
			if !errors.Is(err, domain.ErrValidationFailed) {
				t.Fatalf("ожидали ошибку валидации для %q, получили %v", input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if tag != expected {
			t.Fatalf("ожидали %s, получили %s", expected, tag)
		}
	}
}

type memoryChannels struct {
	items  map[int64]domain.Channel
	nextID int64
}

func newMemoryChannels() *memoryChannels {
	return &memoryChannels{items: map[int64]domain.Channel{}}
}

func (m *memoryChannels) CreateChannel(_ context.Context, ch domain.Channel) (domain.Channel, error) {
	m.nextID++
	ch.ID = m.nextID
	m.items[ch.ID] = ch
	return ch, nil
}

func (m *memoryChannels) GetChannel(_ context.Context, id int64) (domain.Channel, error) {
	ch, ok := m.items[id]
	if !ok {
		return domain.Channel{}, domain.ErrNotFound
	}
	return ch, nil
}

func (m *memoryChannels) UpdateChannel(_ context.Context, ch domain.Channel) (domain.Channel, error) {
	if _, ok := m.items[ch.ID]; !ok {
		return domain.Channel{}, domain.ErrNotFound
	}
	m.items[ch.ID] = ch
	return ch, nil
}

func (m *memoryChannels) DeleteChannel(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryChannels) ListChannels(_ context.Context, ownerID int64) ([]domain.Channel, error) {
	var out []domain.Channel
	for _, ch := range m.items {
		if ch.OwnerID == ownerID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func TestCreateAndEditChannel(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemoryChannels(), 1)

	ch, err := svc.CreateChannel(ctx, 7, " Новости ", "https://t.me/daily_news")
	if err != nil {
		t.Fatalf("создание канала: %v", err)
	}
	if ch.Name != "Новости" || ch.Tag() != "@daily_news" {
		t.Fatalf("неожиданный канал: %+v", ch)
	}
	if _, err := svc.CreateChannel(ctx, 7, "Второй", "https://t.me/second_one"); !errors.Is(err, ErrChannelLimit) {
		t.Fatalf("ожидали ErrChannelLimit, получили %v", err)
	}

	edited, err := svc.EditChannel(ctx, 7, ch.ID, "", "https://t.me/fresh_news")
	if err != nil {
		t.Fatalf("редактирование: %v", err)
	}
	if edited.Name != "Новости" || edited.Link != "https://t.me/fresh_news" {
		t.Fatalf("название должно сохраниться: %+v", edited)
	}
	if _, err := svc.EditChannel(ctx, 7, ch.ID, "", "fresh_news"); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("ожидали ошибку валидации, получили %v", err)
	}
	if _, err := svc.EditChannel(ctx, 8, ch.ID, "Чужой", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("чужой канал должен быть не найден, получили %v", err)
	}
	if err := svc.DeleteChannel(ctx, 7, ch.ID); err != nil {
		t.Fatalf("удаление: %v", err)
	}
	list, _ := svc.ListChannels(ctx, 7)
	if len(list) != 0 {
		t.Fatalf("ожидали пустой список, получили %d", len(list))
	}
}

func TestCreateChannelRejectsEmptyName(t *testing.T) {
	svc := NewService(newMemoryChannels(), 0)
	if _, err := svc.CreateChannel(context.Background(), 1, "  ", "https://t.me/daily_news"); !errors.Is(err, ErrNameEmpty) {
		t.Fatalf("ожидали ErrNameEmpty, получили %v", err)
	}
}
