package channels

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"tg-content-assistant/internal/domain"
)

var (
	ErrChannelLimit = errors.New("превышен лимит каналов")
	ErrLinkInvalid  = fmt.Errorf("%w: ссылка должна иметь вид https://t.me/<имя>", domain.ErrValidationFailed)
	ErrNameEmpty    = fmt.Errorf("%w: пустое название канала", domain.ErrValidationFailed)
)

// linkRegex принимает только имена, которые Telegram допускает для публичных
// каналов: 5-32 символа из латиницы, цифр и подчёркивания.
var linkRegex = regexp.MustCompile(`^https://t\.me/([A-Za-z0-9_]{5,32})$`)

// Service управляет каналами пользователя.
type Service struct {
	repo  domain.ChannelRepo
	limit int
}

// NewService создаёт новый сервис каналов. limit <= 0 снимает ограничение.
func NewService(repo domain.ChannelRepo, limit int) *Service {
	return &Service{repo: repo, limit: limit}
}

// ParseChannelLink проверяет ссылку на публичный канал и возвращает
// её каноничный вид и тег для Bot API.
func ParseChannelLink(input string) (link, tag string, err error) {
	trim := strings.TrimSuffix(strings.TrimSpace(input), "/")
	matches := linkRegex.FindStringSubmatch(trim)
	if len(matches) < 2 {
		return "", "", ErrLinkInvalid
	}
	return trim, "@" + matches[1], nil
}

// CreateChannel добавляет канал пользователю.
func (s *Service) CreateChannel(ctx context.Context, ownerID int64, name, link string) (domain.Channel, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Channel{}, ErrNameEmpty
	}
	parsed, _, err := ParseChannelLink(link)
	if err != nil {
		return domain.Channel{}, err
	}
	if s.limit > 0 {
		existing, err := s.repo.ListChannels(ctx, ownerID)
		if err != nil {
			return domain.Channel{}, fmt.Errorf("подсчёт каналов: %w", err)
		}
		if len(existing) >= s.limit {
			return domain.Channel{}, ErrChannelLimit
		}
	}
	channel, err := s.repo.CreateChannel(ctx, domain.Channel{OwnerID: ownerID, Name: name, Link: parsed})
	if err != nil {
		return domain.Channel{}, fmt.Errorf("сохранение канала: %w", err)
	}
	return channel, nil
}

// GetChannel возвращает канал, если он принадлежит пользователю.
func (s *Service) GetChannel(ctx context.Context, ownerID, channelID int64) (domain.Channel, error) {
	channel, err := s.repo.GetChannel(ctx, channelID)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("получение канала: %w", err)
	}
	if channel.OwnerID != ownerID {
		return domain.Channel{}, fmt.Errorf("канал %d: %w", channelID, domain.ErrNotFound)
	}
	return channel, nil
}

// EditChannel меняет название и/или ссылку. Пустое значение оставляет поле как есть.
func (s *Service) EditChannel(ctx context.Context, ownerID, channelID int64, name, link string) (domain.Channel, error) {
	channel, err := s.GetChannel(ctx, ownerID, channelID)
	if err != nil {
		return domain.Channel{}, err
	}
	if trimmed := strings.TrimSpace(name); trimmed != "" {
		channel.Name = trimmed
	}
	if strings.TrimSpace(link) != "" {
		parsed, _, err := ParseChannelLink(link)
		if err != nil {
			return domain.Channel{}, err
		}
		channel.Link = parsed
	}
	updated, err := s.repo.UpdateChannel(ctx, channel)
	if err != nil {
		return domain.Channel{}, fmt.Errorf("обновление канала: %w", err)
	}
	return updated, nil
}

// ListChannels возвращает каналы пользователя.
func (s *Service) ListChannels(ctx context.Context, ownerID int64) ([]domain.Channel, error) {
	channels, err := s.repo.ListChannels(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("получение каналов: %w", err)
	}
	return channels, nil
}

// DeleteChannel удаляет канал пользователя. Уже созданные задачи публикации
// остаются: в них сохранён тег канала.
func (s *Service) DeleteChannel(ctx context.Context, ownerID, channelID int64) error {
	if _, err := s.GetChannel(ctx, ownerID, channelID); err != nil {
		return err
	}
	if err := s.repo.DeleteChannel(ctx, channelID); err != nil {
		return fmt.Errorf("удаление канала: %w", err)
	}
	return nil
}
