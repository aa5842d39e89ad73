package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// botAPI покрывает ту часть *tgbotapi.BotAPI, которая нужна для отправки.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender публикует посты в каналы через Bot API.
type Sender struct {
	api     botAPI
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewSender создаёт отправителя. rps ограничивает число запросов в секунду;
// rps <= 0 снимает ограничение.
func NewSender(api botAPI, rps float64, logger zerolog.Logger) *Sender {
	limit := rate.Inf
	burst := 1
	if rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	return &Sender{api: api, limiter: rate.NewLimiter(limit, burst), logger: logger}
}

// Deliver отправляет пост в канал. Фото уходит с подписью, а текст сверх
// лимита подписи досылается отдельными сообщениями. Ошибки продолжения
// после принятой первой части только логируются: повтор задачи
// продублировал бы уже опубликованное начало.
func (s *Sender) Deliver(ctx context.Context, channelTag, content, photoRef string) error {
	channelTag = strings.TrimSpace(channelTag)
	if channelTag == "" {
		return fmt.Errorf("пустой адрес канала: %w", domain.ErrDestinationInvalid)
	}

	var first tgbotapi.Chattable
	var rest []string
	if photoRef != "" {
		caption, tail := SplitCaption(content)
		photo := tgbotapi.NewPhotoToChannel(channelTag, tgbotapi.FileID(photoRef))
		photo.Caption = caption
		first, rest = photo, tail
	} else {
		parts := SplitMessage(content)
		if len(parts) == 0 {
			return fmt.Errorf("пустой текст поста: %w", domain.ErrValidationFailed)
		}
		first, rest = tgbotapi.NewMessageToChannel(channelTag, parts[0]), parts[1:]
	}

	if err := s.send(ctx, channelTag, first); err != nil {
		return err
	}
	for i, part := range rest {
		if err := s.send(ctx, channelTag, tgbotapi.NewMessageToChannel(channelTag, part)); err != nil {
			s.logger.Error().Err(err).Str("channel", channelTag).Int("part", i+2).
				Msg("telegram: продолжение поста не отправлено")
			return nil
		}
	}
	return nil
}

func (s *Sender) send(ctx context.Context, channelTag string, msg tgbotapi.Chattable) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("ожидание лимита отправки: %w: %w", domain.ErrDeliveryFailed, err)
	}
	operation := "send_message"
	if _, ok := msg.(tgbotapi.PhotoConfig); ok {
		operation = "send_photo"
	}
	start := time.Now()
	_, err := s.api.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", operation, channelTag, start, err)
	if err != nil {
		metrics.BotSendErrors.Inc()
		return classify(err)
	}
	return nil
}

// classify отделяет ошибки, после которых повтор бессмыслен: бот удалён
// из канала, канал не существует или у бота нет прав на публикацию.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == 403:
			return fmt.Errorf("%w: %w", domain.ErrDestinationInvalid, err)
		case apiErr.Code == 400 && (strings.Contains(msg, "chat not found") ||
			strings.Contains(msg, "chat_id is empty") ||
			strings.Contains(msg, "rights")):
			return fmt.Errorf("%w: %w", domain.ErrDestinationInvalid, err)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrDeliveryFailed, err)
}
