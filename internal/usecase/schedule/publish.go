package schedule

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// Publisher публикует пост сразу, минуя очередь. Отметка о публикации
// ставится тем же MarkPublished, что и у цикла публикации, а ожидающие
// задачи этого поста в тот же канал снимаются.
type Publisher struct {
	posts    domain.PostRepo
	channels domain.ChannelRepo
	jobs     domain.JobStore
	sender   domain.ChannelSender
	clock    domain.Clock
	logger   zerolog.Logger
}

// NewPublisher создаёт публикатор.
func NewPublisher(posts domain.PostRepo, channels domain.ChannelRepo, jobs domain.JobStore, sender domain.ChannelSender, clock domain.Clock, logger zerolog.Logger) *Publisher {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Publisher{posts: posts, channels: channels, jobs: jobs, sender: sender, clock: clock, logger: logger}
}

// PublishNow доставляет текущее содержимое поста в канал пользователя.
func (p *Publisher) PublishNow(ctx context.Context, ownerID, postID, channelID int64) (domain.Post, error) {
	post, err := p.posts.GetPost(ctx, postID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение поста: %w", err)
	}
	if post.OwnerID != ownerID {
		return domain.Post{}, fmt.Errorf("пост %d: %w", postID, domain.ErrNotFound)
	}
	if post.IsPublished {
		return domain.Post{}, domain.ErrImmutable
	}
	channel, err := p.channels.GetChannel(ctx, channelID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение канала: %w", err)
	}
	if channel.OwnerID != ownerID {
		return domain.Post{}, fmt.Errorf("канал %d: %w", channelID, domain.ErrNotFound)
	}

	if err := p.sender.Deliver(ctx, channel.Tag(), post.Content, post.PhotoRef); err != nil {
		metrics.ObserveDelivery(outcomeFailed)
		return domain.Post{}, fmt.Errorf("публикация поста %d: %w", postID, err)
	}
	metrics.ObserveDelivery(outcomeDelivered)

	at := p.clock.Now()
	marked, err := p.posts.MarkPublished(ctx, postID, at)
	if err != nil {
		p.logger.Error().Err(err).Int64("post", postID).Msg("пост доставлен, но не отмечен опубликованным")
	} else if !marked {
		p.logger.Debug().Int64("post", postID).Msg("пост уже отмечен опубликованным")
	}
	if removed, err := p.jobs.DeletePendingForChannel(ctx, postID, channelID, at); err != nil {
		p.logger.Error().Err(err).Int64("post", postID).Msg("не удалось снять отложенные публикации в канал")
	} else if removed > 0 {
		p.logger.Info().Int64("post", postID).Int("jobs", removed).Msg("отложенные публикации в канал сняты")
	}
	post.IsPublished = true
	post.PublishedAt = &at
	p.logger.Info().Int64("post", postID).Str("channel", channel.Tag()).Msg("пост опубликован вручную")
	return post, nil
}
