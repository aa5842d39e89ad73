package domain

import (
	"context"
	"time"
)

// PostRepo управляет постами.
type PostRepo interface {
	CreatePost(ctx context.Context, post Post) (Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	// UpdateDraft меняет только неопубликованный пост; для опубликованного
	// или отсутствующего возвращает ErrNotFound.
	UpdateDraft(ctx context.Context, id int64, patch PostPatch) (Post, error)
	DeletePost(ctx context.Context, id int64) error
	ListPosts(ctx context.Context, ownerID int64, limit, offset int) ([]Post, error)
	SetScheduledTime(ctx context.Context, id int64, at *time.Time) error
	// MarkPublished выставляет is_published один раз; повторный вызов возвращает false.
	MarkPublished(ctx context.Context, id int64, at time.Time) (bool, error)
}

// ChannelRepo управляет каналами пользователя.
type ChannelRepo interface {
	CreateChannel(ctx context.Context, ch Channel) (Channel, error)
	GetChannel(ctx context.Context, id int64) (Channel, error)
	UpdateChannel(ctx context.Context, ch Channel) (Channel, error)
	DeleteChannel(ctx context.Context, id int64) error
	ListChannels(ctx context.Context, ownerID int64) ([]Channel, error)
}

// StyleRepo управляет стилями.
type StyleRepo interface {
	CreateStyle(ctx context.Context, style Style) (Style, error)
	GetStyle(ctx context.Context, id int64) (Style, error)
	ListStyles(ctx context.Context, ownerID int64, limit, offset int) ([]Style, error)
	DeleteStyle(ctx context.Context, id int64) error
}

// Balance описывает баланс генераций пользователя.
type Balance interface {
	Balance(ctx context.Context, ownerID int64) (int64, error)
	// Debit списывает amount; при нехватке средств возвращает ErrInsufficientBalance.
	Debit(ctx context.Context, ownerID, amount int64) error
}

// StyleTransformer переписывает текст в стиле примеров.
type StyleTransformer interface {
	Transform(ctx context.Context, content, examples string) (string, error)
}

// ChannelSender доставляет текст или фото в канал.
// Ошибка оборачивает ErrDestinationInvalid, если повтор бессмыслен,
// иначе ErrDeliveryFailed.
type ChannelSender interface {
	Deliver(ctx context.Context, channelTag, content, photoRef string) error
}

// Clock отдаёт текущее время; подменяется в тестах.
type Clock interface {
	Now() time.Time
}

// SystemClock использует time.Now.
type SystemClock struct{}

// Now реализует Clock.
func (SystemClock) Now() time.Time { return time.Now() }
