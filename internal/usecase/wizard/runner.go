package wizard

import (
	"context"
	"fmt"
	"time"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/usecase/content"
)

// ActionRunner выполняет завершающее действие диалога.
type ActionRunner interface {
	Run(ctx context.Context, ownerID int64, action Action) (Result, error)
}

// ChannelService покрывает операции с каналами, нужные диалогам.
type ChannelService interface {
	CreateChannel(ctx context.Context, ownerID int64, name, link string) (domain.Channel, error)
	EditChannel(ctx context.Context, ownerID, channelID int64, name, link string) (domain.Channel, error)
}

// ContentService покрывает операции со стилями и постами, нужные диалогам.
type ContentService interface {
	CreateStyle(ctx context.Context, ownerID int64, name, examples string) (domain.Style, error)
	CreatePost(ctx context.Context, ownerID int64, title, body, photoRef string) (domain.Post, error)
	CreateDraft(ctx context.Context, req content.DraftRequest) (domain.Post, error)
	EditDraft(ctx context.Context, ownerID, postID int64, patch domain.PostPatch) (domain.Post, error)
}

// Scheduler ставит пост в очередь публикации.
type Scheduler interface {
	Schedule(ctx context.Context, ownerID, postID, channelID int64, fireTime time.Time) (domain.ScheduledJob, error)
}

// Services выполняет действия диалогов через сервисы приложения.
type Services struct {
	Channels  ChannelService
	Content   ContentService
	Scheduler Scheduler
}

// Run реализует ActionRunner.
func (s Services) Run(ctx context.Context, ownerID int64, action Action) (Result, error) {
	switch {
	case action.Kind == ActionCreateChannel && action.Channel != nil:
		ch, err := s.Channels.CreateChannel(ctx, ownerID, action.Channel.Name, action.Channel.Link)
		if err != nil {
			return Result{}, err
		}
		return Result{Channel: &ch}, nil
	case action.Kind == ActionUpdateChannel && action.Channel != nil:
		ch, err := s.Channels.EditChannel(ctx, ownerID, action.Channel.ID, action.Channel.Name, action.Channel.Link)
		if err != nil {
			return Result{}, err
		}
		return Result{Channel: &ch}, nil
	case action.Kind == ActionCreateStyle && action.Style != nil:
		style, err := s.Content.CreateStyle(ctx, ownerID, action.Style.Name, action.Style.Examples)
		if err != nil {
			return Result{}, err
		}
		return Result{Style: &style}, nil
	case action.Kind == ActionCreatePost && action.Post != nil:
		post, err := s.Content.CreatePost(ctx, ownerID, action.Post.Title, action.Post.Content, action.Post.PhotoRef)
		if err != nil {
			return Result{}, err
		}
		return Result{Post: &post}, nil
	case action.Kind == ActionCreateDraft && action.Post != nil && action.Post.StyleID != nil:
		post, err := s.Content.CreateDraft(ctx, content.DraftRequest{
			OwnerID:  ownerID,
			StyleID:  *action.Post.StyleID,
			RawText:  action.Post.Content,
			Title:    action.Post.Title,
			PhotoRef: action.Post.PhotoRef,
		})
		if err != nil {
			return Result{}, err
		}
		return Result{Post: &post}, nil
	case action.Kind == ActionEditPost && action.Edit != nil:
		post, err := s.Content.EditDraft(ctx, ownerID, action.Edit.PostID, action.Edit.Patch)
		if err != nil {
			return Result{}, err
		}
		return Result{Post: &post}, nil
	case action.Kind == ActionSchedulePost && action.Schedule != nil:
		job, err := s.Scheduler.Schedule(ctx, ownerID, action.Schedule.PostID, action.Schedule.ChannelID, action.Schedule.FireTime)
		if err != nil {
			return Result{}, err
		}
		return Result{Job: &job}, nil
	}
	return Result{}, fmt.Errorf("%w: данные для действия %s", domain.ErrNotFound, action.Kind)
}
