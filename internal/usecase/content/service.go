package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
)

// DraftCost задаёт стоимость одной генерации в единицах баланса.
const DraftCost = 1

// DefaultTransformTimeout ограничивает ожидание переписывания текста.
const DefaultTransformTimeout = 60 * time.Second

// DraftRequest описывает запрос на генерацию черновика.
type DraftRequest struct {
	OwnerID  int64
	StyleID  int64
	RawText  string
	Title    string
	PhotoRef string
}

// Service создаёт и редактирует посты и стили.
type Service struct {
	posts       domain.PostRepo
	styles      domain.StyleRepo
	balance     domain.Balance
	transformer domain.StyleTransformer
	timeout     time.Duration
	logger      zerolog.Logger
}

// NewService создаёт сервис контента.
func NewService(posts domain.PostRepo, styles domain.StyleRepo, balance domain.Balance, transformer domain.StyleTransformer, timeout time.Duration, logger zerolog.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTransformTimeout
	}
	return &Service{
		posts:       posts,
		styles:      styles,
		balance:     balance,
		transformer: transformer,
		timeout:     timeout,
		logger:      logger,
	}
}

// CreateDraft переписывает текст в выбранном стиле, сохраняет черновик и
// списывает одну генерацию. Списание происходит только после успешного
// переписывания и сохранения.
func (s *Service) CreateDraft(ctx context.Context, req DraftRequest) (domain.Post, error) {
	raw := strings.TrimSpace(req.RawText)
	if raw == "" {
		return domain.Post{}, fmt.Errorf("%w: пустой текст", domain.ErrValidationFailed)
	}
	amount, err := s.balance.Balance(ctx, req.OwnerID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение баланса: %w", err)
	}
	if amount < DraftCost {
		return domain.Post{}, domain.ErrInsufficientBalance
	}
	style, err := s.GetStyle(ctx, req.OwnerID, req.StyleID)
	if err != nil {
		return domain.Post{}, err
	}

	transformCtx, cancel := context.WithTimeout(ctx, s.timeout)
	transformed, err := s.transformer.Transform(transformCtx, raw, style.Examples)
	cancel()
	if err != nil {
		s.logger.Warn().Err(err).Int64("user", req.OwnerID).Int64("style", style.ID).Msg("не удалось переписать текст")
		return domain.Post{}, fmt.Errorf("%w: %w", domain.ErrTransformFailed, err)
	}
	transformed = strings.TrimSpace(transformed)
	if transformed == "" {
		return domain.Post{}, fmt.Errorf("%w: пустой ответ", domain.ErrTransformFailed)
	}

	styleID := style.ID
	post, err := s.posts.CreatePost(ctx, domain.Post{
		OwnerID:  req.OwnerID,
		Title:    strings.TrimSpace(req.Title),
		Content:  transformed,
		StyleID:  &styleID,
		PhotoRef: req.PhotoRef,
	})
	if err != nil {
		return domain.Post{}, fmt.Errorf("сохранение черновика: %w", err)
	}
	if err := s.balance.Debit(ctx, req.OwnerID, DraftCost); err != nil {
		if delErr := s.posts.DeletePost(ctx, post.ID); delErr != nil {
			s.logger.Error().Err(delErr).Int64("post", post.ID).Msg("не удалось удалить черновик после ошибки списания")
		}
		if errors.Is(err, domain.ErrInsufficientBalance) {
			return domain.Post{}, err
		}
		return domain.Post{}, fmt.Errorf("списание генерации: %w", err)
	}
	metrics.IncDraft("styled")
	return post, nil
}

// CreatePost сохраняет черновик без переписывания и списания.
func (s *Service) CreatePost(ctx context.Context, ownerID int64, title, body, photoRef string) (domain.Post, error) {
	body = strings.TrimSpace(body)
	if body == "" && strings.TrimSpace(photoRef) == "" {
		return domain.Post{}, fmt.Errorf("%w: пустой пост", domain.ErrValidationFailed)
	}
	post, err := s.posts.CreatePost(ctx, domain.Post{
		OwnerID:  ownerID,
		Title:    strings.TrimSpace(title),
		Content:  body,
		PhotoRef: photoRef,
	})
	if err != nil {
		return domain.Post{}, fmt.Errorf("сохранение поста: %w", err)
	}
	metrics.IncDraft("manual")
	return post, nil
}

// GetPost возвращает пост пользователя.
func (s *Service) GetPost(ctx context.Context, ownerID, postID int64) (domain.Post, error) {
	post, err := s.posts.GetPost(ctx, postID)
	if err != nil {
		return domain.Post{}, fmt.Errorf("получение поста: %w", err)
	}
	if post.OwnerID != ownerID {
		return domain.Post{}, fmt.Errorf("пост %d: %w", postID, domain.ErrNotFound)
	}
	return post, nil
}

// EditDraft меняет только переданные поля черновика.
// Для опубликованного поста возвращает ErrImmutable.
func (s *Service) EditDraft(ctx context.Context, ownerID, postID int64, patch domain.PostPatch) (domain.Post, error) {
	post, err := s.GetPost(ctx, ownerID, postID)
	if err != nil {
		return domain.Post{}, err
	}
	if post.IsPublished {
		return domain.Post{}, domain.ErrImmutable
	}
	if patch.Empty() {
		return post, nil
	}
	if next := patch.Apply(post); strings.TrimSpace(next.Content) == "" && !next.HasPhoto() {
		return domain.Post{}, fmt.Errorf("%w: пустой пост", domain.ErrValidationFailed)
	}
	updated, err := s.posts.UpdateDraft(ctx, postID, patch)
	if errors.Is(err, domain.ErrNotFound) {
		// Пост мог быть опубликован между чтением и записью.
		if current, getErr := s.posts.GetPost(ctx, postID); getErr == nil && current.IsPublished {
			return domain.Post{}, domain.ErrImmutable
		}
	}
	if err != nil {
		return domain.Post{}, fmt.Errorf("обновление черновика: %w", err)
	}
	return updated, nil
}

// ListPosts возвращает посты пользователя, новые первыми.
func (s *Service) ListPosts(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Post, error) {
	posts, err := s.posts.ListPosts(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение постов: %w", err)
	}
	return posts, nil
}

// DeletePost удаляет пост вместе с ожидающими публикациями.
func (s *Service) DeletePost(ctx context.Context, ownerID, postID int64) error {
	if _, err := s.GetPost(ctx, ownerID, postID); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, postID); err != nil {
		return fmt.Errorf("удаление поста: %w", err)
	}
	return nil
}

// CreateStyle сохраняет стиль с примерами.
func (s *Service) CreateStyle(ctx context.Context, ownerID int64, name, examples string) (domain.Style, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(examples) == "" {
		return domain.Style{}, fmt.Errorf("%w: у стиля должны быть название и примеры", domain.ErrValidationFailed)
	}
	style, err := s.styles.CreateStyle(ctx, domain.Style{OwnerID: ownerID, Name: name, Examples: examples})
	if err != nil {
		return domain.Style{}, fmt.Errorf("сохранение стиля: %w", err)
	}
	return style, nil
}

// GetStyle возвращает стиль пользователя.
func (s *Service) GetStyle(ctx context.Context, ownerID, styleID int64) (domain.Style, error) {
	style, err := s.styles.GetStyle(ctx, styleID)
	if err != nil {
		return domain.Style{}, fmt.Errorf("получение стиля: %w", err)
	}
	if style.OwnerID != ownerID {
		return domain.Style{}, fmt.Errorf("стиль %d: %w", styleID, domain.ErrNotFound)
	}
	return style, nil
}

// ListStyles возвращает стили пользователя.
func (s *Service) ListStyles(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Style, error) {
	styles, err := s.styles.ListStyles(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("получение стилей: %w", err)
	}
	return styles, nil
}

// DeleteStyle удаляет стиль пользователя. Созданные по нему посты остаются.
func (s *Service) DeleteStyle(ctx context.Context, ownerID, styleID int64) error {
	if _, err := s.GetStyle(ctx, ownerID, styleID); err != nil {
		return err
	}
	if err := s.styles.DeleteStyle(ctx, styleID); err != nil {
		return fmt.Errorf("удаление стиля: %w", err)
	}
	return nil
}

// Balance возвращает число доступных генераций.
func (s *Service) Balance(ctx context.Context, ownerID int64) (int64, error) {
	amount, err := s.balance.Balance(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("получение баланса: %w", err)
	}
	return amount, nil
}
