package stylist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg-content-assistant/internal/domain"
	openai "tg-content-assistant/internal/infra/openai"
)

// DefaultSystemPrompt используется как инструкция модели, если своя не задана.
const DefaultSystemPrompt = "Ты редактор телеграм-канала. Перепиши исходный текст в стиле примеров: " +
	"сохрани факты и смысл, повтори тон, длину абзацев и оформление примеров. " +
	"Верни только готовый текст поста без пояснений."

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI переписывает текст через OpenAI Chat Completions.
type OpenAI struct {
	client       chatClient
	model        string
	systemPrompt string
	temperature  float64
}

// NewOpenAI создаёт стилиста.
func NewOpenAI(client chatClient, model, systemPrompt string, temperature float64) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &OpenAI{client: client, model: model, systemPrompt: systemPrompt, temperature: temperature}
}

// Transform реализует domain.StyleTransformer. Ограничение по времени задаёт вызывающий.
func (s *OpenAI) Transform(ctx context.Context, content, examples string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: s.temperature,
		Messages: []openai.ChatMessage{
			{Role: openai.RoleSystem, Content: s.systemPrompt},
			{Role: openai.RoleUser, Content: BuildPrompt(content, examples)},
		},
	}
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.ContentPolicy() {
			return "", fmt.Errorf("%w: %s", domain.ErrContentPolicy, apiErr.Message)
		}
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: пустой ответ")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai completion: пустой текст")
	}
	return text, nil
}

// BuildPrompt собирает пользовательское сообщение из примеров и исходного текста.
func BuildPrompt(content, examples string) string {
	return fmt.Sprintf("Примеры: %s\n\nИсходный текст: %s", examples, content)
}
