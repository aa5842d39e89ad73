package stylist

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"tg-content-assistant/internal/domain"
	openai "tg-content-assistant/internal/infra/openai"
)

type stubClient struct {
	req  openai.ChatCompletionRequest
	resp openai.ChatCompletionResponse
	err  error
}

func (s *stubClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.req = req
	return s.resp, s.err
}

func TestTransformBuildsPrompt(t *testing.T) {
	client := &stubClient{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{
		{Message: openai.ChatMessage{Role: "assistant", Content: "  готово  "}},
	}}}
	s := NewOpenAI(client, "", "", 0.5)

	out, err := s.Transform(context.Background(), "текст", "ex1\n\n---\n\nex2")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out != "готово" {
		t.Fatalf("ожидали обрезанный ответ, получили %q", out)
	}
	if len(client.req.Messages) != 2 || client.req.Messages[0].Content != DefaultSystemPrompt {
		t.Fatalf("неожиданные сообщения: %+v", client.req.Messages)
	}
	if got := client.req.Messages[1].Content; got != "Примеры: ex1\n\n---\n\nex2\n\nИсходный текст: текст" {
		t.Fatalf("неожиданный промпт: %q", got)
	}
	if client.req.Model != "gpt-4.1-mini" || client.req.Temperature != 0.5 {
		t.Fatalf("неожиданные параметры: %+v", client.req)
	}
}

func TestTransformContentPolicy(t *testing.T) {
	client := &stubClient{err: &openai.APIError{Status: http.StatusBadRequest, Code: "content_policy_violation", Message: "rejected"}}
	_, err := NewOpenAI(client, "m", "", 0).Transform(context.Background(), "текст", "ex")
	if !errors.Is(err, domain.ErrContentPolicy) {
		t.Fatalf("ожидали ErrContentPolicy, получили %v", err)
	}
}

func TestTransformEmptyChoices(t *testing.T) {
	_, err := NewOpenAI(&stubClient{}, "m", "", 0).Transform(context.Background(), "текст", "ex")
	if err == nil {
		t.Fatal("ожидали ошибку при пустом ответе")
	}
}

func TestEcho(t *testing.T) {
	out, err := NewEcho().Transform(context.Background(), " текст ", "ex")
	if err != nil || out != "текст" {
		t.Fatalf("неожиданный результат: %q, %v", out, err)
	}
}
