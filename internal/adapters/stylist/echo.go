package stylist

import (
	"context"
	"strings"
)

// Echo возвращает исходный текст без изменений. Используется без ключа OpenAI.
type Echo struct{}

// NewEcho создаёт заглушку стилиста.
func NewEcho() *Echo {
	return &Echo{}
}

// Transform реализует domain.StyleTransformer.
func (Echo) Transform(_ context.Context, content, _ string) (string, error) {
	return strings.TrimSpace(content), nil
}
