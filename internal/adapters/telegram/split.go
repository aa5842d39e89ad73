package telegram

import "strings"

const (
	messageLimit = 4096
	captionLimit = 1024
)

// SplitMessage режет текст на части, влезающие в одно сообщение Telegram.
// Старается резать по переводам строк, чтобы абзацы не разрывались.
func SplitMessage(text string) []string {
	return splitText(text, messageLimit)
}

// SplitCaption отделяет подпись к фото от остатка текста. Остаток
// отправляется отдельными сообщениями.
func SplitCaption(text string) (caption string, rest []string) {
	parts := splitText(text, captionLimit)
	if len(parts) == 0 {
		return "", nil
	}
	caption = parts[0]
	remainder := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), caption))
	return caption, SplitMessage(remainder)
}

func splitText(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}

	runes := []rune(trimmed)
	if len(runes) <= limit {
		return []string{trimmed}
	}

	var parts []string
	for start := 0; start < len(runes); {
		end := start + limit
		if end >= len(runes) {
			chunk := strings.Trim(string(runes[start:]), "\n")
			if chunk != "" {
				parts = append(parts, chunk)
			}
			break
		}

		split := -1
		for i := end; i > start; i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		if split == -1 {
			split = end
		}

		chunk := strings.Trim(string(runes[start:split]), "\n")
		if chunk != "" {
			parts = append(parts, chunk)
		}

		start = split
		for start < len(runes) && runes[start] == '\n' {
			start++
		}
	}

	if len(parts) == 0 {
		return []string{trimmed}
	}

	return parts
}
