package telegram

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitMessageCutsOnParagraphs(t *testing.T) {
	post := strings.Repeat("а", 3000) + "\n\n" + strings.Repeat("б", 2000) + "\n" + strings.Repeat("в", 500)

	parts := SplitMessage(post)
	if len(parts) != 2 {
		t.Fatalf("ожидалось 2 части, получено %d", len(parts))
	}
	for i, part := range parts {
		if n := utf8.RuneCountInString(part); n > messageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("а", 3000) {
		t.Fatal("первая часть должна закончиться на границе абзаца")
	}
	if !strings.HasPrefix(parts[1], "б") || !strings.HasSuffix(parts[1], strings.Repeat("в", 500)) {
		t.Fatalf("вторая часть собрана неверно: %q…", parts[1][:16])
	}
}

func TestSplitMessageHardCutWithoutNewlines(t *testing.T) {
	parts := SplitMessage(strings.Repeat("я", messageLimit*2+10))
	if len(parts) != 3 {
		t.Fatalf("ожидалось 3 части, получено %d", len(parts))
	}
	if utf8.RuneCountInString(parts[0]) != messageLimit || utf8.RuneCountInString(parts[2]) != 10 {
		t.Fatalf("неверные длины частей: %d, %d", utf8.RuneCountInString(parts[0]), utf8.RuneCountInString(parts[2]))
	}
}

func TestSplitMessageShortAndEmpty(t *testing.T) {
	if parts := SplitMessage("  Анонс выпуска  "); len(parts) != 1 || parts[0] != "Анонс выпуска" {
		t.Fatalf("короткий текст должен остаться одной частью: %q", parts)
	}
	if parts := SplitMessage("   \n  "); len(parts) != 0 {
		t.Fatalf("пустой текст не должен давать частей, получено %d", len(parts))
	}
}

func TestSplitCaptionFitsPhotoLimit(t *testing.T) {
	caption, rest := SplitCaption("Короткая подпись")
	if caption != "Короткая подпись" || len(rest) != 0 {
		t.Fatalf("короткий текст должен целиком уйти в подпись: %q, %q", caption, rest)
	}

	long := strings.Repeat("ж", captionLimit+200)
	caption, rest = SplitCaption(long)
	if utf8.RuneCountInString(caption) != captionLimit {
		t.Fatalf("подпись должна быть обрезана до %d символов, получено %d", captionLimit, utf8.RuneCountInString(caption))
	}
	if len(rest) != 1 || utf8.RuneCountInString(rest[0]) != 200 {
		t.Fatalf("остаток должен уйти одним сообщением: %d частей", len(rest))
	}

	if caption, rest = SplitCaption(""); caption != "" || rest != nil {
		t.Fatalf("пустой текст даёт пустую подпись: %q, %v", caption, rest)
	}
}
