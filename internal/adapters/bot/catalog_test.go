package bot

import (
	"strings"
	"testing"

	"tg-content-assistant/internal/usecase/wizard"
)

func TestCatalogLang(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("каталог не загрузился: %v", err)
	}
	cases := map[string]string{
		"en":    "en",
		"en-US": "en",
		"RU":    "ru",
		"de":    "ru",
		"":      "ru",
	}
	for code, want := range cases {
		if got := catalog.Lang(code); got != want {
			t.Fatalf("Lang(%q) = %q, ожидалось %q", code, got, want)
		}
	}
}

func TestCatalogFallsBackToDefaultLanguage(t *testing.T) {
	catalog, err := LoadCatalog([]byte("ru:\n  common:\n    idle: \"нет диалога\"\nen:\n  common: {}\n"))
	if err != nil {
		t.Fatalf("каталог не загрузился: %v", err)
	}
	if got := catalog.Text("en", sectionCommon, "idle"); got != "нет диалога" {
		t.Fatalf("ожидался русский текст, получено %q", got)
	}
	if got := catalog.Text("en", sectionCommon, "missing"); got != "common.missing" {
		t.Fatalf("отсутствующий ключ должен возвращаться как есть, получено %q", got)
	}
}

func TestLoadCatalogRequiresDefaultLanguage(t *testing.T) {
	if _, err := LoadCatalog([]byte("en:\n  common: {}\n")); err == nil {
		t.Fatal("ожидалась ошибка без русского языка")
	}
}

func TestRenderDirectives(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("каталог не загрузился: %v", err)
	}

	more := catalog.Render("ru", wizard.Directive{Kind: wizard.DirectivePrompt, Stage: wizard.StageStyleExamples, Count: 3}, "UTC")
	if !strings.Contains(more, "3 из 10") {
		t.Fatalf("нет счётчика примеров: %q", more)
	}

	reprompt := catalog.Render("en", wizard.Directive{
		Kind: wizard.DirectiveReprompt, Stage: wizard.StageChannelLink, Reason: wizard.ReasonInvalidLink,
	}, "UTC")
	if !strings.HasPrefix(reprompt, catalog.Text("en", sectionReason, wizard.ReasonInvalidLink)+"\n") {
		t.Fatalf("повторный запрос должен начинаться с причины: %q", reprompt)
	}
	if !strings.HasSuffix(reprompt, catalog.Text("en", sectionPrompt, "channel_link")) {
		t.Fatalf("повторный запрос должен заканчиваться подсказкой: %q", reprompt)
	}

	edit := catalog.Render("ru", wizard.Directive{Kind: wizard.DirectivePrompt, Stage: wizard.StagePostEditValue, Field: wizard.FieldTitle}, "UTC")
	if edit != catalog.Text("ru", sectionPrompt, "post_edit_value_title") {
		t.Fatalf("неверная подсказка редактирования: %q", edit)
	}
}

func TestCatalogCoversEveryReason(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("каталог не загрузился: %v", err)
	}
	reasons := []string{
		wizard.ReasonEmptyText, wizard.ReasonInvalidLink, wizard.ReasonNoExamples, wizard.ReasonUnknownInput,
		wizard.ReasonBadTime, wizard.ReasonPastTime, wizard.ReasonIncomplete, wizard.ReasonInternal,
		wizard.ReasonNotFound, wizard.ReasonImmutable, wizard.ReasonNoBalance, wizard.ReasonTransform,
		wizard.ReasonContentPolicy, wizard.ReasonAlreadyFired, wizard.ReasonChannelLimit, wizard.ReasonValidation,
	}
	for _, lang := range []string{"ru", "en"} {
		for _, reason := range reasons {
			if _, ok := catalog.lookup(lang, sectionReason, reason); !ok {
				t.Fatalf("нет текста причины %q для языка %s", reason, lang)
			}
		}
	}
}
