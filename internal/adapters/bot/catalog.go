package bot

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tg-content-assistant/internal/usecase/wizard"
)

//go:embed messages.yaml
var defaultMessages []byte

const defaultLang = "ru"

// Разделы каталога.
const (
	sectionPrompt    = "prompt"
	sectionReason    = "reason"
	sectionCompleted = "completed"
	sectionCommon    = "common"
	sectionButton    = "button"
	sectionPreset    = "preset"
)

// Catalog хранит тексты бота по языкам: язык → раздел → ключ.
type Catalog struct {
	langs map[string]map[string]map[string]string
}

// LoadCatalog разбирает каталог из YAML. Язык по умолчанию обязателен.
func LoadCatalog(raw []byte) (*Catalog, error) {
	langs := map[string]map[string]map[string]string{}
	if err := yaml.Unmarshal(raw, &langs); err != nil {
		return nil, fmt.Errorf("разбор каталога сообщений: %w", err)
	}
	if _, ok := langs[defaultLang]; !ok {
		return nil, fmt.Errorf("в каталоге нет языка %q", defaultLang)
	}
	return &Catalog{langs: langs}, nil
}

// DefaultCatalog возвращает встроенный каталог.
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultMessages)
}

// Lang сводит language_code Telegram к языку каталога.
func (c *Catalog) Lang(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if base, _, ok := strings.Cut(code, "-"); ok {
		code = base
	}
	if _, ok := c.langs[code]; ok {
		return code
	}
	return defaultLang
}

// Text возвращает строку с подставленными {плейсхолдерами}; args идут парами
// имя, значение. Отсутствующий перевод берётся из языка по умолчанию.
func (c *Catalog) Text(lang, section, key string, args ...string) string {
	text, ok := c.lookup(lang, section, key)
	if !ok {
		text, ok = c.lookup(defaultLang, section, key)
	}
	if !ok {
		return section + "." + key
	}
	if len(args) == 0 {
		return text
	}
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+args[i]+"}", args[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (c *Catalog) lookup(lang, section, key string) (string, bool) {
	text, ok := c.langs[lang][section][key]
	return text, ok && text != ""
}

// Render превращает директиву диалога в текст ответа.
// Завершённые диалоги рендерит обработчик: ему нужен сохранённый объект.
func (c *Catalog) Render(lang string, d wizard.Directive, tz string) string {
	switch d.Kind {
	case wizard.DirectivePrompt:
		return c.prompt(lang, d, tz)
	case wizard.DirectiveReprompt:
		reason := c.Text(lang, sectionReason, d.Reason)
		return reason + "\n" + c.prompt(lang, d, tz)
	case wizard.DirectiveFailed:
		return c.Text(lang, sectionReason, d.Reason)
	case wizard.DirectiveCancelled:
		return c.Text(lang, sectionCommon, "cancelled")
	case wizard.DirectiveIdle:
		return c.Text(lang, sectionCommon, "idle")
	}
	return ""
}

func (c *Catalog) prompt(lang string, d wizard.Directive, tz string) string {
	key := string(d.Stage)
	switch d.Stage {
	case wizard.StageStyleExamples:
		if d.Count > 0 {
			key = "style_examples_more"
		}
	case wizard.StageChannelEditValue, wizard.StagePostEditValue:
		key += "_" + d.Field
	}
	return c.Text(lang, sectionPrompt, key,
		"count", strconv.Itoa(d.Count),
		"max", strconv.Itoa(wizard.MaxExamples),
		"tz", tz,
	)
}
