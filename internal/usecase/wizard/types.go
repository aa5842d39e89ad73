package wizard

import (
	"time"

	"tg-content-assistant/internal/domain"
)

// Типы диалогов.
const (
	KindChannelCreate domain.WizardKind = "channel_create"
	KindChannelEdit   domain.WizardKind = "channel_edit"
	KindStyleCreate   domain.WizardKind = "style_create"
	KindPostCreate    domain.WizardKind = "post_create"
	KindPostEdit      domain.WizardKind = "post_edit"
	KindPostSchedule  domain.WizardKind = "post_schedule"
)

// Шаги диалогов.
const (
	StageChannelName      domain.Stage = "channel_name"
	StageChannelLink      domain.Stage = "channel_link"
	StageChannelEditField domain.Stage = "channel_edit_field"
	StageChannelEditValue domain.Stage = "channel_edit_value"
	StageStyleExamples    domain.Stage = "style_examples"
	StageStyleName        domain.Stage = "style_name"
	StagePostTitle        domain.Stage = "post_title"
	StagePostContent      domain.Stage = "post_content"
	StagePostEditField    domain.Stage = "post_edit_field"
	StagePostEditValue    domain.Stage = "post_edit_value"
	StageScheduleChannel  domain.Stage = "schedule_channel"
	StageScheduleTime     domain.Stage = "schedule_time"
	StageScheduleCustom   domain.Stage = "schedule_custom"
)

// MaxExamples ограничивает число примеров в стиле.
const MaxExamples = 10

// ExamplesSeparator разделяет примеры при сохранении стиля.
const ExamplesSeparator = "\n\n---\n\n"

// Значения выбора на шагах с кнопками.
const (
	FieldName    = "name"
	FieldLink    = "link"
	FieldTitle   = "title"
	FieldContent = "content"
	ChoiceCustom = "custom"
	// ChoiceAtPrefix предваряет Unix-время пресета: "at:1735711200".
	ChoiceAtPrefix = "at:"
)

// EventKind описывает тип входящего события.
type EventKind int

const (
	EventStart EventKind = iota + 1
	EventText
	EventPhoto
	EventChoice
	EventDone
	EventCancel
)

// Event описывает одно действие пользователя.
type Event struct {
	Kind     EventKind
	Wizard   domain.WizardKind
	Seed     domain.Fields
	Text     string
	PhotoRef string
	Choice   string
}

// DirectiveKind определяет, какое сообщение нужно отправить пользователю.
type DirectiveKind string

const (
	DirectivePrompt    DirectiveKind = "prompt"
	DirectiveReprompt  DirectiveKind = "reprompt"
	DirectiveCompleted DirectiveKind = "completed"
	DirectiveCancelled DirectiveKind = "cancelled"
	DirectiveFailed    DirectiveKind = "failed"
	DirectiveIdle      DirectiveKind = "idle"
)

// Ключи причин повторного запроса.
const (
	ReasonEmptyText    = "empty_text"
	ReasonInvalidLink  = "invalid_link"
	ReasonNoExamples   = "no_examples"
	ReasonUnknownInput = "unknown_input"
	ReasonBadTime      = "invalid_time_format"
	ReasonPastTime     = "time_in_past"
	ReasonIncomplete   = "incomplete"
	ReasonInternal     = "internal"

	ReasonNotFound      = "not_found"
	ReasonImmutable     = "immutable"
	ReasonNoBalance     = "insufficient_balance"
	ReasonTransform     = "transform_failed"
	ReasonContentPolicy = "content_policy"
	ReasonAlreadyFired  = "already_fired"
	ReasonChannelLimit  = "channel_limit"
	ReasonValidation    = "validation"
)

// Directive описывает ответ пользователю без привязки к транспорту.
type Directive struct {
	Kind   DirectiveKind
	Wizard domain.WizardKind
	Stage  domain.Stage
	// Field уточняет редактируемое поле на шагах выбора значения.
	Field  string
	Reason string
	Count  int
}

// ActionKind определяет, что нужно сохранить на завершающем шаге.
type ActionKind string

const (
	ActionCreateChannel ActionKind = "create_channel"
	ActionUpdateChannel ActionKind = "update_channel"
	ActionCreateStyle   ActionKind = "create_style"
	ActionCreatePost    ActionKind = "create_post"
	ActionCreateDraft   ActionKind = "create_draft"
	ActionEditPost      ActionKind = "edit_post"
	ActionSchedulePost  ActionKind = "schedule_post"
)

// ChannelInput содержит проверенные поля канала. Пустая строка при обновлении
// означает «не менять».
type ChannelInput struct {
	ID   int64
	Name string
	Link string
}

// StyleInput содержит проверенные поля стиля.
type StyleInput struct {
	Name     string
	Examples string
}

// PostInput содержит проверенные поля нового поста.
type PostInput struct {
	StyleID  *int64
	Title    string
	Content  string
	PhotoRef string
}

// EditInput описывает изменение существующего черновика.
type EditInput struct {
	PostID int64
	Patch  domain.PostPatch
}

// ScheduleInput задаёт параметры отложенной публикации.
type ScheduleInput struct {
	PostID    int64
	ChannelID int64
	FireTime  time.Time
}

// Action описывает завершающее действие диалога. Заполнено ровно одно поле по Kind.
type Action struct {
	Kind     ActionKind
	Channel  *ChannelInput
	Style    *StyleInput
	Post     *PostInput
	Edit     *EditInput
	Schedule *ScheduleInput
}

// Step описывает результат перехода.
type Step struct {
	Next      domain.Stage
	Delta     domain.Fields
	Directive Directive
	Action    *Action
	// End означает, что сессию нужно удалить (после успешного Action).
	End bool
	Err error
}

// Env задаёт окружение перехода.
type Env struct {
	Now      time.Time
	Location *time.Location
}

// Result содержит сохранённую сущность.
type Result struct {
	Channel *domain.Channel
	Style   *domain.Style
	Post    *domain.Post
	Job     *domain.ScheduledJob
}
