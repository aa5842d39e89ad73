package wizard

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"tg-content-assistant/internal/domain"
)

var testEnv = Env{Now: time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC), Location: time.UTC}

func begin(t *testing.T, kind domain.WizardKind, seed domain.Fields) domain.Session {
	t.Helper()
	s, directive, err := Begin(42, kind, seed, testEnv.Now)
	if err != nil {
		t.Fatalf("не удалось начать диалог %s: %v", kind, err)
	}
	if directive.Kind != DirectivePrompt || directive.Stage != s.Stage {
		t.Fatalf("неожиданная первая директива: %+v", directive)
	}
	return s
}

// feed применяет шаг так же, как это делает Engine.
func feed(t *testing.T, s domain.Session, ev Event) (domain.Session, Step) {
	t.Helper()
	step := Transition(s, ev, testEnv)
	if step.End {
		return s, step
	}
	s.Fields = s.Fields.Merge(step.Delta)
	s.Stage = step.Next
	return s, step
}

func text(v string) Event { return Event{Kind: EventText, Text: v} }
func choice(v string) Event { return Event{Kind: EventChoice, Choice: v} }

func int64Ptr(v int64) *int64 { return &v }

func TestStyleExamplesJoinedWithSeparator(t *testing.T) {
	s := begin(t, KindStyleCreate, domain.Fields{})
	var step Step
	for i, example := range []string{"ex1", "ex2", "ex3"} {
		s, step = feed(t, s, text(example))
		if s.Stage != StageStyleExamples || step.Directive.Count != i+1 {
			t.Fatalf("после примера %d ожидали шаг примеров и счётчик %d, получили %s/%d", i+1, i+1, s.Stage, step.Directive.Count)
		}
	}
	s, step = feed(t, s, Event{Kind: EventDone})
	if s.Stage != StageStyleName || step.Directive.Count != 3 {
		t.Fatalf("ожидали переход к названию, получили %s", s.Stage)
	}
	_, step = feed(t, s, text("Сухой"))
	if !step.End || step.Action == nil || step.Action.Kind != ActionCreateStyle {
		t.Fatalf("ожидали создание стиля, получили %+v", step)
	}
	if got := step.Action.Style.Examples; got != "ex1\n\n---\n\nex2\n\n---\n\nex3" {
		t.Fatalf("неожиданные примеры: %q", got)
	}
	if step.Action.Style.Name != "Сухой" {
		t.Fatalf("неожиданное название: %q", step.Action.Style.Name)
	}
}

func TestStyleExamplesCapAdvances(t *testing.T) {
	s := begin(t, KindStyleCreate, domain.Fields{})
	for i := 1; i <= MaxExamples; i++ {
		s, _ = feed(t, s, text(fmt.Sprintf("пример %d", i)))
	}
	if s.Stage != StageStyleName {
		t.Fatalf("после %d примеров ожидали шаг названия, получили %s", MaxExamples, s.Stage)
	}
	if len(s.Fields.Examples) != MaxExamples {
		t.Fatalf("ожидали %d примеров, получили %d", MaxExamples, len(s.Fields.Examples))
	}
}

func TestStyleDoneWithoutExamples(t *testing.T) {
	s := begin(t, KindStyleCreate, domain.Fields{})
	step := Transition(s, Event{Kind: EventDone}, testEnv)
	if step.Directive.Kind != DirectiveReprompt || step.Directive.Reason != ReasonNoExamples {
		t.Fatalf("ожидали повторный запрос без примеров, получили %+v", step.Directive)
	}
	if step.Next != StageStyleExamples || !step.Delta.IsZero() || step.End {
		t.Fatalf("шаг не должен меняться: %+v", step)
	}
	if !errors.Is(step.Err, domain.ErrValidationFailed) {
		t.Fatalf("ожидали ErrValidationFailed, получили %v", step.Err)
	}
}

func TestInvalidLinkKeepsStage(t *testing.T) {
	s := begin(t, KindChannelCreate, domain.Fields{})
	s, _ = feed(t, s, text("Новости"))
	if s.Stage != StageChannelLink {
		t.Fatalf("ожидали шаг ссылки, получили %s", s.Stage)
	}
	for _, bad := range []string{"t.me/daily_news", "https://example.com/daily_news", "https://t.me/a/b"} {
		step := Transition(s, text(bad), testEnv)
		if step.Next != StageChannelLink || step.End || step.Action != nil {
			t.Fatalf("некорректная ссылка %q не должна менять шаг: %+v", bad, step)
		}
		if !step.Delta.IsZero() {
			t.Fatalf("некорректная ссылка %q не должна менять поля", bad)
		}
		if step.Directive.Kind != DirectiveReprompt || step.Directive.Reason != ReasonInvalidLink {
			t.Fatalf("ожидали повторный запрос ссылки, получили %+v", step.Directive)
		}
	}
	_, step := feed(t, s, text("https://t.me/daily_news"))
	if step.Action == nil || step.Action.Channel.Name != "Новости" || step.Action.Channel.Link != "https://t.me/daily_news" {
		t.Fatalf("ожидали создание канала, получили %+v", step.Action)
	}
}

func TestCancelFromEveryStage(t *testing.T) {
	stages := []domain.Stage{
		StageChannelName, StageChannelLink, StageChannelEditField, StageChannelEditValue,
		StageStyleExamples, StageStyleName, StagePostTitle, StagePostContent,
		StagePostEditField, StagePostEditValue, StageScheduleChannel, StageScheduleTime, StageScheduleCustom,
	}
	for _, stage := range stages {
		step := Transition(domain.Session{Wizard: KindPostCreate, Stage: stage}, Event{Kind: EventCancel}, testEnv)
		if !step.End || step.Action != nil || step.Directive.Kind != DirectiveCancelled {
			t.Fatalf("отмена на шаге %s: %+v", stage, step)
		}
	}
}

func TestPostEditTitleOnly(t *testing.T) {
	s := begin(t, KindPostEdit, domain.Fields{PostID: int64Ptr(9)})
	s, step := feed(t, s, choice(FieldTitle))
	if s.Stage != StagePostEditValue || step.Directive.Field != FieldTitle {
		t.Fatalf("ожидали ввод заголовка, получили %s/%+v", s.Stage, step.Directive)
	}
	_, step = feed(t, s, text("Новый заголовок"))
	if step.Action == nil || step.Action.Kind != ActionEditPost {
		t.Fatalf("ожидали редактирование, получили %+v", step)
	}
	patch := step.Action.Edit.Patch
	if patch.Title == nil || *patch.Title != "Новый заголовок" || patch.Content != nil || patch.PhotoRef != nil {
		t.Fatalf("патч должен менять только заголовок: %+v", patch)
	}
	if step.Action.Edit.PostID != 9 {
		t.Fatalf("неожиданный пост: %d", step.Action.Edit.PostID)
	}
}

func TestPostEditContentWithPhoto(t *testing.T) {
	s := begin(t, KindPostEdit, domain.Fields{PostID: int64Ptr(9)})
	s, _ = feed(t, s, choice(FieldContent))
	_, step := feed(t, s, Event{Kind: EventPhoto, PhotoRef: "file-1"})
	patch := step.Action.Edit.Patch
	if patch.PhotoRef == nil || *patch.PhotoRef != "file-1" || patch.Content != nil || patch.Title != nil {
		t.Fatalf("фото без подписи должно менять только изображение: %+v", patch)
	}
}

func TestPostCreateManual(t *testing.T) {
	s := begin(t, KindPostCreate, domain.Fields{})
	if s.Stage != StagePostTitle {
		t.Fatalf("без стиля ожидали шаг заголовка, получили %s", s.Stage)
	}
	s, _ = feed(t, s, Event{Kind: EventDone})
	_, step := feed(t, s, Event{Kind: EventPhoto, PhotoRef: "file-2"})
	if step.Action == nil || step.Action.Kind != ActionCreatePost {
		t.Fatalf("ожидали ручной пост, получили %+v", step)
	}
	if step.Action.Post.PhotoRef != "file-2" || step.Action.Post.Title != "" {
		t.Fatalf("неожиданный пост: %+v", step.Action.Post)
	}
}

func TestPostCreateStyledRequiresText(t *testing.T) {
	s := begin(t, KindPostCreate, domain.Fields{StyleID: int64Ptr(3)})
	if s.Stage != StagePostContent {
		t.Fatalf("со стилем ожидали шаг текста, получили %s", s.Stage)
	}
	step := Transition(s, Event{Kind: EventPhoto, PhotoRef: "file-3"}, testEnv)
	if step.Directive.Kind != DirectiveReprompt {
		t.Fatalf("фото без подписи нельзя переписать, получили %+v", step.Directive)
	}
	_, step = feed(t, s, text("черновик"))
	if step.Action == nil || step.Action.Kind != ActionCreateDraft || *step.Action.Post.StyleID != 3 {
		t.Fatalf("ожидали генерацию черновика, получили %+v", step.Action)
	}
}

func TestScheduleCustomTime(t *testing.T) {
	s := begin(t, KindPostSchedule, domain.Fields{PostID: int64Ptr(5)})
	if step := Transition(s, choice("abc"), testEnv); step.Directive.Kind != DirectiveReprompt {
		t.Fatalf("ожидали повторный выбор канала, получили %+v", step.Directive)
	}
	s, _ = feed(t, s, choice("3"))
	s, _ = feed(t, s, choice(ChoiceCustom))
	if s.Stage != StageScheduleCustom {
		t.Fatalf("ожидали ручной ввод времени, получили %s", s.Stage)
	}

	step := Transition(s, text("завтра"), testEnv)
	if step.Directive.Reason != ReasonBadTime || !errors.Is(step.Err, domain.ErrValidationFailed) {
		t.Fatalf("ожидали ошибку формата, получили %+v", step)
	}
	step = Transition(s, text("2024-12-31 09:00"), testEnv)
	if step.Directive.Reason != ReasonPastTime || !errors.Is(step.Err, domain.ErrInvalidTime) || step.Next != StageScheduleCustom {
		t.Fatalf("ожидали ошибку прошедшего времени, получили %+v", step)
	}

	_, step = feed(t, s, text("2025-01-01 09:00"))
	if step.Action == nil || step.Action.Kind != ActionSchedulePost {
		t.Fatalf("ожидали постановку в очередь, получили %+v", step)
	}
	in := step.Action.Schedule
	if in.PostID != 5 || in.ChannelID != 3 || !in.FireTime.Equal(time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданные параметры: %+v", in)
	}
}

func TestSchedulePreset(t *testing.T) {
	s := begin(t, KindPostSchedule, domain.Fields{PostID: int64Ptr(5)})
	s, _ = feed(t, s, choice("3"))
	fire := testEnv.Now.Add(2 * time.Hour)
	_, step := feed(t, s, choice(fmt.Sprintf("%s%d", ChoiceAtPrefix, fire.Unix())))
	if step.Action == nil || !step.Action.Schedule.FireTime.Equal(fire) {
		t.Fatalf("ожидали время пресета, получили %+v", step.Action)
	}
}

func TestBeginRequiresSeed(t *testing.T) {
	for _, kind := range []domain.WizardKind{KindPostEdit, KindPostSchedule, KindChannelEdit} {
		if _, _, err := Begin(1, kind, domain.Fields{}, testEnv.Now); !errors.Is(err, domain.ErrValidationFailed) {
			t.Fatalf("диалог %s без начальных полей должен отклоняться, получили %v", kind, err)
		}
	}
	if _, _, err := Begin(1, "unknown", domain.Fields{}, testEnv.Now); err == nil {
		t.Fatal("ожидали ошибку для неизвестного диалога")
	}
}
