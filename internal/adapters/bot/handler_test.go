package bot

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/usecase/wizard"
)

type fakeMessenger struct {
	sent     []tgbotapi.MessageConfig
	answered int
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeMessenger) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.answered++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("бот ничего не отправил")
	}
	return f.sent[len(f.sent)-1]
}

type fakeDialogs struct {
	events  []wizard.Event
	started []domain.WizardKind
	seeds   []domain.Fields
	outcome wizard.Outcome
}

func (f *fakeDialogs) Start(_ context.Context, _ int64, kind domain.WizardKind, seed domain.Fields) (wizard.Outcome, error) {
	f.started = append(f.started, kind)
	f.seeds = append(f.seeds, seed)
	return f.outcome, nil
}

func (f *fakeDialogs) Handle(_ context.Context, _ int64, ev wizard.Event) (wizard.Outcome, error) {
	f.events = append(f.events, ev)
	return f.outcome, nil
}

type fakeUseCases struct {
	channels    []domain.Channel
	styles      []domain.Style
	published   [][2]int64
	cancelErr   error
	cancelledID string
}

func (f *fakeUseCases) ListPosts(context.Context, int64, int, int) ([]domain.Post, error) {
	return nil, nil
}

func (f *fakeUseCases) GetPost(_ context.Context, owner, id int64) (domain.Post, error) {
	return domain.Post{ID: id, OwnerID: owner, Content: "текст"}, nil
}

func (f *fakeUseCases) DeletePost(context.Context, int64, int64) error { return nil }

func (f *fakeUseCases) ListStyles(context.Context, int64, int, int) ([]domain.Style, error) {
	return f.styles, nil
}

func (f *fakeUseCases) DeleteStyle(context.Context, int64, int64) error { return nil }

func (f *fakeUseCases) Balance(context.Context, int64) (int64, error) { return 3, nil }

func (f *fakeUseCases) ListChannels(context.Context, int64) ([]domain.Channel, error) {
	return f.channels, nil
}

func (f *fakeUseCases) DeleteChannel(context.Context, int64, int64) error { return nil }

func (f *fakeUseCases) CancelOwned(_ context.Context, _ int64, jobID string) error {
	f.cancelledID = jobID
	return f.cancelErr
}

func (f *fakeUseCases) PublishNow(_ context.Context, owner, postID, channelID int64) (domain.Post, error) {
	f.published = append(f.published, [2]int64{postID, channelID})
	return domain.Post{ID: postID, OwnerID: owner, IsPublished: true}, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestHandler(t *testing.T, dialogs *fakeDialogs, uc *fakeUseCases) (*Handler, *fakeMessenger, *Catalog) {
	t.Helper()
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("каталог не загрузился: %v", err)
	}
	api := &fakeMessenger{}
	h := NewHandler(api, zerolog.Nop(), catalog, UseCases{
		Dialogs:   dialogs,
		Content:   uc,
		Channels:  uc,
		Scheduler: uc,
		Publisher: uc,
		Clock:     fixedClock{now: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)},
	}, time.UTC)
	return h, api, catalog
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: 7, LanguageCode: "ru"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 70}},
		Data:    data,
	}}
}

func TestPhotoUsesLargestSize(t *testing.T) {
	dialogs := &fakeDialogs{outcome: wizard.Outcome{Directive: wizard.Directive{Kind: wizard.DirectiveIdle}}}
	h, _, _ := newTestHandler(t, dialogs, &fakeUseCases{})

	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:    &tgbotapi.User{ID: 7},
		Chat:    &tgbotapi.Chat{ID: 70},
		Caption: "подпись",
		Photo: []tgbotapi.PhotoSize{
			{FileID: "small", Width: 90, Height: 90},
			{FileID: "large", Width: 1280, Height: 960},
			{FileID: "medium", Width: 320, Height: 240},
		},
	}})

	if len(dialogs.events) != 1 {
		t.Fatalf("ожидалось одно событие, получено %d", len(dialogs.events))
	}
	ev := dialogs.events[0]
	if ev.Kind != wizard.EventPhoto || ev.PhotoRef != "large" || ev.Text != "подпись" {
		t.Fatalf("неверное событие: %+v", ev)
	}
}

func TestCallbacksMapToEvents(t *testing.T) {
	dialogs := &fakeDialogs{outcome: wizard.Outcome{Directive: wizard.Directive{Kind: wizard.DirectiveIdle}}}
	h, api, _ := newTestHandler(t, dialogs, &fakeUseCases{})

	for _, data := range []string{"wz:done", "wz:cancel", "pick:at:1735754400", "pick:custom"} {
		h.HandleUpdate(context.Background(), callback(data))
	}

	want := []wizard.Event{
		{Kind: wizard.EventDone},
		{Kind: wizard.EventCancel},
		{Kind: wizard.EventChoice, Choice: "at:1735754400"},
		{Kind: wizard.EventChoice, Choice: "custom"},
	}
	if len(dialogs.events) != len(want) {
		t.Fatalf("ожидалось %d событий, получено %d", len(want), len(dialogs.events))
	}
	for i := range want {
		got := dialogs.events[i]
		if got.Kind != want[i].Kind || got.Choice != want[i].Choice {
			t.Fatalf("событие %d: ожидалось %+v, получено %+v", i, want[i], got)
		}
	}
	if api.answered != len(want) {
		t.Fatalf("каждый callback должен получить ответ, ответов %d", api.answered)
	}
}

func TestSeedCallbacksStartWizards(t *testing.T) {
	dialogs := &fakeDialogs{outcome: wizard.Outcome{Directive: wizard.Directive{Kind: wizard.DirectivePrompt, Stage: wizard.StagePostContent}}}
	h, _, _ := newTestHandler(t, dialogs, &fakeUseCases{})

	h.HandleUpdate(context.Background(), callback("draft:4"))
	h.HandleUpdate(context.Background(), callback("sched:9"))

	if len(dialogs.started) != 2 || dialogs.started[0] != wizard.KindPostCreate || dialogs.started[1] != wizard.KindPostSchedule {
		t.Fatalf("неверные диалоги: %v", dialogs.started)
	}
	if dialogs.seeds[0].StyleID == nil || *dialogs.seeds[0].StyleID != 4 {
		t.Fatalf("стиль не передан в диалог")
	}
	if dialogs.seeds[1].PostID == nil || *dialogs.seeds[1].PostID != 9 {
		t.Fatalf("пост не передан в диалог")
	}
}

func TestScheduleTimePromptOffersPresets(t *testing.T) {
	dialogs := &fakeDialogs{outcome: wizard.Outcome{Directive: wizard.Directive{
		Kind: wizard.DirectivePrompt, Wizard: wizard.KindPostSchedule, Stage: wizard.StageScheduleTime,
	}}}
	h, api, catalog := newTestHandler(t, dialogs, &fakeUseCases{})

	h.HandleUpdate(context.Background(), callback("pick:3"))

	msg := api.last(t)
	if !strings.Contains(msg.Text, "UTC") {
		t.Fatalf("в подсказке нет часового пояса: %q", msg.Text)
	}
	markup, ok := msg.ReplyMarkup.(*tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("ожидалась inline-клавиатура, получено %T", msg.ReplyMarkup)
	}
	var labels, data []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			labels = append(labels, button.Text)
			data = append(data, *button.CallbackData)
		}
	}
	today := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC).Unix()
	if labels[0] != catalog.Text("ru", sectionPreset, "today_20") || data[0] != "pick:at:"+strconv.FormatInt(today, 10) {
		t.Fatalf("первая кнопка неверна: %q %q", labels[0], data[0])
	}
	if data[len(data)-2] != "pick:custom" || data[len(data)-1] != "wz:cancel" {
		t.Fatalf("нет кнопок своего времени и отмены: %v", data)
	}
}

func TestCompletedScheduleShowsJobID(t *testing.T) {
	job := domain.ScheduledJob{ID: "job-1", FireTime: time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)}
	dialogs := &fakeDialogs{outcome: wizard.Outcome{
		Directive: wizard.Directive{Kind: wizard.DirectiveCompleted, Wizard: wizard.KindPostSchedule},
		Result:    wizard.Result{Job: &job},
	}}
	h, api, _ := newTestHandler(t, dialogs, &fakeUseCases{})

	h.HandleUpdate(context.Background(), callback("pick:at:1735808400"))

	text := api.last(t).Text
	if !strings.Contains(text, "2025-01-02 09:00") || !strings.Contains(text, "/unschedule job-1") {
		t.Fatalf("неверное подтверждение: %q", text)
	}
}

func TestPublishNowCallback(t *testing.T) {
	uc := &fakeUseCases{channels: []domain.Channel{{ID: 7, OwnerID: 7, Name: "Новости", Link: "https://t.me/daily_news"}}}
	h, api, catalog := newTestHandler(t, &fakeDialogs{}, uc)

	h.HandleUpdate(context.Background(), callback("pubto:5:7"))

	if len(uc.published) != 1 || uc.published[0] != [2]int64{5, 7} {
		t.Fatalf("неверный вызов публикации: %v", uc.published)
	}
	want := catalog.Text("ru", sectionCommon, "published", "id", "5", "channel", "@daily_news")
	if got := api.last(t).Text; got != want {
		t.Fatalf("ожидалось %q, получено %q", want, got)
	}
}

func TestUnscheduleBusyJob(t *testing.T) {
	uc := &fakeUseCases{cancelErr: domain.ErrJobBusy}
	h, api, catalog := newTestHandler(t, &fakeDialogs{}, uc)

	h.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: 7},
		Chat:     &tgbotapi.Chat{ID: 70},
		Text:     "/unschedule job-1",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 11}},
	}})

	if uc.cancelledID != "job-1" {
		t.Fatalf("отменена не та задача: %q", uc.cancelledID)
	}
	if got := api.last(t).Text; got != catalog.Text("ru", sectionCommon, "job_busy") {
		t.Fatalf("неверный ответ: %q", got)
	}
}

func TestNewPostWithoutStylesStartsManualDraft(t *testing.T) {
	dialogs := &fakeDialogs{outcome: wizard.Outcome{Directive: wizard.Directive{Kind: wizard.DirectivePrompt, Stage: wizard.StagePostTitle}}}
	h, api, catalog := newTestHandler(t, dialogs, &fakeUseCases{})

	h.HandleUpdate(context.Background(), callback("menu:new_post"))

	if len(dialogs.started) != 1 || dialogs.seeds[0].StyleID != nil {
		t.Fatalf("ожидался диалог поста без стиля: %v", dialogs.seeds)
	}
	if got := api.last(t).Text; got != catalog.Text("ru", sectionPrompt, "post_title") {
		t.Fatalf("неверная подсказка: %q", got)
	}
}
