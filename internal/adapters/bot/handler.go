package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-content-assistant/internal/adapters/telegram"
	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/infra/metrics"
	"tg-content-assistant/internal/usecase/schedule"
	"tg-content-assistant/internal/usecase/wizard"
)

const (
	listLimit  = 20
	timeLayout = "2006-01-02 15:04"
)

// Messenger покрывает методы *tgbotapi.BotAPI, которыми пользуется обработчик.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dialogs запускает и продвигает пошаговые диалоги.
type Dialogs interface {
	Start(ctx context.Context, userID int64, kind domain.WizardKind, seed domain.Fields) (wizard.Outcome, error)
	Handle(ctx context.Context, userID int64, ev wizard.Event) (wizard.Outcome, error)
}

// ContentUseCase покрывает операции с постами, стилями и балансом.
type ContentUseCase interface {
	ListPosts(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Post, error)
	GetPost(ctx context.Context, ownerID, postID int64) (domain.Post, error)
	DeletePost(ctx context.Context, ownerID, postID int64) error
	ListStyles(ctx context.Context, ownerID int64, limit, offset int) ([]domain.Style, error)
	DeleteStyle(ctx context.Context, ownerID, styleID int64) error
	Balance(ctx context.Context, ownerID int64) (int64, error)
}

// ChannelUseCase покрывает операции с каналами.
type ChannelUseCase interface {
	ListChannels(ctx context.Context, ownerID int64) ([]domain.Channel, error)
	DeleteChannel(ctx context.Context, ownerID, channelID int64) error
}

// ScheduleUseCase отменяет отложенные публикации.
type ScheduleUseCase interface {
	CancelOwned(ctx context.Context, ownerID int64, jobID string) error
}

// PublishUseCase публикует пост без очереди.
type PublishUseCase interface {
	PublishNow(ctx context.Context, ownerID, postID, channelID int64) (domain.Post, error)
}

// UseCases собирает зависимости обработчика.
type UseCases struct {
	Dialogs   Dialogs
	Content   ContentUseCase
	Channels  ChannelUseCase
	Scheduler ScheduleUseCase
	Publisher PublishUseCase
	Clock     domain.Clock
}

// Handler обслуживает вебхук бота.
type Handler struct {
	api     Messenger
	log     zerolog.Logger
	catalog *Catalog
	uc      UseCases
	loc     *time.Location
}

// NewHandler создаёт обработчик.
func NewHandler(api Messenger, log zerolog.Logger, catalog *Catalog, uc UseCases, loc *time.Location) *Handler {
	if uc.Clock == nil {
		uc.Clock = domain.SystemClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{api: api, log: log, catalog: catalog, uc: uc, loc: loc}
}

// chat описывает собеседника одного апдейта.
type chat struct {
	id     int64
	userID int64
	lang   string
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	c := chat{id: msg.Chat.ID, userID: msg.From.ID, lang: h.catalog.Lang(msg.From.LanguageCode)}

	if len(msg.Photo) > 0 {
		h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventPhoto, PhotoRef: largestPhoto(msg.Photo), Text: msg.Caption})
		return
	}
	if !msg.IsCommand() {
		h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventText, Text: msg.Text})
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "start")+"\n\n"+h.catalog.Text(c.lang, sectionCommon, "help"), h.mainKeyboard(c.lang))
	case "help":
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "help"), h.mainKeyboard(c.lang))
	case "cancel":
		h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventCancel})
	case "done":
		h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventDone})
	case "new_post":
		h.handleNewPost(ctx, c)
	case "new_channel":
		h.start(ctx, c, wizard.KindChannelCreate, domain.Fields{})
	case "new_style":
		h.start(ctx, c, wizard.KindStyleCreate, domain.Fields{})
	case "posts":
		h.handlePosts(ctx, c)
	case "channels":
		h.handleChannels(ctx, c)
	case "styles":
		h.handleStyles(ctx, c)
	case "balance":
		h.handleBalance(ctx, c)
	case "unschedule":
		h.handleUnschedule(ctx, c, args)
	default:
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "unknown"), nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil {
		return
	}
	c := chat{id: cb.From.ID, userID: cb.From.ID, lang: h.catalog.Lang(cb.From.LanguageCode)}
	if cb.Message != nil && cb.Message.Chat != nil {
		c.id = cb.Message.Chat.ID
	}

	action, value, _ := strings.Cut(cb.Data, ":")
	switch action {
	case "wz":
		switch value {
		case "done":
			h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventDone})
		case "cancel":
			h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventCancel})
		}
	case "pick":
		h.dispatch(ctx, c, wizard.Event{Kind: wizard.EventChoice, Choice: value})
	case "menu":
		h.handleMenu(ctx, c, value)
	case "draft":
		seed := domain.Fields{}
		if id := parseID(value); id > 0 {
			seed.StyleID = &id
		}
		h.start(ctx, c, wizard.KindPostCreate, seed)
	case "post":
		h.handleShowPost(ctx, c, parseID(value))
	case "edit":
		id := parseID(value)
		h.start(ctx, c, wizard.KindPostEdit, domain.Fields{PostID: &id})
	case "sched":
		id := parseID(value)
		h.start(ctx, c, wizard.KindPostSchedule, domain.Fields{PostID: &id})
	case "pub":
		h.handlePickPublishChannel(ctx, c, parseID(value))
	case "pubto":
		post, channel, _ := strings.Cut(value, ":")
		h.handlePublish(ctx, c, parseID(post), parseID(channel))
	case "delpost":
		h.handleDelete(c, h.uc.Content.DeletePost(ctx, c.userID, parseID(value)))
	case "chedit":
		id := parseID(value)
		h.start(ctx, c, wizard.KindChannelEdit, domain.Fields{ChannelID: &id})
	case "chdel":
		h.handleDelete(c, h.uc.Channels.DeleteChannel(ctx, c.userID, parseID(value)))
	case "styledel":
		h.handleDelete(c, h.uc.Content.DeleteStyle(ctx, c.userID, parseID(value)))
	}

	start := time.Now()
	_, err := h.api.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleMenu(ctx context.Context, c chat, item string) {
	switch item {
	case "new_post":
		h.handleNewPost(ctx, c)
	case "new_channel":
		h.start(ctx, c, wizard.KindChannelCreate, domain.Fields{})
	case "new_style":
		h.start(ctx, c, wizard.KindStyleCreate, domain.Fields{})
	case "posts":
		h.handlePosts(ctx, c)
	case "channels":
		h.handleChannels(ctx, c)
	case "styles":
		h.handleStyles(ctx, c)
	case "balance":
		h.handleBalance(ctx, c)
	}
}

func (h *Handler) start(ctx context.Context, c chat, kind domain.WizardKind, seed domain.Fields) {
	outcome, err := h.uc.Dialogs.Start(ctx, c.userID, kind, seed)
	if err != nil {
		h.fail(c, err, "не удалось начать диалог")
		return
	}
	h.respond(ctx, c, outcome)
}

func (h *Handler) dispatch(ctx context.Context, c chat, ev wizard.Event) {
	outcome, err := h.uc.Dialogs.Handle(ctx, c.userID, ev)
	if err != nil {
		h.fail(c, err, "не удалось обработать шаг диалога")
		return
	}
	h.respond(ctx, c, outcome)
}

func (h *Handler) respond(ctx context.Context, c chat, outcome wizard.Outcome) {
	d := outcome.Directive
	switch d.Kind {
	case wizard.DirectiveCompleted:
		h.reply(c.id, h.completedText(c.lang, d.Wizard, outcome.Result), h.mainKeyboard(c.lang))
	case wizard.DirectivePrompt, wizard.DirectiveReprompt:
		h.reply(c.id, h.catalog.Render(c.lang, d, h.loc.String()), h.stageKeyboard(ctx, c, d))
	case wizard.DirectiveFailed:
		var keyboard *tgbotapi.InlineKeyboardMarkup
		if d.Reason == wizard.ReasonInternal {
			keyboard = h.cancelKeyboard(c.lang)
		}
		h.reply(c.id, h.catalog.Render(c.lang, d, h.loc.String()), keyboard)
	default:
		h.reply(c.id, h.catalog.Render(c.lang, d, h.loc.String()), h.mainKeyboard(c.lang))
	}
}

func (h *Handler) completedText(lang string, kind domain.WizardKind, result wizard.Result) string {
	switch {
	case result.Channel != nil:
		return h.catalog.Text(lang, sectionCompleted, string(kind), "name", result.Channel.Name)
	case result.Style != nil:
		return h.catalog.Text(lang, sectionCompleted, string(kind), "name", result.Style.Name)
	case result.Job != nil:
		return h.catalog.Text(lang, sectionCompleted, string(kind),
			"time", result.Job.FireTime.In(h.loc).Format(timeLayout),
			"job", result.Job.ID,
		)
	case result.Post != nil:
		key := string(kind)
		if kind == wizard.KindPostCreate && result.Post.StyleID != nil {
			key = "post_create_styled"
		}
		return h.catalog.Text(lang, sectionCompleted, key,
			"id", strconv.FormatInt(result.Post.ID, 10),
			"content", result.Post.Content,
		)
	}
	return h.catalog.Text(lang, sectionCompleted, string(kind))
}

func (h *Handler) handleNewPost(ctx context.Context, c chat) {
	styles, err := h.uc.Content.ListStyles(ctx, c.userID, listLimit, 0)
	if err != nil {
		h.fail(c, err, "не удалось получить стили")
		return
	}
	if len(styles) == 0 {
		h.start(ctx, c, wizard.KindPostCreate, domain.Fields{})
		return
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(styles)+1)
	for _, style := range styles {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(style.Name, "draft:"+strconv.FormatInt(style.ID, 10)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "no_style"), "draft:0"),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "pick_style"), &markup)
}

func (h *Handler) handlePosts(ctx context.Context, c chat) {
	posts, err := h.uc.Content.ListPosts(ctx, c.userID, listLimit, 0)
	if err != nil {
		h.fail(c, err, "не удалось получить посты")
		return
	}
	if len(posts) == 0 {
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "empty_posts"), h.mainKeyboard(c.lang))
		return
	}
	lines := []string{h.catalog.Text(c.lang, sectionCommon, "posts_header")}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(posts))
	for _, post := range posts {
		label := fmt.Sprintf("№%d %s", post.ID, h.postTitle(c.lang, post))
		lines = append(lines, fmt.Sprintf("• %s · %s", label, h.postStatus(c.lang, post)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "post:"+strconv.FormatInt(post.ID, 10)),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, strings.Join(lines, "\n"), &markup)
}

func (h *Handler) handleShowPost(ctx context.Context, c chat, postID int64) {
	post, err := h.uc.Content.GetPost(ctx, c.userID, postID)
	if err != nil {
		h.fail(c, err, "не удалось получить пост")
		return
	}
	text := fmt.Sprintf("№%d %s · %s\n\n%s", post.ID, h.postTitle(c.lang, post), h.postStatus(c.lang, post), post.Content)
	id := strconv.FormatInt(post.ID, 10)
	var rows [][]tgbotapi.InlineKeyboardButton
	if !post.IsPublished {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "edit"), "edit:"+id),
				tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "schedule"), "sched:"+id),
			),
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "publish"), "pub:"+id),
			),
		)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "delete"), "delpost:"+id),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, text, &markup)
}

func (h *Handler) handlePickPublishChannel(ctx context.Context, c chat, postID int64) {
	list, err := h.uc.Channels.ListChannels(ctx, c.userID)
	if err != nil {
		h.fail(c, err, "не удалось получить каналы")
		return
	}
	if len(list) == 0 {
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "empty_channels"), h.mainKeyboard(c.lang))
		return
	}
	prefix := "pubto:" + strconv.FormatInt(postID, 10) + ":"
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, ch := range list {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(ch.Name, prefix+strconv.FormatInt(ch.ID, 10)),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "pick_channel"), &markup)
}

func (h *Handler) handlePublish(ctx context.Context, c chat, postID, channelID int64) {
	post, err := h.uc.Publisher.PublishNow(ctx, c.userID, postID, channelID)
	switch {
	case errors.Is(err, domain.ErrDeliveryFailed), errors.Is(err, domain.ErrDestinationInvalid):
		h.log.Warn().Err(err).Int64("user", c.userID).Int64("post", postID).Msg("ручная публикация не удалась")
		h.reply(c.id, h.catalog.Text(c.lang, sectionReason, "delivery_failed"), nil)
		return
	case err != nil:
		h.fail(c, err, "не удалось опубликовать пост")
		return
	}
	channelName := strconv.FormatInt(channelID, 10)
	if list, err := h.uc.Channels.ListChannels(ctx, c.userID); err == nil {
		for _, ch := range list {
			if ch.ID == channelID {
				channelName = ch.Tag()
				break
			}
		}
	}
	h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "published",
		"id", strconv.FormatInt(post.ID, 10),
		"channel", channelName,
	), h.mainKeyboard(c.lang))
}

func (h *Handler) handleChannels(ctx context.Context, c chat) {
	list, err := h.uc.Channels.ListChannels(ctx, c.userID)
	if err != nil {
		h.fail(c, err, "не удалось получить каналы")
		return
	}
	if len(list) == 0 {
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "empty_channels"), h.mainKeyboard(c.lang))
		return
	}
	lines := []string{h.catalog.Text(c.lang, sectionCommon, "channels_header")}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for _, ch := range list {
		id := strconv.FormatInt(ch.ID, 10)
		lines = append(lines, fmt.Sprintf("• %s · %s", ch.Name, ch.Tag()))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✏️ "+ch.Name, "chedit:"+id),
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+ch.Name, "chdel:"+id),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, strings.Join(lines, "\n"), &markup)
}

func (h *Handler) handleStyles(ctx context.Context, c chat) {
	styles, err := h.uc.Content.ListStyles(ctx, c.userID, listLimit, 0)
	if err != nil {
		h.fail(c, err, "не удалось получить стили")
		return
	}
	if len(styles) == 0 {
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "empty_styles"), h.mainKeyboard(c.lang))
		return
	}
	lines := []string{h.catalog.Text(c.lang, sectionCommon, "styles_header")}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(styles))
	for _, style := range styles {
		id := strconv.FormatInt(style.ID, 10)
		lines = append(lines, "• "+style.Name)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📝 "+style.Name, "draft:"+id),
			tgbotapi.NewInlineKeyboardButtonData("🗑 "+style.Name, "styledel:"+id),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	h.reply(c.id, strings.Join(lines, "\n"), &markup)
}

func (h *Handler) handleBalance(ctx context.Context, c chat) {
	amount, err := h.uc.Content.Balance(ctx, c.userID)
	if err != nil {
		h.fail(c, err, "не удалось получить баланс")
		return
	}
	h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "balance", "amount", strconv.FormatInt(amount, 10)), h.mainKeyboard(c.lang))
}

func (h *Handler) handleUnschedule(ctx context.Context, c chat, jobID string) {
	if jobID == "" {
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "help"), nil)
		return
	}
	err := h.uc.Scheduler.CancelOwned(ctx, c.userID, jobID)
	switch {
	case errors.Is(err, domain.ErrJobBusy):
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "job_busy"), nil)
	case err != nil:
		h.fail(c, err, "не удалось отменить публикацию")
	default:
		h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "unscheduled"), h.mainKeyboard(c.lang))
	}
}

func (h *Handler) handleDelete(c chat, err error) {
	if err != nil {
		h.fail(c, err, "не удалось удалить")
		return
	}
	h.reply(c.id, h.catalog.Text(c.lang, sectionCommon, "deleted"), h.mainKeyboard(c.lang))
}

// fail сообщает пользователю причину ошибки. Сбои инфраструктуры логируются.
func (h *Handler) fail(c chat, err error, msg string) {
	reason := wizard.ReasonFor(err)
	if reason == wizard.ReasonInternal {
		h.log.Error().Err(err).Int64("user", c.userID).Msg(msg)
	}
	h.reply(c.id, h.catalog.Text(c.lang, sectionReason, reason), nil)
}

func (h *Handler) postTitle(lang string, post domain.Post) string {
	if strings.TrimSpace(post.Title) == "" {
		return h.catalog.Text(lang, sectionCommon, "untitled")
	}
	return post.Title
}

func (h *Handler) postStatus(lang string, post domain.Post) string {
	switch {
	case post.IsPublished:
		return h.catalog.Text(lang, sectionCommon, "post_published")
	case post.ScheduledTime != nil:
		return h.catalog.Text(lang, sectionCommon, "post_scheduled", "time", post.ScheduledTime.In(h.loc).Format(timeLayout))
	default:
		return h.catalog.Text(lang, sectionCommon, "post_draft")
	}
}

// largestPhoto выбирает самый крупный размер фото.
func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := sizes[0]
	for _, size := range sizes[1:] {
		if size.Width*size.Height > best.Width*best.Height {
			best = size
		}
	}
	return best.FileID
}

func parseID(value string) int64 {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.api.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) mainKeyboard(lang string) *tgbotapi.InlineKeyboardMarkup {
	button := func(key string) tgbotapi.InlineKeyboardButton {
		return tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(lang, sectionButton, key), "menu:"+key)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button("new_post"), button("posts")),
		tgbotapi.NewInlineKeyboardRow(button("new_channel"), button("channels")),
		tgbotapi.NewInlineKeyboardRow(button("new_style"), button("styles")),
		tgbotapi.NewInlineKeyboardRow(button("balance")),
	)
	return &markup
}

func (h *Handler) cancelKeyboard(lang string) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(h.cancelButton(lang)))
	return &markup
}

func (h *Handler) cancelButton(lang string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(lang, sectionButton, "cancel"), "wz:cancel")
}

func (h *Handler) pickButton(lang, key, choice string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(lang, sectionButton, key), "pick:"+choice)
}

// stageKeyboard строит кнопки для шага диалога.
func (h *Handler) stageKeyboard(ctx context.Context, c chat, d wizard.Directive) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	switch d.Stage {
	case wizard.StageStyleExamples:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "done"), "wz:done"),
		))
	case wizard.StagePostTitle:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionButton, "skip"), "wz:done"),
		))
	case wizard.StageChannelEditField:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			h.pickButton(c.lang, wizard.FieldName, wizard.FieldName),
			h.pickButton(c.lang, wizard.FieldLink, wizard.FieldLink),
		))
	case wizard.StagePostEditField:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			h.pickButton(c.lang, wizard.FieldTitle, wizard.FieldTitle),
			h.pickButton(c.lang, wizard.FieldContent, wizard.FieldContent),
		))
	case wizard.StageScheduleChannel:
		list, err := h.uc.Channels.ListChannels(ctx, c.userID)
		if err != nil {
			h.log.Error().Err(err).Int64("user", c.userID).Msg("не удалось получить каналы для расписания")
		}
		for _, ch := range list {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(ch.Name, "pick:"+strconv.FormatInt(ch.ID, 10)),
			))
		}
	case wizard.StageScheduleTime:
		var row []tgbotapi.InlineKeyboardButton
		for _, preset := range schedule.PresetTimes(h.uc.Clock.Now(), h.loc) {
			data := "pick:" + wizard.ChoiceAtPrefix + strconv.FormatInt(preset.At.Unix(), 10)
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(h.catalog.Text(c.lang, sectionPreset, preset.Key), data))
			if len(row) == 2 {
				rows = append(rows, row)
				row = nil
			}
		}
		if len(row) > 0 {
			rows = append(rows, row)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(h.pickButton(c.lang, "custom", wizard.ChoiceCustom)))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(h.cancelButton(c.lang)))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}
