package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tg-content-assistant/internal/domain"
	"tg-content-assistant/internal/usecase/channels"
	"tg-content-assistant/internal/usecase/schedule"
)

// Begin создаёт сессию нового диалога. Обязательные начальные поля:
// ChannelID для channel_edit, PostID для post_edit и post_schedule.
// Для post_create с заданным StyleID шаг заголовка пропускается.
func Begin(userID int64, kind domain.WizardKind, seed domain.Fields, now time.Time) (domain.Session, Directive, error) {
	var stage domain.Stage
	switch kind {
	case KindChannelCreate:
		stage = StageChannelName
	case KindChannelEdit:
		if seed.ChannelID == nil {
			return domain.Session{}, Directive{}, fmt.Errorf("%w: не выбран канал", domain.ErrValidationFailed)
		}
		stage = StageChannelEditField
	case KindStyleCreate:
		stage = StageStyleExamples
	case KindPostCreate:
		stage = StagePostTitle
		if seed.StyleID != nil {
			stage = StagePostContent
		}
	case KindPostEdit:
		if seed.PostID == nil {
			return domain.Session{}, Directive{}, fmt.Errorf("%w: не выбран пост", domain.ErrValidationFailed)
		}
		stage = StagePostEditField
	case KindPostSchedule:
		if seed.PostID == nil {
			return domain.Session{}, Directive{}, fmt.Errorf("%w: не выбран пост", domain.ErrValidationFailed)
		}
		stage = StageScheduleChannel
	default:
		return domain.Session{}, Directive{}, fmt.Errorf("%w: неизвестный диалог %q", domain.ErrValidationFailed, kind)
	}
	session := domain.Session{UserID: userID, Wizard: kind, Stage: stage, Fields: seed.Clone(), UpdatedAt: now}
	return session, Directive{Kind: DirectivePrompt, Wizard: kind, Stage: stage}, nil
}

// Transition вычисляет следующий шаг диалога. Функция не выполняет ввод-вывод:
// сохранение полей и завершающее действие выполняет Engine.
func Transition(s domain.Session, ev Event, env Env) Step {
	if ev.Kind == EventCancel {
		return Step{Next: s.Stage, End: true, Directive: Directive{Kind: DirectiveCancelled, Wizard: s.Wizard, Stage: s.Stage}}
	}
	switch s.Stage {
	case StageChannelName:
		return channelName(s, ev)
	case StageChannelLink:
		return channelLink(s, ev)
	case StageChannelEditField:
		return chooseField(s, ev, StageChannelEditValue, FieldName, FieldLink)
	case StageChannelEditValue:
		return channelEditValue(s, ev)
	case StageStyleExamples:
		return styleExamples(s, ev)
	case StageStyleName:
		return styleName(s, ev)
	case StagePostTitle:
		return postTitle(s, ev)
	case StagePostContent:
		return postContent(s, ev)
	case StagePostEditField:
		return chooseField(s, ev, StagePostEditValue, FieldTitle, FieldContent)
	case StagePostEditValue:
		return postEditValue(s, ev)
	case StageScheduleChannel:
		return scheduleChannel(s, ev)
	case StageScheduleTime:
		return scheduleTime(s, ev, env)
	case StageScheduleCustom:
		if text, ok := textOf(ev); ok {
			return customTime(s, text, env)
		}
		return reprompt(s, ReasonEmptyText, nil)
	default:
		return incomplete(s)
	}
}

func channelName(s domain.Session, ev Event) Step {
	text, ok := textOf(ev)
	if !ok {
		return reprompt(s, ReasonEmptyText, nil)
	}
	return advance(s, StageChannelLink, domain.Fields{ChannelName: &text})
}

func channelLink(s domain.Session, ev Event) Step {
	text, ok := textOf(ev)
	if !ok {
		return reprompt(s, ReasonEmptyText, nil)
	}
	link, _, err := channels.ParseChannelLink(text)
	if err != nil {
		return reprompt(s, ReasonInvalidLink, err)
	}
	name := deref(s.Fields.ChannelName)
	if name == "" {
		return incomplete(s)
	}
	return finish(s, Action{Kind: ActionCreateChannel, Channel: &ChannelInput{Name: name, Link: link}})
}

func chooseField(s domain.Session, ev Event, next domain.Stage, allowed ...string) Step {
	if ev.Kind != EventChoice {
		return reprompt(s, ReasonUnknownInput, nil)
	}
	for _, field := range allowed {
		if ev.Choice == field {
			step := advance(s, next, domain.Fields{EditField: &field})
			step.Directive.Field = field
			return step
		}
	}
	return reprompt(s, ReasonUnknownInput, nil)
}

func channelEditValue(s domain.Session, ev Event) Step {
	if s.Fields.ChannelID == nil {
		return incomplete(s)
	}
	text, ok := textOf(ev)
	if !ok {
		return reprompt(s, ReasonEmptyText, nil)
	}
	input := ChannelInput{ID: *s.Fields.ChannelID}
	switch deref(s.Fields.EditField) {
	case FieldName:
		input.Name = text
	case FieldLink:
		link, _, err := channels.ParseChannelLink(text)
		if err != nil {
			return reprompt(s, ReasonInvalidLink, err)
		}
		input.Link = link
	default:
		return incomplete(s)
	}
	return finish(s, Action{Kind: ActionUpdateChannel, Channel: &input})
}

func styleExamples(s domain.Session, ev Event) Step {
	collected := len(s.Fields.Examples)
	switch ev.Kind {
	case EventDone:
		if collected == 0 {
			return reprompt(s, ReasonNoExamples, fmt.Errorf("%w: нет ни одного примера", domain.ErrValidationFailed))
		}
		step := advance(s, StageStyleName, domain.Fields{})
		step.Directive.Count = collected
		return step
	case EventText:
		text, ok := textOf(ev)
		if !ok {
			break
		}
		examples := append(append(make([]string, 0, collected+1), s.Fields.Examples...), text)
		delta := domain.Fields{Examples: examples}
		if len(examples) >= MaxExamples {
			step := advance(s, StageStyleName, delta)
			step.Directive.Count = len(examples)
			return step
		}
		return Step{
			Next:      s.Stage,
			Delta:     delta,
			Directive: Directive{Kind: DirectivePrompt, Wizard: s.Wizard, Stage: s.Stage, Count: len(examples)},
		}
	}
	return reprompt(s, ReasonEmptyText, nil)
}

func styleName(s domain.Session, ev Event) Step {
	text, ok := textOf(ev)
	if !ok {
		return reprompt(s, ReasonEmptyText, nil)
	}
	examples := s.Fields.Examples
	if len(examples) == 0 || len(examples) > MaxExamples {
		return incomplete(s)
	}
	return finish(s, Action{Kind: ActionCreateStyle, Style: &StyleInput{
		Name:     text,
		Examples: strings.Join(examples, ExamplesSeparator),
	}})
}

func postTitle(s domain.Session, ev Event) Step {
	switch ev.Kind {
	case EventDone:
		empty := ""
		return advance(s, StagePostContent, domain.Fields{Title: &empty})
	case EventText:
		if text, ok := textOf(ev); ok {
			return advance(s, StagePostContent, domain.Fields{Title: &text})
		}
	}
	return reprompt(s, ReasonEmptyText, nil)
}

func postContent(s domain.Session, ev Event) Step {
	input := PostInput{StyleID: s.Fields.StyleID, Title: deref(s.Fields.Title)}
	switch ev.Kind {
	case EventText:
		input.Content, _ = textOf(ev)
	case EventPhoto:
		if ev.PhotoRef == "" {
			return reprompt(s, ReasonEmptyText, nil)
		}
		input.Content = strings.TrimSpace(ev.Text)
		input.PhotoRef = ev.PhotoRef
	default:
		return reprompt(s, ReasonEmptyText, nil)
	}
	if input.Content == "" && (input.PhotoRef == "" || input.StyleID != nil) {
		return reprompt(s, ReasonEmptyText, nil)
	}
	kind := ActionCreatePost
	if input.StyleID != nil {
		kind = ActionCreateDraft
	}
	return finish(s, Action{Kind: kind, Post: &input})
}

func postEditValue(s domain.Session, ev Event) Step {
	if s.Fields.PostID == nil {
		return incomplete(s)
	}
	edit := EditInput{PostID: *s.Fields.PostID}
	switch deref(s.Fields.EditField) {
	case FieldTitle:
		text, ok := textOf(ev)
		if !ok {
			return reprompt(s, ReasonEmptyText, nil)
		}
		edit.Patch.Title = &text
	case FieldContent:
		switch ev.Kind {
		case EventText:
			text, ok := textOf(ev)
			if !ok {
				return reprompt(s, ReasonEmptyText, nil)
			}
			edit.Patch.Content = &text
		case EventPhoto:
			if ev.PhotoRef == "" {
				return reprompt(s, ReasonEmptyText, nil)
			}
			photo := ev.PhotoRef
			edit.Patch.PhotoRef = &photo
			if caption := strings.TrimSpace(ev.Text); caption != "" {
				edit.Patch.Content = &caption
			}
		default:
			return reprompt(s, ReasonEmptyText, nil)
		}
	default:
		return incomplete(s)
	}
	return finish(s, Action{Kind: ActionEditPost, Edit: &edit})
}

func scheduleChannel(s domain.Session, ev Event) Step {
	if ev.Kind != EventChoice {
		return reprompt(s, ReasonUnknownInput, nil)
	}
	id, err := strconv.ParseInt(ev.Choice, 10, 64)
	if err != nil || id <= 0 {
		return reprompt(s, ReasonUnknownInput, nil)
	}
	return advance(s, StageScheduleTime, domain.Fields{ChannelID: &id})
}

func scheduleTime(s domain.Session, ev Event, env Env) Step {
	switch ev.Kind {
	case EventChoice:
		if ev.Choice == ChoiceCustom {
			return advance(s, StageScheduleCustom, domain.Fields{})
		}
		raw, ok := strings.CutPrefix(ev.Choice, ChoiceAtPrefix)
		if !ok {
			break
		}
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			break
		}
		return scheduleAt(s, time.Unix(unix, 0), env)
	case EventText:
		if text, ok := textOf(ev); ok {
			return customTime(s, text, env)
		}
	}
	return reprompt(s, ReasonUnknownInput, nil)
}

func customTime(s domain.Session, text string, env Env) Step {
	fireTime, err := schedule.ParseCustomTime(text, env.Location)
	if err != nil {
		return reprompt(s, ReasonBadTime, err)
	}
	return scheduleAt(s, fireTime, env)
}

func scheduleAt(s domain.Session, fireTime time.Time, env Env) Step {
	if err := schedule.ValidateFireTime(fireTime, env.Now); err != nil {
		return reprompt(s, ReasonPastTime, err)
	}
	if s.Fields.PostID == nil || s.Fields.ChannelID == nil {
		return incomplete(s)
	}
	return finish(s, Action{Kind: ActionSchedulePost, Schedule: &ScheduleInput{
		PostID:    *s.Fields.PostID,
		ChannelID: *s.Fields.ChannelID,
		FireTime:  fireTime,
	}})
}

func textOf(ev Event) (string, bool) {
	if ev.Kind != EventText {
		return "", false
	}
	text := strings.TrimSpace(ev.Text)
	return text, text != ""
}

func advance(s domain.Session, next domain.Stage, delta domain.Fields) Step {
	return Step{Next: next, Delta: delta, Directive: Directive{Kind: DirectivePrompt, Wizard: s.Wizard, Stage: next}}
}

func reprompt(s domain.Session, reason string, err error) Step {
	if err == nil {
		err = fmt.Errorf("%w: %s", domain.ErrValidationFailed, reason)
	}
	return Step{
		Next:      s.Stage,
		Directive: Directive{Kind: DirectiveReprompt, Wizard: s.Wizard, Stage: s.Stage, Field: deref(s.Fields.EditField), Reason: reason},
		Err:       err,
	}
}

func finish(s domain.Session, action Action) Step {
	return Step{
		Next:      s.Stage,
		Action:    &action,
		End:       true,
		Directive: Directive{Kind: DirectiveCompleted, Wizard: s.Wizard, Stage: s.Stage},
	}
}

func incomplete(s domain.Session) Step {
	return Step{
		Next:      s.Stage,
		End:       true,
		Directive: Directive{Kind: DirectiveFailed, Wizard: s.Wizard, Stage: s.Stage, Reason: ReasonIncomplete},
		Err:       fmt.Errorf("%w: диалог %s на шаге %s без нужных данных", domain.ErrNotFound, s.Wizard, s.Stage),
	}
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
