package domain

import (
	"context"
	"time"
)

// WizardKind определяет тип пошагового диалога.
type WizardKind string

// Stage обозначает шаг диалога, на котором бот ждёт ввод.
type Stage string

// Fields накапливает введённые пользователем значения.
// nil означает, что поле ещё не заполнено.
type Fields struct {
	ChannelID   *int64     `json:"channel_id,omitempty"`
	ChannelName *string    `json:"channel_name,omitempty"`
	ChannelLink *string    `json:"channel_link,omitempty"`
	Examples    []string   `json:"examples,omitempty"`
	StyleID     *int64     `json:"style_id,omitempty"`
	StyleName   *string    `json:"style_name,omitempty"`
	PostID      *int64     `json:"post_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Content     *string    `json:"content,omitempty"`
	PhotoRef    *string    `json:"photo_ref,omitempty"`
	EditField   *string    `json:"edit_field,omitempty"`
	FireTime    *time.Time `json:"fire_time,omitempty"`
}

// Merge возвращает копию f, в которой заданные в delta поля перезаписаны.
// Examples в delta содержит полный список и заменяет прежний.
func (f Fields) Merge(delta Fields) Fields {
	out := f.Clone()
	if delta.ChannelID != nil {
		out.ChannelID = delta.ChannelID
	}
	if delta.ChannelName != nil {
		out.ChannelName = delta.ChannelName
	}
	if delta.ChannelLink != nil {
		out.ChannelLink = delta.ChannelLink
	}
	if delta.Examples != nil {
		out.Examples = append([]string(nil), delta.Examples...)
	}
	if delta.StyleID != nil {
		out.StyleID = delta.StyleID
	}
	if delta.StyleName != nil {
		out.StyleName = delta.StyleName
	}
	if delta.PostID != nil {
		out.PostID = delta.PostID
	}
	if delta.Title != nil {
		out.Title = delta.Title
	}
	if delta.Content != nil {
		out.Content = delta.Content
	}
	if delta.PhotoRef != nil {
		out.PhotoRef = delta.PhotoRef
	}
	if delta.EditField != nil {
		out.EditField = delta.EditField
	}
	if delta.FireTime != nil {
		out.FireTime = delta.FireTime
	}
	return out
}

// Clone возвращает глубокую копию.
func (f Fields) Clone() Fields {
	out := f
	out.ChannelID = clonePtr(f.ChannelID)
	out.ChannelName = clonePtr(f.ChannelName)
	out.ChannelLink = clonePtr(f.ChannelLink)
	out.StyleID = clonePtr(f.StyleID)
	out.StyleName = clonePtr(f.StyleName)
	out.PostID = clonePtr(f.PostID)
	out.Title = clonePtr(f.Title)
	out.Content = clonePtr(f.Content)
	out.PhotoRef = clonePtr(f.PhotoRef)
	out.EditField = clonePtr(f.EditField)
	out.FireTime = clonePtr(f.FireTime)
	if f.Examples != nil {
		out.Examples = append([]string(nil), f.Examples...)
	}
	return out
}

// IsZero сообщает, что ни одно поле не задано.
func (f Fields) IsZero() bool {
	return f.ChannelID == nil && f.ChannelName == nil && f.ChannelLink == nil &&
		f.Examples == nil && f.StyleID == nil && f.StyleName == nil && f.PostID == nil &&
		f.Title == nil && f.Content == nil && f.PhotoRef == nil && f.EditField == nil && f.FireTime == nil
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Session хранит состояние диалога одного пользователя.
type Session struct {
	UserID    int64      `json:"user_id"`
	Wizard    WizardKind `json:"wizard"`
	Stage     Stage      `json:"stage"`
	Fields    Fields     `json:"fields"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// SessionStore хранит не более одной сессии на пользователя.
// Операции над одним пользователем сериализуются через Lock.
type SessionStore interface {
	// Lock захватывает пользователя до вызова возвращённой функции.
	Lock(ctx context.Context, userID int64) (func(), error)
	Get(ctx context.Context, userID int64) (Session, bool, error)
	// Put заменяет сессию целиком.
	Put(ctx context.Context, session Session) error
	SetStage(ctx context.Context, userID int64, stage Stage) error
	MergeFields(ctx context.Context, userID int64, delta Fields) error
	// ReadFields передаёт копию полей в fn; ссылку нельзя хранить после возврата.
	ReadFields(ctx context.Context, userID int64, fn func(Fields) error) error
	Delete(ctx context.Context, userID int64) error
}
