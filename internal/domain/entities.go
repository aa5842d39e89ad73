package domain

import (
	"strings"
	"time"
)

// Channel описывает канал пользователя, куда публикуются посты.
type Channel struct {
	ID        int64
	OwnerID   int64
	Name      string
	Link      string
	CreatedAt time.Time
}

// Tag возвращает адрес канала для Bot API в виде @name.
func (c Channel) Tag() string {
	link := strings.TrimRight(strings.TrimSpace(c.Link), "/")
	idx := strings.LastIndex(link, "/")
	return "@" + link[idx+1:]
}

// Style хранит примеры текстов, по которым LLM переписывает черновик.
type Style struct {
	ID        int64
	OwnerID   int64
	Name      string
	Examples  string
	CreatedAt time.Time
}

// Post представляет пост пользователя.
// IsPublished и PublishedAt выставляются только при доставке.
type Post struct {
	ID            int64
	OwnerID       int64
	Title         string
	Content       string
	StyleID       *int64
	PhotoRef      string
	ScheduledTime *time.Time
	PublishedAt   *time.Time
	IsPublished   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasPhoto сообщает, прикреплено ли к посту изображение.
func (p Post) HasPhoto() bool {
	return strings.TrimSpace(p.PhotoRef) != ""
}

// PostPatch описывает частичное изменение черновика: nil означает «не менять».
type PostPatch struct {
	Title    *string
	Content  *string
	PhotoRef *string
}

// Empty сообщает, что в патче нет изменений.
func (p PostPatch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.PhotoRef == nil
}

// Apply возвращает пост с применёнными изменениями.
func (p PostPatch) Apply(post Post) Post {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.PhotoRef != nil {
		post.PhotoRef = *p.PhotoRef
	}
	return post
}
