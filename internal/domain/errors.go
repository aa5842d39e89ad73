package domain

import "errors"

// Ошибки предметной области. Вызывающий код различает их через errors.Is.
var (
	ErrValidationFailed    = errors.New("некорректный ввод")
	ErrNotFound            = errors.New("объект не найден")
	ErrImmutable           = errors.New("пост уже опубликован и не может быть изменён")
	ErrInsufficientBalance = errors.New("недостаточно генераций на балансе")
	ErrTransformFailed     = errors.New("не удалось переписать текст")
	ErrContentPolicy       = errors.New("запрос отклонён политикой контента")
	ErrInvalidTime         = errors.New("некорректное время публикации")
	ErrAlreadyFired        = errors.New("задача публикации уже выполнена")
	ErrJobBusy             = errors.New("задача публикации сейчас выполняется")
	ErrDeliveryFailed      = errors.New("не удалось доставить пост")
	ErrDestinationInvalid  = errors.New("канал недоступен для публикации")
)
