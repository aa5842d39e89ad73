package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tg-content-assistant/internal/domain"
)

// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
var ErrInvalidTimezone = errors.New("invalid timezone")

// CustomTimeLayout задаёт формат ручного ввода времени публикации.
const CustomTimeLayout = "2006-01-02 15:04"

// NormalizeTimezone приводит имя часового пояса к виду, понятному time.LoadLocation.
func NormalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}

// Preset описывает готовый вариант времени публикации.
type Preset struct {
	Key string
	At  time.Time
}

// Ключи пресетов для каталога сообщений.
const (
	PresetTodayEvening    = "today_20"
	PresetTomorrowMorning = "tomorrow_09"
	PresetTomorrowNoon    = "tomorrow_12"
	PresetTomorrowEvening = "tomorrow_20"
)

// PresetTimes возвращает варианты публикации: сегодня в 20:00, если это время
// ещё впереди, и завтра в 09:00, 12:00 и 20:00.
func PresetTimes(now time.Time, loc *time.Location) []Preset {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	at := func(dayOffset, hour int) time.Time {
		return time.Date(local.Year(), local.Month(), local.Day()+dayOffset, hour, 0, 0, 0, loc)
	}
	presets := make([]Preset, 0, 4)
	if today := at(0, 20); today.After(local) {
		presets = append(presets, Preset{Key: PresetTodayEvening, At: today})
	}
	return append(presets,
		Preset{Key: PresetTomorrowMorning, At: at(1, 9)},
		Preset{Key: PresetTomorrowNoon, At: at(1, 12)},
		Preset{Key: PresetTomorrowEvening, At: at(1, 20)},
	)
}

// ParseCustomTime разбирает время формата ГГГГ-ММ-ДД ЧЧ:ММ в поясе loc.
func ParseCustomTime(input string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(CustomTimeLayout, strings.Join(strings.Fields(input), " "), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: ожидали формат ГГГГ-ММ-ДД ЧЧ:ММ", domain.ErrValidationFailed)
	}
	return t, nil
}

// ValidateFireTime проверяет, что время публикации ещё не наступило.
func ValidateFireTime(fireTime, now time.Time) error {
	if !fireTime.After(now) {
		return fmt.Errorf("%w: %s уже прошло", domain.ErrInvalidTime, fireTime.Format(CustomTimeLayout))
	}
	return nil
}

// LoadLocation нормализует имя часового пояса и загружает его.
func LoadLocation(raw string) (*time.Location, error) {
	name, err := NormalizeTimezone(raw)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(name)
}
