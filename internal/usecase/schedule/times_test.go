package schedule

import (
	"errors"
	"testing"
	"time"

	"tg-content-assistant/internal/domain"
)

func TestNormalizeTimezone(t *testing.T) {
	cases := map[string]string{
		"europe/moscow":     "Europe/Moscow",
		" America/New York": "America/New_York",
		"UTC":               "UTC",
	}
	for input, expected := range cases {
		got, err := NormalizeTimezone(input)
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if got != expected {
			t.Fatalf("ожидали %s, получили %s", expected, got)
		}
	}
	if _, err := NormalizeTimezone("Mars/Olympus"); !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("ожидали ErrInvalidTimezone, получили %v", err)
	}
}

func TestPresetTimesMorning(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 30, 0, 0, time.UTC)
	presets := PresetTimes(now, time.UTC)
	if len(presets) != 4 {
		t.Fatalf("ожидали 4 варианта, получили %d", len(presets))
	}
	if presets[0].Key != PresetTodayEvening || !presets[0].At.Equal(time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("первым должен идти вечер сегодня: %+v", presets[0])
	}
	if !presets[1].At.Equal(time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданное утро завтра: %v", presets[1].At)
	}
}

func TestPresetTimesLateEvening(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	now := time.Date(2025, 1, 31, 21, 0, 0, 0, loc)
	presets := PresetTimes(now, loc)
	if len(presets) != 3 {
		t.Fatalf("вечер сегодня уже прошёл, ожидали 3 варианта, получили %d", len(presets))
	}
	if !presets[2].At.Equal(time.Date(2025, 2, 1, 20, 0, 0, 0, loc)) {
		t.Fatalf("неожиданный вечер завтра: %v", presets[2].At)
	}
}

func TestParseCustomTime(t *testing.T) {
	loc := time.FixedZone("MSK", 3*3600)
	got, err := ParseCustomTime(" 2025-01-01  09:00 ", loc)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !got.Equal(time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("неожиданное время: %v", got)
	}
	if _, err := ParseCustomTime("01.01.2025 9:00", loc); !errors.Is(err, domain.ErrValidationFailed) {
		t.Fatalf("ожидали ошибку валидации, получили %v", err)
	}
}

func TestValidateFireTime(t *testing.T) {
	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	if err := ValidateFireTime(now, now); !errors.Is(err, domain.ErrInvalidTime) {
		t.Fatalf("текущее время должно считаться прошедшим, получили %v", err)
	}
	if err := ValidateFireTime(now.Add(time.Minute), now); err != nil {
		t.Fatalf("будущее время допустимо: %v", err)
	}
}
