package task

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DueLayout - канонический формат срока задачи (yyyy-MM-dd HH:mm)
const DueLayout = "2006-01-02 15:04"

// MaxExtendMinutes - наибольший перенос за раз, около ста лет
const MaxExtendMinutes = 100 * 366 * 24 * 60

var ErrMalformedTimestamp = errors.New("некорректный формат времени")

var ErrExtendRange = errors.New("перенос вне допустимого диапазона")

type Task struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	DueAt       string    `json:"due_at"`
	RepeatUntil *string   `json:"repeat_until,omitempty"`
	Priority    Priority  `json:"priority"`
	Notified    bool      `json:"notified"`
}

// New создаёт задачу в состоянии ожидания
func New(description, dueAt string, repeatUntil *string, priority Priority) Task {
	return Task{
		ID:          uuid.New(),
		Description: description,
		DueAt:       dueAt,
		RepeatUntil: normalizeRepeat(repeatUntil),
		Priority:    priority,
		Notified:    false,
	}
}

func ParseDueAt(value string) (time.Time, error) {
	due, err := time.ParseInLocation(DueLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, value)
	}
	return due, nil
}

func FormatDueAt(t time.Time) string {
	return t.In(time.Local).Format(DueLayout)
}

// Due сообщает, наступил ли срок задачи на момент now.
// Уже оповещённая задача не считается наступившей.
func (t *Task) Due(now time.Time) (bool, error) {
	if t.Notified {
		return false, nil
	}
	due, err := ParseDueAt(t.DueAt)
	if err != nil {
		return false, err
	}
	return !now.Before(due), nil
}

// Extend сдвигает срок на minutes минут и возвращает задачу в ожидание
func (t *Task) Extend(minutes int) error {
	if minutes < 0 || minutes > MaxExtendMinutes {
		return fmt.Errorf("%w: %d минут", ErrExtendRange, minutes)
	}
	due, err := ParseDueAt(t.DueAt)
	if err != nil {
		return err
	}
	extended := due.Add(time.Duration(minutes) * time.Minute)
	if extended.Year() > 9999 {
		return fmt.Errorf("%w: срок после 9999 года", ErrExtendRange)
	}
	t.DueAt = FormatDueAt(extended)
	t.Notified = false
	return nil
}

func (t Task) Clone() Task {
	if t.RepeatUntil != nil {
		repeat := *t.RepeatUntil
		t.RepeatUntil = &repeat
	}
	return t
}

func normalizeRepeat(repeatUntil *string) *string {
	if repeatUntil == nil || *repeatUntil == "" {
		return nil
	}
	repeat := *repeatUntil
	return &repeat
}
