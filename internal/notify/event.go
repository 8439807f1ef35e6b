package notify

import (
	"context"
	"fmt"
	"taskReminder/internal/logger"
	"taskReminder/internal/models/task"
	"time"

	"go.uber.org/zap"
)

type Kind string

const KindTaskDue Kind = "task_due"
const KindTaskListChanged Kind = "task_list_changed"
const KindDecodeWarning Kind = "decode_warning"
const KindLoadError Kind = "load_error"
const KindTaskPostponed Kind = "task_postponed"

type Event struct {
	Seq      uint64        `json:"seq"`
	Kind     Kind          `json:"kind"`
	At       time.Time     `json:"at"`
	Task     *task.Task    `json:"task,omitempty"`
	Index    int           `json:"index"`
	Priority task.Priority `json:"priority,omitempty"`
	Message  string        `json:"message,omitempty"`
}

// Publisher - всё, что нужно хранилищу и воркеру от канала событий
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

func TaskDue(t task.Task, index int, at time.Time) Event {
	return Event{
		Kind:     KindTaskDue,
		At:       at,
		Task:     &t,
		Index:    index,
		Priority: t.Priority,
		Message:  fmt.Sprintf("%s is due!", t.Description),
	}
}

func TaskPostponed(t task.Task, index, minutes int, at time.Time) Event {
	return Event{
		Kind:     KindTaskPostponed,
		At:       at,
		Task:     &t,
		Index:    index,
		Priority: t.Priority,
		Message:  fmt.Sprintf("%s extended by %d minutes!", t.Description, minutes),
	}
}

func TaskListChanged(at time.Time) Event {
	return Event{Kind: KindTaskListChanged, At: at, Index: -1}
}

// DecodeWarning несёт в Index позицию пропущенной записи (с 1)
func DecodeWarning(position int, err error, at time.Time) Event {
	return Event{Kind: KindDecodeWarning, At: at, Index: position, Message: err.Error()}
}

func LoadError(err error, at time.Time) Event {
	return Event{Kind: KindLoadError, At: at, Index: -1, Message: err.Error()}
}

// Bus - единый упорядоченный канал от ядра к владельцу интерфейса
type Bus struct {
	events chan Event
}

func NewBus(buffer int) *Bus {
	if buffer < 0 {
		buffer = 0
	}
	return &Bus{events: make(chan Event, buffer)}
}

// Publish блокируется, пока событие не принято или не отменён ctx
func (b *Bus) Publish(ctx context.Context, ev Event) {
	select {
	case b.events <- ev:
	case <-ctx.Done():
		logger.Warn("Notify: Событие потеряно, контекст отменён",
			zap.String("kind", string(ev.Kind)),
			zap.Error(ctx.Err()))
	}
}

func (b *Bus) Events() <-chan Event {
	return b.events
}
