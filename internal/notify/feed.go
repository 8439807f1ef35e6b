package notify

import (
	"context"
	"sync"
	"taskReminder/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Feed вычитывает Bus, пишет каждое событие в лог и хранит последние
// capacity событий с порядковыми номерами для опроса интерфейсом.
type Feed struct {
	mtx      sync.RWMutex
	capacity int
	events   []Event
	nextSeq  uint64
}

func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = 1
	}
	return &Feed{
		capacity: capacity,
		events:   make([]Event, 0, capacity),
		nextSeq:  1,
	}
}

// Run работает до отмены ctx или закрытия канала
func (f *Feed) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			f.Append(ev)
		case <-ctx.Done():
			logger.Info("Notify: Лента событий останавливается")
			return
		}
	}
}

func (f *Feed) Append(ev Event) Event {
	f.mtx.Lock()
	ev.Seq = f.nextSeq
	f.nextSeq++
	if len(f.events) == f.capacity {
		copy(f.events, f.events[1:])
		f.events = f.events[:len(f.events)-1]
	}
	f.events = append(f.events, ev)
	f.mtx.Unlock()

	logger.Log(levelFor(ev.Kind), "Notify: Событие",
		zap.Uint64("seq", ev.Seq),
		zap.String("kind", string(ev.Kind)),
		zap.Int("index", ev.Index),
		zap.String("message", ev.Message))
	return ev
}

// After возвращает события с номером больше seq, старые уже вытеснены
func (f *Feed) After(seq uint64) []Event {
	f.mtx.RLock()
	defer f.mtx.RUnlock()

	res := []Event{}
	for _, ev := range f.events {
		if ev.Seq > seq {
			res = append(res, ev)
		}
	}
	return res
}

func levelFor(kind Kind) zapcore.Level {
	switch kind {
	case KindLoadError:
		return zap.ErrorLevel
	case KindDecodeWarning:
		return zap.WarnLevel
	default:
		return zap.InfoLevel
	}
}
