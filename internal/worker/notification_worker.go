package worker

import (
	"context"
	"taskReminder/internal/clock"
	"taskReminder/internal/logger"
	"taskReminder/internal/models/task"
	"taskReminder/internal/notify"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultInterval = 10 * time.Second

// TaskStore - часть хранилища, которой пользуется воркер
type TaskStore interface {
	List() []task.Task
	MarkNotified(id uuid.UUID, now time.Time) (int, task.Task, bool)
	Save(ctx context.Context) error
}

type NotificationWorker struct {
	store     TaskStore
	publisher notify.Publisher
	clock     clock.Clock
	interval  time.Duration

	// задачи с битым сроком, о которых уже предупредили
	malformed map[uuid.UUID]string
}

func NewNotificationWorker(store TaskStore, publisher notify.Publisher, clk clock.Clock, interval time.Duration) *NotificationWorker {
	if clk == nil {
		clk = clock.Real()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &NotificationWorker{
		store:     store,
		publisher: publisher,
		clock:     clk,
		interval:  interval,
		malformed: make(map[uuid.UUID]string),
	}
}

func (w *NotificationWorker) Start(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("Worker: Планировщик оповещений запущен", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: Планировщик оповещений останавливается")
			return
		}
	}
}

// Check выполняет один проход: отмечает наступившие задачи, сохраняет
// список один раз и рассылает события в порядке списка.
// Возвращает число сработавших задач.
func (w *NotificationWorker) Check(ctx context.Context) int {
	start := time.Now()
	now := w.clock.Now()

	tasks := w.store.List()
	seen := make(map[uuid.UUID]struct{}, len(tasks))

	var fired []notify.Event
	for _, t := range tasks {
		seen[t.ID] = struct{}{}

		due, err := t.Due(now)
		if err != nil {
			w.warnMalformed(t, err)
			continue
		}
		delete(w.malformed, t.ID)
		if !due {
			continue
		}

		index, marked, ok := w.store.MarkNotified(t.ID, now)
		if !ok {
			// удалена, отмечена или перенесена между снимком и отметкой
			continue
		}
		fired = append(fired, notify.TaskDue(marked, index, now))
	}

	for id := range w.malformed {
		if _, ok := seen[id]; !ok {
			delete(w.malformed, id)
		}
	}

	if len(fired) > 0 {
		if err := w.store.Save(ctx); err != nil {
			logger.Error("Worker: Не удалось сохранить отметки оповещения", err, zap.Int("fired", len(fired)))
		}
		for _, ev := range fired {
			w.publish(ctx, ev)
		}
		w.publish(ctx, notify.TaskListChanged(now))
	}

	logger.Debug("Worker: Завершение проверки задач",
		zap.Duration("ms", time.Since(start)),
		zap.Int("checked", len(tasks)),
		zap.Int("fired", len(fired)))
	return len(fired)
}

func (w *NotificationWorker) warnMalformed(t task.Task, err error) {
	if prev, ok := w.malformed[t.ID]; ok && prev == t.DueAt {
		return
	}
	w.malformed[t.ID] = t.DueAt
	logger.Warn("Worker: Некорректный срок, задача не будет оповещена",
		zap.String("task_id", t.ID.String()),
		zap.String("due_at", t.DueAt),
		zap.Error(err))
}

func (w *NotificationWorker) publish(ctx context.Context, ev notify.Event) {
	if w.publisher != nil {
		w.publisher.Publish(ctx, ev)
	}
}
