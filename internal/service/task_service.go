package service

import (
	"context"
	"fmt"
	"strings"
	"taskReminder/internal/clock"
	"taskReminder/internal/logger"
	"taskReminder/internal/models/task"
	"taskReminder/internal/notify"

	"go.uber.org/zap"
)

// здесь происходит проверка ошибок бизнес-логики

const DefaultPostponeMinutes = 60

type TaskService struct {
	store           *TaskStore
	publisher       notify.Publisher
	clock           clock.Clock
	postponeMinutes int
}

func NewTaskService(store *TaskStore, publisher notify.Publisher, clk clock.Clock, postponeMinutes int) *TaskService {
	if clk == nil {
		clk = clock.Real()
	}
	if postponeMinutes <= 0 {
		postponeMinutes = DefaultPostponeMinutes
	}
	return &TaskService{
		store:           store,
		publisher:       publisher,
		clock:           clk,
		postponeMinutes: postponeMinutes,
	}
}

func (s *TaskService) AddTask(ctx context.Context, description, dueAt string, repeatUntil *string, priority task.Priority) (IndexedTask, error) {
	if priority == "" {
		priority = task.PriorityNormal
	}
	t := task.New(description, dueAt, repeatUntil, priority)
	if err := validate(t); err != nil {
		return IndexedTask{}, err
	}

	var index int
	err := s.store.Atomically(ctx, func(tx *Tx) error {
		index = tx.Add(t)
		return nil
	})
	if err != nil {
		logger.Error("Service: Задача не сохранена", err)
		return IndexedTask{}, err
	}

	logger.Info("Service: Задача добавлена", zap.Int("index", index), zap.String("task_id", t.ID.String()))
	s.changed(ctx)
	return IndexedTask{Index: index, Task: t}, nil
}

// EditTask применяет опции и проверяет результат целиком
func (s *TaskService) EditTask(ctx context.Context, index int, options ...task.TaskOption) (task.Task, error) {
	var updated task.Task
	err := s.store.Atomically(ctx, func(tx *Tx) (err error) {
		updated, err = tx.Update(index, options...)
		if err != nil {
			return err
		}
		return validate(updated)
	})
	if err != nil {
		return task.Task{}, err
	}

	logger.Info("Service: Задача изменена", zap.Int("index", index))
	s.changed(ctx)
	return updated, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, index int) (task.Task, error) {
	var removed task.Task
	err := s.store.Atomically(ctx, func(tx *Tx) (err error) {
		removed, err = tx.Remove(index)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	logger.Info("Service: Задача удалена", zap.Int("index", index), zap.String("task_id", removed.ID.String()))
	s.changed(ctx)
	return removed, nil
}

func (s *TaskService) SetPriority(ctx context.Context, index int, priority task.Priority) (task.Task, error) {
	if !priority.Valid() {
		return task.Task{}, NewValidationError("priority", "неизвестный приоритет")
	}
	return s.EditTask(ctx, index, task.WithPriority(priority))
}

// Done закрывает оповещение удалением задачи
func (s *TaskService) Done(ctx context.Context, index int) (task.Task, error) {
	return s.DeleteTask(ctx, index)
}

// Cancel закрывает оповещение без изменений: задача остаётся оповещённой
// и больше не сработает
func (s *TaskService) Cancel(ctx context.Context, index int) (task.Task, error) {
	t, err := s.store.Get(index)
	if err != nil {
		return task.Task{}, err
	}
	logger.Debug("Service: Оповещение отклонено", zap.Int("index", index), zap.String("task_id", t.ID.String()))
	return t, nil
}

// Postpone переносит срок на minutes минут (0 означает значение по умолчанию)
// и возвращает задачу в ожидание
func (s *TaskService) Postpone(ctx context.Context, index, minutes int) (task.Task, error) {
	if minutes < 0 {
		return task.Task{}, NewValidationError("minutes", "должно быть положительным")
	}
	if minutes > task.MaxExtendMinutes {
		return task.Task{}, NewValidationError("minutes", fmt.Sprintf("не больше %d", task.MaxExtendMinutes))
	}
	if minutes == 0 {
		minutes = s.postponeMinutes
	}

	var postponed task.Task
	err := s.store.Atomically(ctx, func(tx *Tx) (err error) {
		postponed, err = tx.Postpone(index, minutes)
		return err
	})
	if err != nil {
		return task.Task{}, err
	}

	logger.Info("Service: Срок перенесён",
		zap.Int("index", index),
		zap.Int("minutes", minutes),
		zap.String("due_at", postponed.DueAt))
	s.publish(ctx, notify.TaskPostponed(postponed, index, minutes, s.clock.Now()))
	s.changed(ctx)
	return postponed, nil
}

func (s *TaskService) CurrentTasks() []task.Task {
	return s.store.List()
}

func (s *TaskService) GetTask(index int) (task.Task, error) {
	return s.store.Get(index)
}

func (s *TaskService) Search(term string) []IndexedTask {
	return s.store.Search(term)
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

func (s *TaskService) changed(ctx context.Context) {
	s.publish(ctx, notify.TaskListChanged(s.clock.Now()))
}

func (s *TaskService) publish(ctx context.Context, ev notify.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, ev)
	}
}

func validate(t task.Task) error {
	if strings.TrimSpace(t.Description) == "" {
		return NewValidationError("description", "не может быть пустым")
	}
	if _, err := task.ParseDueAt(t.DueAt); err != nil {
		return NewValidationError("due_at", "ожидается формат "+task.DueLayout)
	}
	if t.RepeatUntil != nil {
		if _, err := task.ParseDueAt(*t.RepeatUntil); err != nil {
			return NewValidationError("repeat_until", "ожидается формат "+task.DueLayout)
		}
	}
	if !t.Priority.Valid() {
		return NewValidationError("priority", "неизвестный приоритет")
	}
	return nil
}
