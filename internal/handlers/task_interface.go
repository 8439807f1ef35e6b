package handlers

import (
	"context"
	"taskReminder/internal/models/task"
	"taskReminder/internal/notify"
	"taskReminder/internal/service"
)

type Service interface {
	AddTask(ctx context.Context, description, dueAt string, repeatUntil *string, priority task.Priority) (service.IndexedTask, error)
	EditTask(ctx context.Context, index int, options ...task.TaskOption) (task.Task, error)
	DeleteTask(ctx context.Context, index int) (task.Task, error)
	SetPriority(ctx context.Context, index int, priority task.Priority) (task.Task, error)
	Done(ctx context.Context, index int) (task.Task, error)
	Cancel(ctx context.Context, index int) (task.Task, error)
	Postpone(ctx context.Context, index, minutes int) (task.Task, error)
	CurrentTasks() []task.Task
	GetTask(index int) (task.Task, error)
	Search(term string) []service.IndexedTask
	HealthCheck(ctx context.Context) error
}

type EventFeed interface {
	After(seq uint64) []notify.Event
}
