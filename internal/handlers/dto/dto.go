package dto

import (
	"taskReminder/internal/models/task"
	"taskReminder/internal/service"

	"github.com/google/uuid"
)

type CreateTaskRequest struct {
	Description string  `json:"description"`
	DueAt       string  `json:"due_at"`
	RepeatUntil *string `json:"repeat_until,omitempty"`
	Priority    string  `json:"priority"`
}

// UpdateTaskRequest - частичное изменение, nil означает "не трогать".
// Пустой repeat_until убирает отметку повтора.
type UpdateTaskRequest struct {
	Description *string `json:"description,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
	RepeatUntil *string `json:"repeat_until,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

type PriorityRequest struct {
	Priority string `json:"priority"`
}

type PostponeRequest struct {
	Minutes int `json:"minutes"`
}

type TaskResponse struct {
	Index         int       `json:"index"`
	ID            uuid.UUID `json:"id"`
	Description   string    `json:"description"`
	DueAt         string    `json:"due_at"`
	RepeatUntil   *string   `json:"repeat_until,omitempty"`
	Priority      string    `json:"priority"`
	PriorityLabel string    `json:"priority_label"`
	Notified      bool      `json:"notified"`
}

func FromTask(index int, t task.Task) TaskResponse {
	return TaskResponse{
		Index:         index,
		ID:            t.ID,
		Description:   t.Description,
		DueAt:         t.DueAt,
		RepeatUntil:   t.RepeatUntil,
		Priority:      string(t.Priority),
		PriorityLabel: t.Priority.Label(),
		Notified:      t.Notified,
	}
}

func FromTaskList(tasks []task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(i, t)
	}
	return result
}

func FromIndexed(found []service.IndexedTask) []TaskResponse {
	result := make([]TaskResponse, len(found))
	for i, it := range found {
		result[i] = FromTask(it.Index, it.Task)
	}
	return result
}
