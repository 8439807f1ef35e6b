package task

// TaskOption - функция частичного обновления задачи
type TaskOption func(*Task)

func WithDescription(description string) TaskOption {
	if description == "" {
		return nil
	}
	return func(task *Task) {
		task.Description = description
	}
}

func WithDueAt(dueAt string) TaskOption {
	if dueAt == "" {
		return nil
	}
	return func(task *Task) {
		task.DueAt = dueAt
	}
}

// WithRepeatUntil с пустой строкой убирает отметку повтора
func WithRepeatUntil(repeatUntil string) TaskOption {
	return func(task *Task) {
		task.RepeatUntil = normalizeRepeat(&repeatUntil)
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

// Apply применяет опции, пропуская пустые
func (t *Task) Apply(options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}
