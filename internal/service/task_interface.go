package service

import (
	"context"
	"taskReminder/internal/models/task"
)

// RecordRepository хранит уже зашифрованные записи в порядке списка.
// WriteRecords заменяет всё содержимое атомарно.
type RecordRepository interface {
	ReadRecords(context.Context) ([][]byte, error)
	WriteRecords(context.Context, [][]byte) error
	HealthCheck(context.Context) error
}

type RecordCodec interface {
	Encode(task.Task) ([]byte, error)
	Decode([]byte) (task.Task, error)
}
