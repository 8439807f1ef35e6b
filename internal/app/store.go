package app

import (
	"context"
	"fmt"
	"taskReminder/internal/clock"
	"taskReminder/internal/codec"
	"taskReminder/internal/config"
	"taskReminder/internal/keystore"
	"taskReminder/internal/notify"
	"taskReminder/internal/repository/task/file"
	"taskReminder/internal/repository/task/inmemory"
	"taskReminder/internal/repository/task/postgres"
	"taskReminder/internal/service"
)

// OpenStore собирает хранилище задач по конфигурации: ключ, шифрование
// и бэкенд записей. Задачи не загружаются, это делает вызывающий.
// closeFn освобождает ресурсы бэкенда.
func OpenStore(ctx context.Context, cfg *config.Config, publisher notify.Publisher, clk clock.Clock) (store *service.TaskStore, closeFn func(), err error) {
	key, err := keystore.Obtain(cfg.Storage.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("получение ключа: %w", err)
	}
	recordCodec, err := codec.New(key)
	if err != nil {
		return nil, nil, fmt.Errorf("инициализация шифрования: %w", err)
	}

	repo, closeFn, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, err
	}
	return service.NewTaskStore(repo, recordCodec, publisher, clk), closeFn, nil
}

func openRepository(ctx context.Context, storage config.StorageConfig) (service.RecordRepository, func(), error) {
	noop := func() {}

	switch storage.Backend {
	case config.BackendFile:
		return file.New(storage.TaskFile), noop, nil
	case config.BackendMemory:
		return inmemory.NewRecordStorage(), noop, nil
	case config.BackendPostgres:
		if err := postgres.Migrate(storage.DatabaseURL); err != nil {
			return nil, nil, fmt.Errorf("миграции postgres: %w", err)
		}
		pg, err := postgres.New(ctx, storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, fmt.Errorf("неизвестный backend %q", storage.Backend)
	}
}
