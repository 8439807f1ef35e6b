package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"taskReminder/internal/logger"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Storage хранит зашифрованные записи в таблице task_records.
// Порядок задаётся столбцом position, перезапись идёт одной транзакцией.
type Storage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, connString string) (*Storage, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: Ошибка загрузки конфига", err)
		return nil, fmt.Errorf("загрузка конфига: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnIdleTime = time.Minute * 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: Ошибка создания пула", err)
		return nil, fmt.Errorf("создание пула: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Неудачная проверка ping", err)
		return nil, fmt.Errorf("проверка соединения ping: %w", err)
	}

	logger.Info("Repository: Успешное создание подключения к PostgreSQL")
	return &Storage{pool: pool}, nil
}

// Migrate применяет встроенные миграции схемы
func Migrate(connString string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("источник миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(connString))
	if err != nil {
		return fmt.Errorf("инициализация миграций: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Ошибка применения миграций", err)
		return fmt.Errorf("применение миграций: %w", err)
	}
	logger.Info("Repository: Схема базы актуальна")
	return nil
}

// драйвер pgx/v5 для migrate регистрируется под схемой pgx5
func migrateURL(connString string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connString, prefix) {
			return "pgx5://" + strings.TrimPrefix(connString, prefix)
		}
	}
	return connString
}

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: Закрытие всех соединений PostgreSQL")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Неудачная проверка ping", err)
		return fmt.Errorf("проверка соединения ping: %w", err)
	}
	return nil
}

func (s *Storage) ReadRecords(ctx context.Context) ([][]byte, error) {
	start := time.Now()

	rows, err := s.pool.Query(ctx, `SELECT record FROM task_records ORDER BY position`)
	if err != nil {
		logger.Error("Repository: Не удалось прочитать записи", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("чтение записей: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]byte, error) {
		var rec string
		err := row.Scan(&rec)
		return []byte(rec), err
	})
	if err != nil {
		logger.Error("Repository: Ошибка разбора строк", err)
		return nil, fmt.Errorf("чтение записей: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return records, nil
}

func (s *Storage) WriteRecords(ctx context.Context, records [][]byte) error {
	start := time.Now()

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM task_records`); err != nil {
			return fmt.Errorf("очистка таблицы: %w", err)
		}
		if len(records) == 0 {
			return nil
		}

		rows := make([][]any, len(records))
		for i, rec := range records {
			rows[i] = []any{i, string(rec)}
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"task_records"},
			[]string{"position", "record"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("вставка записей: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Repository: Не удалось перезаписать записи", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("перезапись записей: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная операция", zap.Duration("ms", time.Since(start)))
	}
	return nil
}
