package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"taskReminder/internal/logger"
	"time"

	"go.uber.org/zap"
)

// Storage хранит записи построчно в одном файле.
// Запись всегда полная: временный файл, fsync, rename, fsync каталога.
type Storage struct {
	path string
}

func New(path string) *Storage {
	return &Storage{path: path}
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if err != nil {
		logger.Error("Repository: Каталог файла задач недоступен", err, zap.String("dir", dir))
		return fmt.Errorf("проверка каталога: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("проверка каталога: %s не каталог", dir)
	}
	return nil
}

// ReadRecords возвращает непустые строки файла. Отсутствие файла - пустой список.
func (s *Storage) ReadRecords(ctx context.Context) ([][]byte, error) {
	start := time.Now()

	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Info("Repository: Файл задач ещё не создан", zap.String("path", s.path))
			return nil, nil
		}
		logger.Error("Repository: Не удалось открыть файл задач", err, zap.String("path", s.path))
		return nil, fmt.Errorf("открытие файла задач: %w", err)
	}
	defer file.Close()

	var records [][]byte
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			records = append(records, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("Repository: Ошибка чтения файла задач", err, zap.String("path", s.path))
			return nil, fmt.Errorf("чтение файла задач: %w", err)
		}
	}

	logger.Debug("Repository: Записи прочитаны",
		zap.Int("records", len(records)),
		zap.Duration("ms", time.Since(start)))
	return records, nil
}

func (s *Storage) WriteRecords(ctx context.Context, records [][]byte) error {
	start := time.Now()

	var buf bytes.Buffer
	for _, rec := range records {
		buf.Write(rec)
		buf.WriteByte('\n')
	}

	if err := writeFileAtomic(s.path, buf.Bytes(), 0o600); err != nil {
		logger.Error("Repository: Не удалось записать файл задач", err, zap.String("path", s.path))
		return fmt.Errorf("запись файла задач: %w", err)
	}

	if time.Since(start) > time.Millisecond*100 {
		logger.Warn("Repository: Медленная запись", zap.Duration("ms", time.Since(start)))
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
