package inmemory

import (
	"context"
	"sync"
	"taskReminder/internal/logger"
)

// RecordStorage держит зашифрованные записи в памяти процесса.
// Используется в тестах и при backend: memory.
type RecordStorage struct {
	records [][]byte
	exists  bool
	writes  int
	mtx     *sync.RWMutex
	failErr error
}

func NewRecordStorage() *RecordStorage {
	return &RecordStorage{
		mtx: &sync.RWMutex{},
	}
}

func (s *RecordStorage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: Хранилище в памяти доступно")
	return nil
}

func (s *RecordStorage) ReadRecords(ctx context.Context) ([][]byte, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.failErr != nil {
		return nil, s.failErr
	}
	if !s.exists {
		return nil, nil
	}
	return copyRecords(s.records), nil
}

func (s *RecordStorage) WriteRecords(ctx context.Context, records [][]byte) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.failErr != nil {
		return s.failErr
	}
	s.records = copyRecords(records)
	s.exists = true
	s.writes++
	return nil
}

// FailWith заставляет все следующие операции возвращать err, nil снимает сбой
func (s *RecordStorage) FailWith(err error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.failErr = err
}

// Writes - сколько раз хранилище перезаписывалось
func (s *RecordStorage) Writes() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.writes
}

func copyRecords(records [][]byte) [][]byte {
	res := make([][]byte, len(records))
	for i, rec := range records {
		res[i] = append([]byte(nil), rec...)
	}
	return res
}
