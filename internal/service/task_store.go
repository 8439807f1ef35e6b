package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"taskReminder/internal/clock"
	"taskReminder/internal/codec"
	"taskReminder/internal/logger"
	"taskReminder/internal/models/task"
	"taskReminder/internal/notify"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TaskStore владеет упорядоченным списком задач.
// Все чтения, изменения и сохранения проходят через один мьютекс,
// поэтому сохранение всегда видит согласованный список.
type TaskStore struct {
	mtx       sync.Mutex
	tasks     []task.Task
	repo      RecordRepository
	codec     RecordCodec
	publisher notify.Publisher
	clock     clock.Clock
}

type IndexedTask struct {
	Index int       `json:"index"`
	Task  task.Task `json:"task"`
}

func NewTaskStore(repo RecordRepository, codec RecordCodec, publisher notify.Publisher, clk clock.Clock) *TaskStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &TaskStore{
		tasks:     []task.Task{},
		repo:      repo,
		codec:     codec,
		publisher: publisher,
		clock:     clk,
	}
}

// Load заменяет список содержимым хранилища. Битые записи пропускаются
// с предупреждением, ошибка ввода-вывода оставляет список прежним.
func (s *TaskStore) Load(ctx context.Context) error {
	start := time.Now()

	s.mtx.Lock()
	records, err := s.repo.ReadRecords(ctx)
	if err != nil {
		s.mtx.Unlock()
		logger.Error("Store: Не удалось загрузить задачи", err)
		err = fmt.Errorf("загрузка задач: %w", err)
		s.publish(ctx, notify.LoadError(err, s.clock.Now()))
		return err
	}

	loaded := make([]task.Task, 0, len(records))
	var warnings []notify.Event
	// позиция записи считается с 1 среди непустых записей, а не строк файла
	for i, rec := range records {
		position := i + 1
		t, err := s.codec.Decode(rec)
		if err != nil {
			var decodeErr *codec.DecodeError
			kind := "unknown"
			if errors.As(err, &decodeErr) {
				kind = string(decodeErr.Kind)
			}
			logger.Warn("Store: Запись пропущена",
				zap.Int("record", position),
				zap.String("kind", kind),
				zap.Error(err))
			warnings = append(warnings, notify.DecodeWarning(position, fmt.Errorf("запись %d: %w", position, err), s.clock.Now()))
			continue
		}
		loaded = append(loaded, t)
	}
	s.tasks = loaded
	s.mtx.Unlock()

	logger.Info("Store: Задачи загружены",
		zap.Int("loaded", len(loaded)),
		zap.Int("skipped", len(warnings)),
		zap.Duration("ms", time.Since(start)))

	for _, ev := range warnings {
		s.publish(ctx, ev)
	}
	s.publish(ctx, notify.TaskListChanged(s.clock.Now()))
	return nil
}

// Save перешифровывает весь список и заменяет содержимое хранилища
func (s *TaskStore) Save(ctx context.Context) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.writeLocked(ctx, s.tasks)
}

func (s *TaskStore) writeLocked(ctx context.Context, tasks []task.Task) error {
	records := make([][]byte, 0, len(tasks))
	for _, t := range tasks {
		rec, err := s.codec.Encode(t)
		if err != nil {
			logger.Error("Store: Не удалось зашифровать задачу", err, zap.String("task_id", t.ID.String()))
			return fmt.Errorf("сохранение задач: %w", err)
		}
		records = append(records, rec)
	}

	if err := s.repo.WriteRecords(ctx, records); err != nil {
		return fmt.Errorf("сохранение задач: %w", err)
	}
	logger.Debug("Store: Задачи сохранены", zap.Int("count", len(records)))
	return nil
}

// Atomically выполняет fn над копией списка и сохраняет её.
// Список в памяти меняется только если сохранение прошло.
func (s *TaskStore) Atomically(ctx context.Context, fn func(tx *Tx) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tx := &Tx{tasks: cloneTasks(s.tasks)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.writeLocked(ctx, tx.tasks); err != nil {
		return err
	}
	s.tasks = tx.tasks
	return nil
}

// Add, Update, Replace и Remove меняют только память, сохранять должен вызывающий
func (s *TaskStore) Add(t task.Task) int {
	var index int
	s.with(func(tx *Tx) error {
		index = tx.Add(t)
		return nil
	})
	return index
}

func (s *TaskStore) Update(index int, options ...task.TaskOption) (task.Task, error) {
	var updated task.Task
	err := s.with(func(tx *Tx) (err error) {
		updated, err = tx.Update(index, options...)
		return err
	})
	return updated, err
}

func (s *TaskStore) Replace(index int, t task.Task) error {
	return s.with(func(tx *Tx) error {
		return tx.Replace(index, t)
	})
}

func (s *TaskStore) Remove(index int) (task.Task, error) {
	var removed task.Task
	err := s.with(func(tx *Tx) (err error) {
		removed, err = tx.Remove(index)
		return err
	})
	return removed, err
}

func (s *TaskStore) Postpone(index, minutes int) (task.Task, error) {
	var postponed task.Task
	err := s.with(func(tx *Tx) (err error) {
		postponed, err = tx.Postpone(index, minutes)
		return err
	})
	return postponed, err
}

func (s *TaskStore) Get(index int) (task.Task, error) {
	var got task.Task
	err := s.with(func(tx *Tx) (err error) {
		got, err = tx.Get(index)
		return err
	})
	return got, err
}

// List возвращает копию списка для отображения
func (s *TaskStore) List() []task.Task {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return cloneTasks(s.tasks)
}

func (s *TaskStore) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.tasks)
}

// IndexOf возвращает текущую позицию задачи или -1
func (s *TaskStore) IndexOf(id uuid.UUID) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return indexOf(s.tasks, id)
}

// Search ищет подстроку в описании без учёта регистра
func (s *TaskStore) Search(term string) []IndexedTask {
	needle := strings.ToLower(strings.TrimSpace(term))

	s.mtx.Lock()
	defer s.mtx.Unlock()

	res := []IndexedTask{}
	for i, t := range s.tasks {
		if strings.Contains(strings.ToLower(t.Description), needle) {
			res = append(res, IndexedTask{Index: i, Task: t.Clone()})
		}
	}
	return res
}

// MarkNotified переводит задачу в состояние "оповещена", если она всё ещё
// в списке и её срок наступил на момент now. Проверка и отметка идут под
// одной блокировкой, поэтому правка срока между снимком и отметкой учитывается.
func (s *TaskStore) MarkNotified(id uuid.UUID, now time.Time) (int, task.Task, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	index := indexOf(s.tasks, id)
	if index < 0 {
		return -1, task.Task{}, false
	}
	if due, err := s.tasks[index].Due(now); err != nil || !due {
		return -1, task.Task{}, false
	}
	s.tasks[index].Notified = true
	return index, s.tasks[index].Clone(), true
}

func (s *TaskStore) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}

func (s *TaskStore) with(fn func(tx *Tx) error) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	tx := &Tx{tasks: s.tasks}
	err := fn(tx)
	s.tasks = tx.tasks
	return err
}

func (s *TaskStore) publish(ctx context.Context, ev notify.Event) {
	if s.publisher != nil {
		s.publisher.Publish(ctx, ev)
	}
}

// Tx - доступ к списку внутри блокировки хранилища
type Tx struct {
	tasks []task.Task
}

func (tx *Tx) Len() int {
	return len(tx.tasks)
}

func (tx *Tx) Get(index int) (task.Task, error) {
	if err := tx.check(index); err != nil {
		return task.Task{}, err
	}
	return tx.tasks[index].Clone(), nil
}

func (tx *Tx) Add(t task.Task) int {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	tx.tasks = append(tx.tasks, t.Clone())
	return len(tx.tasks) - 1
}

func (tx *Tx) Update(index int, options ...task.TaskOption) (task.Task, error) {
	if err := tx.check(index); err != nil {
		return task.Task{}, err
	}
	tx.tasks[index].Apply(options...)
	return tx.tasks[index].Clone(), nil
}

func (tx *Tx) Replace(index int, t task.Task) error {
	if err := tx.check(index); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = tx.tasks[index].ID
	}
	tx.tasks[index] = t.Clone()
	return nil
}

func (tx *Tx) Remove(index int) (task.Task, error) {
	if err := tx.check(index); err != nil {
		return task.Task{}, err
	}
	removed := tx.tasks[index]
	tx.tasks = append(tx.tasks[:index:index], tx.tasks[index+1:]...)
	return removed, nil
}

// Postpone сдвигает срок и возвращает задачу в ожидание
func (tx *Tx) Postpone(index, minutes int) (task.Task, error) {
	if err := tx.check(index); err != nil {
		return task.Task{}, err
	}
	if err := tx.tasks[index].Extend(minutes); err != nil {
		if errors.Is(err, task.ErrExtendRange) {
			return task.Task{}, NewValidationError("minutes", err.Error())
		}
		return task.Task{}, NewMalformedTimestamp(index, err)
	}
	return tx.tasks[index].Clone(), nil
}

func (tx *Tx) IndexOf(id uuid.UUID) int {
	return indexOf(tx.tasks, id)
}

// Clear убирает все задачи
func (tx *Tx) Clear() {
	tx.tasks = []task.Task{}
}

func (tx *Tx) check(index int) error {
	if index < 0 || index >= len(tx.tasks) {
		return NewIndexOutOfRange(index, len(tx.tasks))
	}
	return nil
}

func indexOf(tasks []task.Task, id uuid.UUID) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneTasks(tasks []task.Task) []task.Task {
	res := make([]task.Task, len(tasks))
	for i, t := range tasks {
		res[i] = t.Clone()
	}
	return res
}
