package worker_test

import (
	"context"
	"errors"
	"taskReminder/internal/clock"
	"taskReminder/internal/codec"
	"taskReminder/internal/keystore"
	"taskReminder/internal/models/task"
	"taskReminder/internal/notify"
	"taskReminder/internal/repository/task/inmemory"
	"taskReminder/internal/service"
	"taskReminder/internal/worker"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockTaskStore - мок хранилища для воркера
type MockTaskStore struct {
	mock.Mock
}

func (m *MockTaskStore) List() []task.Task {
	args := m.Called()
	return args.Get(0).([]task.Task)
}

func (m *MockTaskStore) MarkNotified(id uuid.UUID, now time.Time) (int, task.Task, bool) {
	args := m.Called(id, now)
	return args.Int(0), args.Get(1).(task.Task), args.Bool(2)
}

func (m *MockTaskStore) Save(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type fixture struct {
	repo   *inmemory.RecordStorage
	codec  *codec.Codec
	bus    *notify.Bus
	clock  *clock.FakeClock
	store  *service.TaskStore
	worker *worker.NotificationWorker
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.Local)
}

func newFixture(t *testing.T, descDue ...string) *fixture {
	t.Helper()
	c, err := codec.New(keystore.Key("worker-test-key"))
	require.NoError(t, err)

	f := &fixture{
		repo:  inmemory.NewRecordStorage(),
		codec: c,
		bus:   notify.NewBus(64),
		clock: clock.Fake(at(8, 0)),
	}
	f.store = service.NewTaskStore(f.repo, f.codec, f.bus, f.clock)
	f.worker = worker.NewNotificationWorker(f.store, f.bus, f.clock, time.Minute)

	for i := 0; i+1 < len(descDue); i += 2 {
		f.store.Add(task.New(descDue[i], descDue[i+1], nil, task.PriorityHigh))
	}
	require.NoError(t, f.store.Save(context.Background()))
	return f
}

func drain(bus *notify.Bus) []notify.Event {
	var events []notify.Event
	for {
		select {
		case ev := <-bus.Events():
			events = append(events, ev)
		default:
			return events
		}
	}
}

// TestNotificationWorker_FiresOnce тестирует идемпотентность срабатывания
func TestNotificationWorker_FiresOnce(t *testing.T) {
	f := newFixture(t, "Pay rent", "2024-05-01 09:00")
	ctx := context.Background()

	f.clock.Set(at(8, 59))
	assert.Equal(t, 0, f.worker.Check(ctx))
	assert.Empty(t, drain(f.bus))

	f.clock.Set(at(9, 0))
	assert.Equal(t, 1, f.worker.Check(ctx))

	events := drain(f.bus)
	require.Len(t, events, 2)
	assert.Equal(t, notify.KindTaskDue, events[0].Kind)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, task.PriorityHigh, events[0].Priority)
	assert.Equal(t, "Pay rent is due!", events[0].Message)
	require.NotNil(t, events[0].Task)
	assert.True(t, events[0].Task.Notified)
	assert.Equal(t, notify.KindTaskListChanged, events[1].Kind)

	f.clock.Set(at(9, 1))
	assert.Equal(t, 0, f.worker.Check(ctx))
	f.clock.Set(at(12, 0))
	assert.Equal(t, 0, f.worker.Check(ctx))
	assert.Empty(t, drain(f.bus))

	reloaded := service.NewTaskStore(f.repo, f.codec, nil, f.clock)
	require.NoError(t, reloaded.Load(ctx))
	assert.True(t, reloaded.List()[0].Notified)
}

// TestNotificationWorker_FiresInListOrder тестирует две задачи за один тик
func TestNotificationWorker_FiresInListOrder(t *testing.T) {
	f := newFixture(t,
		"later", "2024-05-01 09:05",
		"earlier", "2024-05-01 09:00",
		"tomorrow", "2024-05-02 09:00")
	writes := f.repo.Writes()

	f.clock.Set(at(9, 6))
	assert.Equal(t, 2, f.worker.Check(context.Background()))

	events := drain(f.bus)
	require.Len(t, events, 3)
	assert.Equal(t, "later", events[0].Task.Description)
	assert.Equal(t, 0, events[0].Index)
	assert.Equal(t, "earlier", events[1].Task.Description)
	assert.Equal(t, 1, events[1].Index)
	assert.Equal(t, notify.KindTaskListChanged, events[2].Kind)
	assert.Equal(t, writes+1, f.repo.Writes())

	tasks := f.store.List()
	assert.True(t, tasks[0].Notified)
	assert.True(t, tasks[1].Notified)
	assert.False(t, tasks[2].Notified)
}

// TestNotificationWorker_MalformedTimestamp тестирует, что битый срок не ломает тик
func TestNotificationWorker_MalformedTimestamp(t *testing.T) {
	f := newFixture(t,
		"broken", "next tuesday",
		"Pay rent", "2024-05-01 09:00")

	f.clock.Set(at(10, 0))
	assert.Equal(t, 1, f.worker.Check(context.Background()))
	assert.Equal(t, 0, f.worker.Check(context.Background()))

	tasks := f.store.List()
	assert.False(t, tasks[0].Notified)
	assert.True(t, tasks[1].Notified)

	events := drain(f.bus)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Index)
}

// TestNotificationWorker_PostponedWaitsForNewDue тестирует возврат в ожидание после переноса
func TestNotificationWorker_PostponedWaitsForNewDue(t *testing.T) {
	f := newFixture(t, "Pay rent", "2024-05-01 09:00")
	svc := service.NewTaskService(f.store, f.bus, f.clock, 0)
	ctx := context.Background()

	f.clock.Set(at(9, 0))
	require.Equal(t, 1, f.worker.Check(ctx))

	postponed, err := svc.Postpone(ctx, 0, 30)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01 09:30", postponed.DueAt)
	drain(f.bus)

	f.clock.Set(at(9, 10))
	assert.Equal(t, 0, f.worker.Check(ctx))

	f.clock.Set(at(9, 30))
	assert.Equal(t, 1, f.worker.Check(ctx))
	assert.Equal(t, notify.KindTaskDue, drain(f.bus)[0].Kind)
}

// TestNotificationWorker_SaveFailure тестирует доставку событий при ошибке сохранения
func TestNotificationWorker_SaveFailure(t *testing.T) {
	f := newFixture(t, "Pay rent", "2024-05-01 09:00")
	f.repo.FailWith(errors.New("disk full"))

	f.clock.Set(at(9, 0))
	assert.Equal(t, 1, f.worker.Check(context.Background()))

	events := drain(f.bus)
	require.Len(t, events, 2)
	assert.Equal(t, notify.KindTaskDue, events[0].Kind)
	assert.True(t, f.store.List()[0].Notified)

	f.repo.FailWith(nil)
	assert.Equal(t, 0, f.worker.Check(context.Background()))
}

// TestNotificationWorker_TaskRemovedDuringTick тестирует гонку с удалением
func TestNotificationWorker_TaskRemovedDuringTick(t *testing.T) {
	gone := task.New("gone", "2024-05-01 09:00", nil, task.PriorityNormal)

	store := new(MockTaskStore)
	store.On("List").Return([]task.Task{gone})
	store.On("MarkNotified", gone.ID, at(10, 0)).Return(-1, task.Task{}, false)

	bus := notify.NewBus(8)
	w := worker.NewNotificationWorker(store, bus, clock.Fake(at(10, 0)), time.Minute)

	assert.Equal(t, 0, w.Check(context.Background()))
	assert.Empty(t, drain(bus))
	store.AssertNotCalled(t, "Save", mock.Anything)
	store.AssertExpectations(t)
}

// editingStore переносит срок задачи сразу после снимка, как правка
// через API, пришедшая посреди тика
type editingStore struct {
	*service.TaskStore
	dueAt string
}

func (s *editingStore) List() []task.Task {
	snapshot := s.TaskStore.List()
	if _, err := s.TaskStore.Update(0, task.WithDueAt(s.dueAt)); err != nil {
		panic(err)
	}
	return snapshot
}

// TestNotificationWorker_EditedDuringTick тестирует, что задача,
// перенесённая в будущее между снимком и отметкой, не срабатывает
func TestNotificationWorker_EditedDuringTick(t *testing.T) {
	f := newFixture(t, "Pay rent", "2024-05-01 09:00")
	store := &editingStore{TaskStore: f.store, dueAt: "2030-01-01 09:00"}
	w := worker.NewNotificationWorker(store, f.bus, f.clock, time.Minute)

	f.clock.Set(at(10, 0))
	assert.Equal(t, 0, w.Check(context.Background()))
	assert.Empty(t, drain(f.bus))

	current := f.store.List()[0]
	assert.Equal(t, "2030-01-01 09:00", current.DueAt)
	assert.False(t, current.Notified)

	f.clock.Set(time.Date(2030, 1, 1, 9, 0, 0, 0, time.Local))
	assert.Equal(t, 1, f.worker.Check(context.Background()))
}

// TestNotificationWorker_Start тестирует цикл на поддельных часах
func TestNotificationWorker_Start(t *testing.T) {
	c, err := codec.New(keystore.Key("worker-test-key"))
	require.NoError(t, err)
	clk := clock.Fake(at(8, 0))
	bus := notify.NewBus(16)
	store := service.NewTaskStore(inmemory.NewRecordStorage(), c, bus, clk)
	store.Add(task.New("Pay rent", "2024-05-01 08:00", nil, task.PriorityNormal))

	w := worker.NewNotificationWorker(store, bus, clk, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	clk.WaitForTickers(1)
	clk.Advance(worker.DefaultInterval)

	select {
	case ev := <-bus.Events():
		assert.Equal(t, notify.KindTaskDue, ev.Kind)
		assert.Equal(t, "Pay rent", ev.Task.Description)
	case <-time.After(5 * time.Second):
		t.Fatal("событие не получено")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("воркер не остановился")
	}
}
