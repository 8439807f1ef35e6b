// Package backup переносит список задач между машинами в виде
// ASCII-армированного age-файла. Внутри лежит CBOR-архив задач,
// поэтому копия не зависит от ключа конкретного файла задач.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"taskReminder/internal/models/task"
	"taskReminder/internal/service"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"
	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

const formatVersion = 1

// maxArchiveSize ограничивает расшифрованный архив
const maxArchiveSize = 64 << 20

var ErrNoRecipients = errors.New("нужен хотя бы один получатель")

type archive struct {
	Version   int       `cbor:"version"`
	CreatedAt time.Time `cbor:"created_at"`
	Tasks     []entry   `cbor:"tasks"`
}

type entry struct {
	ID          string  `cbor:"id"`
	Description string  `cbor:"description"`
	DueAt       string  `cbor:"due_at"`
	RepeatUntil *string `cbor:"repeat_until,omitempty"`
	Priority    string  `cbor:"priority"`
	Notified    bool    `cbor:"notified"`
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339
	mode, err := opts.EncMode()
	if err != nil {
		panic("backup: cbor encoder: " + err.Error())
	}
	encMode = mode
}

// ParseRecipients разбирает публичные ключи age1...
func ParseRecipients(keys []string) ([]age.Recipient, error) {
	if len(keys) == 0 {
		return nil, ErrNoRecipients
	}
	recipients := make([]age.Recipient, 0, len(keys))
	for _, key := range keys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("разбор получателя %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}

// ParseIdentities читает файл ключей в формате age-keygen
func ParseIdentities(r io.Reader) ([]age.Identity, error) {
	identities, err := age.ParseIdentities(r)
	if err != nil {
		return nil, fmt.Errorf("разбор ключей age: %w", err)
	}
	return identities, nil
}

func Export(w io.Writer, tasks []task.Task, recipients []age.Recipient, now time.Time) error {
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	a := archive{
		Version:   formatVersion,
		CreatedAt: now.UTC(),
		Tasks:     make([]entry, 0, len(tasks)),
	}
	for _, t := range tasks {
		a.Tasks = append(a.Tasks, entry{
			ID:          t.ID.String(),
			Description: t.Description,
			DueAt:       t.DueAt,
			RepeatUntil: t.RepeatUntil,
			Priority:    string(t.Priority),
			Notified:    t.Notified,
		})
	}

	payload, err := encMode.Marshal(a)
	if err != nil {
		return fmt.Errorf("кодирование архива: %w", err)
	}

	armored := armor.NewWriter(w)
	encrypted, err := age.Encrypt(armored, recipients...)
	if err != nil {
		return fmt.Errorf("создание шифратора age: %w", err)
	}
	if _, err := encrypted.Write(payload); err != nil {
		return fmt.Errorf("запись архива: %w", err)
	}
	if err := encrypted.Close(); err != nil {
		return fmt.Errorf("завершение шифрования: %w", err)
	}
	if err := armored.Close(); err != nil {
		return fmt.Errorf("завершение армирования: %w", err)
	}
	return nil
}

// Import расшифровывает архив и возвращает задачи в исходном порядке
func Import(r io.Reader, identities ...age.Identity) ([]task.Task, error) {
	if len(identities) == 0 {
		return nil, errors.New("нужен хотя бы один ключ")
	}

	decrypted, err := age.Decrypt(armor.NewReader(r), identities...)
	if err != nil {
		return nil, fmt.Errorf("расшифровка архива: %w", err)
	}
	payload, err := io.ReadAll(io.LimitReader(decrypted, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("чтение архива: %w", err)
	}
	if len(payload) > maxArchiveSize {
		return nil, fmt.Errorf("архив больше %d байт", maxArchiveSize)
	}

	var a archive
	if err := cbor.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("разбор архива: %w", err)
	}
	if a.Version != formatVersion {
		return nil, fmt.Errorf("неподдерживаемая версия архива %d", a.Version)
	}

	tasks := make([]task.Task, 0, len(a.Tasks))
	for i, e := range a.Tasks {
		t, err := e.toTask()
		if err != nil {
			return nil, fmt.Errorf("задача %d: %w", i, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (e entry) toTask() (task.Task, error) {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return task.Task{}, fmt.Errorf("некорректный id: %w", err)
	}
	priority, err := task.ParsePriority(e.Priority)
	if err != nil {
		return task.Task{}, err
	}
	t := task.New(e.Description, e.DueAt, e.RepeatUntil, priority)
	t.ID = id
	t.Notified = e.Notified
	return t, nil
}

// Restore кладёт задачи в хранилище и сохраняет его одним шагом.
// Без replace задачи с уже известным id пропускаются.
func Restore(ctx context.Context, store *service.TaskStore, tasks []task.Task, replace bool) (int, error) {
	added := 0
	err := store.Atomically(ctx, func(tx *service.Tx) error {
		if replace {
			tx.Clear()
		}
		for _, t := range tasks {
			if tx.IndexOf(t.ID) >= 0 {
				continue
			}
			tx.Add(t)
			added++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("восстановление задач: %w", err)
	}
	return added, nil
}
