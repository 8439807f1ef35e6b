package backup_test

import (
	"bytes"
	"context"
	"strings"
	"taskReminder/internal/backup"
	"taskReminder/internal/codec"
	"taskReminder/internal/keystore"
	"taskReminder/internal/models/task"
	"taskReminder/internal/repository/task/inmemory"
	"taskReminder/internal/service"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) *age.X25519Identity {
	t.Helper()
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return identity
}

func sampleTasks() []task.Task {
	repeat := "2024-12-01 09:00"
	notified := task.New("Call mom", "2024-05-01 18:00", nil, task.PriorityNormal)
	notified.Notified = true
	return []task.Task{
		task.New("Pay rent", "2024-05-01 09:00", &repeat, task.PriorityHigh),
		notified,
		task.New("Renew passport", "not a date", nil, task.PriorityHighest),
	}
}

// TestExportImport тестирует перенос задач через армированный age-файл
func TestExportImport(t *testing.T) {
	identity := newIdentity(t)
	tasks := sampleTasks()

	var buf bytes.Buffer
	err := backup.Export(&buf, tasks, []age.Recipient{identity.Recipient()}, time.Now())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(buf.String(), "-----BEGIN AGE ENCRYPTED FILE-----"))
	assert.NotContains(t, buf.String(), "Pay rent")

	imported, err := backup.Import(&buf, identity)
	require.NoError(t, err)
	assert.Equal(t, tasks, imported)
}

// TestExportImport_MultipleRecipients тестирует расшифровку любым из получателей
func TestExportImport_MultipleRecipients(t *testing.T) {
	first, second := newIdentity(t), newIdentity(t)

	recipients, err := backup.ParseRecipients([]string{
		first.Recipient().String(),
		" " + second.Recipient().String() + "\n",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, backup.Export(&buf, sampleTasks(), recipients, time.Now()))

	imported, err := backup.Import(bytes.NewReader(buf.Bytes()), second)
	require.NoError(t, err)
	assert.Len(t, imported, 3)
}

// TestImport_WrongIdentity тестирует отказ с чужим ключом
func TestImport_WrongIdentity(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, backup.Export(&buf, sampleTasks(), []age.Recipient{newIdentity(t).Recipient()}, time.Now()))

	_, err := backup.Import(&buf, newIdentity(t))
	assert.Error(t, err)
}

// TestImport_Garbage тестирует отказ на неармированных данных
func TestImport_Garbage(t *testing.T) {
	_, err := backup.Import(strings.NewReader("definitely not an age file"), newIdentity(t))
	assert.Error(t, err)
}

// TestParseRecipients тестирует разбор публичных ключей
func TestParseRecipients(t *testing.T) {
	_, err := backup.ParseRecipients(nil)
	assert.ErrorIs(t, err, backup.ErrNoRecipients)

	_, err = backup.ParseRecipients([]string{"age1notakey"})
	assert.Error(t, err)
}

// TestParseIdentities тестирует чтение файла ключей age-keygen
func TestParseIdentities(t *testing.T) {
	identity := newIdentity(t)
	keyFile := "# created: 2024-05-01T09:00:00Z\n# public key: " + identity.Recipient().String() + "\n" + identity.String() + "\n"

	identities, err := backup.ParseIdentities(strings.NewReader(keyFile))
	require.NoError(t, err)
	require.Len(t, identities, 1)

	var buf bytes.Buffer
	require.NoError(t, backup.Export(&buf, sampleTasks()[:1], []age.Recipient{identity.Recipient()}, time.Now()))
	imported, err := backup.Import(&buf, identities...)
	require.NoError(t, err)
	assert.Equal(t, "Pay rent", imported[0].Description)
}

// TestRestore тестирует слияние и замену списка
func TestRestore(t *testing.T) {
	c, err := codec.New(keystore.Key("backup-test-key"))
	require.NoError(t, err)
	repo := inmemory.NewRecordStorage()
	store := service.NewTaskStore(repo, c, nil, nil)
	ctx := context.Background()

	existing := task.New("Existing", "2024-05-01 08:00", nil, task.PriorityNormal)
	store.Add(existing)
	incoming := append(sampleTasks(), existing)

	added, err := backup.Restore(ctx, store, incoming, false)
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 4, store.Len())
	assert.Equal(t, 1, repo.Writes())

	added, err = backup.Restore(ctx, store, sampleTasks()[:1], true)
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	reloaded := service.NewTaskStore(repo, c, nil, nil)
	require.NoError(t, reloaded.Load(ctx))
	require.Equal(t, 1, reloaded.Len())
	assert.Equal(t, "Pay rent", reloaded.List()[0].Description)
}
