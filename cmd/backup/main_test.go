package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUsage тестирует предупреждение об остановке сервера перед import
func TestUsage(t *testing.T) {
	assert.Contains(t, usage, "import")
	assert.Contains(t, usage, "остановите сервер api")

	assert.NoError(t, run(context.Background(), []string{"help"}))
	assert.Error(t, run(context.Background(), nil))
	assert.Error(t, run(context.Background(), []string{"restore"}))
}

// TestRun_KeygenExportImport тестирует полный цикл на файловом хранилище
func TestRun_KeygenExportImport(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yml")
	cfgBody := "storage:\n  task_file: " + filepath.Join(dir, "tasks.txt") +
		"\n  key_file: " + filepath.Join(dir, "key.key") + "\nlogging:\n  development: false\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfgBody), 0o600))

	ctx := context.Background()
	identityPath := filepath.Join(dir, "identity.txt")
	require.NoError(t, run(ctx, []string{"keygen", "--out", identityPath}))
	assert.Error(t, run(ctx, []string{"keygen", "--out", identityPath}), "ключ не перезаписывается")

	raw, err := os.ReadFile(identityPath)
	require.NoError(t, err)
	var recipient string
	for _, line := range strings.Split(string(raw), "\n") {
		if after, ok := strings.CutPrefix(line, "# public key: "); ok {
			recipient = after
		}
	}
	require.NotEmpty(t, recipient)

	archive := filepath.Join(dir, "tasks.age")
	require.NoError(t, run(ctx, []string{"export", "-c", configPath, "-r", recipient, "--out", archive}))
	require.NoError(t, run(ctx, []string{"import", "-c", configPath, "-i", identityPath, "--in", archive, "--replace"}))

	assert.Error(t, run(ctx, []string{"import", "-c", configPath}), "--identity обязателен")
}
