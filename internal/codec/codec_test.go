package codec_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"taskReminder/internal/codec"
	"taskReminder/internal/keystore"
	"taskReminder/internal/models/task"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T, key string) *codec.Codec {
	t.Helper()
	c, err := codec.New(keystore.Key(key))
	require.NoError(t, err)
	return c
}

func strPtr(s string) *string { return &s }

// TestCodec_RoundTrip тестирует decode(encode(t)) == t
func TestCodec_RoundTrip(t *testing.T) {
	c := newCodec(t, "test-key")

	tests := []struct {
		name string
		task task.Task
	}{
		{
			name: "pending task without repeat",
			task: task.Task{ID: uuid.New(), Description: "Pay rent", DueAt: "2024-01-01 09:00", Priority: task.PriorityNormal},
		},
		{
			name: "notified task with repeat",
			task: task.Task{ID: uuid.New(), Description: "Water plants", DueAt: "2024-02-29 23:59",
				RepeatUntil: strPtr("2024-12-31"), Priority: task.PriorityHighest, Notified: true},
		},
		{
			name: "description with old separator and newline",
			task: task.Task{ID: uuid.New(), Description: "a - b - c\nd", DueAt: "2024-01-01 09:00", Priority: task.PriorityHigh},
		},
		{
			name: "malformed due_at is kept as text",
			task: task.Task{ID: uuid.New(), Description: "legacy", DueAt: "tomorrow-ish", Priority: task.PriorityNormal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := c.Encode(tt.task)
			require.NoError(t, err)
			assert.False(t, bytes.ContainsAny(line, "\r\n"), "запись должна занимать одну строку")

			decoded, err := c.Decode(line)
			require.NoError(t, err)
			assert.Equal(t, tt.task, decoded)
		})
	}
}

// TestCodec_EmptyRepeatDecodesAsAbsent тестирует пустой repeat_until
func TestCodec_EmptyRepeatDecodesAsAbsent(t *testing.T) {
	c := newCodec(t, "test-key")

	line, err := c.Encode(task.Task{ID: uuid.New(), Description: "x", DueAt: "2024-01-01 09:00",
		RepeatUntil: strPtr(""), Priority: task.PriorityNormal})
	require.NoError(t, err)

	decoded, err := c.Decode(line)
	require.NoError(t, err)
	assert.Nil(t, decoded.RepeatUntil)
}

// TestCodec_FreshNonce тестирует, что одинаковые задачи дают разные шифртексты
func TestCodec_FreshNonce(t *testing.T) {
	c := newCodec(t, "test-key")
	item := task.Task{ID: uuid.New(), Description: "x", DueAt: "2024-01-01 09:00", Priority: task.PriorityNormal}

	first, err := c.Encode(item)
	require.NoError(t, err)
	second, err := c.Encode(item)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// TestCodec_EncodeRejectsUnknownPriority тестирует защиту от записи мусора
func TestCodec_EncodeRejectsUnknownPriority(t *testing.T) {
	c := newCodec(t, "test-key")

	_, err := c.Encode(task.Task{Description: "x", DueAt: "2024-01-01 09:00", Priority: "Sürgős"})
	assert.Error(t, err)
}

// TestCodec_AuthenticationFailures тестирует подделанные записи и чужой ключ
func TestCodec_AuthenticationFailures(t *testing.T) {
	c := newCodec(t, "test-key")
	line, err := c.Encode(task.Task{ID: uuid.New(), Description: "secret", DueAt: "2024-01-01 09:00", Priority: task.PriorityNormal})
	require.NoError(t, err)

	flipped := func() []byte {
		raw, err := base64.RawURLEncoding.DecodeString(string(line))
		require.NoError(t, err)
		raw[len(raw)-5] ^= 0x01
		return []byte(base64.RawURLEncoding.EncodeToString(raw))
	}

	tests := []struct {
		name  string
		codec *codec.Codec
		line  []byte
	}{
		{name: "bit flip in ciphertext", codec: c, line: flipped()},
		{name: "wrong key", codec: newCodec(t, "other-key"), line: line},
		{name: "not base64", codec: c, line: []byte("!!!not base64!!!")},
		{name: "truncated", codec: c, line: line[:10]},
		{name: "empty", codec: c, line: []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(tt.line)
			require.Error(t, err)
			assert.True(t, errors.Is(err, codec.ErrAuthenticationFailed))
			assert.False(t, errors.Is(err, codec.ErrMalformedRecord))

			var decodeErr *codec.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, codec.KindAuthenticationFailed, decodeErr.Kind)
		})
	}
}
