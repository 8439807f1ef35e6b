package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"taskReminder/internal/logger"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// KeySize - длина нового ключа в байтах до кодирования
const KeySize = 32

// Key - содержимое файла ключа как есть. В логи не попадает.
type Key []byte

func (k Key) String() string {
	return "[REDACTED]"
}

func (k Key) GoString() string {
	return k.String()
}

func (k Key) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("len", len(k))
	return nil
}

// Obtain читает ключ из path или создаёт новый, если файла нет.
// Содержимое существующего файла не проверяется.
func Obtain(path string) (Key, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		return Key(raw), nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Error("Keystore: Не удалось прочитать файл ключа", err, zap.String("path", path))
		return nil, fmt.Errorf("чтение файла ключа: %w", err)
	}

	key, err := generate()
	if err != nil {
		return nil, err
	}

	if err := write(path, key); err != nil {
		if errors.Is(err, fs.ErrExist) {
			// ключ успел создать другой процесс
			return Obtain(path)
		}
		logger.Error("Keystore: Не удалось записать файл ключа", err, zap.String("path", path))
		return nil, fmt.Errorf("запись файла ключа: %w", err)
	}

	logger.Info("Keystore: Создан новый ключ шифрования", zap.String("path", path))
	return key, nil
}

func generate() (Key, error) {
	raw := make([]byte, KeySize)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("генерация ключа: %w", err)
	}
	encoded := make([]byte, base64.URLEncoding.EncodedLen(len(raw)))
	base64.URLEncoding.Encode(encoded, raw)
	return Key(encoded), nil
}

func write(path string, key Key) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}

	if _, err := file.Write(key); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}
