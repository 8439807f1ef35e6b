// Package codec превращает задачу в одну зашифрованную строку файла и обратно.
//
// Открытый текст записи - CBOR-карта с именованными полями, поэтому
// содержимое описания не может сломать разбор. Шифр - XChaCha20-Poly1305,
// ключ записи выводится через HKDF-SHA256 из содержимого файла ключа.
// Конверт: байт версии (он же AAD) || nonce (24 байта) || шифртекст,
// целиком в base64url без выравнивания.
package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"taskReminder/internal/keystore"
	"taskReminder/internal/models/task"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const envelopeVersion byte = 1

var hkdfInfo = []byte("task-record v1")

var encoding = base64.RawURLEncoding

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// record - то, что лежит внутри шифртекста.
// Обязательные поля - указатели, чтобы отличить отсутствие от нулевого значения.
type record struct {
	ID          string  `cbor:"id,omitempty"`
	Description *string `cbor:"description"`
	DueAt       *string `cbor:"due_at"`
	RepeatUntil *string `cbor:"repeat_until,omitempty"`
	Priority    *string `cbor:"priority"`
	Notified    *bool   `cbor:"notified"`
}

type Codec struct {
	aead cipher.AEAD
}

func New(key keystore.Key) (*Codec, error) {
	derived := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, hkdfInfo), derived); err != nil {
		return nil, fmt.Errorf("вывод ключа записи: %w", err)
	}
	aead, err := chacha20poly1305.NewX(derived)
	if err != nil {
		return nil, fmt.Errorf("инициализация шифра: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encode возвращает одну строку без завершающего перевода строки
func (c *Codec) Encode(t task.Task) ([]byte, error) {
	if !t.Priority.Valid() {
		return nil, fmt.Errorf("кодирование задачи %s: неизвестный приоритет %q", t.ID, t.Priority)
	}

	priority := t.Priority.String()
	rec := record{
		Description: &t.Description,
		DueAt:       &t.DueAt,
		RepeatUntil: t.RepeatUntil,
		Priority:    &priority,
		Notified:    &t.Notified,
	}
	if t.ID != uuid.Nil {
		rec.ID = t.ID.String()
	}

	plaintext, err := encMode.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("сериализация задачи: %w", err)
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("генерация nonce: %w", err)
	}

	envelope := make([]byte, 0, 1+len(nonce)+len(plaintext)+c.aead.Overhead())
	envelope = append(envelope, envelopeVersion)
	envelope = append(envelope, nonce...)
	envelope = c.aead.Seal(envelope, nonce, plaintext, []byte{envelopeVersion})

	line := make([]byte, encoding.EncodedLen(len(envelope)))
	encoding.Encode(line, envelope)
	return line, nil
}

// Decode возвращает *DecodeError для любой непригодной записи
func (c *Codec) Decode(line []byte) (task.Task, error) {
	envelope := make([]byte, encoding.DecodedLen(len(line)))
	n, err := encoding.Decode(envelope, line)
	if err != nil {
		return task.Task{}, unauthenticated("конверт не в base64: %w", err)
	}
	envelope = envelope[:n]

	nonceSize := c.aead.NonceSize()
	if len(envelope) < 1+nonceSize+c.aead.Overhead() {
		return task.Task{}, unauthenticated("конверт слишком короткий: %d байт", len(envelope))
	}
	if envelope[0] != envelopeVersion {
		return task.Task{}, unauthenticated("неизвестная версия конверта %d", envelope[0])
	}

	nonce := envelope[1 : 1+nonceSize]
	plaintext, err := c.aead.Open(nil, nonce, envelope[1+nonceSize:], envelope[:1])
	if err != nil {
		return task.Task{}, unauthenticated("%w", err)
	}

	var rec record
	if err := decMode.Unmarshal(plaintext, &rec); err != nil {
		return task.Task{}, malformed("разбор записи: %w", err)
	}
	return rec.toTask()
}

func (rec record) toTask() (task.Task, error) {
	switch {
	case rec.Description == nil:
		return task.Task{}, malformed("нет поля description")
	case rec.DueAt == nil:
		return task.Task{}, malformed("нет поля due_at")
	case rec.Priority == nil:
		return task.Task{}, malformed("нет поля priority")
	case rec.Notified == nil:
		return task.Task{}, malformed("нет поля notified")
	}

	priority, err := task.ParsePriority(*rec.Priority)
	if err != nil {
		return task.Task{}, malformed("%w", err)
	}

	id := uuid.New()
	if rec.ID != "" {
		id, err = uuid.Parse(rec.ID)
		if err != nil {
			return task.Task{}, malformed("некорректный id: %w", err)
		}
	}

	t := task.Task{
		ID:          id,
		Description: *rec.Description,
		DueAt:       *rec.DueAt,
		Priority:    priority,
		Notified:    *rec.Notified,
	}
	if rec.RepeatUntil != nil && *rec.RepeatUntil != "" {
		repeat := *rec.RepeatUntil
		t.RepeatUntil = &repeat
	}
	return t, nil
}
