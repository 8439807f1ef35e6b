package service

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("индекс вне диапазона")
	ErrValidation      = errors.New("ошибка валидации")
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewIndexOutOfRange(index, length int) *BusinessError {
	return &BusinessError{
		Code:    "INDEX_OUT_OF_RANGE",
		Message: fmt.Sprintf("задачи с индексом %d нет (всего %d)", index, length),
		Details: map[string]any{
			"index":  index,
			"length": length,
		},
		Err: ErrIndexOutOfRange,
	}
}

func NewValidationError(field, reason string) *BusinessError {
	return &BusinessError{
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("Неверное значение поля '%s': %s", field, reason),
		Details: map[string]any{
			"field":  field,
			"reason": reason,
		},
		Err: ErrValidation,
	}
}

func NewMalformedTimestamp(index int, err error) *BusinessError {
	return &BusinessError{
		Code:    "MALFORMED_TIMESTAMP",
		Message: fmt.Sprintf("у задачи %d некорректный срок", index),
		Details: map[string]any{
			"index": index,
		},
		Err: err,
	}
}
