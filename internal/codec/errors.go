package codec

import (
	"errors"
	"fmt"
)

type Kind string

const KindMalformedRecord Kind = "MalformedRecord"
const KindAuthenticationFailed Kind = "AuthenticationFailed"

var (
	ErrMalformedRecord      = errors.New("повреждённая запись")
	ErrAuthenticationFailed = errors.New("проверка подлинности записи не пройдена")
)

// DecodeError относится к одной записи и не прерывает загрузку
type DecodeError struct {
	Kind Kind
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("[%s]", e.Kind)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	switch target {
	case ErrMalformedRecord:
		return e.Kind == KindMalformedRecord
	case ErrAuthenticationFailed:
		return e.Kind == KindAuthenticationFailed
	}
	return false
}

func malformed(format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindMalformedRecord, Err: fmt.Errorf(format, args...)}
}

func unauthenticated(format string, args ...any) *DecodeError {
	return &DecodeError{Kind: KindAuthenticationFailed, Err: fmt.Errorf(format, args...)}
}
