package llm

import (
	"errors"
	"fmt"
)

var ErrEmptyChoices = errors.New("response has no choices")

// NetworkError — запрос не дошёл до upstream или ответ не удалось дочитать.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("upstream unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError — upstream ответил не-2xx.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError — ответ 2xx, но не той формы.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed upstream response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// Kind возвращает имя варианта ошибки для логов.
func Kind(err error) string {
	var (
		netErr       *NetworkError
		statusErr    *StatusError
		malformedErr *MalformedResponseError
	)
	switch {
	case errors.As(err, &statusErr):
		return "status"
	case errors.As(err, &malformedErr):
		return "malformed"
	case errors.As(err, &netErr):
		return "network"
	default:
		return "other"
	}
}
