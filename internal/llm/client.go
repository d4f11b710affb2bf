package llm

import "context"

// Completer отправляет один промпт и возвращает текст первого варианта ответа.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
