// Package relay реализует POST /generate: промпт клиента уходит в upstream,
// первый вариант ответа возвращается как {"output": ...}.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"promptrelay/internal/httpserver"
	"promptrelay/internal/llm"
	"promptrelay/internal/middleware"
)

// Сообщения об ошибках — часть внешнего контракта.
const (
	MsgInvalidBody     = "invalid request body"
	MsgPromptRequired  = "prompt is required"
	MsgRequestTooLarge = "request body too large"
)

var errTrailingData = errors.New("unexpected data after JSON value")

type HandlerDeps struct {
	LLM          llm.Completer
	Logger       *slog.Logger
	MaxBodyBytes int64
	// StrictPrompt=false пропускает запрос без prompt дальше с пустой строкой.
	StrictPrompt bool
	// Timeout ограничивает весь вызов upstream вместе с повторами.
	// Должен быть меньше WriteTimeout сервера, иначе 500 не успеет уйти клиенту.
	Timeout time.Duration
}

type Handler struct {
	llm          llm.Completer
	logger       *slog.Logger
	maxBodyBytes int64
	strictPrompt bool
	timeout      time.Duration
}

func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		llm:          deps.LLM,
		logger:       deps.Logger,
		maxBodyBytes: deps.MaxBodyBytes,
		strictPrompt: deps.StrictPrompt,
		timeout:      deps.Timeout,
	}
}

type generateRequest struct {
	Prompt *string `json:"prompt"`
}

type generateResponse struct {
	Output string `json:"output"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prompt, status, msg := h.decodePrompt(w, r)
	if status != 0 {
		httpserver.WriteError(w, status, msg)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	output, err := h.llm.Complete(ctx, prompt)
	if err != nil {
		h.logger.Error("relay failed",
			slog.String("kind", llm.Kind(err)),
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.RequestIDFrom(r)),
		)
		httpserver.WriteError(w, http.StatusInternalServerError, httpserver.MsgInternalError)
		return
	}

	httpserver.WriteJSON(w, http.StatusOK, generateResponse{Output: output})
}

// decodePrompt возвращает ненулевой status, если запрос надо отклонить.
func (h *Handler) decodePrompt(w http.ResponseWriter, r *http.Request) (string, int, string) {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	var req generateRequest
	dec := json.NewDecoder(body)
	err := dec.Decode(&req)
	if err == nil {
		// тело должно быть ровно одним JSON-значением
		if extra := dec.Decode(&struct{}{}); !errors.Is(extra, io.EOF) {
			err = extra
			if err == nil {
				err = errTrailingData
			}
		}
	}
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return "", http.StatusRequestEntityTooLarge, MsgRequestTooLarge
	case errors.Is(err, io.EOF) && !h.strictPrompt:
		// пустое тело в мягком режиме равносильно {}
	case err != nil:
		return "", http.StatusBadRequest, MsgInvalidBody
	}

	if req.Prompt == nil {
		if h.strictPrompt {
			return "", http.StatusBadRequest, MsgPromptRequired
		}
		return "", 0, ""
	}
	return *req.Prompt, 0, ""
}
