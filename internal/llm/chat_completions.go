package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"promptrelay/internal/config"
	"promptrelay/internal/retry"
)

const (
	bodySnippetLimit = 200
	maxResponseBytes = 10 << 20
)

var errResponseTooLarge = errors.New("response body too large")

// ChatCompletionsClient ходит в OpenAI-совместимый /chat/completions.
// Авторизацию выставляет транспорт httpClient.
type ChatCompletionsClient struct {
	endpoint   string
	model      string
	maxBody    int64
	httpClient *http.Client
	policy     retry.Policy
	logger     *slog.Logger
}

func NewChatCompletionsClient(cfg config.UpstreamConfig, httpClient *http.Client, logger *slog.Logger) *ChatCompletionsClient {
	return &ChatCompletionsClient{
		endpoint:   strings.TrimSuffix(cfg.BaseURL, "/") + "/chat/completions",
		model:      cfg.Model,
		maxBody:    maxResponseBytes,
		httpClient: httpClient,
		policy:     retry.Attempts(cfg.MaxAttempts),
		logger:     logger,
	}
}

func (c *ChatCompletionsClient) Complete(ctx context.Context, prompt string) (string, error) {
	buf, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	resp, err := retry.Do(ctx, c.policy, c.logger, func(ctx context.Context) (retry.Response, error) {
		return c.post(ctx, buf)
	})
	if errors.Is(err, errResponseTooLarge) {
		return "", &MalformedResponseError{Err: err}
	}
	if err != nil {
		return "", &NetworkError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: snippet(resp.Body)}
	}

	return firstChoice(resp.Body)
}

func (c *ChatCompletionsClient) post(ctx context.Context, body []byte) (retry.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return retry.Response{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Response{}, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return retry.Response{}, fmt.Errorf("read response: %w", err)
	}
	if int64(len(bodyBytes)) > c.maxBody {
		return retry.Response{}, fmt.Errorf("read response: %w (limit %d bytes)", errResponseTooLarge, c.maxBody)
	}
	return retry.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: bodyBytes}, nil
}

// firstChoice возвращает content первого варианта без изменений. Пустая строка допустима.
func firstChoice(body []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &MalformedResponseError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return "", &MalformedResponseError{Err: ErrEmptyChoices}
	}
	content := parsed.Choices[0].Message.Content
	if content == nil {
		return "", &MalformedResponseError{Err: errors.New("first choice has no message content")}
	}
	return *content, nil
}

func snippet(body []byte) string {
	if len(body) <= bodySnippetLimit {
		return string(body)
	}
	return string(body[:bodySnippetLimit])
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
