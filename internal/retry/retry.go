// Package retry повторяет исходящие HTTP-вызовы при временных сбоях.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultJitterFraction = 0.30
)

type Sleeper func(ctx context.Context, d time.Duration) error

// Policy описывает backoff. MaxAttempts <= 1 означает одну попытку без повторов.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	JitterFraction float64
	Sleep          Sleeper
	Now            func() time.Time
	Rand           func() float64
}

// Attempts возвращает политику по умолчанию с заданным числом попыток.
func Attempts(n int) Policy {
	return Policy{MaxAttempts: n}.withDefaults()
}

// Response — прочитанный ответ одной попытки.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// AttemptFunc выполняет одну попытку и возвращает полностью прочитанный ответ.
type AttemptFunc func(ctx context.Context) (Response, error)

// ExhaustedError возвращается, когда все попытки завершились временной ошибкой.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do выполняет attempt, повторяя сетевые ошибки и временные статусы.
// Неповторяемый статус возвращается вызывающему без ошибки, как есть.
// При исчерпании попыток на временном статусе возвращается последний ответ и ExhaustedError.
func Do(ctx context.Context, policy Policy, logger *slog.Logger, attempt AttemptFunc) (Response, error) {
	policy = policy.withDefaults()

	var last Response
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return Response{}, err
		}

		resp, err := attempt(ctx)
		final := n >= policy.MaxAttempts

		var delay time.Duration
		switch {
		case err != nil:
			if !Transient(ctx, err) {
				return resp, err
			}
			if final {
				if policy.MaxAttempts == 1 {
					return resp, err
				}
				return resp, &ExhaustedError{Attempts: n, Last: err}
			}
			delay = policy.jitter(policy.backoff(n))
			logRetry(logger, n+1, policy.MaxAttempts, 0, netReason(err), delay)

		case TransientStatus(resp.StatusCode):
			last = resp
			if final {
				return last, nil
			}
			if after, ok := parseRetryAfter(resp.Header, policy.Now()); ok {
				delay = min(after, policy.MaxDelay)
			} else {
				delay = policy.jitter(policy.backoff(n))
			}
			logRetry(logger, n+1, policy.MaxAttempts, resp.StatusCode, statusReason(resp.StatusCode), delay)

		default:
			return resp, nil
		}

		if err := policy.Sleep(ctx, delay); err != nil {
			return Response{}, err
		}
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = defaultJitterFraction
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Rand == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		p.Rand = rng.Float64
	}
	return p
}

func (p Policy) backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(n-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

// jitter сдвигает задержку на +/- JitterFraction.
func (p Policy) jitter(delay time.Duration) time.Duration {
	if delay <= 0 || p.JitterFraction <= 0 {
		return delay
	}
	factor := 1 + (p.Rand()*2-1)*p.JitterFraction
	adjusted := float64(delay) * factor
	if adjusted < 0 {
		adjusted = 0
	}
	return time.Duration(adjusted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(header http.Header, now time.Time) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, true
		}
		return time.Duration(seconds) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0), true
	}
	return 0, false
}

// TransientStatus сообщает, имеет ли смысл повторить запрос с таким статусом.
func TransientStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Transient сообщает, временная ли сетевая ошибка. Отмена ctx вызывающего никогда не повторяется.
func Transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

func statusReason(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate limit"
	case http.StatusRequestTimeout:
		return "timeout"
	default:
		return "upstream 5xx"
	}
}

func netReason(err error) string {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, syscall.ECONNREFUSED):
		return "connection refused"
	case errors.Is(err, syscall.ECONNRESET), strings.Contains(strings.ToLower(err.Error()), "connection reset"):
		return "connection reset"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "network error"
}

func logRetry(logger *slog.Logger, attempt, maxAttempts, status int, reason string, delay time.Duration) {
	if logger == nil {
		return
	}
	args := []any{
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.String("reason", reason),
		slog.Duration("retry_in", delay),
	}
	if status > 0 {
		args = append(args, slog.Int("status", status))
	}
	logger.Warn("retrying upstream request", args...)
}
