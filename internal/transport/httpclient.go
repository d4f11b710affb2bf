package transport

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient возвращает http.Client с таймаутом на весь запрос.
// Если token не nil, каждый исходящий запрос получает Authorization: Bearer <token>.
func NewHTTPClient(timeout time.Duration, token *string) *http.Client {
	var rt http.RoundTripper = newTransport()
	if token != nil {
		rt = &bearerTransport{token: *token, next: rt}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// bearerTransport выставляет заголовок даже при пустом токене ("Bearer ").
type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// RoundTripper не должен менять исходный запрос.
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(clone)
}
