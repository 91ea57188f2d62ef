package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"tokenlens/internal/domain"

	"golang.org/x/time/rate"
)

const defaultHTTPTimeout = 30 * time.Second

// session lazily creates an adapter's HTTP client and releases it on Close.
// A closed session is recreated on next use.
type session struct {
	mu      sync.Mutex
	client  *http.Client
	timeout time.Duration
	limiter *rate.Limiter
}

func (s *session) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		timeout := s.timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		s.client = &http.Client{Timeout: timeout}
	}
	return s.client
}

// Close releases idle connections. Safe to call more than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
	}
	return nil
}

// doJSON waits for the request budget, performs a request and returns the
// body of a 200 response. Any other
// status becomes a ProviderError carrying the upstream body. Cancellation of
// ctx is returned as ctx.Err() so callers can tell it apart from an upstream
// failure.
func (s *session) doJSON(ctx context.Context, source domain.Source, method, url string, payload any) ([]byte, error) {
	if err := s.wait(ctx, source); err != nil {
		return nil, err
	}
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &domain.ProviderError{Source: source, Message: err.Error()}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &domain.ProviderError{Source: source, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient().Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &domain.ProviderError{Source: source, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{Source: source, Status: resp.StatusCode, Message: string(data)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ProviderError{Source: source, Message: fmt.Sprintf("read body: %v", err)}
	}
	return data, nil
}

func decodeError(source domain.Source, what string, err error) error {
	return &domain.ProviderError{Source: source, Message: fmt.Sprintf("parse %s: %v", what, err)}
}

// notFound converts an upstream 404 into NoDataError.
func notFound(err error, source domain.Source, token string) error {
	if pe, ok := err.(*domain.ProviderError); ok && pe.Status == http.StatusNotFound {
		return &domain.NoDataError{Source: source, Token: token}
	}
	return err
}
