package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// maxBodyBytes caps how much of a provider response is read into memory.
const maxBodyBytes = 8 << 20

// maxMessageBytes caps the provider message carried in an UpstreamError.
const maxMessageBytes = 512

// HTTPClientConfig bundles the HTTP client and circuit breaker settings.
type HTTPClientConfig struct {
	Client *http.Client

	// BreakerName labels the circuit breaker in state change logs.
	BreakerName string
	// BreakerMaxFailures consecutive failures open the breaker.
	BreakerMaxFailures uint32
	// BreakerTimeout is how long the breaker stays open before probing again.
	BreakerTimeout time.Duration
}

var (
	errRateLimited  = errors.New("rate limited")
	errServerError  = errors.New("server error")
	errNoHTTPClient = errors.New("http client not configured")
)

// statusError carries a response the breaker should count as a failure.
type statusError struct {
	kind   error
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.kind, e.status)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

// newCircuitBreaker opens after cfg.BreakerMaxFailures consecutive failures.
func newCircuitBreaker(cfg HTTPClientConfig, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.BreakerTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: onStateChange,
	})
}

// doRequest executes a single request through the circuit breaker and returns
// the response body. It never retries. Transport failures, 429 and 5xx count
// against the breaker; other non-2xx responses are client faults and do not.
// Every failure is returned as a *weather.UpstreamError.
func doRequest(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	req *http.Request,
) ([]byte, error) {
	if cfg.Client == nil {
		return nil, &weather.UpstreamError{Err: errNoHTTPClient}
	}

	// Ensure the request obeys context cancellation.
	req = req.WithContext(ctx)

	type outcome struct {
		status int
		body   []byte
	}

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := cfg.Client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		defer resp.Body.Close()

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return nil, fmt.Errorf("read response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, &statusError{kind: errRateLimited, status: resp.StatusCode, body: body}
		}
		if resp.StatusCode >= 500 {
			return nil, &statusError{kind: errServerError, status: resp.StatusCode, body: body}
		}
		return outcome{status: resp.StatusCode, body: body}, nil
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &weather.UpstreamError{
				StatusCode: http.StatusServiceUnavailable,
				Message:    "circuit breaker open",
				Err:        err,
			}
		}
		var se *statusError
		if errors.As(err, &se) {
			return nil, &weather.UpstreamError{StatusCode: se.status, Message: providerMessage(se.body), Err: se}
		}
		return nil, &weather.UpstreamError{Err: err}
	}

	out, ok := result.(outcome)
	if !ok {
		return nil, &weather.UpstreamError{Err: fmt.Errorf("unexpected result type from circuit breaker")}
	}
	if out.status < 200 || out.status >= 300 {
		return nil, &weather.UpstreamError{StatusCode: out.status, Message: providerMessage(out.body)}
	}
	return out.body, nil
}

// providerMessage turns an error body into a short diagnostic string.
func providerMessage(body []byte) string {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxMessageBytes {
		msg = msg[:maxMessageBytes] + "..."
	}
	return msg
}
