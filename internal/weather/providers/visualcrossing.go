package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

// VisualCrossingConfig describes the Visual Crossing timeline endpoint.
// The location is appended to BaseURL as a path segment.
type VisualCrossingConfig struct {
	BaseURL   string
	APIKey    string
	UnitGroup string
	Lang      string
}

// VisualCrossingProvider implements weather.Fetcher for the Visual Crossing
// timeline API. The response body is returned unmodified.
type VisualCrossingProvider struct {
	cfg     VisualCrossingConfig
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewVisualCrossingProvider creates a provider sharing the given HTTP client.
func NewVisualCrossingProvider(client *http.Client, cfg VisualCrossingConfig, logger zerolog.Logger) *VisualCrossingProvider {
	if cfg.UnitGroup == "" {
		cfg.UnitGroup = "us"
	}
	p := &VisualCrossingProvider{
		cfg: cfg,
		httpCfg: HTTPClientConfig{
			Client:      client,
			BreakerName: "visualcrossing",
		},
		logger: logger.With().Str("component", "VisualCrossingProvider").Logger(),
	}
	p.circuit = newCircuitBreaker(p.httpCfg, func(name string, from, to gobreaker.State) {
		p.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed.")
	})
	return p
}

// Fetch retrieves the timeline payload for location.
func (p *VisualCrossingProvider) Fetch(ctx context.Context, location string) (weather.Snapshot, error) {
	if p.cfg.BaseURL == "" || p.cfg.APIKey == "" {
		return nil, &weather.UpstreamError{Err: errors.New("missing upstream base URL or API key")}
	}

	req, err := p.buildRequest(location)
	if err != nil {
		return nil, &weather.UpstreamError{Err: err}
	}

	p.logger.Debug().Str("location", location).Str("path", req.URL.Path).Msg("Making API request.")
	body, err := doRequest(ctx, p.httpCfg, p.circuit, req)
	if err != nil {
		return nil, err
	}

	snap := weather.Snapshot(body)
	if snap.IsEmpty() {
		return nil, weather.ErrUpstreamEmptyResult
	}
	if !json.Valid(body) {
		return nil, &weather.UpstreamError{
			StatusCode: http.StatusOK,
			Message:    "malformed response body",
			Err:        errors.New("response is not valid JSON"),
		}
	}
	return snap, nil
}

func (p *VisualCrossingProvider) buildRequest(location string) (*http.Request, error) {
	values := url.Values{}
	values.Set("unitGroup", p.cfg.UnitGroup)
	values.Set("key", p.cfg.APIKey)
	values.Set("contentType", "json")
	if p.cfg.Lang != "" {
		values.Set("lang", p.cfg.Lang)
	}

	base := p.cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u := fmt.Sprintf("%s%s?%s", base, url.PathEscape(location), values.Encode())
	return http.NewRequest(http.MethodGet, u, nil)
}
