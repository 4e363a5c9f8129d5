// Package provider fetches current conditions from OpenWeatherMap and
// normalizes them into a record input.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"weathervision/internal/config"
	"weathervision/internal/metrics"
	"weathervision/internal/modules/weather/types"

	"github.com/sony/gobreaker"
)

// Kind classifies a FetchError.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindTransport
	KindShape
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return metrics.OutcomeConfiguration
	case KindTransport:
		return metrics.OutcomeTransport
	case KindShape:
		return metrics.OutcomeShape
	default:
		return "unknown"
	}
}

const notConfiguredMessage = "OpenWeatherMap API key is not configured. Please set OPENWEATHER_API_KEY environment variable."

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 1 << 20

// FetchError is returned for every ingestion failure. Its message is safe to
// show to API clients and never contains the API key.
type FetchError struct {
	Kind Kind
	// Path names the missing or malformed response field for KindShape.
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindConfiguration:
		return notConfiguredMessage
	case KindShape:
		if e.Path != "" {
			return fmt.Sprintf("Unexpected API response format: '%s'", e.Path)
		}
		return fmt.Sprintf("Unexpected API response format: %v", e.Err)
	default:
		return fmt.Sprintf("Failed to fetch weather data: %v", e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is a non-2xx provider answer.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, http.StatusText(e.Code))
}

var (
	errNotConfigured = errors.New("api key not configured")
	errMissingField  = errors.New("missing field")
)

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Recorder
	logger  *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client built from the configured timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func NewClient(cfg config.Config, opts ...Option) *Client {
	c := &Client{
		apiKey:  strings.TrimSpace(cfg.OpenWeatherAPIKey),
		baseURL: strings.TrimRight(cfg.OpenWeatherAPIURL, "/"),
		http:    &http.Client{Timeout: cfg.OpenWeatherTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweathermap",
		MaxRequests: 1,
		Timeout:     cfg.OpenWeatherBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// Configured reports whether an API key other than the placeholder is set.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.apiKey != config.PlaceholderAPIKey
}

// CurrentWeather fetches the current conditions for city. Every failure is a
// *FetchError. No retries are made.
func (c *Client) CurrentWeather(ctx context.Context, city string) (types.RecordInput, error) {
	in, err := c.currentWeather(ctx, city)
	outcome := metrics.OutcomeOK
	var fe *FetchError
	if errors.As(err, &fe) {
		outcome = fe.Kind.String()
		c.logger.WarnContext(ctx, "provider fetch failed", "city", city, "kind", outcome, "error", fe.Error())
	} else {
		c.logger.InfoContext(ctx, "provider fetch", "city", city)
	}
	c.metrics.ProviderFetch(outcome)
	return in, err
}

func (c *Client) currentWeather(ctx context.Context, city string) (types.RecordInput, error) {
	if !c.Configured() {
		return types.RecordInput{}, &FetchError{Kind: KindConfiguration, Err: errNotConfigured}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.get(ctx, city)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return types.RecordInput{}, &FetchError{Kind: KindTransport, Err: fmt.Errorf("circuit breaker open: %w", err)}
		}
		return types.RecordInput{}, &FetchError{Kind: KindTransport, Err: err}
	}
	body, ok := result.([]byte)
	if !ok {
		return types.RecordInput{}, &FetchError{Kind: KindTransport, Err: fmt.Errorf("unexpected result type %T", result)}
	}
	return normalize(body)
}

// get performs the request and returns the raw body of a 2xx response.
func (c *Client) get(ctx context.Context, city string) ([]byte, error) {
	values := url.Values{}
	values.Set("q", city)
	values.Set("appid", c.apiKey)
	values.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+values.Encode(), nil)
	if err != nil {
		return nil, redact(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, redact(err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Error("close provider response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, redact(err)
	}
	return body, nil
}

// countsAsSuccess keeps caller mistakes out of the breaker counts. Only
// 5xx, 429, timeouts and connection errors count as provider failures.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
	}
	return false
}

// redact drops the request URL, which carries the API key, from client errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return fmt.Errorf("request timed out: %w", ue.Err)
		}
		return ue.Err
	}
	return err
}

type currentWeatherResponse struct {
	Name *string `json:"name"`
	Sys  *struct {
		Country *string `json:"country"`
	} `json:"sys"`
	Main *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
		Pressure *float64 `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
		Deg   *float64 `json:"deg"`
	} `json:"wind"`
}

func normalize(body []byte) (types.RecordInput, error) {
	var p currentWeatherResponse
	if err := json.Unmarshal(body, &p); err != nil {
		return types.RecordInput{}, &FetchError{Kind: KindShape, Err: err}
	}

	missing := func(path string) (types.RecordInput, error) {
		return types.RecordInput{}, &FetchError{Kind: KindShape, Path: path, Err: fmt.Errorf("%w: %s", errMissingField, path)}
	}
	switch {
	case p.Name == nil:
		return missing("name")
	case p.Sys == nil:
		return missing("sys")
	case p.Main == nil:
		return missing("main")
	case p.Main.Temp == nil:
		return missing("main.temp")
	case p.Main.Humidity == nil:
		return missing("main.humidity")
	case p.Main.Pressure == nil:
		return missing("main.pressure")
	case p.Weather == nil:
		return missing("weather")
	case len(p.Weather) == 0:
		return missing("weather.0")
	case p.Weather[0].Description == nil:
		return missing("weather.0.description")
	case p.Wind == nil:
		return missing("wind")
	}

	country := ""
	if p.Sys.Country != nil {
		country = *p.Sys.Country
	}
	temp := types.RoundHundredths(*p.Main.Temp)
	humidity := int(math.Round(*p.Main.Humidity))
	pressure := int(math.Round(*p.Main.Pressure))
	speed := 0.0
	if p.Wind.Speed != nil {
		speed = types.RoundHundredths(*p.Wind.Speed)
	}
	var deg *int
	if p.Wind.Deg != nil {
		d := int(math.Round(*p.Wind.Deg))
		deg = &d
	}
	source := types.DefaultAPISource

	return types.RecordInput{
		City:          p.Name,
		Country:       &country,
		Temperature:   &temp,
		Humidity:      &humidity,
		Pressure:      &pressure,
		Description:   p.Weather[0].Description,
		WindSpeed:     &speed,
		WindDirection: deg,
		APISource:     &source,
	}, nil
}

// Timeout is the configured per-request deadline, exposed for logging at startup.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}
