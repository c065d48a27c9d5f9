// Package weather fetches a multi-day forecast from an OpenWeather-compatible
// endpoint and reduces it to one sample per calendar date.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
)

const (
	provider = "openweather"

	// DefaultBaseURL is the 3-hour forecast endpoint.
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/forecast"
	// DefaultCity is used when a request names no city.
	DefaultCity = "Hefei"

	maxDays    = 3
	sampleSize = 24
	iconURL    = "https://openweathermap.org/img/wn/%s@2x.png"
	dateLayout = "2006-01-02"
)

// Sample is one 3-hour forecast entry as returned by the provider.
type Sample struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity *int    `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Wind *struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastResponse struct {
	List []Sample `json:"list"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client queries the forecast endpoint.
type Client struct {
	baseURL string
	apiKey  string
	city    string
	loc     *time.Location
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// WithLocation sets the time zone calendar dates are computed in.
func WithLocation(loc *time.Location) Option { return func(c *Client) { c.loc = loc } }

// WithDefaultCity sets the city used when a request names none.
func WithDefaultCity(city string) Option { return func(c *Client) { c.city = city } }

// New returns a client for baseURL authenticated with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		city:    DefaultCity,
		loc:     time.Local,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Forecast fetches the raw samples for city.
func (c *Client) Forecast(ctx context.Context, city string) ([]Sample, error) {
	if city == "" {
		city = c.city
	}
	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", c.apiKey)
	q.Set("units", "metric")
	q.Set("lang", "zh_cn")
	q.Set("cnt", fmt.Sprint(sampleSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("weather: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		msg := string(body)
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return nil, &apperr.ProviderError{Provider: provider, Code: resp.StatusCode, Message: msg}
	}

	var out forecastResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: "decode response: " + err.Error(), Err: err}
	}
	return out.List, nil
}

// Daily returns up to three days of forecast for city. Failures are logged
// and yield an empty slice.
func (c *Client) Daily(ctx context.Context, city string) []models.WeatherDay {
	samples, err := c.Forecast(ctx, city)
	if err != nil {
		c.logger.Error("fetch weather forecast", slog.String("city", city), slog.String("error", err.Error()))
		return []models.WeatherDay{}
	}
	return Reduce(samples, c.loc)
}

// Reduce keeps the first sample of each calendar date in loc, in input order,
// up to three dates.
func Reduce(samples []Sample, loc *time.Location) []models.WeatherDay {
	if loc == nil {
		loc = time.UTC
	}
	days := make([]models.WeatherDay, 0, maxDays)
	seen := make(map[string]bool, maxDays)
	for _, s := range samples {
		if len(days) == maxDays {
			break
		}
		date := time.Unix(s.Dt, 0).In(loc).Format(dateLayout)
		if seen[date] {
			continue
		}
		seen[date] = true

		day := models.WeatherDay{
			Date:     date,
			Temp:     roundHalfUp(s.Main.Temp),
			Humidity: s.Main.Humidity,
		}
		if len(s.Weather) > 0 {
			day.Description = s.Weather[0].Description
			day.Icon = fmt.Sprintf(iconURL, s.Weather[0].Icon)
		}
		if s.Wind != nil {
			speed := s.Wind.Speed
			day.WindSpeed = &speed
		}
		days = append(days, day)
	}
	return days
}

// roundHalfUp rounds to the nearest integer with halves going toward +Inf.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
