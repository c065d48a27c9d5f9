package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
)

// forecastJSON builds n 3-hour samples starting at start, with temperatures
// base, base+1, ...
func forecastJSON(start time.Time, n int, base float64) map[string]any {
	list := make([]map[string]any, 0, n)
	for i := range n {
		list = append(list, map[string]any{
			"dt":      start.Add(time.Duration(i) * 3 * time.Hour).Unix(),
			"main":    map[string]any{"temp": base + float64(i), "humidity": 50 + i},
			"weather": []map[string]any{{"description": fmt.Sprintf("desc-%d", i), "icon": fmt.Sprintf("%02dd", i)}},
			"wind":    map[string]any{"speed": 1.5},
		})
	}
	return map[string]any{"cod": "200", "list": list}
}

func decodeSamples(t *testing.T, v map[string]any) []Sample {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var r forecastResponse
	require.NoError(t, json.Unmarshal(data, &r))
	return r.List
}

func TestReduceFirstSamplePerDate(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	samples := decodeSamples(t, forecastJSON(start, 24, 10.4))

	got := Reduce(samples, time.UTC)

	humidity := func(v int) *int { return &v }
	speed := 1.5
	want := []models.WeatherDay{
		{Date: "2024-03-01", Temp: 10, Description: "desc-0", Icon: "https://openweathermap.org/img/wn/00d@2x.png", Humidity: humidity(50), WindSpeed: &speed},
		{Date: "2024-03-02", Temp: 18, Description: "desc-8", Icon: "https://openweathermap.org/img/wn/08d@2x.png", Humidity: humidity(58), WindSpeed: &speed},
		{Date: "2024-03-03", Temp: 26, Description: "desc-16", Icon: "https://openweathermap.org/img/wn/16d@2x.png", Humidity: humidity(66), WindSpeed: &speed},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Reduce mismatch (-want +got):\n%s", diff)
	}
}

func TestReduceCapsAtThreeDates(t *testing.T) {
	start := time.Date(2024, 3, 1, 21, 0, 0, 0, time.UTC)
	got := Reduce(decodeSamples(t, forecastJSON(start, 40, 0)), time.UTC)
	require.Len(t, got, 3)
	assert.Equal(t, "2024-03-01", got[0].Date)
	assert.Equal(t, "2024-03-03", got[2].Date)
}

func TestReduceUsesLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	// 20:00 UTC on Mar 1 is already Mar 2 in UTC+8.
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	got := Reduce(decodeSamples(t, forecastJSON(start, 2, 0)), shanghai)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-03-02", got[0].Date)
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 3, roundHalfUp(2.5))
	assert.Equal(t, -2, roundHalfUp(-2.5))
	assert.Equal(t, 2, roundHalfUp(2.49))
	assert.Equal(t, -3, roundHalfUp(-2.51))
}

func TestDailySendsQueryParameters(t *testing.T) {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Beijing", q.Get("q"))
		assert.Equal(t, "secret", q.Get("appid"))
		assert.Equal(t, "metric", q.Get("units"))
		assert.Equal(t, "zh_cn", q.Get("lang"))
		assert.Equal(t, "24", q.Get("cnt"))
		_ = json.NewEncoder(w).Encode(forecastJSON(start, 24, 5))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", WithLocation(time.UTC))
	days := c.Daily(context.Background(), "Beijing")
	require.Len(t, days, 3)
	assert.Equal(t, 5, days[0].Temp)
}

func TestDailyDefaultsCity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Hefei", r.URL.Query().Get("q"))
		_ = json.NewEncoder(w).Encode(map[string]any{"list": []any{}})
	}))
	defer srv.Close()

	days := New(srv.URL, "k").Daily(context.Background(), "")
	assert.NotNil(t, days)
	assert.Empty(t, days)
}

func TestFailureDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "k")
	_, err := c.Forecast(context.Background(), "Atlantis")
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusNotFound, pe.Code)
	assert.Equal(t, "city not found", pe.Message)

	days := c.Daily(context.Background(), "Atlantis")
	assert.NotNil(t, days)
	assert.Empty(t, days)
}
