package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/testutil"
)

// fakeTushare serves n stock_basic rows as positional arrays and two daily bars.
func fakeTushare(t *testing.T, n int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tok", req.Token)
		if calls != nil {
			calls.Add(1)
		}

		switch req.APIName {
		case "stock_basic":
			assert.Equal(t, "L", req.Params["list_status"])
			items := make([][]any, 0, n)
			for i := n - 1; i >= 0; i-- {
				row := make([]any, len(stockBasicFields))
				for j := range row {
					row[j] = ""
				}
				row[0] = fmt.Sprintf("%06d.SZ", i)
				row[2] = fmt.Sprintf("stock %d", i)
				row[13] = nil
				items = append(items, row)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 0, "msg": "",
				"data": map[string]any{"fields": stockBasicFields, "items": items},
			})
		case "daily":
			assert.Equal(t, "000001.SZ", req.Params["ts_code"])
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code": 0,
				"data": map[string]any{
					"fields": dailyFields,
					"items": [][]any{
						{"20240102", 9.1, 9.5, 9.0, 9.39, 1200.5},
						{"20240101", 9.0, 9.2, 8.8, 9.1, 800},
					},
				},
			})
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"code": 40101, "msg": "unknown api"})
		}
	}))
}

func TestQueryProviderError(t *testing.T) {
	srv := fakeTushare(t, 0, nil)
	defer srv.Close()

	_, err := NewClient(srv.URL, "tok").Query(context.Background(), "nope", nil, nil)
	var pe *apperr.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 40101, pe.Code)
	assert.Equal(t, "unknown api", pe.Message)
}

func TestQueryObjectItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"msg":"","data":{"fields":["ts_code"],"items":[{"ts_code":"600000.SH"}]}}`))
	}))
	defer srv.Close()

	rows, err := NewClient(srv.URL, "tok").Query(context.Background(), "stock_basic", nil, []string{"ts_code"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "600000.SH", rows[0]["ts_code"])
}

func TestClientDaily(t *testing.T) {
	srv := fakeTushare(t, 0, nil)
	defer srv.Close()

	bars, err := NewClient(srv.URL, "tok").Daily(context.Background(), "000001.SZ")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, models.DailyBar{TradeDate: "20240102", Open: 9.1, High: 9.5, Low: 9.0, Close: 9.39, Vol: 1200.5}, bars[0])
}

func TestPageFillsCacheOnce(t *testing.T) {
	var calls atomic.Int32
	srv := fakeTushare(t, 45, &calls)
	defer srv.Close()

	gw := testutil.TestGateway(t)
	s := NewStocks(gw, NewClient(srv.URL, "tok"), nil)
	ctx := context.Background()

	p1 := s.Page(ctx, 1)
	require.Empty(t, p1.Error)
	assert.Equal(t, 45, p1.Total)
	require.Len(t, p1.Items, PageSize)
	assert.Equal(t, "000000.SZ", p1.Items[0].TSCode)

	p2 := s.Page(ctx, 2)
	assert.Equal(t, 45, p2.Total)
	require.Len(t, p2.Items, PageSize)
	assert.Equal(t, "000020.SZ", p2.Items[0].TSCode)
	assert.Equal(t, "000039.SZ", p2.Items[19].TSCode)

	p3 := s.Page(ctx, 3)
	assert.Len(t, p3.Items, 5)
	assert.Equal(t, 45, p3.Total)

	assert.Empty(t, s.Page(ctx, 9).Items)
	assert.Equal(t, int32(1), calls.Load(), "provider is hit only while the cache is empty")

	n, err := gw.Count(ctx, gateway.StockBasic)
	require.NoError(t, err)
	assert.Equal(t, 45, n)
}

func TestRefreshUpsertsOnCode(t *testing.T) {
	var calls atomic.Int32
	srv := fakeTushare(t, 30, &calls)
	defer srv.Close()

	gw := testutil.TestGateway(t)
	s := NewStocks(gw, NewClient(srv.URL, "tok"), nil)
	ctx := context.Background()

	require.Equal(t, 30, s.Page(ctx, 1).Total)
	n, err := s.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 30, n, "refresh must not duplicate rows")
	assert.Equal(t, int32(2), calls.Load())
}

func TestPageProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":2002,"msg":"token invalid"}`))
	}))
	defer srv.Close()

	s := NewStocks(testutil.TestGateway(t), NewClient(srv.URL, "bad"), nil)
	p := s.Page(context.Background(), 1)
	assert.Equal(t, "token invalid", p.Error)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)
}

type refusingUpsert struct{ gateway.Data }

func (refusingUpsert) Upsert(context.Context, gateway.Table, []gateway.Row, string) error {
	return &apperr.RemoteError{Op: "upsert", Message: "permission denied"}
}

func TestPageServesFetchedRowsWhenCacheRefuses(t *testing.T) {
	srv := fakeTushare(t, 25, nil)
	defer srv.Close()

	s := NewStocks(refusingUpsert{testutil.TestGateway(t)}, NewClient(srv.URL, "tok"), nil)
	p := s.Page(context.Background(), 2)
	assert.Empty(t, p.Error)
	assert.Equal(t, 25, p.Total)
	require.Len(t, p.Items, 5)
	assert.Equal(t, "000020.SZ", p.Items[0].TSCode)
}

func TestDailyDegrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewStocks(testutil.TestGateway(t), NewClient(srv.URL, "tok"), nil)
	bars := s.Daily(context.Background(), "000001.SZ")
	assert.NotNil(t, bars)
	assert.Empty(t, bars)
}
