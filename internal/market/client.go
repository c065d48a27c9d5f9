// Package market talks to a Tushare-compatible financial data API and keeps
// the stock_basic listing cached in the backend.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
	"github.com/starford/studytrack/internal/models"
)

const provider = "tushare"

// DefaultURL is the public Tushare endpoint.
const DefaultURL = "http://api.tushare.pro"

var (
	stockBasicFields = []string{
		"ts_code", "symbol", "name", "area", "industry", "fullname", "enname", "cnspell",
		"market", "exchange", "curr_type", "list_status", "list_date", "delist_date",
		"is_hs", "act_name", "act_ent_type",
	}
	dailyFields = []string{"trade_date", "open", "high", "low", "close", "vol"}
)

type request struct {
	APIName string         `json:"api_name"`
	Token   string         `json:"token"`
	Params  map[string]any `json:"params"`
	Fields  string         `json:"fields"`
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data *struct {
		Fields []string          `json:"fields"`
		Items  []json.RawMessage `json:"items"`
	} `json:"data"`
}

// Client posts API calls to the provider.
type Client struct {
	url    string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

// NewClient returns a client posting to url with token.
func NewClient(url, token string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:    url,
		token:  token,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query calls apiName and returns each result item keyed by field name.
// Items may arrive either as positional arrays matching data.fields or as objects.
func (c *Client) Query(ctx context.Context, apiName string, params map[string]any, fields []string) ([]gateway.Row, error) {
	if params == nil {
		params = map[string]any{}
	}
	body, err := json.Marshal(request{
		APIName: apiName,
		Token:   c.token,
		Params:  params,
		Fields:  strings.Join(fields, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("market: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("market: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: err.Error(), Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.ProviderError{Provider: provider, Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &apperr.ProviderError{Provider: provider, Message: "decode response: " + err.Error(), Err: err}
	}
	if env.Code != 0 {
		return nil, &apperr.ProviderError{Provider: provider, Code: env.Code, Message: env.Msg}
	}
	if env.Data == nil {
		return []gateway.Row{}, nil
	}

	rows := make([]gateway.Row, 0, len(env.Data.Items))
	for i, item := range env.Data.Items {
		row, err := decodeItem(item, env.Data.Fields)
		if err != nil {
			return nil, &apperr.ProviderError{Provider: provider, Message: fmt.Sprintf("decode item %d: %v", i, err), Err: err}
		}
		rows = append(rows, row)
	}
	c.logger.Debug("provider query", slog.String("api", apiName), slog.Int("items", len(rows)))
	return rows, nil
}

func decodeItem(item json.RawMessage, fields []string) (gateway.Row, error) {
	trimmed := bytes.TrimSpace(item)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var row gateway.Row
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, err
		}
		return row, nil
	}
	var values []any
	if err := json.Unmarshal(trimmed, &values); err != nil {
		return nil, err
	}
	if len(values) != len(fields) {
		return nil, fmt.Errorf("%d values for %d fields", len(values), len(fields))
	}
	row := make(gateway.Row, len(fields))
	for i, f := range fields {
		row[f] = values[i]
	}
	return row, nil
}

// StockBasic lists every currently listed instrument.
func (c *Client) StockBasic(ctx context.Context) ([]models.StockBasic, error) {
	rows, err := c.Query(ctx, "stock_basic", map[string]any{"exchange": "", "list_status": "L"}, stockBasicFields)
	if err != nil {
		return nil, err
	}
	return gateway.FromRows[models.StockBasic](rows)
}

// Daily returns the daily bars of one instrument.
func (c *Client) Daily(ctx context.Context, tsCode string) ([]models.DailyBar, error) {
	rows, err := c.Query(ctx, "daily", map[string]any{"ts_code": tsCode, "start_date": "", "end_date": ""}, dailyFields)
	if err != nil {
		return nil, err
	}
	return gateway.FromRows[models.DailyBar](rows)
}
