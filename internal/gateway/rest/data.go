package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
)

// List implements gateway.Data.
func (c *Client) List(ctx context.Context, t gateway.Table, q gateway.Query) ([]gateway.Row, error) {
	params := filterParams(q.Filters)
	params.Set("select", "*")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		params.Set("order", q.OrderBy+"."+dir)
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	resp, err := c.do(ctx, request{method: http.MethodGet, path: tablePath(t), query: params})
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	if !ok(resp) {
		return nil, remoteError("select", t.Name, resp)
	}
	return decodeRows("select", t.Name, resp.body)
}

// Get implements gateway.Data.
func (c *Client) Get(ctx context.Context, t gateway.Table, id any) (gateway.Row, error) {
	params := filterParams([]gateway.Filter{gateway.Eq(t.Key, id)})
	params.Set("select", "*")
	resp, err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    tablePath(t),
		query:   params,
		headers: map[string]string{"Accept": singleObject},
	})
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	if !ok(resp) {
		return nil, remoteError("select", t.Name, resp)
	}
	return decodeRow("select", t.Name, resp.body)
}

// Insert implements gateway.Data.
func (c *Client) Insert(ctx context.Context, t gateway.Table, row gateway.Row) (gateway.Row, error) {
	resp, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   tablePath(t),
		query:  url.Values{"select": {"*"}},
		body:   []gateway.Row{row},
		headers: map[string]string{
			"Prefer": "return=representation",
			"Accept": singleObject,
		},
	})
	if err != nil {
		return nil, apperr.Remote("insert", t.Name, err)
	}
	if !ok(resp) {
		return nil, remoteError("insert", t.Name, resp)
	}
	return decodeRow("insert", t.Name, resp.body)
}

// Update implements gateway.Data.
func (c *Client) Update(ctx context.Context, t gateway.Table, id any, patch gateway.Row) (gateway.Row, error) {
	params := filterParams([]gateway.Filter{gateway.Eq(t.Key, id)})
	params.Set("select", "*")
	resp, err := c.do(ctx, request{
		method: http.MethodPatch,
		path:   tablePath(t),
		query:  params,
		body:   patch,
		headers: map[string]string{
			"Prefer": "return=representation",
			"Accept": singleObject,
		},
	})
	if err != nil {
		return nil, apperr.Remote("update", t.Name, err)
	}
	if !ok(resp) {
		return nil, remoteError("update", t.Name, resp)
	}
	return decodeRow("update", t.Name, resp.body)
}

// Delete implements gateway.Data.
func (c *Client) Delete(ctx context.Context, t gateway.Table, id any) error {
	resp, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   tablePath(t),
		query:  filterParams([]gateway.Filter{gateway.Eq(t.Key, id)}),
	})
	if err != nil {
		return apperr.Remote("delete", t.Name, err)
	}
	if !ok(resp) {
		return remoteError("delete", t.Name, resp)
	}
	return nil
}

// Count implements gateway.Data using an exact-count HEAD request.
func (c *Client) Count(ctx context.Context, t gateway.Table, filters ...gateway.Filter) (int, error) {
	params := filterParams(filters)
	params.Set("select", "*")
	resp, err := c.do(ctx, request{
		method:  http.MethodHead,
		path:    tablePath(t),
		query:   params,
		headers: map[string]string{"Prefer": "count=exact"},
	})
	if err != nil {
		return 0, apperr.Remote("count", t.Name, err)
	}
	if !ok(resp) {
		return 0, remoteError("count", t.Name, resp)
	}
	n, err := parseContentRange(resp.header.Get("Content-Range"))
	if err != nil {
		return 0, apperr.Remote("count", t.Name, err)
	}
	return n, nil
}

// Upsert implements gateway.Data.
func (c *Client) Upsert(ctx context.Context, t gateway.Table, rows []gateway.Row, onConflict string) error {
	if len(rows) == 0 {
		return nil
	}
	resp, err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    tablePath(t),
		query:   url.Values{"on_conflict": {onConflict}},
		body:    rows,
		headers: map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"},
	})
	if err != nil {
		return apperr.Remote("upsert", t.Name, err)
	}
	if !ok(resp) {
		return remoteError("upsert", t.Name, resp)
	}
	return nil
}

func tablePath(t gateway.Table) string {
	return "/rest/v1/" + url.PathEscape(t.Name)
}

func filterParams(filters []gateway.Filter) url.Values {
	params := url.Values{}
	for _, f := range filters {
		params.Add(f.Column, string(f.Op)+"."+formatValue(f.Value))
	}
	return params
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if x == nil {
			return "null"
		}
		return x.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// parseContentRange extracts the total from "0-19/742" or "*/742".
func parseContentRange(h string) (int, error) {
	i := strings.LastIndex(h, "/")
	if i < 0 || h[i+1:] == "*" {
		return 0, fmt.Errorf("missing exact count in Content-Range %q", h)
	}
	return strconv.Atoi(h[i+1:])
}

func decodeRows(op, table string, body []byte) ([]gateway.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	rows := []gateway.Row{}
	if err := dec.Decode(&rows); err != nil {
		return nil, apperr.Remote(op, table, err)
	}
	return rows, nil
}

func decodeRow(op, table string, body []byte) (gateway.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var row gateway.Row
	if err := dec.Decode(&row); err != nil {
		return nil, apperr.Remote(op, table, err)
	}
	return row, nil
}
