package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/gateway"
)

const noSingleRowMsg = "JSON object requested, multiple (or no) rows returned"

// List implements gateway.Data.
func (db *DB) List(ctx context.Context, t gateway.Table, q gateway.Query) ([]gateway.Row, error) {
	if err := db.checkColumns(t, filterColumns(q.Filters)...); err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	where, args, err := db.whereClause(t, q.Filters)
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `SELECT * FROM %s%s`, t.Name, where)
	if q.OrderBy != "" {
		if err := db.checkColumns(t, q.OrderBy); err != nil {
			return nil, apperr.Remote("select", t.Name, err)
		}
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, ` ORDER BY %s %s, %s %s`, q.OrderBy, dir, t.Key, dir)
	}
	if q.Limit > 0 || q.Offset > 0 {
		limit := q.Limit
		if limit <= 0 {
			limit = -1
		}
		fmt.Fprintf(&b, ` LIMIT %d OFFSET %d`, limit, q.Offset)
	}

	rows, err := db.conn.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	return out, nil
}

// Get implements gateway.Data.
func (db *DB) Get(ctx context.Context, t gateway.Table, id any) (gateway.Row, error) {
	if err := db.checkColumns(t); err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf(`SELECT * FROM %s WHERE %s = ? LIMIT 2`, t.Name, t.Key), normalize(id))
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, apperr.Remote("select", t.Name, err)
	}
	if len(out) != 1 {
		return nil, noSingleRow("select", t.Name)
	}
	return out[0], nil
}

// Insert implements gateway.Data.
func (db *DB) Insert(ctx context.Context, t gateway.Table, row gateway.Row) (gateway.Row, error) {
	row = db.stamp(t, row, true)
	cols := sortedKeys(row)
	if err := db.checkColumns(t, cols...); err != nil {
		return nil, apperr.Remote("insert", t.Name, err)
	}

	args := make([]any, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		args[i] = normalize(row[c])
		marks[i] = "?"
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Remote("insert", t.Name, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, apperr.Remote("insert", t.Name, err)
	}
	if len(out) != 1 {
		return nil, noSingleRow("insert", t.Name)
	}
	return out[0], nil
}

// Update implements gateway.Data.
func (db *DB) Update(ctx context.Context, t gateway.Table, id any, patch gateway.Row) (gateway.Row, error) {
	patch = db.stamp(t, patch, false)
	delete(patch, t.Key)
	cols := sortedKeys(patch)
	if err := db.checkColumns(t, cols...); err != nil {
		return nil, apperr.Remote("update", t.Name, err)
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = c + " = ?"
		args = append(args, normalize(patch[c]))
	}
	args = append(args, normalize(id))
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = ? RETURNING *`,
		t.Name, strings.Join(sets, ", "), t.Key)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Remote("update", t.Name, err)
	}
	out, err := scanRows(rows)
	if err != nil {
		return nil, apperr.Remote("update", t.Name, err)
	}
	if len(out) != 1 {
		return nil, noSingleRow("update", t.Name)
	}
	return out[0], nil
}

// Delete implements gateway.Data. Deleting a missing id succeeds.
func (db *DB) Delete(ctx context.Context, t gateway.Table, id any) error {
	if err := db.checkColumns(t); err != nil {
		return apperr.Remote("delete", t.Name, err)
	}
	_, err := db.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, t.Name, t.Key), normalize(id))
	return apperr.Remote("delete", t.Name, err)
}

// Count implements gateway.Data.
func (db *DB) Count(ctx context.Context, t gateway.Table, filters ...gateway.Filter) (int, error) {
	if err := db.checkColumns(t, filterColumns(filters)...); err != nil {
		return 0, apperr.Remote("count", t.Name, err)
	}
	where, args, err := db.whereClause(t, filters)
	if err != nil {
		return 0, apperr.Remote("count", t.Name, err)
	}
	var n int
	if err := db.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT count(*) FROM %s%s`, t.Name, where), args...).Scan(&n); err != nil {
		return 0, apperr.Remote("count", t.Name, err)
	}
	return n, nil
}

// Upsert implements gateway.Data within a single transaction.
func (db *DB) Upsert(ctx context.Context, t gateway.Table, rows []gateway.Row, onConflict string) error {
	if len(rows) == 0 {
		return nil
	}
	if err := db.checkColumns(t, onConflict); err != nil {
		return apperr.Remote("upsert", t.Name, err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Remote("upsert", t.Name, err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, row := range rows {
		row = db.stamp(t, row, true)
		cols := sortedKeys(row)
		if err := db.checkColumns(t, cols...); err != nil {
			return apperr.Remote("upsert", t.Name, err)
		}
		args := make([]any, len(cols))
		marks := make([]string, len(cols))
		var sets []string
		for i, c := range cols {
			args[i] = normalize(row[c])
			marks[i] = "?"
			if c != onConflict && c != "created_at" {
				sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
			}
		}
		action := "NOTHING"
		if len(sets) > 0 {
			action = "UPDATE SET " + strings.Join(sets, ", ")
		}
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) DO %s`,
			t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "), onConflict, action)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return apperr.Remote("upsert", t.Name, err)
		}
	}
	return apperr.Remote("upsert", t.Name, tx.Commit())
}

// stamp returns a copy of row with server-managed timestamps applied.
func (db *DB) stamp(t gateway.Table, row gateway.Row, insert bool) gateway.Row {
	out := make(gateway.Row, len(row)+2)
	for k, v := range row {
		out[k] = v
	}
	now := db.timestamp()
	cols := db.columns[t.Name]
	if _, ok := cols["updated_at"]; ok {
		out["updated_at"] = now
	}
	if _, ok := cols["created_at"]; ok {
		if insert {
			out["created_at"] = now
		} else {
			delete(out, "created_at")
		}
	}
	return out
}

func (db *DB) checkColumns(t gateway.Table, cols ...string) error {
	known, ok := db.columns[t.Name]
	if !ok {
		return fmt.Errorf("relation %q does not exist", t.Name)
	}
	if _, ok := known[t.Key]; !ok {
		return fmt.Errorf("column %q does not exist", t.Key)
	}
	for _, c := range cols {
		if _, ok := known[c]; !ok {
			return fmt.Errorf("column %s.%s does not exist", t.Name, c)
		}
	}
	return nil
}

func (db *DB) whereClause(t gateway.Table, filters []gateway.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", nil, nil
	}
	conds := make([]string, len(filters))
	args := make([]any, len(filters))
	for i, f := range filters {
		var op string
		switch f.Op {
		case gateway.OpEq:
			op = "="
		case gateway.OpGte:
			op = ">="
		case gateway.OpLte:
			op = "<="
		default:
			return "", nil, fmt.Errorf("unsupported operator %q", f.Op)
		}
		conds[i] = fmt.Sprintf("%s %s ?", f.Column, op)
		args[i] = normalize(f.Value)
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func filterColumns(filters []gateway.Filter) []string {
	cols := make([]string, len(filters))
	for i, f := range filters {
		cols[i] = f.Column
	}
	return cols
}

func sortedKeys(row gateway.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize converts JSON-decoded values into types the driver stores natively.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.UTC().Format(timeLayout)
	case *time.Time:
		if x == nil {
			return nil
		}
		return x.UTC().Format(timeLayout)
	default:
		return v
	}
}

func scanRows(rows *sql.Rows) ([]gateway.Row, error) {
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := []gateway.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(gateway.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func noSingleRow(op, table string) error {
	return &apperr.RemoteError{Op: op, Table: table, Message: noSingleRowMsg, Err: apperr.ErrNoSingleRow}
}
