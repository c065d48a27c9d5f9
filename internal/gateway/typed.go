package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// ToRow converts a JSON-tagged struct (or map) into a Row. Numbers are kept
// as json.Number so integer identities survive the round trip.
func ToRow(v any) (Row, error) {
	if r, ok := v.(Row); ok {
		return r, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("gateway: encode row: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var row Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("gateway: decode row: %w", err)
	}
	return row, nil
}

// FromRow decodes r into a T using T's JSON tags.
func FromRow[T any](r Row) (T, error) {
	var out T
	data, err := json.Marshal(r)
	if err != nil {
		return out, fmt.Errorf("gateway: encode row: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("gateway: decode %T: %w", out, err)
	}
	return out, nil
}

// FromRows decodes every row into a T.
func FromRows[T any](rows []Row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := FromRow[T](r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// List runs q against t and decodes the result.
func List[T any](ctx context.Context, d Data, t Table, q Query) ([]T, error) {
	rows, err := d.List(ctx, t, q)
	if err != nil {
		return nil, err
	}
	return FromRows[T](rows)
}

// Get fetches the single row keyed by id.
func Get[T any](ctx context.Context, d Data, t Table, id any) (T, error) {
	row, err := d.Get(ctx, t, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return FromRow[T](row)
}

// Insert persists in and returns the stored entity.
func Insert[T any](ctx context.Context, d Data, t Table, in any) (T, error) {
	var zero T
	row, err := ToRow(in)
	if err != nil {
		return zero, err
	}
	stored, err := d.Insert(ctx, t, row)
	if err != nil {
		return zero, err
	}
	return FromRow[T](stored)
}

// Update applies patch to the row keyed by id and returns the stored entity.
func Update[T any](ctx context.Context, d Data, t Table, id any, patch any) (T, error) {
	var zero T
	row, err := ToRow(patch)
	if err != nil {
		return zero, err
	}
	stored, err := d.Update(ctx, t, id, row)
	if err != nil {
		return zero, err
	}
	return FromRow[T](stored)
}

// Upsert converts items to rows and upserts them on onConflict.
func Upsert[T any](ctx context.Context, d Data, t Table, items []T, onConflict string) error {
	rows := make([]Row, 0, len(items))
	for _, it := range items {
		row, err := ToRow(it)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return d.Upsert(ctx, t, rows, onConflict)
}
