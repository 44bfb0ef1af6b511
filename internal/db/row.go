package db

import (
	"fmt"
	"time"
)

// Row is a single result row keyed by column name.
type Row map[string]any

// String returns the column as a string.
func (r Row) String(column string) (string, error) {
	v, ok := r[column]
	if !ok {
		return "", fmt.Errorf("column %q missing", column)
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	default:
		return "", fmt.Errorf("column %q: unexpected type %T", column, v)
	}
}

// Int64 returns the column as an integer, widening smaller integer types.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r[column]
	if !ok {
		return 0, fmt.Errorf("column %q missing", column)
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("column %q: unexpected type %T", column, v)
	}
}

// Time returns the column as a UTC timestamp. A NULL column yields the zero time.
func (r Row) Time(column string) (time.Time, error) {
	v, ok := r[column]
	if !ok {
		return time.Time{}, fmt.Errorf("column %q missing", column)
	}
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("column %q: unexpected type %T", column, v)
	}
}
