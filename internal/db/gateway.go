package db

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// TablePrefixPlaceholder is substituted with the configured table prefix when a
// statement is prepared.
const TablePrefixPlaceholder = "*PREFIX*"

// Gateway prepares SQL statements written with `?` placeholders.
type Gateway interface {
	Prepare(query string) Statement
}

// Statement executes a prepared query with positional parameters.
type Statement interface {
	// Query returns every row produced by the statement.
	Query(ctx context.Context, args ...any) ([]Row, error)
	// Exec runs a write and returns the number of affected rows.
	Exec(ctx context.Context, args ...any) (int64, error)
}

// PgxGateway runs statements against PostgreSQL-compatible databases through pgx.
type PgxGateway struct {
	pool   Pool
	prefix string
}

// NewGateway constructs a gateway that expands TablePrefixPlaceholder to prefix.
func NewGateway(pool Pool, prefix string) *PgxGateway {
	return &PgxGateway{pool: pool, prefix: prefix}
}

// Prepare rewrites query for PostgreSQL. pgx caches the server-side statement
// on first execution, so nothing is sent to the database here.
func (g *PgxGateway) Prepare(query string) Statement {
	return &pgxStatement{pool: g.pool, sql: Rewrite(query, g.prefix)}
}

type pgxStatement struct {
	pool Pool
	sql  string
}

func (s *pgxStatement) Query(ctx context.Context, args ...any) ([]Row, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, s.sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		values, err := pgx.RowToMap(row)
		return Row(values), err
	})
	if err != nil {
		return nil, fmt.Errorf("collect rows: %w", err)
	}
	return out, nil
}

func (s *pgxStatement) Exec(ctx context.Context, args ...any) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, s.sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Rewrite expands the table prefix placeholder and converts `?` placeholders
// to PostgreSQL's numbered `$n` form. Question marks inside quoted literals or
// identifiers are left alone.
func Rewrite(query, prefix string) string {
	query = strings.ReplaceAll(query, TablePrefixPlaceholder, prefix)

	var (
		b     strings.Builder
		n     int
		quote rune
	)
	b.Grow(len(query) + 8)
	for _, r := range query {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '`':
			// MySQL-style identifier quoting.
			b.WriteRune('"')
			continue
		case r == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Gateway = (*PgxGateway)(nil)
