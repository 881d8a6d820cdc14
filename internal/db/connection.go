package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/cif-address/internal/config"
)

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Connection holds the database connection
type Connection struct {
	DB      *sql.DB
	Dialect Dialect
}

// NewConnection opens and pings the database described by settings.
func NewConnection(settings config.DatabaseSettings) (*Connection, error) {
	dialect := Dialect(settings.Driver)
	switch dialect {
	case Postgres, SQLite:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", settings.Driver)
	}

	db, err := sql.Open(string(dialect), settings.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	if dialect == SQLite {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else if settings.MaxConnections > 0 {
		db.SetMaxOpenConns(settings.MaxConnections)
		db.SetMaxIdleConns(settings.MaxConnections / 2)
		db.SetConnMaxLifetime(time.Hour)
	}

	return &Connection{DB: db, Dialect: dialect}, nil
}

// Close closes the database connection
func (c *Connection) Close() error {
	return c.DB.Close()
}

// Rebind rewrites $1, $2, ... placeholders for the connection's dialect.
// Queries are written in Postgres form.
func (c *Connection) Rebind(query string) string {
	return Rebind(c.Dialect, query)
}

// Rebind rewrites $n placeholders to ? for SQLite. Arguments must be passed
// in placeholder order.
func Rebind(d Dialect, query string) string {
	if d != SQLite || !strings.Contains(query, "$") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte('$')
			continue
		}
		if _, err := strconv.Atoi(query[i+1 : j]); err == nil {
			b.WriteByte('?')
		}
		i = j - 1
	}
	return b.String()
}
