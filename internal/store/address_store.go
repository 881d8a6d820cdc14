// Package store reads and writes the customer address staging table.
//
// A row is pending for an output column while that column is empty; writing
// a result is what marks it processed, so runs can be repeated safely.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/cif-address/internal/db"
)

// ErrInvalidIdentifier is returned for table or column names that are not
// plain SQL identifiers.
var ErrInvalidIdentifier = errors.New("invalid SQL identifier")

var reIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Columns names the table and its columns.
type Columns struct {
	Table   string
	ID      string
	Address string
	Rule    string // rule-based canonicalizer output
	LLM     string // LLM canonicalizer output
}

// Record is one pending row. Address is the raw column value as returned by
// the driver; it is normally a string but is not guaranteed to be one.
type Record struct {
	ID      string
	Seq     int64
	Address any
}

// Update writes Value into the output column of row ID.
type Update struct {
	ID    string
	Value string
}

// Row is a row with both outputs, used for reports.
type Row struct {
	ID      string
	Address string
	Rule    string
	LLM     string
}

// AddressStore gives access to the staging table.
type AddressStore struct {
	conn *db.Connection
	cols Columns
}

// NewAddressStore validates cols and returns a store.
func NewAddressStore(conn *db.Connection, cols Columns) (*AddressStore, error) {
	for _, name := range []string{cols.Table, cols.ID, cols.Address, cols.Rule, cols.LLM} {
		if !reIdentifier.MatchString(name) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}
	return &AddressStore{conn: conn, cols: cols}, nil
}

// Columns returns the configured names.
func (s *AddressStore) Columns() Columns {
	return s.cols
}

func (s *AddressStore) outputColumn(column string) error {
	if column != s.cols.Rule && column != s.cols.LLM {
		return fmt.Errorf("%w: %q is not an output column", ErrInvalidIdentifier, column)
	}
	return nil
}

// EnsureSchema creates the table when it does not exist yet.
func (s *AddressStore) EnsureSchema(ctx context.Context) error {
	c := s.cols
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		%s TEXT PRIMARY KEY,
		%s TEXT NOT NULL DEFAULT '',
		%s TEXT NOT NULL DEFAULT '',
		%s TEXT NOT NULL DEFAULT ''
	)`, c.Table, c.ID, c.Address, c.Rule, c.LLM)
	if _, err := s.conn.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", c.Table, err)
	}
	return nil
}

// Insert adds a raw address row with empty outputs.
func (s *AddressStore) Insert(ctx context.Context, id, address string) error {
	c := s.cols
	query := s.conn.Rebind(fmt.Sprintf(`INSERT INTO %s (%s, %s) VALUES ($1, $2)`, c.Table, c.ID, c.Address))
	if _, err := s.conn.DB.ExecContext(ctx, query, id, address); err != nil {
		return fmt.Errorf("insert %s: %w", id, err)
	}
	return nil
}

// Pending returns up to limit rows whose address is non-empty and whose
// output column is empty, with a numeric id above afterSeq, in id order.
func (s *AddressStore) Pending(ctx context.Context, column string, afterSeq int64, limit int) ([]Record, error) {
	if err := s.outputColumn(column); err != nil {
		return nil, err
	}
	c := s.cols
	query := s.conn.Rebind(fmt.Sprintf(`
		SELECT %[1]s, CAST(%[1]s AS INTEGER), %[2]s
		FROM %[3]s
		WHERE %[2]s <> '' AND COALESCE(%[4]s, '') = ''
		  AND CAST(%[1]s AS INTEGER) > $1
		ORDER BY CAST(%[1]s AS INTEGER)
		LIMIT $2`, c.ID, c.Address, c.Table, column))

	rows, err := s.conn.DB.QueryContext(ctx, query, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending %s: %w", column, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Seq, &r.Address); err != nil {
			return nil, fmt.Errorf("scan pending row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountPending counts rows still waiting for column.
func (s *AddressStore) CountPending(ctx context.Context, column string) (int, error) {
	if err := s.outputColumn(column); err != nil {
		return 0, err
	}
	c := s.cols
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s <> '' AND COALESCE(%s, '') = ''`,
		c.Table, c.Address, column)

	var n int
	if err := s.conn.DB.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending %s: %w", column, err)
	}
	return n, nil
}

// Update writes a batch of results in one transaction and returns the number
// of rows changed.
func (s *AddressStore) Update(ctx context.Context, column string, updates []Update) (int64, error) {
	if err := s.outputColumn(column); err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := s.conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	query := s.conn.Rebind(fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE %s = $2`, s.cols.Table, column, s.cols.ID))
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare update: %w", err)
	}
	defer stmt.Close()

	var affected int64
	for _, u := range updates {
		res, err := stmt.ExecContext(ctx, u.Value, u.ID)
		if err != nil {
			return 0, fmt.Errorf("update %s: %w", u.ID, err)
		}
		n, _ := res.RowsAffected()
		affected += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}

// Processed returns rows with at least one output, in id order. A limit of
// zero or less returns every row.
func (s *AddressStore) Processed(ctx context.Context, limit int) ([]Row, error) {
	c := s.cols
	query := fmt.Sprintf(`
		SELECT %[1]s, %[2]s, COALESCE(%[3]s, ''), COALESCE(%[4]s, '')
		FROM %[5]s
		WHERE COALESCE(%[3]s, '') <> '' OR COALESCE(%[4]s, '') <> ''
		ORDER BY CAST(%[1]s AS INTEGER)`, c.ID, c.Address, c.Rule, c.LLM, c.Table)

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = s.conn.DB.QueryContext(ctx, s.conn.Rebind(query+" LIMIT $1"), limit)
	} else {
		rows, err = s.conn.DB.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("select processed: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Address, &r.Rule, &r.LLM); err != nil {
			return nil, fmt.Errorf("scan processed row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
