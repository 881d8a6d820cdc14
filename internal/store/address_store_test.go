package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cif-address/internal/config"
	"github.com/cif-address/internal/db"
)

var testColumns = Columns{
	Table:   "NCRM_STAGE_CIF_ADDR_API",
	ID:      "SNO",
	Address: "ADDR",
	Rule:    "ADDR_PYTHON",
	LLM:     "ADDR_GAI",
}

func newTestStore(t *testing.T) *AddressStore {
	t.Helper()
	conn, err := db.NewConnection(config.DatabaseSettings{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s, err := NewAddressStore(conn, testColumns)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func seed(t *testing.T, s *AddressStore, rows map[string]string) {
	t.Helper()
	for id, addr := range rows {
		require.NoError(t, s.Insert(context.Background(), id, addr))
	}
}

func TestPendingOrdersNumerically(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, map[string]string{
		"10": "臺北市大安區",
		"2":  "新北市新莊區",
		"1":  "臺中市西屯區",
		"3":  "",
	})

	recs, err := s.Pending(context.Background(), testColumns.Rule, 0, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"1", "2", "10"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
	assert.Equal(t, int64(10), recs[2].Seq)
	assert.Equal(t, "臺北市大安區", recs[2].Address)
}

func TestPendingKeyset(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, map[string]string{"1": "a", "2": "b", "3": "c"})

	recs, err := s.Pending(context.Background(), testColumns.Rule, 1, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "2", recs[0].ID)
}

func TestUpdateMarksProcessed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{"1": "a", "2": "b"})

	n, err := s.Update(ctx, testColumns.Rule, []Update{{ID: "1", Value: "A"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err := s.CountPending(ctx, testColumns.Rule)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	// the LLM column is tracked independently
	pending, err = s.CountPending(ctx, testColumns.LLM)
	require.NoError(t, err)
	assert.Equal(t, 2, pending)

	rows, err := s.Processed(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []Row{{ID: "1", Address: "a", Rule: "A"}}, rows)
}

func TestUpdateEmptyBatch(t *testing.T) {
	s := newTestStore(t)
	n, err := s.Update(context.Background(), testColumns.Rule, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcessedLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seed(t, s, map[string]string{"1": "a", "2": "b", "3": "c"})
	_, err := s.Update(ctx, testColumns.LLM, []Update{{ID: "1", Value: "x"}, {ID: "2", Value: "y"}, {ID: "3", Value: "z"}})
	require.NoError(t, err)

	rows, err := s.Processed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "y", rows[1].LLM)
}

func TestRejectsBadIdentifiers(t *testing.T) {
	conn := &db.Connection{Dialect: db.SQLite}

	cols := testColumns
	cols.Table = "addr; DROP TABLE x"
	_, err := NewAddressStore(conn, cols)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	s := newTestStore(t)
	_, err = s.Pending(context.Background(), "ADDR", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = s.Update(context.Background(), "SNO", []Update{{ID: "1"}})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}
