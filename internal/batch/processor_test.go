package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cif-address/internal/config"
	"github.com/cif-address/internal/db"
	"github.com/cif-address/internal/llm"
	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/postal"
	"github.com/cif-address/internal/store"
)

var columns = store.Columns{
	Table:   "NCRM_STAGE_CIF_ADDR_API",
	ID:      "SNO",
	Address: "ADDR",
	Rule:    "ADDR_PYTHON",
	LLM:     "ADDR_GAI",
}

func newStore(t *testing.T, rows [][2]string) *store.AddressStore {
	t.Helper()
	conn, err := db.NewConnection(config.DatabaseSettings{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s, err := store.NewAddressStore(conn, columns)
	require.NoError(t, err)
	require.NoError(t, s.EnsureSchema(context.Background()))
	for _, r := range rows {
		require.NoError(t, s.Insert(context.Background(), r[0], r[1]))
	}
	return s
}

func canonicalizer() *normalize.Canonicalizer {
	ix := postal.Build([]postal.Entry{
		{Location: "臺北市大安區", Code: "106"},
		{Location: "新北市新莊區", Code: "242"},
	})
	return normalize.NewCanonicalizer(ix, normalize.WithMissWarnings(false))
}

func outputs(t *testing.T, s *store.AddressStore) map[string]store.Row {
	t.Helper()
	rows, err := s.Processed(context.Background(), 0)
	require.NoError(t, err)
	out := make(map[string]store.Row, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out
}

var sampleRows = [][2]string{
	{"1", "台北市大安區復興南路1段279號3F"},
	{"2", "新北市新莊區建國2路72號-7"},
	{"3", "金門縣金城鎮民生路5號"},
	{"4", ""},
	{"11", "臺北市大安區復興南路二段"},
	{"12", "10617臺北市大安區復興南路1段279號"},
}

func TestRuleRun(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, sampleRows)
	p := NewProcessor(s, NewRuleStrategy(canonicalizer(), columns.Rule), 2, 0)

	stats, err := p.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Pending)
	assert.Equal(t, 5, stats.Selected)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, int64(5), stats.Updated)
	assert.Equal(t, 1, stats.Unresolved)
	assert.NotEmpty(t, stats.RunID)

	got := outputs(t, s)
	assert.Equal(t, "106臺北市大安區復興南路1段279號3樓", got["1"].Rule)
	assert.Equal(t, "242新北市新莊區建國2路72號之7", got["2"].Rule)
	assert.Equal(t, "金門縣金城鎮民生路5號", got["3"].Rule)
	assert.Equal(t, "106臺北市大安區復興南路2段", got["11"].Rule)
	assert.Equal(t, "106臺北市大安區復興南路1段279號", got["12"].Rule)
	assert.NotContains(t, got, "4")

	// nothing left: a second run is a no-op
	again, err := p.Run(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, again.Updated)
	assert.Zero(t, again.Batches)
}

func TestRunLimit(t *testing.T) {
	s := newStore(t, sampleRows)
	p := NewProcessor(s, NewRuleStrategy(canonicalizer(), columns.Rule), 2, 3)

	stats, err := p.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Selected)
	assert.Equal(t, 2, stats.Batches)
	assert.Equal(t, int64(3), stats.Updated)

	left, err := s.CountPending(context.Background(), columns.Rule)
	require.NoError(t, err)
	assert.Equal(t, 2, left)
}

func TestRunCanceled(t *testing.T) {
	s := newStore(t, sampleRows)
	p := NewProcessor(s, NewRuleStrategy(canonicalizer(), columns.Rule), 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeCompleter struct {
	calls   int
	failOn  int
	answers func(items []llm.Item) []llm.Answer
}

func (f *fakeCompleter) Canonicalize(_ context.Context, items []llm.Item) ([]llm.Answer, error) {
	f.calls++
	if f.calls == f.failOn {
		return nil, llm.ErrUpstream
	}
	return f.answers(items), nil
}

func TestLLMRun(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, sampleRows)
	fc := &fakeCompleter{
		failOn: 1,
		answers: func(items []llm.Item) []llm.Answer {
			var out []llm.Answer
			for _, it := range items {
				if it.ID == "11" {
					out = append(out, llm.Answer{ID: it.ID, Address: " "})
					continue
				}
				out = append(out, llm.Answer{ID: it.ID, Address: "LLM:" + it.Address})
			}
			// ids outside the batch are ignored
			return append(out, llm.Answer{ID: "999", Address: "stray"})
		},
	}
	p := NewProcessor(s, NewLLMStrategy(fc, columns.LLM), 2, 0)

	stats, err := p.Run(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 1, stats.FailedBatches)
	assert.Equal(t, int64(2), stats.Updated)
	assert.Equal(t, 1, stats.Skipped)

	got := outputs(t, s)
	assert.NotContains(t, got, "1")
	assert.Equal(t, "LLM:金門縣金城鎮民生路5號", got["3"].LLM)
	assert.Equal(t, "LLM:10617臺北市大安區復興南路1段279號", got["12"].LLM)
	assert.Empty(t, got["12"].Rule)

	left, err := s.CountPending(ctx, columns.LLM)
	require.NoError(t, err)
	assert.Equal(t, 3, left)
}

func TestStrategiesHandleNonText(t *testing.T) {
	recs := []store.Record{{ID: "1", Seq: 1, Address: 42}}

	out, err := NewRuleStrategy(canonicalizer(), columns.Rule).Process(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Invalid)
	assert.Equal(t, []store.Update{{ID: "1", Value: normalize.InvalidFormat}}, out.Updates)

	fc := &fakeCompleter{answers: func([]llm.Item) []llm.Answer { t.Fatal("unexpected call"); return nil }}
	out, err = NewLLMStrategy(fc, columns.LLM).Process(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Invalid)
	assert.Equal(t, normalize.InvalidFormat, out.Updates[0].Value)
}

func TestRunStoreError(t *testing.T) {
	p := NewProcessor(brokenStore{}, NewRuleStrategy(canonicalizer(), columns.Rule), 2, 0)
	_, err := p.Run(context.Background(), false)
	assert.Error(t, err)
}

type brokenStore struct{}

func (brokenStore) Pending(context.Context, string, int64, int) ([]store.Record, error) {
	return nil, errors.New("down")
}
func (brokenStore) CountPending(context.Context, string) (int, error) { return 0, errors.New("down") }
func (brokenStore) Update(context.Context, string, []store.Update) (int64, error) {
	return 0, errors.New("down")
}
