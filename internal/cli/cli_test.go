package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noface-00/prims/internal/analysis"
	"github.com/noface-00/prims/internal/config"
	"github.com/noface-00/prims/internal/metrics"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/store"
)

type stubMarket struct {
	listings []model.Listing
	price    float64
}

func (m *stubMarket) ComparableListings(context.Context, string, int) ([]model.Listing, error) {
	return m.listings, nil
}

func (m *stubMarket) CurrentPrice(context.Context, string) (float64, error) {
	return m.price, nil
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"EBAY_CLIENT_ID", "EBAY_CLIENT_SECRET", "EBAY_TOKEN", "MYSQL_DSN", "REDIS_ADDR", "PRIMS_WATCH_PRODUCTS", "PRIMS_HISTORY_FILE"} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "prims.yaml")
	yml := "analysis:\n  history_file: " + filepath.Join(dir, "history.json") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	return path
}

// stubBuild wires a real service over an in-memory store and a fixed market.
func stubBuild(mem *store.MemoryStore, market *stubMarket) buildFunc {
	return func(_ context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
		reg := metrics.NewRegistry()
		svc, err := analysis.NewService(analysis.Deps{
			Market:   market,
			History:  mem,
			Store:    mem,
			Catalog:  mem,
			Stats:    mem,
			Recorder: reg,
		}, analysis.Config{Workers: 2}, log)
		if err != nil {
			return nil, err
		}
		return &App{Config: cfg, Log: log, Service: svc, Metrics: reg, Recent: mem}, nil
	}
}

type buildFunc = func(context.Context, *config.Config, zerolog.Logger) (*App, error)

// run executes args on a fresh CLI, flag values do not carry over.
func run(t *testing.T, build buildFunc, args ...string) (string, error) {
	t.Helper()
	c := New()
	if build != nil {
		c.build = build
	}
	var out, errOut bytes.Buffer
	c.rootCmd.SetOut(&out)
	c.rootCmd.SetErr(&errOut)
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLINew(t *testing.T) {
	c := New()
	require.NotNil(t, c.rootCmd)

	expected := []string{"analyze", "latest", "stats", "similar", "track", "export", "watch", "serve"}
	for _, name := range expected {
		found := false
		for _, cmd := range c.rootCmd.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		assert.True(t, found, "subcommand %q missing", name)
	}
}

func TestStatsCommand_InMemory(t *testing.T) {
	clearEnv(t)
	out, err := run(t, nil, "--config", writeConfig(t), "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total analizados: 0")
}

func TestAnalyzeCommand(t *testing.T) {
	clearEnv(t)

	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveProduct(context.Background(), &model.Product{ItemID: "111", Name: "Nintendo Switch OLED"}))
	market := &stubMarket{
		price: 100,
		listings: []model.Listing{
			{Title: "a", Price: 98}, {Title: "b", Price: 99}, {Title: "c", Price: 100},
			{Title: "d", Price: 101}, {Title: "e", Price: 102},
		},
	}

	build := stubBuild(mem, market)

	out, err := run(t, build, "--config", writeConfig(t), "analyze", "111")
	require.NoError(t, err)
	assert.Contains(t, out, "Nintendo Switch OLED")
	assert.Contains(t, out, "$100.00")
	assert.Equal(t, 1, mem.Count())

	out, err = run(t, build, "--config", writeConfig(t), "analyze", "111", "--json")
	require.NoError(t, err)
	var snaps []model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps, 1)
	assert.Equal(t, 5, snaps[0].Stats.SampleSize)
	assert.Equal(t, 100.0, snaps[0].Stats.Mean)
}

func TestAnalyzeCommand_UnknownProduct(t *testing.T) {
	clearEnv(t)
	_, err := run(t, stubBuild(store.NewMemoryStore(), &stubMarket{}), "--config", writeConfig(t), "analyze", "404")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestAnalyzeCommand_Batch(t *testing.T) {
	clearEnv(t)

	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveProduct(context.Background(), &model.Product{ItemID: "111", Name: "Switch OLED"}))

	out, err := run(t, stubBuild(mem, &stubMarket{price: 100}), "--config", writeConfig(t), "analyze", "111", "404", "--json")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrNotFound)

	var snaps []model.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snaps))
	require.Len(t, snaps, 1, "the good product is still analyzed")
	assert.Equal(t, "111", snaps[0].ProductID)
}

func TestExportCommand(t *testing.T) {
	clearEnv(t)

	mem := store.NewMemoryStore()
	require.NoError(t, mem.Upsert(context.Background(), &model.Snapshot{
		ProductID: "111", ProductName: "Switch", PriceActual: 95, Timestamp: time.Now(),
	}))

	build := stubBuild(mem, &stubMarket{})

	out, err := run(t, build, "--config", writeConfig(t), "export", "--format", "csv")
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewBufferString(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "111", records[1][0])

	file := filepath.Join(t.TempDir(), "report.xlsx")
	_, err = run(t, build, "--config", writeConfig(t), "export", "--out", file)
	require.NoError(t, err)
	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = run(t, build, "--config", writeConfig(t), "export", "--out", "report.pdf")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestWatchOnce(t *testing.T) {
	clearEnv(t)

	mem := store.NewMemoryStore()
	require.NoError(t, mem.SaveProduct(context.Background(), &model.Product{ItemID: "111", Name: "Switch OLED"}))

	build := stubBuild(mem, &stubMarket{price: 100, listings: []model.Listing{{Title: "a", Price: 100}}})

	out, err := run(t, build, "--config", writeConfig(t), "watch", "--once", "111")
	require.NoError(t, err)
	assert.Contains(t, out, "analizados 1, fallidos 0")

	_, err = run(t, build, "--config", writeConfig(t), "watch", "--once")
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestBuild_InMemory(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.HistoryFile = filepath.Join(t.TempDir(), "history.json")

	app, err := Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer app.Close()

	assert.NotNil(t, app.Service)
	assert.NotNil(t, app.Recent)
	assert.Len(t, app.Sweepers, 4)

	gs, err := app.Service.GeneralStats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, gs.TotalAnalyzed)
}

func TestTokenSource(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, tokenSource(cfg))

	cfg.Ebay.Token = "static"
	tok, err := tokenSource(cfg).Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static", tok)

	cfg.Ebay.ClientID, cfg.Ebay.ClientSecret = "id", "secret"
	assert.NotNil(t, tokenSource(cfg))
}
