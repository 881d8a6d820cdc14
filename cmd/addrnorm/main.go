package main

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cif-address/internal/batch"
	"github.com/cif-address/internal/config"
	"github.com/cif-address/internal/db"
	"github.com/cif-address/internal/export"
	"github.com/cif-address/internal/llm"
	"github.com/cif-address/internal/normalize"
	"github.com/cif-address/internal/numeral"
	"github.com/cif-address/internal/postal"
	"github.com/cif-address/internal/store"
	"github.com/cif-address/internal/web"
)

var (
	configPath string
	debugFlag  bool

	// Loaded in PersistentPreRun
	settings *config.Settings
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree. Command output goes to the
// command's writer so tests can capture it.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "addrnorm",
		Short: "Taiwan customer address canonicalizer",
		Long: `Rewrites free-form Taiwan postal addresses into one canonical form and
fills the rule-based and LLM output columns of the customer address table.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var err error
			settings, err = config.Load(configPath)
			if err != nil {
				log.Fatalf("Failed to load configuration: %v", err)
			}
			if debugFlag {
				settings.Debug = true
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "TOML configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "trace every stage")

	rootCmd.AddCommand(createCanonicalizeCmd())
	rootCmd.AddCommand(createBatchCmd())
	rootCmd.AddCommand(createServeCmd())
	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createLoadCmd())
	rootCmd.AddCommand(createExportCmd())
	rootCmd.AddCommand(createIndexCmd())
	rootCmd.AddCommand(createNumeralCmd())
	return rootCmd
}

// mustLoadIndex loads the postal code file. The canonicalizer cannot run
// without it, so any failure is fatal.
func mustLoadIndex() *postal.Index {
	ix, err := postal.Load(settings.Postal.File)
	if err != nil {
		log.Fatalf("Failed to load postal codes from %s: %v", settings.Postal.File, err)
	}
	return ix
}

func newCanonicalizer(ix *postal.Index) *normalize.Canonicalizer {
	return normalize.NewCanonicalizer(ix, normalize.WithDebug(settings.Debug))
}

// mustOpenStore connects to the configured database and returns the address store.
func mustOpenStore() (*db.Connection, *store.AddressStore) {
	if err := settings.ValidateDatabase(); err != nil {
		log.Fatalf("Invalid database configuration: %v", err)
	}
	conn, err := db.NewConnection(settings.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	st, err := store.NewAddressStore(conn, store.Columns{
		Table:   settings.Database.Table,
		ID:      settings.Database.IDColumn,
		Address: settings.Database.AddressColumn,
		Rule:    settings.Database.RuleColumn,
		LLM:     settings.Database.LLMColumn,
	})
	if err != nil {
		conn.Close()
		log.Fatalf("Invalid table configuration: %v", err)
	}
	return conn, st
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// createCanonicalizeCmd canonicalizes addresses given as arguments, or one
// per line on stdin when there are none.
func createCanonicalizeCmd() *cobra.Command {
	var detailed bool

	cmd := &cobra.Command{
		Use:   "canonicalize [address...]",
		Short: "Canonicalize addresses from arguments or stdin",
		Run: func(cmd *cobra.Command, args []string) {
			canon := newCanonicalizer(mustLoadIndex())
			out := cmd.OutOrStdout()

			emit := func(raw string) {
				if !detailed {
					fmt.Fprintln(out, canon.Canonicalize(raw))
					return
				}
				res := canon.CanonicalizeDetailed(raw)
				fmt.Fprintf(out, "%s\t%s\tpostal=%s\tresolved=%t\n", res.Input, res.Address, res.PostalCode, res.Resolved)
			}

			if len(args) > 0 {
				for _, a := range args {
					emit(a)
				}
				return
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 64*1024), 1024*1024)
			for scanner.Scan() {
				emit(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				log.Fatalf("Failed to read stdin: %v", err)
			}
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "also print postal code and resolution")
	return cmd
}

func createBatchCmd() *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Fill output columns of the address table",
	}
	batchCmd.AddCommand(createBatchRulesCmd())
	batchCmd.AddCommand(createBatchLLMCmd())
	return batchCmd
}

// parseLimit accepts the record count either as the first argument or the
// --limit flag; the argument wins.
func parseLimit(args []string, flagValue int) int {
	if len(args) == 0 {
		return flagValue
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		log.Fatalf("Invalid record count: %s", args[0])
	}
	return n
}

func runBatch(strategy batch.Strategy, st *store.AddressStore, batchSize, limit int) {
	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Filling %s (batch size %d, limit %d)\n", strategy.Column(), batchSize, limit)

	stats, err := batch.NewProcessor(st, strategy, batchSize, limit).Run(ctx, settings.Debug)
	if stats != nil {
		fmt.Printf("\nRun %s\n", stats.RunID)
		fmt.Printf("  Pending at start: %d\n", stats.Pending)
		fmt.Printf("  Selected:         %d\n", stats.Selected)
		fmt.Printf("  Updated:          %d\n", stats.Updated)
		fmt.Printf("  Batches:          %d (%d failed)\n", stats.Batches, stats.FailedBatches)
		fmt.Printf("  Unresolved:       %d\n", stats.Unresolved)
		fmt.Printf("  Invalid:          %d\n", stats.Invalid)
		fmt.Printf("  Skipped:          %d\n", stats.Skipped)
		fmt.Printf("  Duration:         %v\n", stats.Duration.Round(time.Millisecond))
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("Interrupted, committed batches are kept")
			return
		}
		log.Fatalf("Batch run failed: %v", err)
	}
}

func createBatchRulesCmd() *cobra.Command {
	var limit, batchSize int

	cmd := &cobra.Command{
		Use:   "rules [count]",
		Short: "Fill the rule-based output column",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			limit = parseLimit(args, limit)
			if batchSize <= 0 {
				batchSize = settings.Batch.RuleSize
			}
			canon := newCanonicalizer(mustLoadIndex())

			conn, st := mustOpenStore()
			defer conn.Close()

			runBatch(batch.NewRuleStrategy(canon, settings.Database.RuleColumn), st, batchSize, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to process (0 = all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per batch (default from configuration)")
	return cmd
}

func createBatchLLMCmd() *cobra.Command {
	var limit, batchSize int

	cmd := &cobra.Command{
		Use:   "llm [count]",
		Short: "Fill the LLM output column",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			limit = parseLimit(args, limit)
			if batchSize <= 0 {
				batchSize = settings.Batch.LLMSize
			}
			if err := settings.ValidateLLM(); err != nil {
				log.Fatalf("Invalid LLM configuration: %v", err)
			}
			client, err := llm.NewClient(llm.Options{
				URL:               settings.LLM.URL,
				APIKey:            settings.LLM.APIKey,
				SystemID:          settings.LLM.SystemID,
				MaxTokens:         settings.LLM.MaxTokens,
				Timeout:           time.Duration(settings.LLM.TimeoutSeconds) * time.Second,
				RequestsPerSecond: settings.LLM.RequestsPerSecond,
				LocalDebug:        settings.Debug,
			})
			if err != nil {
				log.Fatalf("Failed to create LLM client: %v", err)
			}

			conn, st := mustOpenStore()
			defer conn.Close()

			runBatch(batch.NewLLMStrategy(client, settings.Database.LLMColumn), st, batchSize, limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows to process (0 = all)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per request (default from configuration)")
	return cmd
}

func createServeCmd() *cobra.Command {
	var noDB bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the canonicalizer over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			ix := mustLoadIndex()
			deps := web.Dependencies{
				Canon:      normalize.NewCanonicalizer(ix, normalize.WithDebug(settings.Debug)),
				Index:      ix,
				RuleColumn: settings.Database.RuleColumn,
				LLMColumn:  settings.Database.LLMColumn,
			}
			if !noDB {
				conn, st := mustOpenStore()
				defer conn.Close()
				deps.Store = st
			}

			fmt.Printf("Postal codes: %d entries from %s\n", ix.Len(), settings.Postal.File)
			if settings.Server.APIKey == "" {
				fmt.Println("API key not set, /api is open")
			}

			server := web.NewServer(settings.Server, deps)
			if err := server.Start(); err != nil {
				log.Fatalf("Server failed: %v", err)
			}
		},
	}
	cmd.Flags().BoolVar(&noDB, "no-db", false, "serve without a database (disables /api/stats and /api/export)")
	return cmd
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		Run: func(cmd *cobra.Command, args []string) {
			conn, st := mustOpenStore()
			defer conn.Close()
			fmt.Printf("Database connection successful (%s)\n", conn.Dialect)

			ctx := context.Background()
			cols := st.Columns()
			for _, column := range []string{cols.Rule, cols.LLM} {
				n, err := st.CountPending(ctx, column)
				if err != nil {
					log.Printf("Error counting pending rows for %s: %v", column, err)
					continue
				}
				fmt.Printf("Pending for %s: %d\n", column, n)
			}
		},
	}
}

// createLoadCmd imports "id,address" rows, mainly to seed a local SQLite table.
func createLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load [filename]",
		Short: "Load id,address rows from a CSV file into the address table",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalf("Failed to open %s: %v", args[0], err)
			}
			defer f.Close()

			conn, st := mustOpenStore()
			defer conn.Close()

			ctx := context.Background()
			if err := st.EnsureSchema(ctx); err != nil {
				log.Fatalf("Failed to create table: %v", err)
			}

			reader := csv.NewReader(f)
			reader.FieldsPerRecord = -1
			loaded := 0
			for line := 1; ; line++ {
				rec, err := reader.Read()
				if err == io.EOF {
					break
				}
				if err != nil {
					log.Fatalf("Failed to read line %d: %v", line, err)
				}
				if len(rec) < 2 {
					log.Printf("Skipping line %d: expected id,address", line)
					continue
				}
				if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), settings.Database.IDColumn) {
					continue // header
				}
				if err := st.Insert(ctx, strings.TrimSpace(rec[0]), rec[1]); err != nil {
					log.Fatalf("Failed to load line %d: %v", line, err)
				}
				loaded++
			}
			fmt.Printf("Loaded %d rows into %s\n", loaded, settings.Database.Table)
		},
	}
}

func createExportCmd() *cobra.Command {
	var out string
	var limit int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the rule/LLM comparison report (.xlsx or .csv)",
		Run: func(cmd *cobra.Command, args []string) {
			conn, st := mustOpenStore()
			defer conn.Close()

			rows, err := st.Processed(context.Background(), limit)
			if err != nil {
				log.Fatalf("Failed to read processed rows: %v", err)
			}

			switch strings.ToLower(filepath.Ext(out)) {
			case ".xlsx":
				err = export.SaveXLSX(out, rows)
			case ".csv":
				var f *os.File
				f, err = os.Create(out)
				if err == nil {
					err = export.WriteCSV(f, rows)
					if cerr := f.Close(); err == nil {
						err = cerr
					}
				}
			default:
				log.Fatalf("Unsupported output %q, use .xlsx or .csv", out)
			}
			if err != nil {
				log.Fatalf("Export failed: %v", err)
			}

			s := export.Summarize(rows)
			fmt.Printf("Wrote %d rows to %s\n", s.Total, out)
			fmt.Printf("  Agreed: %d  Disagreed: %d  Rule only: %d  LLM only: %d\n", s.Agreed, s.Disagreed, s.RuleOnly, s.LLMOnly)
		},
	}
	cmd.Flags().StringVar(&out, "out", "address_comparison.xlsx", "output file")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows (0 = all)")
	return cmd
}

func createIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [address]",
		Short: "List the postal code index, or resolve an address against it",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ix := mustLoadIndex()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, e := range ix.Entries() {
					fmt.Fprintf(out, "%s\t%s\n", e.Code, e.Location)
				}
				fmt.Fprintf(out, "%d entries\n", ix.Len())
				return
			}

			address := strings.ReplaceAll(args[0], "台", "臺")
			code, ok := ix.Resolve(address)
			if !ok {
				fmt.Fprintln(out, "No postal code found")
				os.Exit(1)
			}
			fmt.Fprintln(out, code)
		},
	}
}

func createNumeralCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "numeral [text]",
		Short: "Convert between Chinese numerals and Arabic digits",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			res := numeral.Parse(args[0])
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Arabic:  %s (converted=%t)\n", res.Text, res.Converted)
			fmt.Fprintf(out, "Chinese: %s\n", numeral.Format(res.Text))
		},
	}
}
