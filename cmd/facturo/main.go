// Command facturo standardizes UBL invoices against a reference code catalog
// and maintains a cumulative inventory ledger across processed documents.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"facturo/internal/arbiter"
	"facturo/internal/config"
	"facturo/internal/reconcile"
	"facturo/internal/service"
	"facturo/internal/store"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "standardize":
		err = runStandardize(ctx, cfg, log, os.Args[2:])
	case "process":
		err = runProcess(ctx, cfg, log, os.Args[2:])
	case "docs":
		err = runDocs(cfg, log, os.Args[2:])
	case "inventory":
		err = runInventory(cfg, log, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: facturo <command> [flags]

commands:
  standardize   match one invoice against the catalog, write output files only
  process       match one invoice and register it (artifacts, ledger, registry)
  docs          list | search <query> | delete <name-or-id>
  inventory     list | recompute | export -out <file.xlsx>`)
}

// matchFlags are the knobs shared by standardize and process.
type matchFlags struct {
	xml             string
	codes           string
	minScore        float64
	geminiThreshold float64
	noGemini        bool
	geminiAPIKey    string
}

func registerMatchFlags(fs *flag.FlagSet, cfg config.Config, mf *matchFlags) {
	fs.StringVar(&mf.xml, "xml", "", "path to the UBL invoice XML")
	fs.StringVar(&mf.codes, "codes", "", "path to the reference catalog (xlsx or csv)")
	fs.Float64Var(&mf.minScore, "min-score", cfg.Match.MinScore, "minimum fuzzy score to keep a candidate")
	fs.Float64Var(&mf.geminiThreshold, "gemini-threshold", cfg.Match.GeminiThreshold, "escalate to Gemini below this fuzzy score")
	fs.BoolVar(&mf.noGemini, "no-gemini", false, "disable the Gemini arbiter entirely")
	fs.StringVar(&mf.geminiAPIKey, "gemini-api-key", "", "Gemini API key (overrides config and env)")
}

func (mf *matchFlags) validate() error {
	if mf.xml == "" || mf.codes == "" {
		return fmt.Errorf("both -xml and -codes are required")
	}
	return nil
}

// buildArbiter resolves the configured arbiter; the caller must Close the
// returned closer when non-nil.
func buildArbiter(ctx context.Context, cfg config.Config, mf *matchFlags, log zerolog.Logger) (arbiter.Arbiter, func(), error) {
	if mf.noGemini || !cfg.Gemini.Enabled {
		log.Info().Msg("gemini arbiter disabled")
		return arbiter.Off{}, nil, nil
	}
	key := cfg.ResolveAPIKey(mf.geminiAPIKey)
	if key == "" {
		log.Info().Msg("gemini arbiter disabled: no api key found")
		return arbiter.Off{}, nil, nil
	}
	g, err := arbiter.NewGemini(ctx, key, cfg.Gemini.Model, log)
	if err != nil {
		return nil, nil, fmt.Errorf("gemini arbiter: %w", err)
	}
	log.Info().Str("model", cfg.Gemini.Model).Float64("threshold", mf.geminiThreshold).Msg("gemini arbiter enabled")
	return g, func() { _ = g.Close() }, nil
}

func progressLogger(log zerolog.Logger) service.Progress {
	return func(stage string) { log.Info().Msg(stage) }
}

func runStandardize(ctx context.Context, cfg config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("standardize", flag.ExitOnError)
	var mf matchFlags
	registerMatchFlags(fs, cfg, &mf)
	outLines := fs.String("out-lines", "lines_raw.json", "output file for raw extracted lines")
	outJSON := fs.String("out-json", "lines_standardized.json", "output file for standardized lines")
	outCSV := fs.String("out-csv", "lines_standardized.csv", "CSV output file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := mf.validate(); err != nil {
		return err
	}

	arb, closeArb, err := buildArbiter(ctx, cfg, &mf, log)
	if err != nil {
		return err
	}
	if closeArb != nil {
		defer closeArb()
	}

	p := &service.Processor{Arbiter: arb, MinScore: mf.minScore, GeminiThreshold: mf.geminiThreshold, Log: log}
	rawLines, annotated, sum, err := p.Standardize(ctx, mf.xml, mf.codes, progressLogger(log))
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(rawLines, "", "  ")
	if err != nil {
		return fmt.Errorf("encode raw lines: %w", err)
	}
	if err := os.WriteFile(*outLines, raw, 0o644); err != nil {
		return fmt.Errorf("write raw lines: %w", err)
	}
	if err := store.WriteArtifacts(*outJSON, *outCSV, annotated); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	printSummary(sum)
	return nil
}

func runProcess(ctx context.Context, cfg config.Config, log zerolog.Logger, args []string) error {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	var mf matchFlags
	registerMatchFlags(fs, cfg, &mf)
	dataDir := fs.String("data-dir", cfg.Data.Dir, "data directory for the store and artifacts")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := mf.validate(); err != nil {
		return err
	}

	st, err := store.Open(*dataDir, log)
	if err != nil {
		return err
	}

	arb, closeArb, err := buildArbiter(ctx, cfg, &mf, log)
	if err != nil {
		return err
	}
	if closeArb != nil {
		defer closeArb()
	}

	p := &service.Processor{Store: st, Arbiter: arb, MinScore: mf.minScore, GeminiThreshold: mf.geminiThreshold, Log: log}
	doc, sum, err := p.ProcessInvoice(ctx, mf.xml, mf.codes, progressLogger(log))
	if err != nil {
		return err
	}

	fmt.Printf("registered %s (%d lines, %d matched) as %s\n", doc.Name, doc.LinesCount, doc.MatchedCount, doc.ID)
	printSummary(sum)
	return nil
}

func runDocs(cfg config.Config, log zerolog.Logger, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: facturo docs <list|search|delete> [args]")
	}

	st, err := store.Open(cfg.Data.Dir, log)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		printDocuments(st.Documents())
		return nil
	case "search":
		if len(args) < 2 {
			return fmt.Errorf("usage: facturo docs search <query>")
		}
		results := st.Search(args[1])
		if len(results) == 0 {
			fmt.Println("no documents match")
			if suggestions := st.Suggest(args[1]); len(suggestions) > 0 {
				fmt.Println("did you mean:")
				for _, name := range suggestions {
					fmt.Printf("  %s\n", name)
				}
			}
			return nil
		}
		printDocuments(results)
		return nil
	case "delete":
		if len(args) < 2 {
			return fmt.Errorf("usage: facturo docs delete <name-or-id>")
		}
		doc, err := st.Delete(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("deleted %s (%s)\n", doc.Name, doc.ID)
		return nil
	default:
		return fmt.Errorf("unknown docs subcommand %q", args[0])
	}
}

func runInventory(cfg config.Config, log zerolog.Logger, args []string) error {
	if len(args) < 1 {
		args = []string{"list"}
	}

	st, err := store.Open(cfg.Data.Dir, log)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		entries := st.Inventory()
		if len(entries) == 0 {
			fmt.Println("inventory is empty")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DESCRIPTION\tQUANTITY")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%g\n", e.Description, e.Quantity)
		}
		return w.Flush()
	case "recompute":
		if err := st.Recompute(); err != nil {
			return err
		}
		fmt.Printf("inventory rebuilt: %d materials\n", len(st.Inventory()))
		return nil
	case "export":
		fs := flag.NewFlagSet("inventory export", flag.ExitOnError)
		out := fs.String("out", "inventory.xlsx", "output workbook path")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := st.ExportInventoryXLSX(*out); err != nil {
			return fmt.Errorf("export inventory: %w", err)
		}
		fmt.Printf("inventory exported to %s\n", *out)
		return nil
	default:
		return fmt.Errorf("unknown inventory subcommand %q", args[0])
	}
}

func printDocuments(docs []store.Document) {
	if len(docs) == 0 {
		fmt.Println("no documents")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDATE\tLINES\tMATCHED\tID")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", d.Name, d.Date, d.LinesCount, d.MatchedCount, d.ID)
	}
	_ = w.Flush()
}

func printSummary(sum reconcile.Summary) {
	fmt.Printf("total lines: %d\n", sum.Total)
	if sum.ArbiterCalls > 0 {
		fmt.Printf("gemini calls: %d\n", sum.ArbiterCalls)
	}
	for _, status := range []string{
		reconcile.StatusHighConfidence,
		reconcile.StatusLowConfidenceNoAI,
		arbiter.StatusSelected,
		arbiter.StatusNoMatch,
		arbiter.StatusFallback,
		arbiter.StatusRejectedSelection,
		reconcile.StatusAIErrorFallback,
		reconcile.StatusNoMatchFound,
	} {
		if n := sum.ByStatus[status]; n > 0 {
			fmt.Printf("  %s: %d\n", status, n)
		}
	}
}
