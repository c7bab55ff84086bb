package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/ai"
	"github.com/gareflow/gareflow/internal/config"
	"github.com/gareflow/gareflow/internal/inbox"
	"github.com/gareflow/gareflow/internal/metrics"
	"github.com/gareflow/gareflow/internal/storage"
	"github.com/gareflow/gareflow/internal/tender"
)

// skipStore marks commands that never touch the database.
const skipStore = "skip-store"

var (
	configPath string
	dbPath     string
	tenantID   string
	jsonOutput bool
	verbose    bool

	cfg    config.Config
	store  storage.Storage
	svc    *tender.Service
	reg    *metrics.Metrics
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gare",
	Short: "Tender preparation assistant",
	Long: `gare keeps one structured state per public tender: registry data,
documents, a requirement checklist, guided Q&A and team assignments.

Text generation is optional. Without ANTHROPIC_API_KEY every operation
runs on its deterministic fallback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if tenantID == "" {
			tenantID = cfg.Tenant
		}
		logger = newLogger(cmd)
		slog.SetDefault(logger)

		if cmd.Annotations[skipStore] == "true" {
			return nil
		}
		return openService(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close database: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default .gare/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: discovered .gare/*.db)")
	rootCmd.PersistentFlags().StringVar(&tenantID, "tenant", "", "tenant id (default from config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("Error:"), err)
		os.Exit(1)
	}
}

// newLogger logs warnings only, except for long-running commands.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Annotations["long-running"] == "true" {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveDBPath picks --db, then config and environment, then an existing
// .gare/*.db, then the default location.
func resolveDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if cfg.DBPath != "" {
		return cfg.DBPath
	}
	if found, err := storage.DiscoverDatabase(); err == nil {
		return found
	}
	return storage.DefaultPath
}

func openService(ctx context.Context) error {
	dbPath = resolveDBPath()
	var err error
	store, err = storage.NewStorage(ctx, &storage.Config{Path: dbPath})
	if err != nil {
		return err
	}

	sanitizer, err := cfg.Sanitizer()
	if err != nil {
		return err
	}
	reg = metrics.New()
	assistant := ai.NewAssistant(newGenerator(),
		ai.WithLogger(logger),
		ai.WithSanitizer(sanitizer),
		ai.WithQuestionLimits(cfg.Limits.GuidedQuestions, cfg.Limits.GuidedCandidates),
		ai.WithMetrics(reg))

	path := dbPath
	svc = tender.NewService(store, assistant,
		tender.WithLogger(logger),
		tender.WithMetrics(reg),
		tender.WithPreviewChars(cfg.Uploads.PreviewChars),
		tender.WithFileStore(tender.NewDirStore(func(tenantID, tenderID string) string {
			return storage.UploadDir(path, tenantID, tenderID)
		})))
	return nil
}

// newGenerator returns nil when generation is disabled or has no key.
func newGenerator() ai.TextGenerator {
	if !cfg.AI.Enabled {
		return nil
	}
	genCfg := cfg.GeneratorConfig()
	genCfg.Logger = logger
	gen, err := ai.NewAnthropicGenerator(genCfg)
	if err != nil {
		if !errors.Is(err, ai.ErrNotConfigured) {
			logger.Warn("text generation disabled", "error", err)
		}
		return nil
	}
	return gen
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints the reply of an operation, or the whole result as JSON.
func printResult(res tender.Result) error {
	if jsonOutput {
		return printJSON(res)
	}
	green := color.New(color.FgGreen).SprintFunc()
	if res.Reply != "" {
		fmt.Printf("%s %s\n", green("✓"), res.Reply)
	}
	printDegraded(res.Degraded, res.Note)
	return nil
}

func printDegraded(degraded bool, note string) {
	if !degraded || jsonOutput {
		return
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(os.Stderr, "%s %s\n", yellow("Note:"), note)
}

// readUploads loads files from disk as uploads.
func readUploads(paths []string) ([]tender.Upload, error) {
	uploads := make([]tender.Upload, 0, len(paths))
	for _, p := range paths {
		up, err := inbox.ReadUpload(p)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}
