package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/inbox"
	"github.com/gareflow/gareflow/internal/tender"
)

var (
	docsPattern    string
	docsCategories []string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "Register and confirm tender documents",
}

func pattern() string {
	if docsPattern != "" {
		return docsPattern
	}
	return cfg.Inbox.Pattern
}

func printUpload(res tender.UploadResult) error {
	if jsonOutput {
		return printJSON(res)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STORED AS\tCATEGORY\tCONFIDENCE")
	for _, d := range res.Documents {
		fmt.Fprintf(w, "%s\t%s\t%.2f\n", d.StoredAs, d.Category, d.Confidence)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Println("Run 'gare documents confirm' after checking the categories.")
	return printResult(res.Result)
}

var documentsAddCmd = &cobra.Command{
	Use:   "add <tender-id> <file>...",
	Short: "Upload files to a tender",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		uploads, err := readUploads(args[1:])
		if err != nil {
			return err
		}
		res, err := svc.UploadDocuments(cmd.Context(), tenantID, args[0], uploads)
		if err != nil {
			return err
		}
		return printUpload(res)
	},
}

var documentsImportCmd = &cobra.Command{
	Use:   "import <tender-id> <dir>",
	Short: "Upload every matching file in a directory",
	Long: `Upload the files under dir matching --pattern (a ** glob, default from
config) in one batch. Hidden files and directories are skipped.

Example:
  gare documents import gara-pulizie ./bando --pattern '**/*.{pdf,docx}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := inbox.Import(cmd.Context(), svc, tenantID, args[0], args[1], pattern())
		if err != nil {
			return err
		}
		return printUpload(res)
	},
}

var documentsWatchCmd = &cobra.Command{
	Use:   "watch <tender-id> <dir>",
	Short: "Upload new and changed files as they appear",
	Long: `Watch dir and upload files matching --pattern as they are created or
changed. Files already present are not uploaded; use 'documents import' for
them. Stop with Ctrl+C.`,
	Args:        cobra.ExactArgs(2),
	Annotations: map[string]string{"long-running": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := inbox.NewWatcher(inbox.WatchConfig{
			TenantID: tenantID,
			TenderID: args[0],
			Dir:      args[1],
			Pattern:  pattern(),
			Debounce: cfg.Inbox.Debounce,
		}, svc, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "Watching %s for %s (Ctrl+C to stop)\n", args[1], pattern())
		for batch := range w.Batches() {
			if batch.Err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), batch.Err)
				continue
			}
			fmt.Printf("%s Uploaded %d file(s)\n", green("✓"), len(batch.Files))
			for _, d := range batch.Result.Documents {
				fmt.Printf("  %s  %s\n", d.StoredAs, d.Category)
			}
		}
		return nil
	},
}

var documentsConfirmCmd = &cobra.Command{
	Use:   "confirm <tender-id>",
	Short: "Confirm document categories and run the initial extraction",
	Long: `Mark every document confirmed, optionally overriding categories, then
extract the tender state from the documents.

Example:
  gare documents confirm gara-pulizie --category 1746178200000_ab12cd34_bando.pdf=bando`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := make(map[string]gara.DocumentCategory, len(docsCategories))
		for _, kv := range docsCategories {
			name, category, ok := strings.Cut(kv, "=")
			if !ok || name == "" {
				return fmt.Errorf("category %q must be stored_as=category: %w", kv, gara.ErrMissingField)
			}
			overrides[name] = gara.DocumentCategory(category)
		}
		res, err := svc.ConfirmDocuments(cmd.Context(), tenantID, args[0], overrides)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var documentsListCmd = &cobra.Command{
	Use:   "list <tender-id>",
	Short: "List registered documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		docs, err := svc.Documents(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			if docs == nil {
				docs = []gara.Document{}
			}
			return printJSON(docs)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "STORED AS\tCATEGORY\tCONFIRMED\tSIZE")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%t\t%d\n", d.StoredAs, d.Category, d.Confirmed, d.Size)
		}
		return w.Flush()
	},
}

func init() {
	documentsImportCmd.Flags().StringVar(&docsPattern, "pattern", "", "file glob relative to dir")
	documentsWatchCmd.Flags().StringVar(&docsPattern, "pattern", "", "file glob relative to dir")
	documentsConfirmCmd.Flags().StringArrayVar(&docsCategories, "category", nil, "override: stored_as=category (repeatable)")
	documentsCmd.AddCommand(documentsAddCmd, documentsImportCmd, documentsWatchCmd,
		documentsConfirmCmd, documentsListCmd)
	rootCmd.AddCommand(documentsCmd)
}
