package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
)

var tenderCmd = &cobra.Command{
	Use:   "tender",
	Short: "Create, list and show tenders",
}

var tenderCreateCmd = &cobra.Command{
	Use:   "create [tender-id]",
	Short: "Create a tender with a starter checklist",
	Long: `Create a tender. The id is sanitized to lowercase letters, digits and
dashes. Without an id a time-based one is generated.

Example:
  gare tender create "Gara Pulizie 2025"   # creates gara-pulizie-2025`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		if len(args) > 0 {
			id = args[0]
		}
		res, err := svc.Create(cmd.Context(), tenantID, id)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created tender %s\n", green("✓"), res.TenderID)
		fmt.Printf("  Database: %s\n", dbPath)
		return nil
	},
}

var tenderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tenders, most recently updated first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenders, err := svc.List(cmd.Context(), tenantID)
		if err != nil {
			return err
		}
		if jsonOutput {
			if tenders == nil {
				tenders = []gara.TenderSummary{}
			}
			return printJSON(tenders)
		}
		if len(tenders) == 0 {
			gray := color.New(color.FgHiBlack).SprintFunc()
			fmt.Println(gray("No tenders yet. Run 'gare tender create' to start one."))
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tDONE\tUPDATED")
		for _, t := range tenders {
			fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\n", t.ID, t.Status, t.Completed, t.TotalItems, t.LastUpdated)
		}
		return w.Flush()
	},
}

var tenderShowCmd = &cobra.Command{
	Use:   "show <tender-id>",
	Short: "Print the full tender state as JSON",
	Long: `Print the normalized state of a tender. A tender that does not exist
yet is created on first read.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.Get(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		return printJSON(res.State)
	},
}

var tenderChatCmd = &cobra.Command{
	Use:   "chat <tender-id> <message>",
	Short: "Apply a free-text instruction to a tender",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.Chat(cmd.Context(), tenantID, args[0], args[1])
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

func init() {
	tenderCmd.AddCommand(tenderCreateCmd, tenderListCmd, tenderShowCmd, tenderChatCmd)
	rootCmd.AddCommand(tenderCmd)
}
