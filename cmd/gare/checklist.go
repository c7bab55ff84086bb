package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
)

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Edit the requirement checklist of a tender",
	Long: `Edit checklist items by their zero-based index, as shown by
'gare render' or 'gare tender show'.`,
}

// itemFlags registers the item field flags shared by add and update.
func itemFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("requirement", "", "requirement text")
	f.String("source", "", "where the requirement comes from")
	f.String("kind", "", "requirement kind (e.g. mandatory)")
	f.String("owner", "", "proposed owner")
	f.String("status", "", "coverage status: not_covered, to_approve, approved, partial")
	f.String("evidence", "", "proposed evidence")
	f.String("progress", "", "progress: todo, wip, done")
	f.String("coverage", "", "coverage outcome")
	f.StringSlice("gap", nil, "information gap (repeatable)")
}

// patchFromFlags sets only the fields whose flags were given.
func patchFromFlags(cmd *cobra.Command) gara.ItemPatch {
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}
	patch := gara.ItemPatch{
		Requirement: str("requirement"),
		Source:      str("source"),
		Kind:        str("kind"),
		Owner:       str("owner"),
		Status:      str("status"),
		Evidence:    str("evidence"),
		Progress:    str("progress"),
		Coverage:    str("coverage"),
	}
	if f.Changed("gap") {
		patch.Gaps, _ = f.GetStringSlice("gap")
	}
	return patch
}

func parseIndex(raw string) (int, error) {
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("index %q: %w", raw, gara.ErrInvalidIndex)
	}
	return index, nil
}

var checklistAddCmd = &cobra.Command{
	Use:   "add <tender-id>",
	Short: "Append a checklist item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.AddItem(cmd.Context(), tenantID, args[0], patchFromFlags(cmd))
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var checklistUpdateCmd = &cobra.Command{
	Use:   "update <tender-id> <index>",
	Short: "Change fields of a checklist item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		res, err := svc.UpdateItem(cmd.Context(), tenantID, args[0], index, patchFromFlags(cmd))
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var checklistDeleteCmd = &cobra.Command{
	Use:   "delete <tender-id> <index>",
	Short: "Remove a checklist item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		res, err := svc.DeleteItem(cmd.Context(), tenantID, args[0], index)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var checklistProgressCmd = &cobra.Command{
	Use:   "progress <tender-id> <index> <todo|wip|done>",
	Short: "Set the progress of a checklist item",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		res, err := svc.SetProgress(cmd.Context(), tenantID, args[0], index, args[2])
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var checklistAttachCmd = &cobra.Command{
	Use:   "attach <tender-id> <index> <file>...",
	Short: "Attach evidence files to a checklist item",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		uploads, err := readUploads(args[2:])
		if err != nil {
			return err
		}
		res, err := svc.Attach(cmd.Context(), tenantID, args[0], index, uploads)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		for _, name := range res.Files {
			fmt.Printf("  %s\n", name)
		}
		return printResult(res.Result)
	},
}

func init() {
	itemFlags(checklistAddCmd)
	itemFlags(checklistUpdateCmd)
	checklistCmd.AddCommand(checklistAddCmd, checklistUpdateCmd, checklistDeleteCmd,
		checklistProgressCmd, checklistAttachCmd)
	rootCmd.AddCommand(checklistCmd)
}
