package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
)

var matchCmd = &cobra.Command{
	Use:   "match <tender-id>",
	Short: "Match the checklist against the company profile",
	Long: `Compare every checklist item with the company profile and record the
outcome on each item. Without text generation nothing can be matched and
the checklist is left unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.Match(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, m := range res.Results {
			status := string(m.Status)
			switch m.Status {
			case gara.MatchCovered:
				status = green(status)
			case gara.MatchPartial:
				status = yellow(status)
			default:
				status = red(status)
			}
			fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\n", m.ItemIndex, status, m.Confidence, m.Requirement)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		s := res.Summary
		fmt.Printf("\n%d covered, %d partial, %d uncovered of %d\n", s.Covered, s.Partial, s.Uncovered, s.Total)
		if res.Message != "" {
			fmt.Println(res.Message)
		}
		printDegraded(res.Degraded, res.Note)
		return nil
	},
}

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage team roles and CVs",
}

var teamAssignCmd = &cobra.Command{
	Use:   "assign <tender-id> <role> [cv-name]",
	Short: "Assign a CV to a team role",
	Long:  `Assign a CV to a role. An omitted CV name clears the assignment.`,
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cv := ""
		if len(args) == 3 {
			cv = args[2]
		}
		res, err := svc.AssignCV(cmd.Context(), tenantID, args[0], args[1], cv)
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Show or replace the company profile",
}

var companySetCmd = &cobra.Command{
	Use:   "set <profile.json|->",
	Short: "Replace the company profile used by autofill and match",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var profile map[string]any
		in := cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to read profile: %w", err)
			}
			defer f.Close()
			in = f
		}
		if err := json.NewDecoder(in).Decode(&profile); err != nil {
			return fmt.Errorf("profile must be a JSON object: %w", err)
		}
		saved, err := svc.SaveCompanyProfile(cmd.Context(), tenantID, profile)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(saved)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Company profile saved for tenant %s\n", green("✓"), tenantID)
		return nil
	},
}

var companyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the company profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := svc.CompanyProfile(cmd.Context(), tenantID)
		if err != nil {
			return err
		}
		return printJSON(profile)
	},
}

func init() {
	teamCmd.AddCommand(teamAssignCmd)
	companyCmd.AddCommand(companySetCmd, companyShowCmd)
	rootCmd.AddCommand(matchCmd, teamCmd, companyCmd)
}
