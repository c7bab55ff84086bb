package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
	"github.com/gareflow/gareflow/internal/repl"
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Guided Q&A for uncovered requirements",
}

var qaGenerateCmd = &cobra.Command{
	Use:   "generate <tender-id>",
	Short: "Propose questions for uncovered checklist items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := svc.GenerateQuestions(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Println(res.Reply)
		cyan := color.New(color.FgCyan).SprintFunc()
		for _, q := range res.Questions {
			fmt.Printf("\n%s %s\n", cyan(fmt.Sprintf("[item %d]", q.ItemIndex)), q.Requirement)
			fmt.Printf("  %s\n", q.Question)
			if q.Suggestion != "" {
				fmt.Printf("  Hint: %s\n", q.Suggestion)
			}
		}
		printDegraded(res.Degraded, res.Note)
		return nil
	},
}

var qaAnswerCmd = &cobra.Command{
	Use:   "answer <tender-id> <index> <answer>...",
	Short: "Record an answer for a checklist item",
	Long: `Record a manual answer as evidence for the checklist item at index.
The item moves to to_approve and the answer is added to the Q&A section.`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		current, err := svc.Get(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		items := gara.ChecklistItems(current.State)
		if index < 0 || index >= len(items) {
			return fmt.Errorf("answer item %d: %w", index, gara.ErrNotFound)
		}

		q := gara.GuidedQuestion{
			ID:          fmt.Sprintf("qa_manual_%d", index),
			ItemIndex:   index,
			Requirement: items[index].Requirement,
			Owner:       items[index].Owner,
		}
		res, err := svc.Answer(cmd.Context(), tenantID, args[0], q, strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var qaAutofillCmd = &cobra.Command{
	Use:   "autofill <tender-id> <index>",
	Short: "Draft an answer from the company profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		res, err := svc.Autofill(cmd.Context(), tenantID, args[0], index)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(res)
		}
		fmt.Printf("%s\n\n", res.Answer.Answer)
		if len(res.Answer.Gaps) > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %s\n", yellow("Missing:"), strings.Join(res.Answer.Gaps, "; "))
		}
		return printResult(res.Result)
	},
}

var qaInteractiveCmd = &cobra.Command{
	Use:   "interactive <tender-id>",
	Short: "Walk the guided questions one by one",
	Long: `Ask each guided question in turn. Type an answer, or:
  auto  draft an answer from the company profile
  skip  leave the question for later
  quit  stop (Ctrl+D works too)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := repl.New(&repl.Config{
			Service:  svc,
			TenantID: tenantID,
			TenderID: args[0],
		})
		if err != nil {
			return fmt.Errorf("failed to create REPL: %w", err)
		}
		_, err = r.Run(cmd.Context())
		return err
	},
}

func init() {
	qaCmd.AddCommand(qaGenerateCmd, qaAnswerCmd, qaAutofillCmd, qaInteractiveCmd)
	rootCmd.AddCommand(qaCmd)
}
