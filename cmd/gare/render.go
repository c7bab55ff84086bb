package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
)

var (
	renderTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	renderLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	renderNoteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0")).Italic(true)
	renderBoxStyle   = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("#5B8DEF")).
				Padding(0, 1).
				MarginBottom(1)
)

const renderValueWidth = 96

var renderCmd = &cobra.Command{
	Use:   "render <tender-id>",
	Short: "Display a tender section by section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _, outcome, err := svc.Render(cmd.Context(), tenantID, args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(model)
		}
		for _, section := range model.Sections {
			fmt.Println(renderSection(section))
		}
		printDegraded(outcome.Degraded, outcome.Note)
		return nil
	},
}

func renderSection(section gara.RenderSection) string {
	var b strings.Builder
	b.WriteString(renderTitleStyle.Render(section.Title))
	for _, item := range section.Items {
		b.WriteString("\n")
		b.WriteString(renderLabelStyle.Render(item.Label + ":"))
		b.WriteString(" ")
		b.WriteString(formatValue(item.Value))
	}
	for _, note := range section.Notes {
		b.WriteString("\n")
		b.WriteString(renderNoteStyle.Render(note))
	}
	return renderBoxStyle.Render(b.String())
}

// formatValue prints scalars as is and anything else as compact JSON,
// truncated to one line.
func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case nil:
		s = "-"
	case string:
		s = val
	case bool, float64, int, int64:
		s = fmt.Sprint(val)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			s = fmt.Sprint(val)
		} else {
			s = string(data)
		}
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return "-"
	}
	if r := []rune(s); len(r) > renderValueWidth {
		s = string(r[:renderValueWidth-1]) + "…"
	}
	return s
}

func init() {
	rootCmd.AddCommand(renderCmd)
}
