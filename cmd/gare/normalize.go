package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gareflow/gareflow/internal/gara"
)

var normalizeID string

var normalizeCmd = &cobra.Command{
	Use:   "normalize <file|->",
	Short: "Normalize a tender state JSON file",
	Long: `Read a tender state from a file (or stdin with "-") and print it with
every required section present and well typed. Unknown keys are kept.
Input that is not valid JSON yields the default state.

The tender id comes from --id, or from the file name without extension.`,
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{skipStore: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if args[0] == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		id := normalizeID
		if id == "" && args[0] != "-" {
			id = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		}
		return printJSON(gara.NormalizeJSON(gara.SanitizeTenderID(id), data))
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeID, "id", "", "tender id to stamp on the state")
	rootCmd.AddCommand(normalizeCmd)
}
