package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-guard/internal/observability"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Score existing text for copied sentences",
	Long: `Splits the text into sentences, searches the web for each one and reports the
percentage that closely match a search snippet. Reads stdin when no file or "-" is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var checkJSON bool

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the report as JSON")
	rootCmd.AddCommand(checkCmd)
}

// readInput reads the named file, or stdin for "" and "-".
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	text, err := readInput(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	checker, err := newChecker(ctx, cfg, cliLogger(cfg), nil)
	if err != nil {
		return err
	}

	if !checkJSON {
		observability.NewPrinter(cmd.OutOrStdout()).PrintCheckStart(checker.Threshold())
	}
	report, err := checker.Check(ctx, text)
	if err != nil {
		return err
	}

	if checkJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintReport(report)
	return nil
}
