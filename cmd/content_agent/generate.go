package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/content-guard/internal/generation"
	"github.com/jonathan/content-guard/internal/observability"
	"github.com/jonathan/content-guard/internal/rendering"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate content and regenerate until it passes the plagiarism check",
	Long: `Asks the language model for content on --topic, scores every sentence against web
search results and retries with a pause between attempts until the score is at or
below the threshold. Accepted content is saved when a database is configured.`,
	RunE: runGenerate,
}

var (
	genTopic  string
	genType   string
	genLength int
	genNoSave bool
	genJSON   bool
	genHTML   string
)

func init() {
	generateCmd.Flags().StringVar(&genTopic, "topic", "", "Topic to write about (required)")
	generateCmd.Flags().StringVar(&genType, "type", string(generation.BlogPost), "Content type: BlogPost, SocialMedia, BlogArticle or ProductDescription")
	generateCmd.Flags().IntVar(&genLength, "length", generation.MinTargetLength, "Target length in words (100-20000)")
	generateCmd.Flags().BoolVar(&genNoSave, "no-save", false, "Do not save accepted content to the database")
	generateCmd.Flags().BoolVar(&genJSON, "json", false, "Print the result as JSON instead of formatted text")
	generateCmd.Flags().StringVar(&genHTML, "html", "", "Also write accepted content as an HTML page to this file")
	rootCmd.AddCommand(generateCmd)
}

// parseGenerateRequest validates the request flags before anything is dialed.
func parseGenerateRequest() (generation.Request, error) {
	contentType, err := generation.ParseContentType(genType)
	if err != nil {
		return generation.Request{}, err
	}
	req := generation.Request{Topic: genTopic, ContentType: contentType, TargetLength: genLength}
	if err := req.Validate(); err != nil {
		return generation.Request{}, err
	}
	return req, nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	req, err := parseGenerateRequest()
	if err != nil {
		return err
	}

	cfg, err := resolveConfig(cmd, os.Getenv)
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)
	ctx := cmd.Context()

	p, err := buildPipeline(ctx, cfg, logger, nil, !genNoSave)
	if err != nil {
		return err
	}
	defer p.Close()

	out := cmd.OutOrStdout()
	printer := observability.NewPrinter(out)
	controller := p.controller
	if !genJSON {
		printer.PrintRunStart(req, controller.MaxAttempts(), controller.AcceptanceThreshold())
		controller = controller.WithProgress(printer.PrintProgress)
	}

	result, runErr := controller.Run(ctx, req)
	if result == nil {
		return runErr
	}

	if genJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printer.PrintResult(result)
	}

	if genHTML != "" && result.Accepted != nil {
		if err := writeHTML(genHTML, req.Topic, result.Accepted.Content); err != nil {
			return err
		}
	}

	return runErr
}

// writeHTML renders accepted content to a standalone HTML file.
func writeHTML(path, title, content string) error {
	fragment, err := rendering.MarkdownToHTML(content)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(rendering.HTMLDocument(title, fragment)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
