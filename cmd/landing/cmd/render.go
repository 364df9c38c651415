package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/internal/site"
	"github.com/spf13/cobra"
)

var (
	renderFormat string
	renderOut    string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Assemble the page once and write it out",
	Long: `Runs a full page load, including the initializers, and writes the
assembled page as HTML or as markdown. Logs go to stderr.`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVar(&renderFormat, "format", "html", "page format: html or markdown")
	renderCmd.Flags().StringVar(&renderOut, "out", "", "write to this file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	if renderFormat != "html" && renderFormat != "markdown" {
		return fmt.Errorf("unknown page format %q (html or markdown)", renderFormat)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	orch, err := site.Build(cfg, site.Options{Logger: logger})
	if err != nil {
		return err
	}
	rep, err := orch.Load(cmd.Context())
	report.LogSummary(logger, rep)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if renderOut != "" {
		f, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if renderFormat == "markdown" {
		out, err := report.NewMarkdownConverter().Convert(orch.Document().String())
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
	return orch.Document().Render(w)
}
