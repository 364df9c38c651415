package cmd

import (
	"fmt"
	"os"

	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/internal/site"
	"github.com/psantana5/landing/pkg/fragments"
	"github.com/psantana5/landing/pkg/loader"
	"github.com/spf13/cobra"
)

var checkStrict bool

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Inspect the page fragments",
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := fragments.Default()
		if cfg.Page.Registry != "" {
			if reg, err = fragments.Load(cfg.Page.Registry); err != nil {
				return err
			}
		}
		return report.WriteRegistry(os.Stdout, outputFormat, reg)
	},
}

var modulesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Load every module and report how each one mounted",
	Long: `Runs a full page load against the configured source and prints one row
per module. With --strict the command fails when any module did not mount
its fetched content.`,
	RunE: runModulesCheck,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
	modulesCmd.AddCommand(modulesListCmd)
	modulesCmd.AddCommand(modulesCheckCmd)

	modulesCheckCmd.Flags().BoolVar(&checkStrict, "strict", false, "fail when any module is degraded")
}

func runModulesCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	// The check only cares about mounting.
	cfg.Page.SettleDelay = 0

	logger, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Close()

	orch, err := site.Build(cfg, site.Options{Logger: logger})
	if err != nil {
		return err
	}
	rep, loadErr := orch.Load(cmd.Context())
	if err := report.WriteLoadReport(os.Stdout, outputFormat, rep); err != nil {
		return err
	}
	if loadErr != nil {
		return loadErr
	}
	if degraded := len(rep.Results) - rep.Count(loader.OutcomeMounted); checkStrict && degraded > 0 {
		return fmt.Errorf("%d of %d modules degraded", degraded, len(rep.Results))
	}
	return nil
}
