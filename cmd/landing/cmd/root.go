package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/psantana5/landing/internal/config"
	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile      string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "landing",
	Short: "EFFETA landing page server",
	Long: `landing assembles the EFFETA landing page from its HTML fragments, serves it
with the contact and newsletter forms, and offers tools to render, check and
inspect the page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch outputFormat {
		case report.FormatTable, report.FormatJSON, report.FormatYAML:
			return nil
		default:
			return fmt.Errorf("unknown output format %q (table, json or yaml)", outputFormat)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.landing/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", report.FormatTable, "output format: table, json or yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override: debug, info, warn, error")
	rootCmd.Version = Version
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".landing"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("LANDING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("database.dsn", "LANDING_DATABASE_DSN", "DATABASE_DSN")
}

// loadConfig reads the config file, if any, and decodes the configuration
func loadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg. Commands whose stdout is
// data pass os.Stderr; the file logger also writes to stdout, so they never
// get one.
func newLogger(cfg *config.Config, out io.Writer) (*logging.Logger, error) {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.File && out == os.Stdout {
		return logging.NewFileLogger("landing", level, cfg.Logging.JSON)
	}
	logger := logging.NewLogger(level, cfg.Logging.JSON)
	logger.SetOutput(out)
	return logger, nil
}
