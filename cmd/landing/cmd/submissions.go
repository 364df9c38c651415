package cmd

import (
	"fmt"
	"os"

	"github.com/psantana5/landing/internal/report"
	"github.com/psantana5/landing/pkg/models"
	"github.com/psantana5/landing/pkg/store"
	"github.com/spf13/cobra"
)

var (
	submissionsKind  string
	submissionsLimit int
)

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Inspect stored form submissions",
}

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored submissions, newest first",
	RunE:  runSubmissionsList,
}

func init() {
	rootCmd.AddCommand(submissionsCmd)
	submissionsCmd.AddCommand(submissionsListCmd)

	submissionsListCmd.Flags().StringVar(&submissionsKind, "kind", "", "contact or newsletter (default all)")
	submissionsListCmd.Flags().IntVar(&submissionsLimit, "limit", 50, "maximum rows, 0 for all")
}

func runSubmissionsList(cmd *cobra.Command, args []string) error {
	kind := models.SubmissionKind(submissionsKind)
	if kind != "" && !kind.IsValid() {
		return fmt.Errorf("unknown kind %q (contact or newsletter)", submissionsKind)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := store.NewStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	subs, err := st.ListSubmissions(kind, submissionsLimit)
	if err != nil {
		return err
	}
	return report.WriteSubmissions(os.Stdout, outputFormat, subs)
}
