package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Reconcile the index and vectors against the markdown files",
	RunE:  runReindex,
}

func init() {
	rootCmd.AddCommand(reindexCmd)
}

func runReindex(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.Reconcile(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Reconciled: %d added, %d updated, %d removed\n",
		len(report.Added), len(report.Updated), len(report.Removed))
	return nil
}
