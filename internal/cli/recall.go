package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>...",
	Short: "Recall memories relevant to one or more queries",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

func init() {
	rootCmd.AddCommand(recallCmd)
}

func runRecall(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	recalled, err := a.service.Recall(cmd.Context(), args)
	if err != nil {
		return err
	}

	fmt.Println(recalled)
	return nil
}
