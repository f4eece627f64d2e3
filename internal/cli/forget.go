package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Delete a memory by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)
}

func runForget(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	found, _, err := a.service.DeleteMemory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No memory with id %s\n", args[0])
		return nil
	}

	fmt.Printf("Forgot %s\n", args[0])
	return nil
}
