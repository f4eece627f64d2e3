package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/engramlab/engram/pkg/assistant"
)

var learnCmd = &cobra.Command{
	Use:   "learn <message>",
	Short: "Run the learning loop over a message",
	Long: `Run the full learning loop over a message: extract search queries,
recall matching memories, decide what the message adds or changes, and
apply the result. Prints the recalled memories and the modification
report.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	msg := strings.Join(args, " ")
	result, err := a.learner.Run(cmd.Context(), []assistant.Message{
		{Role: assistant.RoleUser, Content: msg},
	})
	if err != nil {
		return err
	}

	fmt.Println(result.Recalled)
	fmt.Println()
	fmt.Println(result.Modifications)
	return nil
}
