package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a memory by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.service.GetMemory(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("no memory with id %s", args[0])
	}

	fmt.Printf("%s / %s / %s\n", m.Category, m.Subcategory, m.Name)
	fmt.Printf("id:      %s\n", m.ID)
	fmt.Printf("created: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("updated: %s\n", m.UpdatedAt.Format("2006-01-02 15:04:05"))
	if len(m.Metadata.Tags) > 0 {
		fmt.Printf("tags:    %s\n", strings.Join(m.Metadata.Tags, ", "))
	}
	if len(m.Metadata.URLs) > 0 {
		fmt.Printf("urls:    %s\n", strings.Join(m.Metadata.URLs, ", "))
	}
	fmt.Printf("\n%s\n", m.Content.Text)
	return nil
}
