package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchSimilar bool

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search memories by name and content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchSimilar, "similar", false, "use semantic similarity instead of substring match")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	query := strings.Join(args, " ")

	if searchSimilar {
		scored, err := a.service.SearchSimilar(cmd.Context(), query, a.cfg.Learner.RecallLimit)
		if err != nil {
			return err
		}
		if len(scored) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, s := range scored {
			fmt.Printf("%.3f  %s  %s/%s  %s\n", s.Similarity, s.Memory.ID, s.Memory.Category, s.Memory.Subcategory, s.Memory.Name)
		}
		return nil
	}

	matches, err := a.service.SearchMemories(cmd.Context(), query)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for _, m := range matches {
		fmt.Printf("%s  %s/%s  %s\n", m.ID, m.Category, m.Subcategory, m.Name)
	}
	return nil
}
