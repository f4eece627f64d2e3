package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engramlab/engram/pkg/memory"
)

var rememberFlags struct {
	category    string
	subcategory string
	name        string
	text        string
	tags        []string
	urls        []string
}

var rememberCmd = &cobra.Command{
	Use:   "remember",
	Short: "Store a memory from flags",
	RunE:  runRemember,
}

func init() {
	rememberCmd.Flags().StringVar(&rememberFlags.category, "category", "", "memory category")
	rememberCmd.Flags().StringVar(&rememberFlags.subcategory, "subcategory", "", "memory subcategory")
	rememberCmd.Flags().StringVar(&rememberFlags.name, "name", "", "short memory name")
	rememberCmd.Flags().StringVar(&rememberFlags.text, "text", "", "memory content")
	rememberCmd.Flags().StringSliceVar(&rememberFlags.tags, "tag", nil, "tag, repeatable")
	rememberCmd.Flags().StringSliceVar(&rememberFlags.urls, "url", nil, "related URL, repeatable")
	rememberCmd.MarkFlagRequired("category")
	rememberCmd.MarkFlagRequired("subcategory")
	rememberCmd.MarkFlagRequired("name")
	rememberCmd.MarkFlagRequired("text")
	rootCmd.AddCommand(rememberCmd)
}

func runRemember(cmd *cobra.Command, args []string) error {
	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	m, result, err := a.service.CreateMemory(cmd.Context(), memory.Draft{
		Category:    rememberFlags.category,
		Subcategory: rememberFlags.subcategory,
		Name:        rememberFlags.name,
		Text:        rememberFlags.text,
		Tags:        rememberFlags.tags,
		URLs:        rememberFlags.urls,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Stored %s\n  id:   %s\n  file: %s\n", m.Name, m.ID, result.Path)
	return nil
}
