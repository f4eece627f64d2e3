package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/engramlab/engram/internal/config"
	"github.com/engramlab/engram/pkg/memory"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the memory directory tree and a default config",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	layout, err := memory.NewLayout(cfg.MemoriesDir)
	if err != nil {
		return err
	}
	if err := layout.EnsureDirectories(); err != nil {
		return err
	}

	configPath := loader.GetConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := loader.Save(cfg); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
	}

	fmt.Printf("Memory tree ready at %s\n", cfg.MemoriesDir)
	return nil
}
