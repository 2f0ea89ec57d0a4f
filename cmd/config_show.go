package cmd

import (
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"

	"github.com/spf13/cobra"
)

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged active configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := mergedConfig(config.Options{})
		if err != nil {
			return err
		}

		fmt.Println("Full config:")
		cfg.Print()
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
}
