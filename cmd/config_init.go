package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"

	"github.com/spf13/cobra"
)

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the Default config and make it active",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.InitDefaultConfig()
		if errors.Is(err, os.ErrExist) {
			fmt.Printf("Default config already exists: %s\n", path)
			return nil
		}
		if err != nil {
			return err
		}

		fmt.Printf("Created default config: %s\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
