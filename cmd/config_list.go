package cmd

import (
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"

	"github.com/spf13/cobra"
)

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configuration profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := config.ListConfigs()
		if err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No configs found. Run `mpfix config init` first.")
			return nil
		}

		for _, c := range list {
			marker := " "
			if c.Active {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, c.Label)
		}

		return nil
	},
}

func init() {
	configCmd.AddCommand(configListCmd)
}
