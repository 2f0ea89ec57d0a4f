package cmd

import (
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	flagClearAll bool
	flagClearYes bool
)

func init() {
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard export and match state, snapshots and results",
		RunE:  runClear,
	}

	clearCmd.Flags().BoolVar(&flagClearAll, "all", false, "also drop the stored catalog session")
	clearCmd.Flags().BoolVar(&flagClearYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, _ []string) error {
	cfg, _, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	if !flagClearYes {
		confirm := promptui.Prompt{
			Label:     "Discard all saved export and match data",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			return fmt.Errorf("aborted")
		}
	}

	keys := []string{
		store.KeyExportState,
		store.KeyExportPartial,
		store.KeyExportPayload,
		store.KeyMatchState,
		store.KeyMatchResults,
		store.KeyFollowState,
	}
	if flagClearAll {
		keys = append(keys, store.KeyAuthToken)
	}

	if err := st.Delete(keys...); err != nil {
		return err
	}

	fmt.Println("Cleared.")
	return nil
}
