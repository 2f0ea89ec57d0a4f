package cmd

import (
	"fmt"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/matcher"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var flagMigrateRestart bool

func init() {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Review matches one by one: accept, override, skip or remove",
		RunE:  runMigrate,
	}

	migrateCmd.Flags().BoolVar(&flagMigrateRestart, "restart", false, "review from the first title instead of the saved cursor")

	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, _, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	results := matcher.LoadResults(st)
	if len(results) == 0 {
		return fmt.Errorf("no match results found; run `mpfix match` first")
	}

	var payload follows.ExportPayload
	if ok, err := st.Get(store.KeyExportPayload, &payload); err != nil || !ok {
		return fmt.Errorf("no export payload found; run `mpfix export` first")
	}

	mstate := matcher.LoadState(st)
	start := mstate.OpenIndex
	if flagMigrateRestart || start >= len(results) {
		start = 0
	}

	reviewed, quit := 0, false

	for i := start; i < len(results) && !quit; i++ {
		r := &results[i]
		if !r.Processed || r.Removed || r.Accepted {
			continue
		}

		fmt.Printf("\n[%d/%d] %s\n        %s\n", i+1, len(results), r.SourceTitle, r.SourceURL)

		items := []string{}
		for _, c := range r.Candidates {
			items = append(items, fmt.Sprintf("%s  (%.2f)", c.Title, c.Score))
		}
		items = append(items, "Skip", "Remove from export", "Quit")

		prompt := promptui.Select{
			Label: "Pick the matching title",
			Items: items,
			Size:  len(items),
		}

		idx, _, err := prompt.Run()
		if err != nil {
			quit = true
			break
		}

		switch {
		case idx < len(r.Candidates):
			c := r.Candidates[idx]
			r.Accepted = true
			r.BestCandidate = &follows.MatchCandidate{ID: c.ID, Title: c.Title, Score: c.Score}
			r.Score = c.Score
			reviewed++

		case idx == len(r.Candidates): // skip
			reviewed++

		case idx == len(r.Candidates)+1: // remove
			r.Removed = true
			reviewed++

		default:
			quit = true
		}

		mstate.OpenIndex = i + 1
	}

	// compact removed items out of both arrays so they stay index-aligned
	newItems := payload.Items[:0:0]
	newResults := results[:0:0]
	for i, r := range results {
		if r.Removed {
			continue
		}
		newResults = append(newResults, r)
		if i < len(payload.Items) {
			newItems = append(newItems, payload.Items[i])
		}
	}

	removed := len(results) - len(newResults)
	payload.Items = newItems
	payload.Meta.TotalItems = len(newItems)
	if mstate.OpenIndex > len(newResults) {
		mstate.OpenIndex = len(newResults)
	}
	mstate.Total = len(newResults)
	mstate.UpdatedAt = follows.Timestamp(time.Now())

	if err := st.Set(store.KeyMatchResults, newResults); err != nil {
		return err
	}
	if err := st.Set(store.KeyExportPayload, &payload); err != nil {
		return err
	}
	if err := st.Set(store.KeyMatchState, &mstate); err != nil {
		return err
	}

	fmt.Printf("\nReviewed %d titles (%d removed).\n", reviewed, removed)
	if quit {
		fmt.Println("Cursor saved; `mpfix migrate` continues where you left off.")
	} else {
		fmt.Println("Review complete. Run `mpfix follow` to follow the accepted titles.")
	}

	return nil
}
