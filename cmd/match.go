package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/matcher"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/ui"

	"github.com/spf13/cobra"
)

var (
	flagMatchThreshold float64
	flagMatchDelayMs   int
	flagMatchFresh     bool
)

func init() {
	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Fuzzy-match exported titles against the catalog",
		RunE:  runMatch,
	}

	matchCmd.Flags().Float64Var(&flagMatchThreshold, "threshold", 0, "minimum similarity score to count as matched")
	matchCmd.Flags().IntVar(&flagMatchDelayMs, "match-delay-ms", 0, "delay between search requests")
	matchCmd.Flags().BoolVar(&flagMatchFresh, "fresh", false, "discard previous match results and start over")

	rootCmd.AddCommand(matchCmd)
}

func runMatch(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{
		MatchThreshold: flagMatchThreshold,
		MatchDelayMs:   flagMatchDelayMs,
	})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	catalog, err := catalogClient(cfg, st, logSvc)
	if err != nil {
		return err
	}

	if flagMatchFresh {
		if err := st.Delete(store.KeyMatchState, store.KeyMatchResults); err != nil {
			return err
		}
	}

	pm := ui.NewProgressManager()
	handle := pm.Register("Matching", "titles")

	driver := matcher.NewDriver(st, catalog, logSvc, matcher.Options{
		Threshold: cfg.MatchThreshold,
		ItemDelay: time.Duration(cfg.MatchDelayMs) * time.Millisecond,
		OnProgress: func(s follows.MatchState) {
			handle.Update(s.Index, s.Total, int64(s.Matched))
		},
	})

	tok := exporter.NewToken()
	cancelOnInterrupt(tok)

	err = driver.Run(context.Background(), tok)

	state := driver.State()
	if state.Status == follows.StatusDone {
		handle.MarkDone()
	} else {
		handle.Abandon()
	}
	pm.Close()
	fmt.Println()

	if errors.Is(err, matcher.ErrNoExport) {
		return fmt.Errorf("no completed export found; run `mpfix export` first")
	}
	if err != nil {
		return err
	}

	switch state.Status {
	case follows.StatusDone:
		fmt.Println("Match Summary:")
		fmt.Printf("Titles:  %d\n", state.Total)
		fmt.Printf("Matched: %d (score >= %.2f)\n", state.Matched, cfg.MatchThreshold)
		fmt.Println("\nRun `mpfix migrate` to review the matches.")
		return nil

	case follows.StatusPaused:
		fmt.Printf("Matching paused at title %d/%d", state.Index, state.Total)
		if state.Error != "" {
			fmt.Printf(" (%s)", state.Error)
		}
		fmt.Println("\nRun `mpfix match` again to continue; processed titles are kept.")
		return nil

	default:
		return fmt.Errorf("matching stopped: %s", state.Error)
	}
}
