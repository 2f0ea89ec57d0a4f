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
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/ui"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	flagFollowThreshold float64
	flagFollowDelayMs   int
	flagFollowYes       bool
)

func init() {
	followCmd := &cobra.Command{
		Use:   "follow",
		Short: "Follow accepted and over-threshold matches on the catalog",
		RunE:  runFollow,
	}

	followCmd.Flags().Float64Var(&flagFollowThreshold, "threshold", 0, "minimum score to auto-follow unreviewed matches")
	followCmd.Flags().IntVar(&flagFollowDelayMs, "follow-delay-ms", 0, "delay between follow requests")
	followCmd.Flags().BoolVar(&flagFollowYes, "yes", false, "skip the confirmation prompt")

	rootCmd.AddCommand(followCmd)
}

func runFollow(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{
		FollowThreshold: flagFollowThreshold,
		FollowDelayMs:   flagFollowDelayMs,
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

	if !catalog.Status() {
		return fmt.Errorf("not logged in to the catalog; run `mpfix login` first")
	}

	results := matcher.LoadResults(st)
	pending := 0
	for _, r := range results {
		if r.Processed && !r.Removed && !r.Followed && r.BestCandidate != nil &&
			(r.Accepted || r.Score >= cfg.FollowThreshold) {
			pending++
		}
	}
	if pending == 0 {
		fmt.Println("Nothing to follow.")
		return nil
	}

	if !flagFollowYes {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Follow %d titles on the catalog", pending),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			return fmt.Errorf("aborted")
		}
	}

	pm := ui.NewProgressManager()
	handle := pm.Register("Following", "titles")

	follower := matcher.NewFollower(st, catalog, logSvc, matcher.FollowerOptions{
		Threshold: cfg.FollowThreshold,
		ItemDelay: time.Duration(cfg.FollowDelayMs) * time.Millisecond,
		OnProgress: func(s follows.FollowState) {
			handle.Update(s.Index, s.Total, int64(s.Followed))
		},
	})

	tok := exporter.NewToken()
	cancelOnInterrupt(tok)

	err = follower.Run(context.Background(), tok)

	fstate := matcher.LoadFollowState(st)
	if fstate.Status == follows.StatusDone {
		handle.MarkDone()
	} else {
		handle.Abandon()
	}
	pm.Close()
	fmt.Println()

	if errors.Is(err, matcher.ErrNoMatches) {
		return fmt.Errorf("no match results found; run `mpfix match` first")
	}
	if err != nil {
		return err
	}

	switch fstate.Status {
	case follows.StatusDone:
		fmt.Printf("Followed %d titles.\n", fstate.Followed)
		return nil

	case follows.StatusPaused:
		fmt.Printf("Following paused at %d/%d", fstate.Index, fstate.Total)
		if fstate.Error != "" {
			fmt.Printf(" (%s)", fstate.Error)
		}
		fmt.Println("\nRun `mpfix follow` again to continue.")
		return nil

	default:
		return fmt.Errorf("following stopped: %s", fstate.Error)
	}
}
