package cmd

import (
	"fmt"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/matcher"

	"github.com/spf13/cobra"
)

func init() {
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show export, match and follow run state",
		RunE:  runStatus,
	}

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	es := exporter.LoadState(st)
	fmt.Println("Export:")
	fmt.Printf("  status:    %s\n", es.Status)
	fmt.Printf("  pages:     %d/%d\n", es.Page, es.Pages)
	fmt.Printf("  collected: %d", es.Collected)
	if es.Total > 0 {
		fmt.Printf(" of %d reported", es.Total)
	}
	fmt.Println()
	printLastError(es.Error, es.LastError)
	if es.UpdatedAt != "" {
		fmt.Printf("  updated:   %s\n", es.UpdatedAt)
	}

	ms := matcher.LoadState(st)
	fmt.Println("Match:")
	fmt.Printf("  status:  %s\n", ms.Status)
	fmt.Printf("  titles:  %d/%d\n", ms.Index, ms.Total)
	fmt.Printf("  matched: %d\n", ms.Matched)
	if ms.Error != "" {
		fmt.Printf("  error:   %s\n", ms.Error)
	}

	fs := matcher.LoadFollowState(st)
	if fs.Status != follows.StatusIdle {
		fmt.Println("Follow:")
		fmt.Printf("  status:   %s\n", fs.Status)
		fmt.Printf("  followed: %d/%d\n", fs.Followed, fs.Total)
		if fs.Error != "" {
			fmt.Printf("  error:    %s\n", fs.Error)
		}
	}

	catalog, err := catalogClient(cfg, st, logSvc)
	if err == nil {
		if catalog.Status() {
			fmt.Println("Catalog: logged in")
		} else {
			fmt.Println("Catalog: not logged in")
		}
	}

	return nil
}

func printLastError(code string, le *follows.LastError) {
	if code == "" && le == nil {
		return
	}

	if le != nil {
		fmt.Printf("  error:     %s (retryable=%t", le.Code, le.Retryable)
		if le.RetryAt != "" {
			fmt.Printf(", retry at %s", le.RetryAt)
		}
		fmt.Println(")")
		return
	}

	fmt.Printf("  error:     %s\n", code)
}
