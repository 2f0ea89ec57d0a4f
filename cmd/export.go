package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/follows"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/ui"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/util"

	"github.com/spf13/cobra"
)

var (
	flagExportURL    string
	flagExportOut    string
	flagExportFormat string
	flagExportResume bool
	flagExportFresh  bool
	flagPageDelayMs  int
)

func init() {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the logged-in user's follow list through the site API",
		RunE:  runExport,
	}

	exportCmd.Flags().StringVar(&flagExportURL, "url", "", "site page used to discover the logged-in user")
	exportCmd.Flags().StringVar(&flagExportOut, "out", "", "output folder for the export file")
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "", "export format: csv or json")
	exportCmd.Flags().BoolVar(&flagExportResume, "resume", false, "require resuming from the saved snapshot")
	exportCmd.Flags().BoolVar(&flagExportFresh, "fresh", false, "discard saved state and start from page 1")
	exportCmd.Flags().IntVar(&flagPageDelayMs, "page-delay-ms", 0, "delay between page requests")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, err := mergedConfig(config.Options{
		IdentityURL: flagExportURL,
		Output:      flagExportOut,
		Format:      flagExportFormat,
		PageDelayMs: flagPageDelayMs,
	})
	if err != nil {
		return err
	}

	if cfg.Format != "csv" && cfg.Format != "json" {
		return fmt.Errorf("unsupported format %q (csv or json)", cfg.Format)
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}

	site, err := siteClient(cfg, flagExportURL, logSvc)
	if err != nil {
		return err
	}

	if flagExportFresh {
		if err := st.Delete(store.KeyExportState, store.KeyExportPartial, store.KeyExportPayload); err != nil {
			return err
		}
	}

	pm := ui.NewProgressManager()
	handle := pm.Register("Follows", "pages")

	engine := exporter.New(st, site, logSvc, exporter.Options{
		Origin:    cfg.Origin,
		PageDelay: time.Duration(cfg.PageDelayMs) * time.Millisecond,
		OnProgress: func(s follows.ExportState) {
			handle.Update(s.Page, s.Pages, int64(s.Collected))
		},
	})

	tok := exporter.NewToken()
	cancelOnInterrupt(tok)

	if flagExportResume {
		err = engine.Resume(context.Background(), tok)
	} else {
		err = engine.Run(context.Background(), tok)
	}

	state := engine.State()
	if state.Status == follows.StatusDone {
		handle.MarkDone()
	} else {
		handle.Abandon()
	}
	pm.Close()
	fmt.Println()

	if err != nil {
		return err
	}

	switch state.Status {
	case follows.StatusDone:
		return writeExportFile(cfg, st, state)

	case follows.StatusPaused:
		fmt.Printf("Export paused (%s) after page %d with %d items saved.\n", state.Error, state.Page, state.Collected)
		if state.LastError != nil && state.LastError.RetryAt != "" {
			fmt.Printf("Retry with `mpfix export --resume` after %s.\n", state.LastError.RetryAt)
		}
		return nil

	case follows.StatusIdle:
		fmt.Printf("Export cancelled after page %d; %d items kept in the snapshot.\n", state.Page, state.Collected)
		return nil

	default:
		return fmt.Errorf("export failed: %s", state.Error)
	}
}

func writeExportFile(cfg *config.Config, st *store.Store, state follows.ExportState) error {
	var payload follows.ExportPayload
	if ok, err := st.Get(store.KeyExportPayload, &payload); err != nil || !ok {
		return fmt.Errorf("export finished but no payload was stored")
	}

	path := filepath.Join(cfg.Output, "mangapark_follows."+cfg.Format)

	size, err := util.WriteFileAtomic(path, func(f *os.File) error {
		if cfg.Format == "json" {
			return follows.WriteJSON(f, &payload)
		}
		return follows.WriteCSV(f, payload.Items)
	})
	if err != nil {
		return err
	}

	fmt.Println("Export Summary:")
	fmt.Printf("Pages:  %d\n", state.Page)
	fmt.Printf("Titles: %d\n", state.Collected)
	fmt.Printf("File:   %s (%s)\n", path, util.Human(size))
	fmt.Println("\nAll done.")

	return nil
}
