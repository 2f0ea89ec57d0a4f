package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/mangapark"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/util"

	"github.com/spf13/cobra"
)

var (
	flagFixURL string
	flagFixOut string
)

func init() {
	fixCmd := &cobra.Command{
		Use:   "fiximages",
		Short: "Collect a reader page's image URLs and rewrite broken CDN hosts",
		RunE:  runFixImages,
	}

	fixCmd.Flags().StringVar(&flagFixURL, "url", "", "reader/chapter page URL")
	fixCmd.Flags().StringVar(&flagFixOut, "out", "", "write the fixed URL list to this file instead of stdout")

	rootCmd.AddCommand(fixCmd)
}

func runFixImages(cmd *cobra.Command, _ []string) error {
	if flagFixURL == "" {
		return fmt.Errorf("missing --url")
	}

	cfg, logSvc, err := mergedConfig(config.Options{})
	if err != nil {
		return err
	}

	site, err := siteClient(cfg, "", logSvc)
	if err != nil {
		return err
	}

	urls, err := site.ReaderImages(context.Background(), flagFixURL)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("no images found on %s", flagFixURL)
	}

	fixed, changed := mangapark.FixImageURLs(urls)

	if flagFixOut != "" {
		size, err := util.WriteFileAtomic(flagFixOut, func(f *os.File) error {
			_, werr := f.WriteString(strings.Join(fixed, "\n") + "\n")
			return werr
		})
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %d URLs to %s (%s), %d repaired.\n", len(fixed), flagFixOut, util.Human(size), changed)
		return nil
	}

	for i, u := range fixed {
		if u != urls[i] {
			fmt.Printf("%s\n    was: %s\n", u, urls[i])
		} else {
			fmt.Println(u)
		}
	}
	fmt.Printf("\n%d images, %d repaired.\n", len(fixed), changed)

	return nil
}
