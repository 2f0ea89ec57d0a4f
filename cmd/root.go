package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool

	// shared connection/config flags
	flagOrigin     string
	flagCatalogURL string
	flagDataDir    string
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

var rootCmd = &cobra.Command{
	Use:   "mpfix",
	Short: "MangaPark follow-list exporter, image fixer and MangaDex migration helper",
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagOrigin, "origin", "", "site origin, e.g. https://mangapark.net")
	rootCmd.PersistentFlags().StringVar(&flagCatalogURL, "catalog-url", "", "catalog API base, e.g. https://api.mangadex.org")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "folder for run state and snapshots")
	rootCmd.PersistentFlags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	rootCmd.PersistentFlags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	rootCmd.PersistentFlags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
