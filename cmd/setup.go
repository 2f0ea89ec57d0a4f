package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Jackstonebreaker/mangapark-image-fix/internal/config"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/exporter"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/mangadex"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/mangapark"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/store"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/ui"
	"github.com/Jackstonebreaker/mangapark-image-fix/internal/util"
)

func mergedConfig(extra config.Options) (*config.Config, *ui.Logger, error) {
	extra.IgnoreConfig = flagIgnoreConfig
	extra.Debug = flagDebug
	if extra.Origin == "" {
		extra.Origin = flagOrigin
	}
	if extra.CatalogURL == "" {
		extra.CatalogURL = flagCatalogURL
	}
	if extra.DataDir == "" {
		extra.DataDir = flagDataDir
	}
	if extra.Cookie == "" {
		extra.Cookie = flagCookie
	}
	if extra.CookieFile == "" {
		extra.CookieFile = flagCookieFile
	}
	if extra.UserAgent == "" {
		extra.UserAgent = flagUserAgent
	}

	cfg, usedPath, err := config.LoadMerged(extra)
	if err != nil {
		return nil, nil, err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		fmt.Printf("Config file: %s\n", usedPath)
	}

	return cfg, logSvc, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.DataDir, config.DataFallback())
}

func siteHTTPClient(cfg *config.Config, logSvc *ui.Logger) (*http.Client, error) {
	return util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     30 * time.Second,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		Cookie:      cfg.Cookie,
		CookieFile:  cfg.CookieFile,
		Cloudflare:  true,
		DebugLogger: logSvc,
	})
}

func siteClient(cfg *config.Config, identityURL string, logSvc *ui.Logger) (*mangapark.Client, error) {
	client, err := siteHTTPClient(cfg, logSvc)
	if err != nil {
		return nil, err
	}

	if identityURL == "" {
		identityURL = cfg.IdentityURL
	}

	return mangapark.NewClient(client, cfg.Origin, identityURL, logSvc), nil
}

func catalogClient(cfg *config.Config, st *store.Store, logSvc *ui.Logger) (*mangadex.Client, error) {
	client, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:     30 * time.Second,
		UserAgent:   util.PickUserAgent(cfg.UserAgent),
		DebugLogger: logSvc,
	})
	if err != nil {
		return nil, err
	}

	return mangadex.NewClient(client, cfg.CatalogURL, st, logSvc), nil
}

// cancelOnInterrupt trips the token on Ctrl-C/SIGTERM so the running loop
// persists its snapshot and exits cleanly. A second signal force-quits.
func cancelOnInterrupt(tok *exporter.Token) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		fmt.Println("\nInterrupt received, stopping after the current request...")
		tok.Cancel()

		<-sig
		fmt.Println("\nExiting due to second interrupt.")
		os.Exit(1)
	}()
}
