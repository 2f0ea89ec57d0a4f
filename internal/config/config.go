package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Origin      string `yaml:"origin"`
	IdentityURL string `yaml:"identity_url"`
	CatalogURL  string `yaml:"catalog_url"`

	Output string `yaml:"output"`
	Format string `yaml:"format"`

	Cookie     string `yaml:"cookie"`
	CookieFile string `yaml:"cookie_file"`
	UserAgent  string `yaml:"user_agent"`

	PageDelayMs   int `yaml:"page_delay_ms"`
	MatchDelayMs  int `yaml:"match_delay_ms"`
	FollowDelayMs int `yaml:"follow_delay_ms"`

	MatchThreshold  float64 `yaml:"match_threshold"`
	FollowThreshold float64 `yaml:"follow_threshold"`

	DataDir string `yaml:"data_dir"`
	Debug   bool   `yaml:"debug"`
}

type Options struct {
	IgnoreConfig bool
	Debug        bool

	Origin      string
	IdentityURL string
	CatalogURL  string
	Output      string
	Format      string
	Cookie      string
	CookieFile  string
	UserAgent   string
	DataDir     string

	PageDelayMs   int
	MatchDelayMs  int
	FollowDelayMs int

	MatchThreshold  float64
	FollowThreshold float64
}

func DefaultConfig() *Config {
	return &Config{
		Origin:          "https://mangapark.net",
		IdentityURL:     "",
		CatalogURL:      "https://api.mangadex.org",
		Output:          ".",
		Format:          "csv",
		Cookie:          "",
		CookieFile:      "",
		UserAgent:       "",
		PageDelayMs:     1000,
		MatchDelayMs:    500,
		FollowDelayMs:   1500,
		MatchThreshold:  0.72,
		FollowThreshold: 0.72,
		DataDir:         "",
		Debug:           false,
	}
}

func SaveYAML(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func loadYAML(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	return &c, nil
}

func LoadMerged(opts Options) (*Config, string, error) {
	if opts.IgnoreConfig {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(ignored config)", nil
	}

	activePath, err := ActiveConfigPath()
	if err == ErrNoConfig || activePath == "" {
		cfg := DefaultConfig()
		mergeConfig(cfg, opts)
		normalizeDefaults(cfg)
		return cfg, "(default config in memory)\nRun `mpfix config init` to create an actual config\n", nil
	}
	if err != nil {
		return nil, "", err
	}

	cfg, err := loadYAML(activePath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config %s: %w", activePath, err)
	}

	mergeConfig(cfg, opts)
	normalizeDefaults(cfg)

	return cfg, activePath, nil
}

func mergeConfig(c *Config, o Options) {
	if o.Origin != "" {
		c.Origin = o.Origin
	}
	if o.IdentityURL != "" {
		c.IdentityURL = o.IdentityURL
	}
	if o.CatalogURL != "" {
		c.CatalogURL = o.CatalogURL
	}
	if o.Output != "" {
		c.Output = o.Output
	}
	if o.Format != "" {
		c.Format = o.Format
	}
	if o.Cookie != "" {
		c.Cookie = o.Cookie
	}
	if o.CookieFile != "" {
		c.CookieFile = o.CookieFile
	}
	if o.UserAgent != "" {
		c.UserAgent = o.UserAgent
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.PageDelayMs != 0 {
		c.PageDelayMs = o.PageDelayMs
	}
	if o.MatchDelayMs != 0 {
		c.MatchDelayMs = o.MatchDelayMs
	}
	if o.FollowDelayMs != 0 {
		c.FollowDelayMs = o.FollowDelayMs
	}
	if o.MatchThreshold != 0 {
		c.MatchThreshold = o.MatchThreshold
	}
	if o.FollowThreshold != 0 {
		c.FollowThreshold = o.FollowThreshold
	}
	if o.Debug {
		c.Debug = true
	}
}

func normalizeDefaults(c *Config) {
	if c.Origin == "" {
		c.Origin = "https://mangapark.net"
	}
	if c.CatalogURL == "" {
		c.CatalogURL = "https://api.mangadex.org"
	}
	if c.Output == "" {
		c.Output = "."
	}
	if c.Format == "" {
		c.Format = "csv"
	}
	if c.PageDelayMs == 0 {
		c.PageDelayMs = 1000
	}
	if c.MatchDelayMs == 0 {
		c.MatchDelayMs = 500
	}
	if c.FollowDelayMs == 0 {
		c.FollowDelayMs = 1500
	}
	if c.MatchThreshold == 0 {
		c.MatchThreshold = 0.72
	}
	if c.FollowThreshold == 0 {
		c.FollowThreshold = 0.72
	}
	if c.DataDir == "" {
		c.DataDir = DataRoot()
	}
}

func (c *Config) Print() {
	fmt.Printf(" -origin: %s\n", c.Origin)
	if c.IdentityURL != "" {
		fmt.Printf(" -identity_url: %s\n", c.IdentityURL)
	}
	fmt.Printf(" -catalog_url: %s\n", c.CatalogURL)
	fmt.Printf(" -output: %s\n", c.Output)
	fmt.Printf(" -format: %s\n", c.Format)
	if c.CookieFile != "" {
		fmt.Printf(" -cookie_file: %s\n", c.CookieFile)
	}
	if c.UserAgent != "" {
		fmt.Printf(" -user_agent: %s\n", c.UserAgent)
	}
	fmt.Printf(" -page_delay_ms: %d\n", c.PageDelayMs)
	fmt.Printf(" -match_delay_ms: %d\n", c.MatchDelayMs)
	fmt.Printf(" -follow_delay_ms: %d\n", c.FollowDelayMs)
	fmt.Printf(" -match_threshold: %.2f\n", c.MatchThreshold)
	fmt.Printf(" -follow_threshold: %.2f\n", c.FollowThreshold)
	fmt.Printf(" -data_dir: %s\n", c.DataDir)
	if c.Debug {
		fmt.Printf(" -debug: %t\n", c.Debug)
	}
}
