package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/steve-taylor/viz"
)

// FileNames are the config files looked for in a package directory, in
// order of preference.
var FileNames = []string{"viz.json", ".vizrc", "viz.yaml", "viz.yml"}

type Config struct {
	ChromeExecutablePath  string   `json:"chromeExecutablePath" yaml:"chromeExecutablePath"`
	ChromeFlags           string   `json:"chromeFlags" yaml:"chromeFlags"`
	ConcurrentLimit       int      `json:"concurrentLimit" yaml:"concurrentLimit"`
	DefaultViewportWidth  int      `json:"defaultViewportWidth" yaml:"defaultViewportWidth"`
	DefaultViewportHeight int      `json:"defaultViewportHeight" yaml:"defaultViewportHeight"`
	OutputPath            string   `json:"outputPath" yaml:"outputPath"`
	TestReportOutputDir   string   `json:"testReportOutputDir" yaml:"testReportOutputDir"`
	TmpDir                string   `json:"tmpDir" yaml:"tmpDir"`
	TestRunnerHTML        string   `json:"testRunnerHtml" yaml:"testRunnerHtml"`
	Stylesheets           []string `json:"stylesheets" yaml:"stylesheets"`
	Threshold             float64  `json:"threshold" yaml:"threshold"`
	IncludeAA             bool     `json:"includeAA" yaml:"includeAA"`
	Headless              bool     `json:"headless" yaml:"headless"`
	NoAnimations          bool     `json:"noAnimations" yaml:"noAnimations"`
	HistoryPath           string   `json:"historyPath" yaml:"historyPath"`

	// PackageDir is the directory the config was loaded for.
	PackageDir string `json:"-" yaml:"-"`
	// Source is the config file used, if any.
	Source string `json:"-" yaml:"-"`
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults(pkgDir string) *Config {
	return &Config{
		ConcurrentLimit:       1,
		DefaultViewportWidth:  1024,
		DefaultViewportHeight: 1080,
		OutputPath:            filepath.Join(pkgDir, "tmp"),
		TestReportOutputDir:   filepath.Join(pkgDir, "tmp", "report"),
		TmpDir:                filepath.Join(pkgDir, "tmp", ".viz"),
		Headless:              true,
		NoAnimations:          true,
		PackageDir:            pkgDir,
	}
}

// Load layers defaults, the first config file found in pkgDir, and the
// environment. Unreadable or malformed files are skipped with a warning.
func Load(pkgDir string) (*Config, error) {
	abs, err := filepath.Abs(pkgDir)
	if err != nil {
		return nil, fmt.Errorf("resolve package dir: %w", err)
	}
	cfg := Defaults(abs)

	var found []string
	for _, name := range FileNames {
		path := filepath.Join(abs, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(found) == 0 {
			if err := decode(name, data, cfg); err != nil {
				log.Warn().Err(err).Str("path", path).Msg("ignoring invalid config file")
				cfg = Defaults(abs)
				continue
			}
			cfg.Source = path
		}
		found = append(found, path)
	}
	if len(found) > 1 {
		log.Warn().Strs("files", found).Msg("found more than one viz config file, taking the first")
	}

	cfg.ChromeExecutablePath = envOr("CHROME_BINARY", cfg.ChromeExecutablePath)
	cfg.ChromeFlags = envOr("CHROME_FLAGS", cfg.ChromeFlags)
	cfg.ConcurrentLimit = envIntOr("VIZ_CONCURRENCY", cfg.ConcurrentLimit)
	cfg.Headless = envBoolOr("VIZ_HEADLESS", cfg.Headless)
	cfg.OutputPath = envOr("VIZ_OUTPUT_PATH", cfg.OutputPath)
	cfg.TestReportOutputDir = envOr("VIZ_REPORT_DIR", cfg.TestReportOutputDir)
	cfg.Threshold = envFloatOr("VIZ_THRESHOLD", cfg.Threshold)

	cfg.OutputPath = resolve(abs, cfg.OutputPath)
	cfg.TestReportOutputDir = resolve(abs, cfg.TestReportOutputDir)
	cfg.TmpDir = resolve(abs, cfg.TmpDir)
	if cfg.TestRunnerHTML != "" {
		cfg.TestRunnerHTML = resolve(abs, cfg.TestRunnerHTML)
	}
	for i, s := range cfg.Stylesheets {
		cfg.Stylesheets[i] = resolve(abs, s)
	}
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = filepath.Join(cfg.OutputPath, "history.db")
	}
	cfg.HistoryPath = resolve(abs, cfg.HistoryPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Debug().Interface("config", cfg).Msg("using config")
	return cfg, nil
}

func decode(name string, data []byte, cfg *Config) error {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	if c.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrentLimit must be at least 1, got %d", c.ConcurrentLimit)
	}
	if c.DefaultViewportWidth <= 0 || c.DefaultViewportHeight <= 0 {
		return fmt.Errorf("default viewport must be positive, got %dx%d", c.DefaultViewportWidth, c.DefaultViewportHeight)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", c.Threshold)
	}
	return nil
}

func (c *Config) DefaultViewport() viz.Viewport {
	return viz.Viewport{Width: c.DefaultViewportWidth, Height: c.DefaultViewportHeight}
}

// ReportPath is where the JUnit report is written.
func (c *Config) ReportPath() string {
	return filepath.Join(c.TestReportOutputDir, "viz-report.xml")
}
