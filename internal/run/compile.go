package run

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/assets"
	"github.com/steve-taylor/viz/internal/config"
)

// RunnerFile is the runner page's name inside the tmp directory.
const RunnerFile = "runner.html"

// StylesDir holds copied stylesheets inside the tmp directory.
const StylesDir = "styles"

// Compile prepares the tmp directory the browsers load: the runner page and
// the configured stylesheets. A custom runner page is copied as is; the
// default one links every stylesheet.
func Compile(cfg *config.Config) error {
	log.Info().Str("dir", cfg.TmpDir).Msg("compiling tests")
	if err := artifacts.EmptyDir(cfg.TmpDir); err != nil {
		return fmt.Errorf("prepare tmp dir: %w", err)
	}

	hrefs := make([]string, 0, len(cfg.Stylesheets))
	for i, src := range cfg.Stylesheets {
		href := StylesDir + "/" + fmt.Sprintf("%d-%s", i, filepath.Base(src))
		if err := artifacts.CopyFile(src, filepath.Join(cfg.TmpDir, filepath.FromSlash(href))); err != nil {
			return fmt.Errorf("copy stylesheet %s: %w", src, err)
		}
		hrefs = append(hrefs, href)
	}

	runner := filepath.Join(cfg.TmpDir, RunnerFile)
	if cfg.TestRunnerHTML != "" {
		if err := artifacts.CopyFile(cfg.TestRunnerHTML, runner); err != nil {
			return fmt.Errorf("copy runner page: %w", err)
		}
		return nil
	}

	var buf bytes.Buffer
	if err := assets.WriteRunner(&buf, assets.RunnerPage{Stylesheets: hrefs}); err != nil {
		return fmt.Errorf("render runner page: %w", err)
	}
	if err := os.WriteFile(runner, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write runner page: %w", err)
	}
	log.Debug().Str("path", runner).Int("stylesheets", len(hrefs)).Msg("wrote runner page")
	return nil
}
