package run

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/config"
)

// Debug renders one test in a single lane and keeps it open until ctx is
// done, so the page can be inspected. The launcher is expected to show
// its browser.
func Debug(ctx context.Context, cfg *config.Config, launcher Launcher, bundle viz.Bundle, suiteName, testName string) error {
	if err := Compile(cfg); err != nil {
		return err
	}
	s, err := open(ctx, cfg, launcher, bundle, 1)
	if err != nil {
		return err
	}
	defer s.close()

	lane := s.lanes[0]
	if err := lane.Resize(ctx, cfg.DefaultViewport()); err != nil {
		return fmt.Errorf("resize: %w", err)
	}
	target, err := lane.RunOne(ctx, suiteName, testName)
	if err != nil {
		return fmt.Errorf("run %s/%s: %w", suiteName, testName, err)
	}
	if target == nil {
		log.Warn().Str("suite", suiteName).Str("test", testName).Msg("test produced no screenshot target")
	}

	log.Info().Msg("browser left open for inspection, interrupt to exit")
	<-ctx.Done()
	return nil
}
