// Package vizcli is the command-line front end. A project links its test
// bundle into a binary of its own:
//
//	func main() { vizcli.Main(components.Register) }
package vizcli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/browser"
	"github.com/steve-taylor/viz/internal/config"
	"github.com/steve-taylor/viz/internal/history"
	"github.com/steve-taylor/viz/internal/logging"
	"github.com/steve-taylor/viz/internal/run"
)

const AppName = "viz"

// ErrTestsFailed is returned by the test command when the run fails.
var ErrTestsFailed = errors.New("visual tests failed")

// LauncherFunc builds the lane launcher for a loaded config. headless is
// false only for the debug command.
type LauncherFunc func(cfg *config.Config, headless bool) run.Launcher

type App struct {
	bundle   viz.Bundle
	out      io.Writer
	errOut   io.Writer
	launcher LauncherFunc
	cli      *cli.App
}

// New builds the app for bundle with the chromedp launcher.
func New(bundle viz.Bundle) *App {
	return NewWithLauncher(bundle, ChromeLauncher)
}

// NewWithLauncher builds the app with a custom lane launcher.
func NewWithLauncher(bundle viz.Bundle, launcher LauncherFunc) *App {
	a := &App{bundle: bundle, out: os.Stdout, errOut: os.Stderr, launcher: launcher}
	skipCompile := &cli.BoolFlag{
		Name:  "skip-compile",
		Usage: "Don't compile tests (assumes they've been compiled)",
	}
	a.cli = &cli.App{
		Name:      AppName,
		Usage:     "Visual regression tests for UI components",
		ArgsUsage: "[packageDir]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Usage: "Show verbose logging"},
			&cli.BoolFlag{Name: "silent", Usage: "Suppress logging"},
		},
		Before: func(ctx *cli.Context) error {
			logging.Setup(a.errOut, ctx.Bool("verbose"), ctx.Bool("silent"))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Usage:     "Compile tests",
				ArgsUsage: "[packageDir]",
				Action:    a.compile,
			},
			{
				Name:      "baseline",
				Usage:     "Generate baseline screenshots",
				ArgsUsage: "[packageDir]",
				Action:    a.baseline,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "missing", Usage: "Only take baseline screenshots that don't yet exist"},
					&cli.StringSliceFlag{Name: "suite", Usage: "Only run the named suites (repeatable)"},
					skipCompile,
				},
			},
			{
				Name:      "test",
				Usage:     "Run tests",
				ArgsUsage: "[packageDir]",
				Action:    a.test,
				Flags:     []cli.Flag{skipCompile},
			},
			{
				Name:      "debug",
				Usage:     "Render one test in a visible browser",
				ArgsUsage: "<suite> <test> [packageDir]",
				Action:    a.debug,
			},
			{
				Name:      "history",
				Usage:     "List recent test runs",
				ArgsUsage: "[packageDir]",
				Action:    a.history,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 10, Usage: "Number of runs to show"},
				},
			},
		},
	}
	return a
}

// SetOutput redirects the summary and log output.
func (a *App) SetOutput(out, errOut io.Writer) {
	a.out, a.errOut = out, errOut
	a.cli.Writer, a.cli.ErrWriter = out, errOut
}

func (a *App) Run(ctx context.Context, args []string) error {
	return a.cli.RunContext(ctx, args)
}

// Main runs the app on os.Args and exits 1 on any failure.
func Main(bundle viz.Bundle) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := New(bundle).Run(ctx, os.Args)
	stop()
	if err != nil {
		if !errors.Is(err, ErrTestsFailed) {
			log.Error().Err(err).Msg("error while running viz")
		}
		os.Exit(1)
	}
}

func loadConfig(pkgDir string) (*config.Config, error) {
	if pkgDir == "" {
		pkgDir = "."
	}
	return config.Load(pkgDir)
}

func (a *App) compile(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.Args().First())
	if err != nil {
		return err
	}
	return run.Compile(cfg)
}

func (a *App) baseline(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.Args().First())
	if err != nil {
		return err
	}
	return run.Baseline(ctx.Context, cfg, a.launcher(cfg, cfg.Headless), a.bundle, run.BaselineOptions{
		Missing:     ctx.Bool("missing"),
		Suites:      ctx.StringSlice("suite"),
		SkipCompile: ctx.Bool("skip-compile"),
	})
}

func (a *App) test(ctx *cli.Context) error {
	pkgDir := ctx.Args().First()
	cfg, err := loadConfig(pkgDir)
	if err != nil {
		return err
	}
	command := []string{AppName, "baseline"}
	if pkgDir != "" {
		command = append(command, pkgDir)
	}
	passed, err := run.Test(ctx.Context, cfg, a.launcher(cfg, cfg.Headless), a.bundle, run.TestOptions{
		SkipCompile: ctx.Bool("skip-compile"),
		Command:     command,
		Out:         a.out,
	})
	if err != nil {
		return err
	}
	if !passed {
		return ErrTestsFailed
	}
	return nil
}

func (a *App) debug(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("usage: %s debug <suite> <test> [packageDir]", AppName)
	}
	cfg, err := loadConfig(ctx.Args().Get(2))
	if err != nil {
		return err
	}
	return run.Debug(ctx.Context, cfg, a.launcher(cfg, false), a.bundle, ctx.Args().Get(0), ctx.Args().Get(1))
}

func (a *App) history(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx.Args().First())
	if err != nil {
		return err
	}
	store, err := history.Open(ctx.Context, cfg.HistoryPath)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(ctx.Context, ctx.Int("limit"))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, "No test runs found")
		return nil
	}
	for _, r := range runs {
		status := "✓"
		if !r.Passed {
			status = "✗"
		}
		fmt.Fprintf(a.out, "%s  %s  [%s]  %s  %d checks, %d failed\n",
			status, r.StartedAt.Format("2006-01-02 15:04:05"), r.Duration.Round(time.Millisecond),
			r.ID, r.Total, len(r.Failures))
		for _, f := range r.Failures {
			name := f.Suite + "/" + f.Test
			if f.Viewport != "" {
				name += " " + f.Viewport
			}
			fmt.Fprintf(a.out, "   %s: %s\n", name, f.Message)
		}
	}
	return nil
}

// ChromeLauncher launches lanes with chromedp using the config's browser
// settings.
func ChromeLauncher(cfg *config.Config, headless bool) run.Launcher {
	return chromeLauncher{l: &browser.Launcher{Options: browser.Options{
		ExecPath:     cfg.ChromeExecutablePath,
		Flags:        cfg.ChromeFlags,
		Headless:     headless,
		NoAnimations: cfg.NoAnimations,
	}}}
}

type chromeLauncher struct {
	l *browser.Launcher
}

func (c chromeLauncher) Launch(ctx context.Context, n int, url string, bundle viz.Bundle) ([]run.Lane, error) {
	sessions, err := c.l.Launch(ctx, n, url, bundle)
	if err != nil {
		return nil, err
	}
	lanes := make([]run.Lane, len(sessions))
	for i, s := range sessions {
		lanes[i] = s
	}
	return lanes, nil
}
