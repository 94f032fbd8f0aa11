package run

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/capture"
	"github.com/steve-taylor/viz/internal/check"
	"github.com/steve-taylor/viz/internal/config"
	"github.com/steve-taylor/viz/internal/diff"
	"github.com/steve-taylor/viz/internal/history"
	"github.com/steve-taylor/viz/internal/idutil"
	"github.com/steve-taylor/viz/internal/plan"
	"github.com/steve-taylor/viz/internal/report"
)

// TestOptions configure a test run.
type TestOptions struct {
	SkipCompile bool
	// Command is the argv prefix suggested for accepting new screenshots.
	Command []string
	// Out receives the console summary. Nil means stdout.
	Out io.Writer
	// Comparator overrides the pixel comparator built from the config.
	Comparator diff.Comparator
}

// Test captures every permutation, checks the baseline tree and compares.
// It reports whether the run passed. Capture and check failures are
// recorded in the report rather than returned; errors are for runs that
// could not produce a report at all.
func Test(ctx context.Context, cfg *config.Config, launcher Launcher, bundle viz.Bundle, opts TestOptions) (bool, error) {
	started := time.Now()
	res := artifacts.Resolver{Root: cfg.OutputPath}
	if err := res.Clean(false); err != nil {
		return false, fmt.Errorf("clean output: %w", err)
	}
	if err := artifacts.EmptyDir(filepath.Join(cfg.TestReportOutputDir, diff.FailingDir)); err != nil {
		return false, fmt.Errorf("clean report dir: %w", err)
	}
	if !opts.SkipCompile {
		if err := Compile(cfg); err != nil {
			return false, err
		}
	}

	b := report.NewBuilder()
	meta := b.Suite(report.MetaSuite)
	captured := meta.Case("", report.CaseCaptured)

	perms, err := captureTested(ctx, cfg, launcher, bundle, res)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.Error().Err(err).Msg("error taking screenshots")
		captured.Fail(err.Error())
	}

	// Checks need only the catalog and the baseline tree.
	var consistent bool
	if perms != nil {
		rep, err := check.Run(res, perms)
		if err != nil {
			return false, fmt.Errorf("check baselines: %w", err)
		}
		failIf(meta.Case("", report.CaseHaveBaselines), len(rep.Missing) > 0,
			fmt.Sprintf("%d tests have no baseline screenshot", len(rep.Missing)))
		failIf(meta.Case("", report.CaseBaselinesTests), len(rep.Orphans) > 0,
			fmt.Sprintf("%d baseline screenshots have no test", len(rep.Orphans)))
		failIf(meta.Case("", report.CaseUnique), len(rep.Duplicates) > 0,
			fmt.Sprintf("%d tests are duplicated", len(rep.Duplicates)))
		consistent = rep.OK()
	}

	if !captured.Failed() && consistent {
		cmp := opts.Comparator
		if cmp == nil {
			cmp = diff.PixelComparator{Threshold: cfg.Threshold, IncludeAA: cfg.IncludeAA}
		}
		d := &diff.Differ{Resolver: res, ReportDir: cfg.TestReportOutputDir, Comparator: cmp}
		cases, err := d.Run(ctx, perms)
		if err != nil {
			return false, err
		}
		shots := b.Suite(report.ScreenshotSuite)
		for _, c := range cases {
			rc := shots.Case(c.Permutation.Suite+"/"+c.Permutation.Test, c.Permutation.Viewport.String())
			if !c.Passed {
				rc.Fail(c.Message)
				if c.Attachment != "" {
					rc.Attach(c.Attachment)
				}
			}
		}
	}

	passed := allPassed(b)
	reportPath := cfg.ReportPath()
	if err := b.WriteFile(reportPath); err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	log.Info().Str("path", reportPath).Bool("passed", passed).Msg("wrote report")

	record(ctx, cfg, "test", started, passed, b)

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	report.Print(out, report.Summary{Passed: passed, Builder: b, ReportPath: reportPath, Command: opts.Command})
	return passed, nil
}

// captureTested plans and captures the tested tree. The catalog is returned
// whenever planning succeeded, even if capture did not.
func captureTested(ctx context.Context, cfg *config.Config, launcher Launcher, bundle viz.Bundle, res artifacts.Resolver) ([]plan.Permutation, error) {
	s, err := open(ctx, cfg, launcher, bundle, cfg.ConcurrentLimit)
	if err != nil {
		return nil, err
	}
	defer s.close()

	cat, err := discover(ctx, s.lanes, cfg.DefaultViewport(), plan.Filter{})
	if err != nil {
		return nil, err
	}
	perms := cat.Permutations()
	if perms == nil {
		perms = []plan.Permutation{}
	}
	if dups := check.Duplicates(perms); len(dups) > 0 {
		return perms, fmt.Errorf("not capturing: %d duplicate tests", len(dups))
	}
	if err := res.EnsureDirs(keys(perms), artifacts.Tested, artifacts.Diff); err != nil {
		return perms, err
	}

	log.Info().Int("screenshots", len(perms)).Msg("taking screenshots")
	sched := &capture.Scheduler{
		Lanes: s.captureLanes(),
		Path:  func(p plan.Permutation) string { return res.Path(artifacts.Tested, p.Key()) },
	}
	result, err := sched.Run(ctx, cat.Groups)
	if err != nil {
		return perms, err
	}
	if len(result.Failures) > 0 {
		log.Warn().Int("failed", len(result.Failures)).Msg("some tests failed to render")
	}
	return perms, nil
}

func failIf(c *report.Case, failed bool, msg string) {
	if failed {
		c.Fail(msg)
	}
}

func allPassed(b *report.Builder) bool {
	for _, s := range b.Suites() {
		if s.Failures() > 0 {
			return false
		}
	}
	return true
}

// record saves the run to the history database. History is best effort.
func record(ctx context.Context, cfg *config.Config, mode string, started time.Time, passed bool, b *report.Builder) {
	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable")
		return
	}
	defer store.Close()

	r := history.Run{
		ID:         idutil.RunID(cfg.PackageDir, mode, started),
		Mode:       mode,
		PackageDir: cfg.PackageDir,
		StartedAt:  started,
		Duration:   time.Since(started),
		Passed:     passed,
	}
	for _, s := range b.Suites() {
		for _, c := range s.Cases {
			r.Total++
			if !c.Failed() {
				continue
			}
			f := history.Failure{Message: c.Message()}
			if s.Name == report.ScreenshotSuite {
				f.Suite, f.Test, _ = strings.Cut(c.ClassName, "/")
				f.Viewport = c.Name
			} else {
				f.Suite, f.Test = s.Name, c.Name
			}
			r.Failures = append(r.Failures, f)
		}
	}
	if err := store.Record(ctx, r); err != nil {
		log.Warn().Err(err).Msg("recording run history")
	}
}
