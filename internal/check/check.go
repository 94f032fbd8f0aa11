// Package check verifies that the baseline tree and the planned catalog
// correspond before any comparison is attempted.
package check

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/plan"
)

// MissingBaselines returns every permutation with no baseline artifact.
func MissingBaselines(r artifacts.Resolver, perms []plan.Permutation) []plan.Permutation {
	var missing []plan.Permutation
	for _, p := range perms {
		if !r.Exists(artifacts.Baseline, p.Key()) {
			log.Info().Str("suite", p.Suite).Str("test", p.Test).Str("viewport", p.Viewport.String()).
				Msg("test has no baseline screenshot")
			missing = append(missing, p)
		}
	}
	return missing
}

// OrphanedBaselines returns every png under the baseline tree that no
// permutation accounts for. A missing baseline tree has no orphans.
func OrphanedBaselines(r artifacts.Resolver, perms []plan.Permutation) ([]string, error) {
	known := make(map[artifacts.Key]bool, len(perms))
	for _, p := range perms {
		known[p.Key()] = true
	}

	root := r.Dir(artifacts.Baseline)
	var orphans []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".png") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		k, perr := artifacts.ParseRel(rel)
		if perr == nil && known[k] {
			return nil
		}
		log.Info().Str("path", path).Msg("baseline screenshot has no associated test")
		orphans = append(orphans, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read baseline tree: %w", err)
	}
	return orphans, nil
}

// Duplicates returns every permutation whose identity was already seen.
func Duplicates(perms []plan.Permutation) []plan.Permutation {
	seen := make(map[artifacts.Key]bool, len(perms))
	var dups []plan.Permutation
	for _, p := range perms {
		k := p.Key()
		if seen[k] {
			log.Info().Str("suite", p.Suite).Str("test", p.Test).Str("viewport", p.Viewport.String()).
				Msg("duplicate test")
			dups = append(dups, p)
			continue
		}
		seen[k] = true
	}
	return dups
}

// Report holds the outcome of all three checks.
type Report struct {
	Missing    []plan.Permutation
	Orphans    []string
	Duplicates []plan.Permutation
}

// OK reports whether comparison may proceed.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Orphans) == 0 && len(r.Duplicates) == 0
}

// Run performs every check. Failures are cumulative; only an unreadable
// baseline tree is returned as an error.
func Run(r artifacts.Resolver, perms []plan.Permutation) (Report, error) {
	var rep Report
	rep.Missing = MissingBaselines(r, perms)
	if len(rep.Missing) > 0 {
		log.Info().Int("count", len(rep.Missing)).Msg("not all tests have a baseline screenshot")
	}

	orphans, err := OrphanedBaselines(r, perms)
	if err != nil {
		return rep, err
	}
	rep.Orphans = orphans
	if len(rep.Orphans) > 0 {
		log.Info().Int("count", len(rep.Orphans)).Msg("not all baseline screenshots have a test")
	}

	rep.Duplicates = Duplicates(perms)
	if len(rep.Duplicates) > 0 {
		log.Info().Int("count", len(rep.Duplicates)).Msg("not all test cases are unique")
	}
	return rep, nil
}

