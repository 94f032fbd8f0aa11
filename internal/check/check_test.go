package check

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
	"github.com/steve-taylor/viz/internal/plan"
)

var vp = viz.Viewport{Width: 400, Height: 300}

func perm(suite, test string) plan.Permutation {
	return plan.Permutation{Suite: suite, Test: test, Viewport: vp}
}

func writeBaseline(t *testing.T, r artifacts.Resolver, p plan.Permutation) {
	t.Helper()
	path := r.Path(artifacts.Baseline, p.Key())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
}

func TestRunMissingAndOrphaned(t *testing.T) {
	r := artifacts.Resolver{Root: t.TempDir()}
	a, b, c := perm("S", "A"), perm("S", "B"), perm("S", "C")
	writeBaseline(t, r, a)
	writeBaseline(t, r, c)

	rep, err := Run(r, []plan.Permutation{a, b})
	require.NoError(t, err)

	assert.False(t, rep.OK())
	assert.Equal(t, []plan.Permutation{b}, rep.Missing)
	require.Len(t, rep.Orphans, 1)
	assert.Equal(t, r.Path(artifacts.Baseline, c.Key()), rep.Orphans[0])
	assert.Empty(t, rep.Duplicates)
}

func TestRunAllConsistent(t *testing.T) {
	r := artifacts.Resolver{Root: t.TempDir()}
	a := perm("Button", "default")
	writeBaseline(t, r, a)
	// Non-png files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir(artifacts.Baseline), ".DS_Store"), nil, 0644))

	rep, err := Run(r, []plan.Permutation{a})
	require.NoError(t, err)
	assert.True(t, rep.OK())
}

func TestOrphanedBaselinesWithoutTree(t *testing.T) {
	r := artifacts.Resolver{Root: filepath.Join(t.TempDir(), "none")}
	orphans, err := OrphanedBaselines(r, nil)
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestOrphanedBaselinesDifferentViewport(t *testing.T) {
	r := artifacts.Resolver{Root: t.TempDir()}
	a := perm("S", "A")
	other := a
	other.Viewport = viz.Viewport{Width: 800, Height: 600}
	writeBaseline(t, r, other)

	orphans, err := OrphanedBaselines(r, []plan.Permutation{a})
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

func TestDuplicates(t *testing.T) {
	a, b := perm("S", "A"), perm("S", "B")
	dups := Duplicates([]plan.Permutation{a, b, a})
	assert.Equal(t, []plan.Permutation{a}, dups)
	assert.Empty(t, Duplicates([]plan.Permutation{a, b}))

	rep := Report{Duplicates: dups}
	assert.False(t, rep.OK())
}
