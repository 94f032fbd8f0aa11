// Package plan resolves the registered catalog into viewport groups of
// permutations, each tagged with a lane-stable ordinal.
package plan

import (
	"slices"

	"github.com/steve-taylor/viz"
	"github.com/steve-taylor/viz/internal/artifacts"
)

// Test is a registered test with its resolved viewports and ordinal.
type Test struct {
	Suite     string
	Name      string
	Viewports []viz.Viewport
	Ordinal   int
}

// Permutation is one (test, viewport) execution unit.
type Permutation struct {
	Suite    string
	Test     string
	Viewport viz.Viewport
	Ordinal  int
}

func (p Permutation) Key() artifacts.Key {
	return artifacts.Key{Suite: p.Suite, Test: p.Test, Viewport: p.Viewport}
}

func (p Permutation) String() string {
	return p.Key().String()
}

// Group holds every permutation for one viewport, in catalog order.
type Group struct {
	Viewport     viz.Viewport
	Permutations []Permutation
}

// Catalog is the planned run.
type Catalog struct {
	Tests  []Test
	Groups []Group
}

// Permutations flattens the groups.
func (c Catalog) Permutations() []Permutation {
	var out []Permutation
	for _, g := range c.Groups {
		out = append(out, g.Permutations...)
	}
	return out
}

// Filter narrows a baseline run. The zero Filter keeps every test.
type Filter struct {
	// MissingOnly keeps a test when any of its viewports has no baseline.
	MissingOnly bool
	// Suites, when non-empty, keeps only tests of the named suites.
	Suites []string
	// Exists reports whether a baseline is present. Required by MissingOnly.
	Exists func(artifacts.Key) bool
}

func (f Filter) keep(t Test) bool {
	if len(f.Suites) > 0 && !slices.Contains(f.Suites, t.Suite) {
		return false
	}
	if !f.MissingOnly || f.Exists == nil {
		return true
	}
	for _, vp := range t.Viewports {
		if !f.Exists(artifacts.Key{Suite: t.Suite, Test: t.Name, Viewport: vp}) {
			return true
		}
	}
	return false
}

// ResolveViewports picks the test's viewports, else the suite's, else def.
// The result is never empty.
func ResolveViewports(test, suite []viz.Viewport, def viz.Viewport) []viz.Viewport {
	switch {
	case len(test) > 0:
		return slices.Clone(test)
	case len(suite) > 0:
		return slices.Clone(suite)
	default:
		return []viz.Viewport{def}
	}
}

// Resolve builds the catalog. Ordinals are assigned to the filtered list
// before grouping, so a test keeps its ordinal in every viewport group.
// Groups are ordered by first appearance.
func Resolve(suites []viz.SuiteInfo, tests []viz.TestInfo, def viz.Viewport, f Filter) Catalog {
	suiteViewports := make(map[string][]viz.Viewport, len(suites))
	for _, s := range suites {
		suiteViewports[s.Name] = s.Viewports
	}

	var cat Catalog
	for _, ti := range tests {
		t := Test{
			Suite:     ti.Suite,
			Name:      ti.Name,
			Viewports: ResolveViewports(ti.Viewports, suiteViewports[ti.Suite], def),
		}
		if !f.keep(t) {
			continue
		}
		t.Ordinal = len(cat.Tests)
		cat.Tests = append(cat.Tests, t)
	}

	index := make(map[viz.Viewport]int)
	for _, t := range cat.Tests {
		added := make(map[viz.Viewport]bool, len(t.Viewports))
		for _, vp := range t.Viewports {
			if added[vp] {
				continue
			}
			added[vp] = true
			i, ok := index[vp]
			if !ok {
				i = len(cat.Groups)
				index[vp] = i
				cat.Groups = append(cat.Groups, Group{Viewport: vp})
			}
			cat.Groups[i].Permutations = append(cat.Groups[i].Permutations, Permutation{
				Suite:    t.Suite,
				Test:     t.Name,
				Viewport: vp,
				Ordinal:  t.Ordinal,
			})
		}
	}
	return cat
}

// ForLane selects the permutations owned by lane out of laneCount.
func ForLane(perms []Permutation, lane, laneCount int) []Permutation {
	var out []Permutation
	for _, p := range perms {
		if p.Ordinal%laneCount == lane {
			out = append(out, p)
		}
	}
	return out
}
