package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/steve-taylor/viz"
)

func TestResolverPath(t *testing.T) {
	r := Resolver{Root: "/out"}
	k := Key{Suite: "Button", Test: "default", Viewport: viz.Viewport{Width: 400, Height: 300}}

	tests := []struct {
		kind Kind
		want string
	}{
		{Baseline, "/out/baseline/Button/default/400x300.png"},
		{Tested, "/out/tested/Button/default/400x300.png"},
		{Diff, "/out/diff/Button/default/400x300.png"},
	}
	for _, tt := range tests {
		if got := r.Path(tt.kind, k); got != filepath.FromSlash(tt.want) {
			t.Errorf("Path(%s) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestParseRel(t *testing.T) {
	k, err := ParseRel("Button/default/400x300.png")
	if err != nil {
		t.Fatal(err)
	}
	want := Key{Suite: "Button", Test: "default", Viewport: viz.Viewport{Width: 400, Height: 300}}
	if k != want {
		t.Errorf("ParseRel() = %+v, want %+v", k, want)
	}

	for _, bad := range []string{"default/400x300.png", "Button/default/400x300.jpg", "Button/default/wide.png"} {
		if _, err := ParseRel(bad); err == nil {
			t.Errorf("ParseRel(%q) expected error", bad)
		}
	}
}

func TestCleanKeepsBaselineUnlessAsked(t *testing.T) {
	r := Resolver{Root: t.TempDir()}
	k := Key{Suite: "S", Test: "t", Viewport: viz.Viewport{Width: 1, Height: 1}}
	if err := r.EnsureDirs([]Key{k}, Kinds...); err != nil {
		t.Fatal(err)
	}
	for _, kind := range Kinds {
		if err := os.WriteFile(r.Path(kind, k), []byte("png"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Clean(false); err != nil {
		t.Fatal(err)
	}
	if !r.Exists(Baseline, k) {
		t.Error("baseline removed by Clean(false)")
	}
	if r.Exists(Tested, k) || r.Exists(Diff, k) {
		t.Error("tested/diff not emptied")
	}

	if err := r.Clean(true); err != nil {
		t.Fatal(err)
	}
	if r.Exists(Baseline, k) {
		t.Error("baseline kept by Clean(true)")
	}
	if _, err := os.Stat(r.Dir(Baseline)); err != nil {
		t.Errorf("baseline dir should remain: %v", err)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	dst := filepath.Join(dir, "nested", "deeper", "b.png")
	if err := os.WriteFile(src, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "data" {
		t.Errorf("copied = %q, %v", got, err)
	}
	if err := CopyFile(filepath.Join(dir, "missing"), dst); err == nil {
		t.Error("expected error for missing source")
	}
}
