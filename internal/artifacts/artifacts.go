// Package artifacts lays out screenshot files on disk.
package artifacts

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/steve-taylor/viz"
)

// Kind selects one of the three screenshot trees.
type Kind string

const (
	Baseline Kind = "baseline"
	Tested   Kind = "tested"
	Diff     Kind = "diff"
)

// Kinds lists every kind in layout order.
var Kinds = []Kind{Baseline, Tested, Diff}

// Key identifies one permutation's artifact independently of its kind.
type Key struct {
	Suite    string
	Test     string
	Viewport viz.Viewport
}

func (k Key) String() string {
	return k.Suite + "/" + k.Test + " " + k.Viewport.String()
}

// Resolver maps keys to paths under Root:
// {Root}/{kind}/{suite}/{test}/{W}x{H}.png
type Resolver struct {
	Root string
}

func (r Resolver) Dir(kind Kind) string {
	return filepath.Join(r.Root, string(kind))
}

func (r Resolver) Path(kind Kind, k Key) string {
	return filepath.Join(r.Root, string(kind), k.Suite, k.Test, k.Viewport.String()+".png")
}

// ParseRel recovers a key from a path relative to a kind directory.
func ParseRel(rel string) (Key, error) {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 3 {
		return Key{}, fmt.Errorf("artifact path %q: want suite/test/WxH.png", rel)
	}
	n := len(parts)
	name, ok := strings.CutSuffix(parts[n-1], ".png")
	if !ok {
		return Key{}, fmt.Errorf("artifact path %q: not a png", rel)
	}
	vp, err := viz.ParseViewport(name)
	if err != nil {
		return Key{}, fmt.Errorf("artifact path %q: %w", rel, err)
	}
	return Key{
		Suite:    strings.Join(parts[:n-2], "/"),
		Test:     parts[n-2],
		Viewport: vp,
	}, nil
}

// Clean empties the tested and diff trees, and the baseline tree when
// clearBaseline is set. Missing directories are created.
func (r Resolver) Clean(clearBaseline bool) error {
	kinds := []Kind{Tested, Diff}
	if clearBaseline {
		kinds = append(kinds, Baseline)
	}
	for _, k := range kinds {
		if err := EmptyDir(r.Dir(k)); err != nil {
			return err
		}
	}
	return nil
}

// EnsureDirs creates the parent directory of every key's artifact for each
// of the given kinds.
func (r Resolver) EnsureDirs(keys []Key, kinds ...Kind) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		for _, kind := range kinds {
			dir := filepath.Dir(r.Path(kind, k))
			if seen[dir] {
				continue
			}
			seen[dir] = true
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create %s: %w", dir, err)
			}
		}
	}
	return nil
}

// Exists reports whether the artifact file is present.
func (r Resolver) Exists(kind Kind, k Key) bool {
	info, err := os.Stat(r.Path(kind, k))
	return err == nil && info.Mode().IsRegular()
}

// EmptyDir removes the contents of dir, creating it if needed.
func EmptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("empty %s: %w", dir, err)
		}
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
