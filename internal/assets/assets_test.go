package assets

import (
	"strings"
	"testing"
)

func TestWriteRunner(t *testing.T) {
	var b strings.Builder
	if err := WriteRunner(&b, RunnerPage{Stylesheets: []string{"styles/0-theme.css"}}); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, `id="vizTargetRoot"`) {
		t.Error("runner page has no target root")
	}
	if !strings.Contains(out, `href="styles/0-theme.css"`) {
		t.Errorf("stylesheet not linked:\n%s", out)
	}
}
