package browser

import (
	"strings"
	"testing"
)

func TestJSStringEscapes(t *testing.T) {
	got := jsString(`a"b</script>` + "\n")
	if strings.Contains(got, "\n") || !strings.HasPrefix(got, `"`) {
		t.Errorf("jsString = %s", got)
	}
	if !strings.Contains(got, `\"`) {
		t.Errorf("quote not escaped: %s", got)
	}
}

func TestScriptsEmbedIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		js   string
		want []string
	}{
		{"new container", newContainerJS("viz-0-1"), []string{`"viz-0-1"`, `"vizTargetRoot"`}},
		{"remove", removeContainerJS("viz-0-2"), []string{`"viz-0-2"`, "remove()"}},
		{"clear", clearRootJS(), []string{`"vizTargetRoot"`}},
		{"set html", setHTMLJS("c", `<b class="x">hi</b>`), []string{`"c"`, `\"x\"`}},
		{"eval", evalJS("c", "return el.id;"), []string{"async (el)", "return el.id;"}},
		{"measure", measureJS("c", "#c .btn"), []string{`"#c .btn"`, `p.id === "c"`, "paddingLeft"}},
		{"point", pointJS("#c a"), []string{`"#c a"`, "scrollIntoView"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, w := range tt.want {
				if !strings.Contains(tt.js, w) {
					t.Errorf("script missing %q:\n%s", w, tt.js)
				}
			}
		})
	}
}

func TestContainerScopesSelectors(t *testing.T) {
	c := &container{id: "viz-1-3"}
	if got := c.Selector(); got != "#viz-1-3" {
		t.Errorf("Selector() = %q", got)
	}
	if got := c.scoped(".btn"); got != "#viz-1-3 .btn" {
		t.Errorf("scoped() = %q", got)
	}
}
