// Package assets holds files embedded in the binary.
package assets

import (
	_ "embed"
	"html/template"
	"io"
)

// RunnerHTML is the default runner page template. It must contain the
// #vizTargetRoot element containers are appended to.
//
//go:embed runner.html
var RunnerHTML string

var runnerTmpl = template.Must(template.New("runner").Parse(RunnerHTML))

// RunnerPage is the data the runner template is rendered with.
type RunnerPage struct {
	// Stylesheets are hrefs relative to the runner page.
	Stylesheets []string
}

// WriteRunner renders the default runner page.
func WriteRunner(w io.Writer, p RunnerPage) error {
	return runnerTmpl.Execute(w, p)
}
