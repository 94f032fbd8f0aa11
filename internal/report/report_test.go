package report

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/jstemmer/go-junit-report/v2/junit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBuilder() *Builder {
	b := NewBuilder()
	meta := b.Suite(MetaSuite)
	meta.Case("", CaseCaptured)
	meta.Case("", CaseUnique)

	shots := b.Suite(ScreenshotSuite)
	shots.Case("Button/default", "400x300")
	shots.Case("Button/hover", "400x300").
		Fail("Differed by 50 pixels").
		Attach("/report/failing-screenshots/diff/Button/hover/400x300.png")
	return b
}

func TestMarshal(t *testing.T) {
	data, err := sampleBuilder().Marshal()
	require.NoError(t, err)

	var doc junit.Testsuites
	require.NoError(t, xml.Unmarshal(data, &doc))
	assert.Equal(t, 4, doc.Tests)
	assert.Equal(t, 1, doc.Failures)
	require.Len(t, doc.Suites, 2)
	assert.Equal(t, "_Meta", doc.Suites[0].Name)

	shots := doc.Suites[1]
	assert.Equal(t, "Screenshot Equality", shots.Name)
	assert.Equal(t, 1, shots.Failures)
	require.Len(t, shots.Testcases, 2)
	assert.Equal(t, "Button/default", shots.Testcases[0].Classname)
	assert.Equal(t, "400x300", shots.Testcases[0].Name)
	assert.Nil(t, shots.Testcases[0].Failure)

	failing := shots.Testcases[1]
	require.NotNil(t, failing.Failure)
	assert.Equal(t, "Differed by 50 pixels", failing.Failure.Message)
	require.NotNil(t, failing.SystemErr)
	assert.Equal(t, "[[ATTACHMENT|/report/failing-screenshots/diff/Button/hover/400x300.png]]", failing.SystemErr.Data)
	assert.True(t, strings.HasPrefix(string(data), xml.Header))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", ReportFile)
	require.NoError(t, sampleBuilder().WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<testsuite name="Screenshot Equality"`)
}

func TestPrint(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	Print(&buf, Summary{
		Builder:    sampleBuilder(),
		ReportPath: "/report/viz-report.xml",
		Command:    []string{"viz", "baseline", "./my ui"},
	})
	out := buf.String()
	assert.Contains(t, out, "FAIL Button/hover 400x300 (Differed by 50 pixels)")
	assert.Contains(t, out, "1 of 4 checks failed")
	assert.Contains(t, out, "viz baseline './my ui' --suite Button")

	buf.Reset()
	Print(&buf, Summary{Passed: true, Builder: NewBuilder()})
	assert.Contains(t, buf.String(), "PASS 0 checks passed")
}

func TestAcceptCommand(t *testing.T) {
	got := AcceptCommand([]string{"viz", "baseline"}, []string{"Button", "Date Picker"})
	assert.Equal(t, "viz baseline --suite Button --suite 'Date Picker'", got)
}
