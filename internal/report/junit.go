// Package report builds the JUnit document and console summary of a run.
package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jstemmer/go-junit-report/v2/junit"
)

// ReportFile is the report's file name inside the report directory.
const ReportFile = "viz-report.xml"

// Meta case names.
const (
	MetaSuite          = "_Meta"
	CaseCaptured       = "Screenshots are taken successfully"
	CaseHaveBaselines  = "All tests can be compared against a baseline screenshot"
	CaseBaselinesTests = "All baseline screenshots can be compared against a test"
	CaseUnique         = "All tests are unique"
	ScreenshotSuite    = "Screenshot Equality"
)

// Builder accumulates suites and cases. It is not safe for concurrent use.
type Builder struct {
	suites []*Suite
	now    func() time.Time
}

func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Suite appends a suite.
func (b *Builder) Suite(name string) *Suite {
	s := &Suite{Name: name, created: b.now()}
	b.suites = append(b.suites, s)
	return s
}

// Suites returns the suites added so far.
func (b *Builder) Suites() []*Suite {
	return b.suites
}

type Suite struct {
	Name    string
	Cases   []*Case
	created time.Time
}

// Case appends a case named name with the given class name.
func (s *Suite) Case(className, name string) *Case {
	c := &Case{ClassName: className, Name: name}
	s.Cases = append(s.Cases, c)
	return c
}

// Failures counts failing cases.
func (s *Suite) Failures() int {
	n := 0
	for _, c := range s.Cases {
		if c.Failed() {
			n++
		}
	}
	return n
}

type Case struct {
	ClassName  string
	Name       string
	failed     bool
	message    string
	attachment string
}

// Fail marks the case failed. msg may be empty.
func (c *Case) Fail(msg string) *Case {
	c.failed = true
	c.message = msg
	return c
}

// Attach references a file from the case's error output.
func (c *Case) Attach(path string) *Case {
	c.attachment = path
	return c
}

func (c *Case) Failed() bool       { return c.failed }
func (c *Case) Message() string    { return c.message }
func (c *Case) Attachment() string { return c.attachment }

// Marshal renders the JUnit document.
func (b *Builder) Marshal() ([]byte, error) {
	doc := junit.Testsuites{}
	for _, s := range b.suites {
		ts := junit.Testsuite{
			Name:      s.Name,
			Tests:     len(s.Cases),
			Failures:  s.Failures(),
			Timestamp: s.created.UTC().Format("2006-01-02T15:04:05"),
		}
		for _, c := range s.Cases {
			tc := junit.Testcase{Classname: c.ClassName, Name: c.Name}
			if c.failed {
				tc.Failure = &junit.Result{Message: c.message}
			}
			if c.attachment != "" {
				tc.SystemErr = &junit.Output{Data: fmt.Sprintf("[[ATTACHMENT|%s]]", c.attachment)}
			}
			ts.Testcases = append(ts.Testcases, tc)
		}
		doc.Tests += ts.Tests
		doc.Failures += ts.Failures
		doc.Suites = append(doc.Suites, ts)
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// WriteFile writes the document to path, creating its directory.
func (b *Builder) WriteFile(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
