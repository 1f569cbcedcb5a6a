package structure

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// NeedleResult records whether one expected substring was found.
type NeedleResult struct {
	Needle string `json:"needle"`
	Found  bool   `json:"found"`
}

// Result is the outcome of one check.
type Result struct {
	Section string         `json:"section"`
	Check   Check          `json:"check"`
	Passed  bool           `json:"passed"`
	Detail  string         `json:"detail,omitempty"`
	Needles []NeedleResult `json:"needles,omitempty"`
	Matches []string       `json:"matches,omitempty"`
}

// Report collects results in checklist order.
type Report struct {
	Results []Result `json:"results"`
}

// Passed reports whether every check passed. An empty report passes.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing results.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

// Run evaluates the checklist against fsys, typically os.DirFS(projectRoot).
func Run(fsys fs.FS, cl Checklist) Report {
	var report Report
	for _, sec := range cl.Sections {
		for _, c := range sec.Checks {
			res := evaluate(fsys, c)
			res.Section = sec.Name
			report.Results = append(report.Results, res)
		}
	}
	return report
}

func evaluate(fsys fs.FS, c Check) Result {
	res := Result{Check: c}
	switch c.effectiveKind() {
	case KindExists:
		_, err := fs.Stat(fsys, cleanPath(c.Path))
		res.Passed = err == nil
		if err != nil {
			res.Detail = describeErr(err)
		}
	case KindContains:
		data, err := fs.ReadFile(fsys, cleanPath(c.Path))
		if err != nil {
			res.Detail = describeErr(err)
			for _, n := range c.Contains {
				res.Needles = append(res.Needles, NeedleResult{Needle: n})
			}
			return res
		}
		content := string(data)
		res.Passed = true
		for _, n := range c.Contains {
			found := strings.Contains(content, n)
			res.Needles = append(res.Needles, NeedleResult{Needle: n, Found: found})
			if !found {
				res.Passed = false
			}
		}
		if !res.Passed {
			res.Detail = "missing expected content"
		}
	case KindGlob:
		matches, err := doublestar.Glob(fsys, cleanPath(c.Pattern), doublestar.WithFilesOnly())
		if err != nil {
			res.Detail = err.Error()
			return res
		}
		res.Matches = matches
		res.Passed = len(matches) > 0
		if !res.Passed {
			res.Detail = "no files match"
		}
	default:
		res.Detail = fmt.Sprintf("unknown check kind %q", c.Kind)
	}
	return res
}

func describeErr(err error) string {
	if errors.Is(err, fs.ErrNotExist) {
		return "file not found"
	}
	return err.Error()
}
