// Package guardrailstest provides a scripted az runner for tests of code
// that drives guardrails.Deployer.
package guardrailstest

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Runner records calls and replays canned responses keyed by the
// command's argument prefix (e.g. "az deployment group create"). It
// satisfies guardrails.Runner.
type Runner struct {
	mu        sync.Mutex
	Calls     [][]string
	Responses map[string]Response
}

// Response is a canned command result.
type Response struct {
	Stdout string
	Stderr string
	Err    error
}

// NewRunner creates a Runner with no responses; unmatched commands
// succeed with empty output.
func NewRunner() *Runner {
	return &Runner{Responses: make(map[string]Response)}
}

// On registers a response for commands starting with prefix. The longest
// matching prefix wins.
func (r *Runner) On(prefix string, resp Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[prefix] = resp
	return r
}

// Run records the call and returns the matching response.
func (r *Runner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := append([]string{name}, args...)
	r.Calls = append(r.Calls, call)

	line := strings.Join(call, " ")
	best := ""
	for prefix := range r.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil, nil, nil
	}
	resp := r.Responses[best]
	return []byte(resp.Stdout), []byte(resp.Stderr), resp.Err
}

// CallLines returns each recorded call joined with spaces.
func (r *Runner) CallLines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, strings.Join(c, " "))
	}
	return out
}

// ExitError stands in for *exec.ExitError.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
