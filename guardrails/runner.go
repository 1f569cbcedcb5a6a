package guardrails

import (
	"bytes"
	"context"
	osexec "os/exec"
)

// Runner executes an external command and returns stdout and stderr
// separately. Inject a fake in tests instead of calling os/exec directly.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// OSRunner implements Runner with os/exec.
type OSRunner struct {
	// Dir is the working directory ("" = current).
	Dir string
	// Env overrides environment variables (nil = inherit from parent).
	Env []string
}

// Run executes the command and waits for it.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if r.Env != nil {
		cmd.Env = r.Env
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
