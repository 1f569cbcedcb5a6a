package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/petal-labs/foundryctl/agent"
	"github.com/petal-labs/foundryctl/credential"
	"github.com/petal-labs/foundryctl/deploy"
	"github.com/petal-labs/foundryctl/diag"
	"github.com/petal-labs/foundryctl/foundry"
	"github.com/petal-labs/foundryctl/tool"
)

// Process exit codes.
const (
	exitSuccess      = 0
	exitValidation   = 1
	exitRuntime      = 2
	exitFileNotFound = 3
	exitProvider     = 5
	exitStructure    = 7
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// ExitCode is the process exit code for the error returned by a command.
// Errors that carry no code, such as cobra usage errors, exit with 1.
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return exitValidation
}

// classify maps domain errors onto exit codes. Errors that already carry a
// code pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	var (
		diagErr  *diag.Error
		chainErr *credential.ChainError
	)
	code := exitRuntime
	switch {
	case errors.Is(err, os.ErrNotExist):
		code = exitFileNotFound
	case errors.As(err, &diagErr),
		errors.Is(err, agent.ErrEmptyDefinition),
		errors.Is(err, agent.ErrInvalidDefinition),
		errors.Is(err, deploy.ErrEndpointRequired),
		errors.Is(err, foundry.ErrInvalidEndpoint):
		code = exitValidation
	case isToolValidation(err):
		code = exitValidation
	case errors.As(err, &chainErr), errors.Is(err, credential.ErrNoProviders):
		code = exitProvider
	}
	return &ExitError{Code: code, Message: err.Error(), Err: err}
}

func isToolValidation(err error) bool {
	_, ok := tool.AsValidationError(err)
	return ok
}
