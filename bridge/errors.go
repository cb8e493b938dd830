package bridge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrExternalProcess is matched by every failure of the external
	// conversion program.
	ErrExternalProcess = errors.New("external conversion failed")

	// ErrUnknownObjectKind reports an object kind the R side cannot build.
	ErrUnknownObjectKind = errors.New("unknown object kind")
)

// ProcessError is returned when the external program cannot be started or
// exits with a non-zero status. ExitCode is -1 when it never ran.
type ProcessError struct {
	Program  string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ProcessError) Error() string {
	cmd := strings.Join(append([]string{e.Program}, e.Args...), " ")
	if e.ExitCode < 0 {
		return fmt.Sprintf("%s: %v", cmd, e.Err)
	}
	return fmt.Sprintf("%s: exit status %d", cmd, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func (e *ProcessError) Is(target error) bool { return target == ErrExternalProcess }
