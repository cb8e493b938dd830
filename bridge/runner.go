package bridge

import (
	"context"
	"errors"
	"os/exec"

	"go.uber.org/zap"
)

// Runner runs an external program to completion. Only the exit status is
// part of the contract.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs programs with os/exec. Combined output is logged at
// debug level and otherwise discarded.
type ExecRunner struct {
	Logger *zap.Logger
}

func (r ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec // program and flags come from configuration
	out, err := cmd.CombinedOutput()
	if len(out) > 0 {
		log.Debug("external program output", zap.String("program", name), zap.ByteString("output", out))
	}
	if err == nil {
		return nil
	}

	perr := &ProcessError{Program: name, Args: args, ExitCode: -1, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
	}
	return perr
}
