package provision

import (
	"errors"
	"fmt"
)

// ErrPrecondition marks lifecycle calls made in an invalid state, such as
// retrying a deployment that has not failed or stopping one without a
// sandbox. These indicate caller misuse and always propagate.
var ErrPrecondition = errors.New("precondition failed")

// ExecError reports a remote command that exited non-zero inside the sandbox.
type ExecError struct {
	Action   string
	ExitCode int
	Stderr   string
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s failed (exit %d): %s", e.Action, e.ExitCode, e.Stderr)
}
