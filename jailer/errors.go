package jailer

import "fmt"

// Kind classifies a jailer error by the phase of the state machine that
// produced it, matching the taxonomy in the jailer design: input
// validation, filesystem setup, cgroup population, namespace/mount
// operations, fd protocol violations, credential drop, and the final
// exec.
type Kind int

const (
	// KindInput covers invalid instance ids, non-numeric uid/gid/numa,
	// and missing required configuration. Reported before any side
	// effect.
	KindInput Kind = iota
	KindFilesystem
	KindCgroup
	KindNamespace
	KindFdProtocol
	KindCredential
	KindExec
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindFilesystem:
		return "filesystem"
	case KindCgroup:
		return "cgroup"
	case KindNamespace:
		return "namespace"
	case KindFdProtocol:
		return "fd-protocol"
	case KindCredential:
		return "credential"
	case KindExec:
		return "exec"
	default:
		return "unknown"
	}
}

// Error is the error type surfaced by every jailer component. It carries
// the offending path or value so the single line emitted to the caller
// (see cmd/jailer) identifies both the kind and the context.
type Error struct {
	Kind    Kind
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

// ExitCode maps an error's Kind to a stable non-zero process exit code.
// Zero is never returned by the jailer; errors that aren't *Error
// (unexpected internal failures) exit 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var jerr *Error
	if ok := asJailerError(err, &jerr); ok {
		switch jerr.Kind {
		case KindInput:
			return 2
		case KindFilesystem:
			return 3
		case KindCgroup:
			return 4
		case KindNamespace:
			return 5
		case KindFdProtocol:
			return 6
		case KindCredential:
			return 7
		case KindExec:
			return 8
		}
	}
	return 1
}

func asJailerError(err error, target **Error) bool {
	for err != nil {
		if je, ok := err.(*Error); ok {
			*target = je
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
