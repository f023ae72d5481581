package jailer

// State names a step of the orchestration state machine. Transitions
// are forward-only; there is no rollback. A failure at any state before
// EXEC returns an error to the caller, and partial state (cgroup
// directories, chroot contents) is left on disk for a higher-level
// cleanup to remove.
type State int

const (
	StateInit State = iota
	StateValidated
	StateFdsSanitized
	StateKVMOpen
	StateCgroupJoined
	StateNetnsJoined
	StateMntnsUnshared
	StateChrooted
	StateSocketBound
	StateCloexecCleared
	StatePivoted
	StatePrivsDropped
	StateDaemonized
	StateExec
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateValidated:
		return "VALIDATED"
	case StateFdsSanitized:
		return "FDS_SANITIZED"
	case StateKVMOpen:
		return "KVM_OPEN"
	case StateCgroupJoined:
		return "CGROUP_JOINED"
	case StateNetnsJoined:
		return "NETNS_JOINED"
	case StateMntnsUnshared:
		return "MNTNS_UNSHARED"
	case StateChrooted:
		return "CHROOTED"
	case StateSocketBound:
		return "SOCKET_BOUND"
	case StateCloexecCleared:
		return "CLOEXEC_CLEARED"
	case StatePivoted:
		return "PIVOTED"
	case StatePrivsDropped:
		return "PRIVS_DROPPED"
	case StateDaemonized:
		return "DAEMONIZED"
	case StateExec:
		return "EXEC"
	default:
		return "UNKNOWN"
	}
}

// Env is the orchestrator: it owns a Context plus the component
// instances (Cgroup, ChrootBuilder, FdPrep) and drives them through the
// state machine in Run. Apart from NewEnv reading /proc/mounts to
// discover cgroup mounts, Env performs no I/O until Run is called.
type Env struct {
	ctx     *Context
	cgroup  *Cgroup
	chroot  *ChrootBuilder
	fdPrep  FdPrep
	state   State
	kvmFd   int
	listenFd int
}

// NewEnv wires a Cgroup and ChrootBuilder for ctx. ctx must already be
// validated (NewContext does this).
func NewEnv(ctx *Context) (*Env, error) {
	cgroup, err := NewCgroup(ctx.ExecFileName, ctx.ID, ctx.NumaNode)
	if err != nil {
		return nil, err
	}
	return &Env{
		ctx:   ctx,
		cgroup: cgroup,
		chroot: &ChrootBuilder{
			ChrootDir:    ctx.ChrootDir(),
			ExecFilePath: ctx.ExecFilePath,
			ExecFileName: ctx.ExecFileName,
			UID:          ctx.UID,
			GID:          ctx.GID,
		},
		state:    StateValidated,
		kvmFd:    -1,
		listenFd: -1,
	}, nil
}

// State returns the last state this Env successfully reached. Useful
// for diagnostics when Run returns an error.
func (e *Env) State() State {
	return e.state
}
