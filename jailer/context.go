// Package jailer builds, in a precise order, the isolation primitives a
// microVM monitor runs inside — a cgroup, an optional network namespace,
// a pivoted mount namespace, a set of pre-opened file descriptors at
// well-known numbers, and a dropped (uid/gid) identity — and then
// replaces itself with the target binary via exec.
//
// The package never rolls back partial state: a failure before exec
// leaves cgroup directories and chroot contents on disk for a
// higher-level caller to clean up. Success is atomic from the target's
// perspective because exec is the commit point.
package jailer

import (
	"encoding/json"
	"path/filepath"
	"strconv"
)

// Reserved fd numbers handed to the target across the exec boundary.
// The handoff is positional: the target reads these fds unconditionally,
// without command-line plumbing.
const (
	// KVMFd is the fd number /dev/kvm must land on.
	KVMFd = 3
	// ListenerFd is the fd number the API socket listener must land on.
	ListenerFd = 4
)

// SocketFileName is the name of the API socket, created as a sibling of
// the chroot's "root" directory.
const SocketFileName = "api.socket"

// DefaultChrootBase is used when ContextParams.ChrootBase is empty.
const DefaultChrootBase = "/srv/jailer"

// SeccompLevel is the forwarded-verbatim seccomp filter level.
type SeccompLevel int

const (
	SeccompLevelDisabled SeccompLevel = 0
	SeccompLevelBasic    SeccompLevel = 1
	SeccompLevelAdvanced SeccompLevel = 2
)

// Valid reports whether l is one of the three recognized levels.
func (l SeccompLevel) Valid() bool {
	return l == SeccompLevelDisabled || l == SeccompLevelBasic || l == SeccompLevelAdvanced
}

// Context is the immutable, validated configuration the jailer acts on.
// It is constructed once via NewContext and never mutated afterward.
type Context struct {
	ID               string
	ExecFilePath     string
	ExecFileName     string
	NumaNode         int
	UID              uint32
	GID              uint32
	ChrootBase       string
	NetNSPath        string
	Daemonize        bool
	SeccompLevel     SeccompLevel
	StartTimeUs      uint64
	StartTimeCPUUs   uint64
}

// ContextParams carries the raw, unvalidated fields a caller (typically
// cmd/jailer's flag parsing) supplies to build a Context.
type ContextParams struct {
	ID             string
	ExecFilePath   string
	NumaNode       string
	UID            string
	GID            string
	ChrootBase     string
	NetNSPath      string
	Daemonize      bool
	SeccompLevel   string
	StartTimeUs    uint64
	StartTimeCPUUs uint64
}

// NewContext validates params per the Validators contract and returns an
// immutable Context, or an *Error of KindInput describing the first
// validation failure. No side effects occur here; the only I/O is the
// stat of the exec file, and everything else happens in later pipeline
// stages.
func NewContext(p ContextParams) (*Context, error) {
	if err := ValidateID(p.ID); err != nil {
		return nil, err
	}
	if err := ValidatePath(p.ExecFilePath, "exec-file"); err != nil {
		return nil, err
	}
	if err := ValidateExecFile(p.ExecFilePath); err != nil {
		return nil, err
	}

	numaNode, err := ValidateNumaNode(p.NumaNode)
	if err != nil {
		return nil, err
	}
	uid, err := ValidateUint32(p.UID, "uid")
	if err != nil {
		return nil, err
	}
	gid, err := ValidateUint32(p.GID, "gid")
	if err != nil {
		return nil, err
	}

	chrootBase := p.ChrootBase
	if chrootBase == "" {
		chrootBase = DefaultChrootBase
	}
	if err := ValidatePath(chrootBase, "chroot-base-dir"); err != nil {
		return nil, err
	}

	if p.NetNSPath != "" {
		if err := ValidatePath(p.NetNSPath, "netns"); err != nil {
			return nil, err
		}
	}

	level, err := ValidateSeccompLevel(p.SeccompLevel)
	if err != nil {
		return nil, err
	}

	return &Context{
		ID:             p.ID,
		ExecFilePath:   p.ExecFilePath,
		ExecFileName:   filepath.Base(p.ExecFilePath),
		NumaNode:       numaNode,
		UID:            uid,
		GID:            gid,
		ChrootBase:     chrootBase,
		NetNSPath:      p.NetNSPath,
		Daemonize:      p.Daemonize,
		SeccompLevel:   level,
		StartTimeUs:    p.StartTimeUs,
		StartTimeCPUUs: p.StartTimeCPUUs,
	}, nil
}

// ChrootDir is <chroot_base>/<exec_file_name>/<id>/root.
func (c *Context) ChrootDir() string {
	return filepath.Join(c.ChrootBase, c.ExecFileName, c.ID, "root")
}

// JailDir is the parent of ChrootDir: <chroot_base>/<exec_file_name>/<id>.
func (c *Context) JailDir() string {
	return filepath.Dir(c.ChrootDir())
}

// APISocketPath is where the API socket is bound on the host: inside
// JailDir, the parent of ChrootDir.
func (c *Context) APISocketPath() string {
	return filepath.Join(c.JailDir(), SocketFileName)
}

// ChrootedExecPath is where the target binary lands after pivot, i.e.
// "/" + basename.
func (c *Context) ChrootedExecPath() string {
	return "/" + c.ExecFileName
}

// FirecrackerContext is the serialized record handed to the target on
// exec. Field names are stable; decoding must reject unknown fields (see
// DecodeFirecrackerContext).
type FirecrackerContext struct {
	ID              string `json:"id"`
	Jailed          bool   `json:"jailed"`
	SeccompLevel    uint32 `json:"seccomp_level"`
	StartTimeUs     uint64 `json:"start_time_us"`
	StartTimeCPUUs  uint64 `json:"start_time_cpu_us"`
}

// BuildContext renders the Context that will be serialized and passed as
// an argument to the target binary.
func (c *Context) BuildContext() FirecrackerContext {
	return FirecrackerContext{
		ID:             c.ID,
		Jailed:         true,
		SeccompLevel:   uint32(c.SeccompLevel),
		StartTimeUs:    c.StartTimeUs,
		StartTimeCPUUs: c.StartTimeCPUUs,
	}
}

// ExecArgv returns the argv the target is exec'd with: its own path
// (argv[0]), the instance id, the serialized context, and the seccomp
// level, in that order. Environment is passed through unsanitized by the
// caller.
func (c *Context) ExecArgv() ([]string, error) {
	fc := c.BuildContext()
	encoded, err := json.Marshal(fc)
	if err != nil {
		return nil, newError(KindExec, "encode firecracker context", err)
	}
	return []string{
		c.ChrootedExecPath(),
		"--id", c.ID,
		"--context", string(encoded),
		"--seccomp-level", strconv.Itoa(int(c.SeccompLevel)),
	}, nil
}
