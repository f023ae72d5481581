package jailer

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// knownControllers is the set of cgroup v1 controllers the jailer
// populates. A deployment without one of these mounted simply skips it;
// only a failure to write an attribute that is actually present is
// fatal.
var knownControllers = []string{"cpu", "cpuset", "cpuacct", "pids", "memory"}

// mustPopulateBeforeAttach lists attributes that must be non-empty
// before the kernel will accept a task into a cpuset subtree.
var mustPopulateBeforeAttach = map[string][]string{
	"cpuset": {"cpuset.mems", "cpuset.cpus"},
}

// Cgroup represents the per-controller cgroup v1 directories created for
// one jailed instance.
type Cgroup struct {
	execName string
	id       string
	numaNode int

	// mountRoots maps controller name to its cgroup v1 mount root, as
	// discovered from /proc/mounts.
	mountRoots map[string]string

	// procMountsPath and sysfsNodePath are overridable for tests; they
	// default to the real /proc/mounts and /sys/devices/system/node.
	procMountsPath string
	sysfsNodePath  string
}

// NewCgroup discovers cgroup v1 mounts and prepares (without yet
// creating) a Cgroup for execName/id pinned to numaNode.
func NewCgroup(execName, id string, numaNode int) (*Cgroup, error) {
	cg := &Cgroup{
		execName:       execName,
		id:             id,
		numaNode:       numaNode,
		procMountsPath: "/proc/mounts",
		sysfsNodePath:  "/sys/devices/system/node",
	}
	roots, err := parseProcMounts(cg.procMountsPath, knownControllers)
	if err != nil {
		return nil, err
	}
	cg.mountRoots = roots
	return cg, nil
}

// parseProcMounts scans a /proc/mounts-formatted file and returns, for
// each controller in want that has exactly one cgroup mount line naming
// it, that mount's directory. A controller that is ambiguous (named by
// more than one cgroup mount) is a fatal KindCgroup error; a controller
// simply absent from the mount table is skipped, not an error, since not
// every deployment mounts every controller.
func parseProcMounts(path string, want []string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, newError(KindCgroup, "read "+path, err)
	}
	defer f.Close()

	found := make(map[string][]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[2] != "cgroup" {
			continue
		}
		mountDir := fields[1]
		opts := strings.Split(fields[3], ",")
		for _, ctrl := range want {
			for _, opt := range opts {
				if opt == ctrl {
					found[ctrl] = append(found[ctrl], mountDir)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, newError(KindCgroup, "read "+path, err)
	}

	roots := make(map[string]string)
	for ctrl, dirs := range found {
		if len(dirs) > 1 {
			return nil, newError(KindCgroup, fmt.Sprintf("controller %q matched by multiple mounts: %v", ctrl, dirs), nil)
		}
		roots[ctrl] = dirs[0]
	}
	return roots, nil
}

// controllerDir returns <mount>/firecracker/<exec_name>/<id> for ctrl.
func (cg *Cgroup) controllerDir(ctrl string) string {
	root := cg.mountRoots[ctrl]
	return filepath.Join(root, "firecracker", cg.execName, cg.id)
}

// Create builds the per-controller directory chains and populates the
// attributes that must be non-empty before a task may attach, inheriting
// values from the nearest non-empty ancestor as the kernel's cpuset
// semantics require. The numa node overrides inheritance for
// cpuset.mems and, when cpulist seeding is possible, cpuset.cpus.
func (cg *Cgroup) Create() error {
	for ctrl, root := range cg.mountRoots {
		dir := cg.controllerDir(ctrl)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return newError(KindCgroup, "create "+dir, err)
		}

		for _, attr := range mustPopulateBeforeAttach[ctrl] {
			if err := cg.populateInherited(root, dir, ctrl, attr); err != nil {
				return err
			}
		}
	}
	return nil
}

// populateInherited writes attr in dir, taking the value from the numa
// override when applicable, and otherwise from the first ancestor
// (walking upward toward root) whose attr file is non-empty. A
// "copy from immediate parent" policy is insufficient here: intermediate
// directories created empty by other jailers would break inheritance,
// so the walk continues until root.
func (cg *Cgroup) populateInherited(root, dir, ctrl, attr string) error {
	if ctrl == "cpuset" {
		switch attr {
		case "cpuset.mems":
			return writeAttr(filepath.Join(dir, attr), strconv.Itoa(cg.numaNode))
		case "cpuset.cpus":
			if cpulist, err := cg.numaCPUList(); err == nil && cpulist != "" {
				return writeAttr(filepath.Join(dir, attr), cpulist)
			}
		}
	}

	value, err := cg.firstNonEmptyAncestor(root, dir, attr)
	if err != nil {
		return err
	}
	return writeAttr(filepath.Join(dir, attr), value)
}

// firstNonEmptyAncestor walks from the parent of dir up to root,
// returning the first non-empty value found for attr. It is a
// KindCgroup error if no ancestor has a non-empty value.
func (cg *Cgroup) firstNonEmptyAncestor(root, dir, attr string) (string, error) {
	cur := filepath.Dir(dir)
	for {
		data, err := os.ReadFile(filepath.Join(cur, attr))
		if err == nil {
			if v := strings.TrimSpace(string(data)); v != "" {
				return v, nil
			}
		}
		if cur == root || cur == "/" || cur == "." {
			break
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return "", newError(KindCgroup, "no ancestor of "+dir+" has a non-empty "+attr, nil)
}

// numaCPUList reads /sys/devices/system/node/nodeN/cpulist for cg's
// numaNode.
func (cg *Cgroup) numaCPUList() (string, error) {
	path := filepath.Join(cg.sysfsNodePath, fmt.Sprintf("node%d", cg.numaNode), "cpulist")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// AttachSelf appends pid to tasks in every controller directory this
// Cgroup created, making the cgroup "live" for the calling process and,
// after exec, for the target it becomes.
func (cg *Cgroup) AttachSelf(pid int) error {
	for ctrl := range cg.mountRoots {
		dir := cg.controllerDir(ctrl)
		if err := appendAttr(filepath.Join(dir, "tasks"), strconv.Itoa(pid)); err != nil {
			return err
		}
	}
	return nil
}

// WriteAttr sets a single named attribute in every controller directory
// this Cgroup created. Used by callers who need to set controller
// attributes beyond the must-populate-before-attach set (resource
// limits, for instance), outside the core jailer state machine.
func (cg *Cgroup) WriteAttr(name, value string) error {
	for ctrl := range cg.mountRoots {
		dir := cg.controllerDir(ctrl)
		if err := writeAttr(filepath.Join(dir, name), value); err != nil {
			return err
		}
	}
	return nil
}

func writeAttr(path, value string) error {
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return newError(KindCgroup, "write "+path, err)
	}
	return nil
}

func appendAttr(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return newError(KindCgroup, "open "+path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(value); err != nil {
		return newError(KindCgroup, "write "+path, err)
	}
	return nil
}
