package jailer

// FdPrep owns the two positional file descriptors handed to the target
// across exec: KVMFd for /dev/kvm and ListenerFd for the API socket.
// The handoff is positional rather than named so the target never has to
// parse extra arguments to locate them.
type FdPrep struct{}
