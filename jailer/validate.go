package jailer

import (
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// idPattern matches ^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$: first character
// alphanumeric, up to 64 characters total, remainder alphanumeric/_/-.
var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)

const maxIDLength = 64

// ValidateID checks an instance id per the id grammar. Every error
// carries the offending input.
func ValidateID(id string) error {
	if id == "" {
		return newError(KindInput, "instance id must not be empty", nil)
	}
	if len(id) > maxIDLength {
		return newError(KindInput, "instance id \""+id+"\" exceeds 64 characters", nil)
	}
	if !idPattern.MatchString(id) {
		return newError(KindInput, "instance id \""+id+"\" must match ^[a-zA-Z0-9][a-zA-Z0-9_-]*$", nil)
	}
	return nil
}

// ValidatePath rejects paths that are not absolute, or that cannot
// round-trip as plain UTF-8 text with no embedded NUL byte. This
// resolves the Open Question in the design about non-text path bytes:
// they are rejected here, at configuration parsing time.
func ValidatePath(path, field string) error {
	if path == "" {
		return newError(KindInput, field+" must not be empty", nil)
	}
	if !strings.HasPrefix(path, "/") {
		return newError(KindInput, field+" \""+path+"\" must be an absolute path", nil)
	}
	if strings.ContainsRune(path, 0) {
		return newError(KindInput, field+" \""+path+"\" contains an embedded NUL byte", nil)
	}
	if !utf8.ValidString(path) {
		return newError(KindInput, field+" "+strconv.Quote(path)+" is not valid UTF-8", nil)
	}
	return nil
}

// ValidateExecFile checks that path exists and is a regular file.
func ValidateExecFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return newError(KindInput, "exec-file \""+path+"\"", err)
	}
	if !info.Mode().IsRegular() {
		return newError(KindInput, "exec-file \""+path+"\" is not a regular file", nil)
	}
	return nil
}

// ValidateNumaNode parses a NUMA node index. Leading '+' or whitespace
// is rejected, matching the strict numeric parsing the spec requires.
func ValidateNumaNode(s string) (int, error) {
	if err := checkStrictNumeric(s); err != nil {
		return 0, newError(KindInput, "node \""+s+"\"", err)
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, newError(KindInput, "node \""+s+"\" must be a non-negative integer", err)
	}
	return n, nil
}

// ValidateUint32 parses a uid/gid value strictly as a 32-bit unsigned
// integer.
func ValidateUint32(s, field string) (uint32, error) {
	if err := checkStrictNumeric(s); err != nil {
		return 0, newError(KindInput, field+" \""+s+"\"", err)
	}
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, newError(KindInput, field+" \""+s+"\" must be a 32-bit unsigned integer", err)
	}
	return uint32(v), nil
}

// ValidateSeccompLevel parses a seccomp level, defaulting to disabled
// when s is empty.
func ValidateSeccompLevel(s string) (SeccompLevel, error) {
	if s == "" {
		return SeccompLevelDisabled, nil
	}
	if err := checkStrictNumeric(s); err != nil {
		return 0, newError(KindInput, "seccomp-level \""+s+"\"", err)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, newError(KindInput, "seccomp-level \""+s+"\" must be numeric", err)
	}
	level := SeccompLevel(n)
	if !level.Valid() {
		return 0, newError(KindInput, "seccomp-level \""+s+"\" must be one of {0, 1, 2}", nil)
	}
	return level, nil
}

// checkStrictNumeric rejects empty input, leading/trailing whitespace
// and a leading '+' sign (the last of which strconv.Atoi would otherwise
// accept).
func checkStrictNumeric(s string) error {
	if s == "" {
		return newError(KindInput, "value must not be empty", nil)
	}
	if strings.TrimSpace(s) != s {
		return newError(KindInput, "value must not contain leading or trailing whitespace", nil)
	}
	if strings.HasPrefix(s, "+") {
		return newError(KindInput, "value must not have a leading '+' sign", nil)
	}
	return nil
}

// DecodeFirecrackerContext decodes a serialized FirecrackerContext,
// rejecting any unknown field. Used to round-trip-verify what the
// jailer would hand to the target.
func DecodeFirecrackerContext(data []byte) (FirecrackerContext, error) {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	var fc FirecrackerContext
	if err := dec.Decode(&fc); err != nil {
		return FirecrackerContext{}, newError(KindInput, "firecracker context", err)
	}
	return fc, nil
}
