package jailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	valid := []string{"alice", "a", "a1", "a-b_c", "A1_2-3"}
	for _, id := range valid {
		assert.NoError(t, ValidateID(id), "expected %q to be valid", id)
	}

	invalid := []string{"", "-abc", "_abc", "../evil", "has space", "trailing/slash"}
	for _, id := range invalid {
		assert.Error(t, ValidateID(id), "expected %q to be rejected", id)
	}

	over := make([]byte, 65)
	for i := range over {
		over[i] = 'a'
	}
	assert.Error(t, ValidateID(string(over)), "expected 65-character id to be rejected")
}

func TestValidateIDRoundTrip(t *testing.T) {
	// An id is accepted by validation iff it matches
	// ^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$.
	cases := []string{"ok", "not ok", "-no", "0-k_", ""}
	for _, id := range cases {
		wantValid := idPattern.MatchString(id)
		gotValid := ValidateID(id) == nil
		assert.Equal(t, wantValid, gotValid, "mismatch for id %q", id)
	}
}

func TestValidateUint32(t *testing.T) {
	v, err := ValidateUint32("123", "uid")
	require.NoError(t, err)
	assert.Equal(t, uint32(123), v)

	for _, bad := range []string{"", "+123", " 123", "123 ", "-1", "abc", "4294967296"} {
		_, err := ValidateUint32(bad, "uid")
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestValidateNumaNode(t *testing.T) {
	n, err := ValidateNumaNode("0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = ValidateNumaNode("-1")
	assert.Error(t, err)
}

func TestValidateSeccompLevel(t *testing.T) {
	for _, s := range []string{"0", "1", "2"} {
		_, err := ValidateSeccompLevel(s)
		assert.NoError(t, err)
	}
	for _, s := range []string{"3", "-1", "abc"} {
		_, err := ValidateSeccompLevel(s)
		assert.Error(t, err)
	}
	level, err := ValidateSeccompLevel("")
	require.NoError(t, err)
	assert.Equal(t, SeccompLevelDisabled, level)
}

func TestValidatePathRejectsNonAbsolute(t *testing.T) {
	assert.Error(t, ValidatePath("relative/path", "exec-file"))
	assert.NoError(t, ValidatePath("/absolute/path", "exec-file"))
	assert.Error(t, ValidatePath("/has\x00nul", "exec-file"))
}

func TestDecodeFirecrackerContextRejectsUnknownFields(t *testing.T) {
	good := `{"id":"alice","jailed":true,"seccomp_level":2,"start_time_us":1,"start_time_cpu_us":2}`
	fc, err := DecodeFirecrackerContext([]byte(good))
	require.NoError(t, err)
	assert.Equal(t, "alice", fc.ID)
	assert.True(t, fc.Jailed)

	bad := `{"id":"alice","jailed":true,"seccomp_level":2,"start_time_us":1,"start_time_cpu_us":2,"extra":"field"}`
	_, err = DecodeFirecrackerContext([]byte(bad))
	assert.Error(t, err)
}
