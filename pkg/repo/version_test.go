package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextVersionLabel(t *testing.T) {
	cases := []struct {
		current  string
		kind     VersionType
		expected string
	}{
		{"1.0", VersionMinor, "1.1"},
		{"1.9", VersionMinor, "1.10"},
		{"1.0", VersionMajor, "2.0"},
		{"1.7", VersionMajor, "2.0"},
		{"2.3", VersionMinor, "2.4"},
		{"10.0", VersionMajor, "11.0"},
	}
	for _, c := range cases {
		label, err := NextVersionLabel(c.current, c.kind)
		require.NoError(t, err)
		require.Equal(t, c.expected, label, "%s + %s", c.current, c.kind)
	}
}

func TestNextVersionLabelMalformed(t *testing.T) {
	for _, label := range []string{"", "1", "v1.0", "1.x"} {
		_, err := NextVersionLabel(label, VersionMinor)
		require.Error(t, err, "label %q", label)
	}
}

func TestCompareVersionLabels(t *testing.T) {
	require.Equal(t, -1, CompareVersionLabels("1.9", "1.10"))
	require.Equal(t, -1, CompareVersionLabels("1.10", "2.0"))
	require.Equal(t, 0, CompareVersionLabels("2.0", "2.0"))
	require.Equal(t, 1, CompareVersionLabels("2.1", "2.0"))
}

func TestErrorKindRoundTrip(t *testing.T) {
	err := NewErrorAt(KindConflict, "name already exists", "report.txt")
	require.EqualError(t, err, "name already exists: report.txt")

	kind, ok := KindOf(err)
	require.True(t, ok)
	require.Equal(t, KindConflict, kind)
	require.True(t, IsKind(err, KindConflict))
	require.False(t, IsKind(err, KindNotFound))

	_, ok = KindOf(nil)
	require.False(t, ok)
}

func TestPermissionGrants(t *testing.T) {
	require.True(t, PermissionGrants("Consumer", ActionRead))
	require.False(t, PermissionGrants("Consumer", ActionUpdate))
	require.True(t, PermissionGrants("Contributor", ActionCreateChild))
	require.True(t, PermissionGrants("Coordinator", ActionChangePermissions))
	require.False(t, PermissionGrants("Editor", ActionDelete))
	require.False(t, PermissionGrants("Overlord", ActionRead))
}

func TestLockExpired(t *testing.T) {
	now := time.Now()

	unbounded := &LockInfo{}
	require.False(t, unbounded.Expired(now), "zero expiry never expires")

	bounded := &LockInfo{ExpiresAt: now.Add(-time.Second)}
	require.True(t, bounded.Expired(now))
	require.False(t, bounded.Expired(now.Add(-2*time.Second)))
}
