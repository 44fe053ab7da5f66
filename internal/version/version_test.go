package version

import "testing"

func TestString(t *testing.T) {
	v, sha, built := Version, GitSHA, BuildTime
	defer func() { Version, GitSHA, BuildTime = v, sha, built }()

	Version, GitSHA, BuildTime = "1.2.0", "0123456789abcdef0123", "2025-03-10T10:00:00Z"
	want := "incident-detect 1.2.0 (0123456789ab, built 2025-03-10T10:00:00Z)"
	if got := String("incident-detect"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	Version, GitSHA, BuildTime = "dev", "abc", "unknown"
	want = "incident-link dev (abc, built unknown)"
	if got := String("incident-link"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
