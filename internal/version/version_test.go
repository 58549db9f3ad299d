package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stamp(t *testing.T, version, major, minor, patch, built, commit string) {
	t.Helper()
	previous := []string{Version, Major, Minor, Patch, Built, GitCommit}
	Version, Major, Minor, Patch, Built, GitCommit = version, major, minor, patch, built, commit
	t.Cleanup(func() {
		Version, Major, Minor, Patch, Built, GitCommit = previous[0], previous[1], previous[2], previous[3], previous[4], previous[5]
	})
}

func TestGetVersionInfo(t *testing.T) {
	stamp(t, "1.2.3", "1", "2", "3", "2026-01-11T12:34:56Z", "abc123")

	info := GetVersionInfo()
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, 1, info.Major)
	assert.Equal(t, 2, info.Minor)
	assert.Equal(t, 3, info.Patch)
	assert.Equal(t, "2026-01-11T12:34:56Z", info.Built)
	assert.Equal(t, "abc123", info.GitCommit)
	assert.Equal(t, runtime.Version(), info.GoVersion)
}

func TestGetVersionInfoBadNumbers(t *testing.T) {
	stamp(t, "dev", "x", "", "-", "", "")

	info := GetVersionInfo()
	assert.Zero(t, info.Major)
	assert.Zero(t, info.Minor)
	assert.Zero(t, info.Patch)
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "1.2.3", GitCommit: "abc123", Built: "today", GoVersion: "go1.25.0"}
	assert.Equal(t, "mulay 1.2.3 (abc123, built today) go1.25.0", info.String())

	info = Info{Version: "dev", GoVersion: "go1.25.0"}
	assert.Equal(t, "mulay dev go1.25.0", info.String())
}
