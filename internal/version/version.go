// Package version reports the build identity stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
	"strconv"
)

// Set at build time, e.g.
//
//	go build -ldflags "-X mulay/internal/version.Version=1.2.3 -X mulay/internal/version.GitCommit=abc123"
var (
	Version   = "dev"
	Major     = "0"
	Minor     = "0"
	Patch     = "0"
	Built     = ""
	GitCommit = ""
)

type Info struct {
	Version   string `json:"version"`
	Major     int    `json:"major"`
	Minor     int    `json:"minor"`
	Patch     int    `json:"patch"`
	Built     string `json:"built,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
}

func GetVersionInfo() Info {
	return Info{
		Version:   Version,
		Major:     parseInt(Major),
		Minor:     parseInt(Minor),
		Patch:     parseInt(Patch),
		Built:     Built,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
	}
}

// String renders the one-line form printed by `mulay version`.
func (i Info) String() string {
	line := "mulay " + i.Version
	switch {
	case i.GitCommit != "" && i.Built != "":
		line += fmt.Sprintf(" (%s, built %s)", i.GitCommit, i.Built)
	case i.GitCommit != "":
		line += fmt.Sprintf(" (%s)", i.GitCommit)
	case i.Built != "":
		line += fmt.Sprintf(" (built %s)", i.Built)
	}
	return line + " " + i.GoVersion
}

func parseInt(value string) int {
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return parsed
}
