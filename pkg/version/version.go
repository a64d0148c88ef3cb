package version

import (
	"fmt"
	"runtime"
)

const fallbackVersion = "v0.0.0-dev"

// Version and GitCommit are set at build time with -ldflags -X.
var (
	Version   string
	GitCommit string
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	GoVersion string
}

// Get returns the build information, falling back to a development version
// when none was injected.
func Get() Info {
	v := Version
	if v == "" {
		v = fallbackVersion
	}
	return Info{
		Version:   v,
		Commit:    GitCommit,
		GoVersion: fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent is sent with every catalog download.
func UserAgent() string {
	return "tplmerge/" + Get().Version
}
