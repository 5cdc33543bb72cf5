// Package compileinfo reports the module version and VCS state a binary was
// built from, so that results can be traced back to the code that made them.
package compileinfo

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
)

type CompileInfo struct {
	Binary     string
	Package    string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " (modified after that commit)"
	}

	if c.Commit == "" {
		return fmt.Sprintf("%s (%s %s) built with %s, no VCS information", c.Binary, c.Package, c.Version, c.GoVersion)
	}

	return fmt.Sprintf("%s (%s %s) built with %s at commit %s from %s%s", c.Binary, c.Package, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
}

func Get() CompileInfo {
	out := CompileInfo{Binary: filepath.Base(os.Args[0])}

	z, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = z.GoVersion
	out.Package = z.Path
	out.Version = z.Main.Version
	for _, s := range z.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintf(os.Stderr, "%s\n", Get())
}
