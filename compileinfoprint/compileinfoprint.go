// Package compileinfoprint is imported by binaries for the side effect of
// printing their build information to stderr at start-up.
package compileinfoprint

import "github.com/reefgenomics/symbiomisc/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
