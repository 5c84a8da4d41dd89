package main

import (
	"os"

	"github.com/bsv-blockchain/chainstate/cmd/chainstatecli"
)

// Name used by build script for the binaries. (Please keep on single line)
const progname = "chainstate"

// Version & commit strings injected at build with -ldflags -X...
var (
	version string
	commit  string
)

func main() {
	chainstatecli.Run(progname, version, commit, os.Args)
}
