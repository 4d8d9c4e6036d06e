// Command patchgraph runs, records and replays patch graph scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/StitchDesign/Stitch-sub007/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
