// Package main is the entry point for the sambadc CLI.
//
// sambadc turns the host it runs on into a Samba Active Directory domain
// controller, either as the first DC of a new forest or as an additional DC
// of an existing domain.
//
// Commands: provision, join, verify, version.
//
// For detailed usage information, run:
//
//	sambadc --help
package main

import (
	"fmt"
	"os"

	"github.com/isometry/terraform-provider-sambadc/cmd/sambadc/commands"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
