// Package main is the entry point for the proxmate CLI.
//
// proxmate clones virtual machines from a template on a Proxmox VE cluster,
// starts them, waits until they accept SSH connections and runs inline
// shell provisioners on them.
//
// Commands: up, provision, status, halt, destroy, ip, upload, nodes, version.
//
// For detailed usage information, run:
//
//	proxmate --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/proxmate/cmd/proxmate/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
