package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
)

// Version is the application version. Set at build time.
var Version = "0.1.0"

func init() {
	Register(&VersionCmd{})
}

// VersionCmd prints the version, and with --verbose the backend in use.
type VersionCmd struct {
	verbose bool
}

func (c *VersionCmd) Name() string      { return "version" }
func (c *VersionCmd) Aliases() []string { return nil }
func (c *VersionCmd) Synopsis() string  { return "Print version and backend" }
func (c *VersionCmd) Usage() string     { return "taskbin version [--verbose]" }
func (c *VersionCmd) NeedsAuth() bool   { return false }

func (c *VersionCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "verbose", false, "")
}

func (c *VersionCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	fmt.Fprintf(out, "taskbin %s\n", Version)
	if !c.verbose {
		return exitcode.Success
	}

	backend := cfg.Settings.APIBaseURL
	switch {
	case cfg.Settings.UseMock:
		backend = "mock (in-process)"
	case backend == "":
		backend = "not configured"
	}
	fmt.Fprintf(out, "go:      %s\n", runtime.Version())
	fmt.Fprintf(out, "backend: %s\n", backend)
	fmt.Fprintf(out, "config:  %s\n", cfg.Dir)
	return exitcode.Success
}
