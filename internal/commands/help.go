package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskbin help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskbin                                          List your boards
  taskbin boards
  taskbin board <board>                            Show a board grouped by status
  taskbin mkboard [--desc <text>] <name...>
  taskbin editboard [--name <name>] [--desc <text>] <board>
  taskbin rmboard [--force] <board>
  taskbin mytasks [--all]
  taskbin add [--desc <text>] [--status <s>] [--assign <user>] [--due <date>] <board> <title...>
  taskbin edit [--title <t>] [--desc <text>] [--status <s>] [--assign <user> | --unassign] [--due <date>] <board> <ref>
  taskbin status <board> <ref> <not-started|in-progress|completed|next>
  taskbin done <board> <ref>
  taskbin rm <board> <ref>
  taskbin members <board>
  taskbin code <board>
  taskbin join <code>
  taskbin leave <board>
  taskbin share [--role <role>] <board> <user-id>
  taskbin unshare <board> <user-id>
  taskbin watch <board>                            Print the board whenever it changes
  taskbin ui                                       Interactive board view
  taskbin import [--list <google-list>] [--completed] <board>
  taskbin serve-mock [--addr <host:port>] [--db <path>] [--redis <url>]
  taskbin login [--mock --email <email> [--name <name>] | --google]
  taskbin logout [--google]
  taskbin whoami
  taskbin help
  taskbin version

A <board> is a board id, its number in 'taskbin boards', or its name.
A <ref> is a task number from 'taskbin board' or a task id.

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
`
