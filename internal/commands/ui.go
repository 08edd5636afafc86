package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/tui"
)

func init() {
	Register(&UICmd{})
}

// UICmd starts the interactive board view.
type UICmd struct{}

func (c *UICmd) Name() string      { return "ui" }
func (c *UICmd) Aliases() []string { return nil }
func (c *UICmd) Synopsis() string  { return "Interactive board view" }
func (c *UICmd) Usage() string     { return "taskbin ui [<board>]" }
func (c *UICmd) NeedsAuth() bool   { return true }

func (c *UICmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UICmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	opts := tui.Options{
		Gateway: sess.Gateway,
		User:    sess.User,
		Push:    sess.Push,
		Logger:  sess.logger(),
		Now:     sess.Now,
	}
	if len(args) > 0 {
		board, err := resolveBoard(ctx, sess, args[0])
		if err != nil {
			return fail(errOut, err)
		}
		opts.Board = board.ID
	}

	if err := tui.Run(ctx, opts, os.Stdin, out); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
