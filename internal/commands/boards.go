package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/output"
)

func init() {
	Register(&BoardsCmd{})
}

// BoardsCmd implements the boards command.
// Handles both `taskbin` (no args) and `taskbin boards`.
type BoardsCmd struct{}

func (c *BoardsCmd) Name() string      { return "boards" }
func (c *BoardsCmd) Aliases() []string { return nil }
func (c *BoardsCmd) Synopsis() string  { return "List your boards" }
func (c *BoardsCmd) Usage() string     { return "taskbin boards [common flags]" }
func (c *BoardsCmd) NeedsAuth() bool   { return true }

func (c *BoardsCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *BoardsCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	boards, err := sess.Gateway.ListBoards(ctx, sess.User.UserID)
	if err != nil {
		return fail(errOut, err)
	}

	if len(boards) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no boards found")
		}
		return exitcode.Success
	}

	for i, b := range boards {
		output.FormatBoardLine(out, i+1, b)
	}
	return exitcode.Success
}
