package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
)

func init() {
	Register(&MkBoardCmd{})
}

// MkBoardCmd implements the mkboard command.
type MkBoardCmd struct {
	description string
}

// SetDescription sets the description (for testing).
func (c *MkBoardCmd) SetDescription(d string) {
	c.description = d
}

func (c *MkBoardCmd) Name() string      { return "mkboard" }
func (c *MkBoardCmd) Aliases() []string { return []string{"createboard"} }
func (c *MkBoardCmd) Synopsis() string  { return "Create a board" }
func (c *MkBoardCmd) Usage() string     { return "taskbin mkboard [--desc <text>] <name...>" }
func (c *MkBoardCmd) NeedsAuth() bool   { return true }

func (c *MkBoardCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "desc", "", "")
	fs.StringVar(&c.description, "d", "", "")
}

func (c *MkBoardCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return usageError(errOut, "board name required")
	}

	board, err := sess.Gateway.CreateBoard(ctx, sess.User.UserID, name, strings.TrimSpace(c.description))
	if err != nil {
		return fail(errOut, err)
	}

	// Printed even when quiet.
	fmt.Fprintln(out, board.ID)
	return exitcode.Success
}
