package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/output"
	"taskbin/internal/service"
)

func init() {
	Register(&BoardCmd{})
}

// BoardCmd implements the board command: one board grouped by status.
type BoardCmd struct{}

func (c *BoardCmd) Name() string      { return "board" }
func (c *BoardCmd) Aliases() []string { return []string{"tasks"} }
func (c *BoardCmd) Synopsis() string  { return "Show a board's tasks grouped by status" }
func (c *BoardCmd) Usage() string     { return "taskbin board [common flags] <board>" }
func (c *BoardCmd) NeedsAuth() bool   { return true }

func (c *BoardCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *BoardCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}

	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}

	tasks, err := sess.Gateway.ListTasks(ctx, board.ID)
	if err != nil {
		return fail(errOut, err)
	}

	output.FormatBoard(out, board, service.GroupByStatus(tasks))
	return exitcode.Success
}
