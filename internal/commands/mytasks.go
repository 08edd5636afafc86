package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/output"
	"taskbin/internal/service"
)

func init() {
	Register(&MyTasksCmd{})
}

// MyTasksCmd implements the mytasks command: tasks assigned to the current
// user, grouped by board.
type MyTasksCmd struct {
	all bool
}

func (c *MyTasksCmd) Name() string      { return "mytasks" }
func (c *MyTasksCmd) Aliases() []string { return nil }
func (c *MyTasksCmd) Synopsis() string  { return "List tasks assigned to you" }
func (c *MyTasksCmd) Usage() string     { return "taskbin mytasks [--all]" }
func (c *MyTasksCmd) NeedsAuth() bool   { return true }

func (c *MyTasksCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.all, "all", false, "")
}

func (c *MyTasksCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	tasks, err := sess.Gateway.ListUserTasks(ctx, sess.User.UserID)
	if err != nil {
		return fail(errOut, err)
	}

	boards, err := sess.Gateway.ListBoards(ctx, sess.User.UserID)
	if err != nil {
		return fail(errOut, err)
	}

	byBoard := make(map[string][]service.Task)
	for _, t := range tasks {
		if !c.all && t.Status == service.StatusCompleted {
			continue
		}
		byBoard[t.BoardID] = append(byBoard[t.BoardID], t)
	}

	found := false
	printSection := func(name string, ts []service.Task) {
		if len(ts) == 0 {
			return
		}
		output.FormatGroupHeader(out, name, len(ts))
		for i, t := range ts {
			output.FormatUserTask(out, i+1, t)
		}
		found = true
	}

	// Boards in the order the boards command prints them; tasks on boards
	// the user can no longer see come last.
	for _, b := range boards {
		printSection(b.Name, byBoard[b.ID])
		delete(byBoard, b.ID)
	}
	for _, t := range tasks {
		if ts, ok := byBoard[t.BoardID]; ok {
			printSection(t.BoardID, ts)
			delete(byBoard, t.BoardID)
		}
	}

	if !found && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}
	return exitcode.Success
}
