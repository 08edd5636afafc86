package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"taskbin/internal/config"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

func init() {
	Register(&StatusCmd{})
	Register(&DoneCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return []string{"mv"} }
func (c *StatusCmd) Synopsis() string  { return "Move a task to another status" }
func (c *StatusCmd) Usage() string {
	return "taskbin status <board> <ref> <not-started|in-progress|completed|next>"
}
func (c *StatusCmd) NeedsAuth() bool { return true }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	if len(args) < 3 {
		return usageError(errOut, "usage: "+c.Usage())
	}
	target := strings.TrimSpace(strings.Join(args[2:], " "))
	next := strings.EqualFold(target, "next")
	var status service.Status
	if !next {
		st, err := parseStatusArg(target)
		if err != nil {
			return usageError(errOut, err.Error())
		}
		status = st
	}
	return setStatus(ctx, cfg, sess, args[:2], status, next, out, errOut)
}

// DoneCmd marks a task completed.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark a task completed" }
func (c *DoneCmd) Usage() string     { return "taskbin done <board> <ref>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	return setStatus(ctx, cfg, sess, args, service.StatusCompleted, false, out, errOut)
}

// setStatus is the shared implementation for status and done.
func setStatus(ctx context.Context, cfg *config.Config, sess *Session, args []string, status service.Status, next bool, out, errOut io.Writer) int {
	board, task, _, err := boardAndTask(ctx, sess, args)
	if err != nil {
		return fail(errOut, err)
	}
	if next {
		status = task.Status.Next()
	}
	if task.Status == status {
		return ok(cfg, out)
	}

	if err := sess.Gateway.UpdateTaskStatus(ctx, sess.User.UserID, board.ID, task.ID, status); err != nil {
		return fail(errOut, err)
	}

	sess.notify(ctx, board.ID, push.KindTaskUpdated)
	return ok(cfg, out)
}
