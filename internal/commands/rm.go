package commands

import (
	"context"
	"flag"
	"io"

	"taskbin/internal/config"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return nil }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "taskbin rm <board> <ref>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	board, task, _, err := boardAndTask(ctx, sess, args)
	if err != nil {
		return fail(errOut, err)
	}

	// Someone else deleting it first still leaves it deleted.
	err = sess.Gateway.DeleteTask(ctx, sess.User.UserID, board.ID, task.ID)
	if err != nil && !service.IsNotFound(err) {
		return fail(errOut, err)
	}

	sess.notify(ctx, board.ID, push.KindTaskUpdated)
	return ok(cfg, out)
}
