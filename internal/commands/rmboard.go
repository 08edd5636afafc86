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
	Register(&RmBoardCmd{})
}

// RmBoardCmd implements the rmboard command.
type RmBoardCmd struct {
	force bool
}

// SetForce sets the force flag (for testing).
func (c *RmBoardCmd) SetForce(force bool) {
	c.force = force
}

func (c *RmBoardCmd) Name() string      { return "rmboard" }
func (c *RmBoardCmd) Aliases() []string { return nil }
func (c *RmBoardCmd) Synopsis() string  { return "Delete a board you own" }
func (c *RmBoardCmd) Usage() string     { return "taskbin rmboard [--force] <board>" }
func (c *RmBoardCmd) NeedsAuth() bool   { return true }

func (c *RmBoardCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.force, "force", false, "")
}

func (c *RmBoardCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}

	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}

	if board.Role == service.RoleMember {
		return usageError(errOut, "only the owner can delete a board (use leave)")
	}

	// Check if board has open tasks (unless --force)
	if !c.force {
		tasks, err := sess.Gateway.ListTasks(ctx, board.ID)
		if err != nil {
			return fail(errOut, err)
		}
		for _, t := range tasks {
			if t.Status != service.StatusCompleted {
				return usageError(errOut, "board has open tasks (use --force)")
			}
		}
	}

	if err := sess.Gateway.DeleteBoard(ctx, sess.User.UserID, board.ID); err != nil {
		return fail(errOut, err)
	}

	sess.notify(ctx, board.ID, push.KindBoardDeleted)
	return ok(cfg, out)
}
