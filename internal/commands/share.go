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
	Register(&ShareCmd{})
	Register(&UnshareCmd{})
}

// ShareCmd implements the share command.
type ShareCmd struct {
	role string
}

func (c *ShareCmd) Name() string      { return "share" }
func (c *ShareCmd) Aliases() []string { return nil }
func (c *ShareCmd) Synopsis() string  { return "Add a user to a board" }
func (c *ShareCmd) Usage() string     { return "taskbin share [--role <role>] <board> <user-id>" }
func (c *ShareCmd) NeedsAuth() bool   { return true }

func (c *ShareCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.role, "role", string(service.RoleMember), "")
}

func (c *ShareCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	board, target, code, done := boardAndUser(ctx, sess, args, errOut)
	if done {
		return code
	}
	role := service.ParseRole(c.role)
	if role == service.RoleOwner {
		return usageError(errOut, "cannot share a board as owner")
	}
	if err := sess.Gateway.ShareBoard(ctx, sess.User.UserID, board.ID, target, role); err != nil {
		return fail(errOut, err)
	}
	sess.notify(ctx, board.ID, push.KindMemberJoined)
	return ok(cfg, out)
}

// UnshareCmd implements the unshare command.
type UnshareCmd struct{}

func (c *UnshareCmd) Name() string      { return "unshare" }
func (c *UnshareCmd) Aliases() []string { return nil }
func (c *UnshareCmd) Synopsis() string  { return "Remove a user from a board" }
func (c *UnshareCmd) Usage() string     { return "taskbin unshare <board> <user-id>" }
func (c *UnshareCmd) NeedsAuth() bool   { return true }

func (c *UnshareCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *UnshareCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	board, target, code, done := boardAndUser(ctx, sess, args, errOut)
	if done {
		return code
	}
	if err := sess.Gateway.UnshareBoard(ctx, sess.User.UserID, board.ID, target); err != nil {
		return fail(errOut, err)
	}
	sess.notify(ctx, board.ID, push.KindMemberJoined)
	return ok(cfg, out)
}

// boardAndUser resolves "<board> <user-id>". When done is true the command
// has already reported an error and must return code.
func boardAndUser(ctx context.Context, sess *Session, args []string, errOut io.Writer) (service.Board, string, int, bool) {
	if len(args) < 2 {
		return service.Board{}, "", usageError(errOut, "board and user id required"), true
	}
	target := strings.TrimSpace(args[1])
	if target == "" {
		return service.Board{}, "", usageError(errOut, "user id required"), true
	}
	board, err := resolveBoard(ctx, sess, args[0])
	if err != nil {
		return service.Board{}, "", fail(errOut, err), true
	}
	return board, target, 0, false
}
