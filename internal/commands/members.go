package commands

import (
	"context"
	"flag"
	"io"
	"strings"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/output"
	"taskbin/internal/push"
)

func init() {
	Register(&MembersCmd{})
	Register(&CodeCmd{})
	Register(&JoinCmd{})
	Register(&LeaveCmd{})
}

// MembersCmd implements the members command.
type MembersCmd struct{}

func (c *MembersCmd) Name() string      { return "members" }
func (c *MembersCmd) Aliases() []string { return nil }
func (c *MembersCmd) Synopsis() string  { return "List a board's members" }
func (c *MembersCmd) Usage() string     { return "taskbin members <board>" }
func (c *MembersCmd) NeedsAuth() bool   { return true }

func (c *MembersCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MembersCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}
	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}
	members, err := sess.Gateway.ListMembers(ctx, board.ID)
	if err != nil {
		return fail(errOut, err)
	}
	for _, m := range members {
		output.FormatMember(out, m)
	}
	return exitcode.Success
}

// CodeCmd implements the code command.
type CodeCmd struct{}

func (c *CodeCmd) Name() string      { return "code" }
func (c *CodeCmd) Aliases() []string { return nil }
func (c *CodeCmd) Synopsis() string  { return "Get an access code others can join with" }
func (c *CodeCmd) Usage() string     { return "taskbin code <board>" }
func (c *CodeCmd) NeedsAuth() bool   { return true }

func (c *CodeCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *CodeCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}
	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}
	code, err := sess.Gateway.GenerateAccessCode(ctx, sess.User.UserID, board.ID)
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatAccessCode(out, code, sess.now())
	return exitcode.Success
}

// JoinCmd implements the join command.
type JoinCmd struct{}

func (c *JoinCmd) Name() string      { return "join" }
func (c *JoinCmd) Aliases() []string { return nil }
func (c *JoinCmd) Synopsis() string  { return "Join a board with an access code" }
func (c *JoinCmd) Usage() string     { return "taskbin join <code>" }
func (c *JoinCmd) NeedsAuth() bool   { return true }

func (c *JoinCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *JoinCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	code := strings.ToUpper(strings.TrimSpace(strings.Join(args, "")))
	if code == "" {
		return usageError(errOut, "access code required")
	}
	boardID, err := sess.Gateway.JoinBoard(ctx, sess.User.UserID, code)
	if err != nil {
		return fail(errOut, err)
	}
	sess.notify(ctx, boardID, push.KindMemberJoined)
	return ok(cfg, out)
}

// LeaveCmd implements the leave command.
type LeaveCmd struct{}

func (c *LeaveCmd) Name() string      { return "leave" }
func (c *LeaveCmd) Aliases() []string { return nil }
func (c *LeaveCmd) Synopsis() string  { return "Leave a board you are a member of" }
func (c *LeaveCmd) Usage() string     { return "taskbin leave <board>" }
func (c *LeaveCmd) NeedsAuth() bool   { return true }

func (c *LeaveCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LeaveCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}
	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}
	if err := sess.Gateway.LeaveBoard(ctx, sess.User.UserID, board.ID); err != nil {
		return fail(errOut, err)
	}
	sess.notify(ctx, board.ID, push.KindMemberJoined)
	return ok(cfg, out)
}
