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
	Register(&EditBoardCmd{})
}

// EditBoardCmd implements the editboard command.
type EditBoardCmd struct {
	name        optString
	description optString
}

func (c *EditBoardCmd) Name() string      { return "editboard" }
func (c *EditBoardCmd) Aliases() []string { return nil }
func (c *EditBoardCmd) Synopsis() string  { return "Rename a board or change its description" }
func (c *EditBoardCmd) Usage() string {
	return "taskbin editboard [--name <name>] [--desc <text>] <board>"
}
func (c *EditBoardCmd) NeedsAuth() bool { return true }

func (c *EditBoardCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.Var(&c.name, "name", "")
	fs.Var(&c.description, "desc", "")
	fs.Var(&c.description, "d", "")
}

func (c *EditBoardCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}

	var update service.BoardUpdate
	if c.name.set {
		name := strings.TrimSpace(c.name.value)
		if name == "" {
			return usageError(errOut, "board name required")
		}
		update.Name = &name
	}
	if c.description.set {
		d := strings.TrimSpace(c.description.value)
		update.Description = &d
	}
	if update.Name == nil && update.Description == nil {
		return usageError(errOut, "nothing to change (use --name or --desc)")
	}

	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}
	if err := sess.Gateway.EditBoard(ctx, sess.User.UserID, board.ID, update); err != nil {
		return fail(errOut, err)
	}

	sess.notify(ctx, board.ID, push.KindTaskUpdated)
	return ok(cfg, out)
}

// optString is a string flag that records whether it was given, so an
// explicit empty value can clear a field.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}
