package commands

import (
	"context"
	"errors"
	"flag"
	"io"
	"strings"

	"taskbin/internal/config"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct {
	title       optString
	description optString
	status      string
	assignee    string
	unassign    bool
	due         string
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change a task" }
func (c *EditCmd) Usage() string {
	return "taskbin edit [--title <t>] [--desc <text>] [--status <s>] [--assign <user> | --unassign] [--due <date>] <board> <ref>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "desc", "")
	fs.Var(&c.description, "d", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.assignee, "assign", "", "")
	fs.BoolVar(&c.unassign, "unassign", false, "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	update, err := c.update()
	if err != nil {
		return usageError(errOut, err.Error())
	}
	if update.Empty() {
		return usageError(errOut, "nothing to change")
	}

	board, task, _, err := boardAndTask(ctx, sess, args)
	if err != nil {
		return fail(errOut, err)
	}

	if err := sess.Gateway.EditTask(ctx, sess.User.UserID, task.ID, update); err != nil {
		return fail(errOut, err)
	}

	sess.notify(ctx, board.ID, push.KindTaskUpdated)
	return ok(cfg, out)
}

func (c *EditCmd) update() (service.TaskUpdate, error) {
	var u service.TaskUpdate
	if c.title.set {
		title := strings.TrimSpace(c.title.value)
		if title == "" {
			return u, errors.New("title required")
		}
		u.Title = &title
	}
	if c.description.set {
		d := strings.TrimSpace(c.description.value)
		u.Description = &d
	}
	if c.status != "" {
		st, err := parseStatusArg(c.status)
		if err != nil {
			return u, err
		}
		u.Status = &st
	}
	switch {
	case c.unassign && c.assignee != "":
		return u, errors.New("cannot use both --assign and --unassign")
	case c.unassign:
		none := ""
		u.AssigneeID = &none
	case c.assignee != "":
		a := strings.TrimSpace(c.assignee)
		u.AssigneeID = &a
	}
	if c.due != "" {
		due, err := parseDue(c.due)
		if err != nil {
			return u, err
		}
		u.Due = &due
	}
	return u, nil
}
