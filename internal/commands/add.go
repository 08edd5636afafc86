package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"taskbin/internal/config"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	status      string
	assignee    string
	due         string
}

// SetOptions sets the task flags (for testing).
func (c *AddCmd) SetOptions(description, status, assignee, due string) {
	c.description, c.status, c.assignee, c.due = description, status, assignee, due
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "taskbin add [--desc <text>] [--status <s>] [--assign <user>] [--due <date>] <board> <title...>"
}
func (c *AddCmd) NeedsAuth() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "desc", "", "")
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.status, "s", "", "")
	fs.StringVar(&c.assignee, "assign", "", "")
	fs.StringVar(&c.due, "due", "", "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		return usageError(errOut, "board required")
	}
	title := strings.TrimSpace(strings.Join(args[1:], " "))
	if title == "" {
		return usageError(errOut, "title required")
	}

	input := service.TaskInput{
		Title:       title,
		Description: strings.TrimSpace(c.description),
		Status:      service.StatusNotStarted,
		AssigneeID:  strings.TrimSpace(c.assignee),
	}
	if c.status != "" {
		st, err := parseStatusArg(c.status)
		if err != nil {
			return usageError(errOut, err.Error())
		}
		input.Status = st
	}
	if c.due != "" {
		due, err := parseDue(c.due)
		if err != nil {
			return usageError(errOut, err.Error())
		}
		input.Due = &due
	}

	board, err := resolveBoard(ctx, sess, args[0])
	if err != nil {
		return fail(errOut, err)
	}

	task, err := sess.Gateway.CreateTask(ctx, sess.User.UserID, board.ID, input)
	if err != nil {
		return fail(errOut, err)
	}
	sess.logger().WithField("task", task.ID).Debug("task created")

	sess.notify(ctx, board.ID, push.KindTaskUpdated)
	return ok(cfg, out)
}

// parseStatusArg accepts any spelling the gateway normalizes.
func parseStatusArg(s string) (service.Status, error) {
	st := service.ParseStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("invalid status: %s (use not-started, in-progress or completed)", s)
	}
	return st, nil
}

// dueLayouts are the accepted --due formats.
var dueLayouts = []string{time.DateOnly, time.RFC3339, "2006-01-02T15:04"}

// parseDue parses a due date. Date-only values are local midnight.
func parseDue(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date: %s (use YYYY-MM-DD)", s)
}
