package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskbin/internal/backend/googletasks"
	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

func init() {
	Register(&ImportCmd{})
}

// ImportSource is where import reads tasks from.
type ImportSource interface {
	ResolveList(ctx context.Context, name string) (googletasks.List, error)
	Tasks(ctx context.Context, listID string, includeCompleted bool) ([]service.TaskInput, error)
}

// ImportCmd copies a Google Tasks list onto a board.
type ImportCmd struct {
	listName  string
	completed bool

	source func(ctx context.Context, cfg *config.Config) (ImportSource, error)
}

// SetSource replaces the Google Tasks client (for testing).
func (c *ImportCmd) SetSource(src ImportSource) {
	c.source = func(context.Context, *config.Config) (ImportSource, error) { return src, nil }
}

// SetList sets the list name and completed flag (for testing).
func (c *ImportCmd) SetList(name string, completed bool) {
	c.listName, c.completed = name, completed
}

func (c *ImportCmd) Name() string      { return "import" }
func (c *ImportCmd) Aliases() []string { return nil }
func (c *ImportCmd) Synopsis() string  { return "Import a Google Tasks list into a board" }
func (c *ImportCmd) Usage() string {
	return "taskbin import [--list <google-list>] [--completed] <board>"
}
func (c *ImportCmd) NeedsAuth() bool { return true }

func (c *ImportCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.listName, "list", "", "")
	fs.StringVar(&c.listName, "l", "", "")
	fs.BoolVar(&c.completed, "completed", false, "")
}

func (c *ImportCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}

	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}

	open := c.source
	if open == nil {
		open = func(ctx context.Context, cfg *config.Config) (ImportSource, error) {
			return googletasks.New(ctx, cfg)
		}
	}
	src, err := open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	}

	list, err := src.ResolveList(ctx, c.listName)
	if err != nil {
		return fail(errOut, err)
	}
	inputs, err := src.Tasks(ctx, list.ID, c.completed)
	if err != nil {
		return fail(errOut, err)
	}

	created := 0
	for _, in := range inputs {
		if _, err := sess.Gateway.CreateTask(ctx, sess.User.UserID, board.ID, in); err != nil {
			if created > 0 {
				sess.notify(ctx, board.ID, push.KindTaskUpdated)
			}
			fmt.Fprintf(errOut, "error: imported %d of %d tasks\n", created, len(inputs))
			return fail(errOut, err)
		}
		created++
	}

	if created > 0 {
		sess.notify(ctx, board.ID, push.KindTaskUpdated)
	}
	if !cfg.Quiet {
		fmt.Fprintf(out, "imported %d tasks from %s\n", created, list.Title)
	}
	return exitcode.Success
}
