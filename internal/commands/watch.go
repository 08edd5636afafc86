package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/output"
	"taskbin/internal/push"
	"taskbin/internal/store"
)

func init() {
	Register(&WatchCmd{})
}

// WatchCmd prints a board and reprints it whenever the push channel reports
// a change.
type WatchCmd struct{}

func (c *WatchCmd) Name() string      { return "watch" }
func (c *WatchCmd) Aliases() []string { return nil }
func (c *WatchCmd) Synopsis() string  { return "Print a board whenever it changes" }
func (c *WatchCmd) Usage() string     { return "taskbin watch <board>" }
func (c *WatchCmd) NeedsAuth() bool   { return true }

func (c *WatchCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WatchCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	ref := strings.Join(args, " ")
	if strings.TrimSpace(ref) == "" {
		return usageError(errOut, "board required")
	}
	if !sess.Push.Enabled() {
		return usageError(errOut, "push_url not configured")
	}

	board, err := resolveBoard(ctx, sess, ref)
	if err != nil {
		return fail(errOut, err)
	}

	listener, err := sess.Push.Listen(ctx, board.ID, sess.User.UserID)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
	defer listener.Close()

	w := &boardWatcher{
		sess:  sess,
		store: store.New(),
		out:   out,
		log:   sess.logger().WithField("board", board.ID),
	}
	w.epoch = w.store.Open(board.ID)
	w.store.SetBoard(w.epoch, board)
	tasks := store.NewCoalescer(func() { w.refetchTasks(ctx) })
	members := store.NewCoalescer(func() { w.refetchMembers(ctx) })
	defer func() {
		w.store.Close()
		tasks.Wait()
		members.Wait()
	}()

	tasks.Trigger()
	for {
		select {
		case <-ctx.Done():
			return exitcode.Success
		case ev, ok := <-listener.Events():
			if !ok {
				if err := listener.Err(); err != nil {
					fmt.Fprintf(errOut, "error: backend error: %v\n", err)
					return exitcode.BackendError
				}
				return exitcode.Success
			}
			w.log.WithFields(log.Fields{"kind": ev.Kind, "from": ev.UserID}).Debug("push event")
			switch ev.Kind {
			case push.KindTaskUpdated:
				tasks.Trigger()
			case push.KindMemberJoined:
				members.Trigger()
			case push.KindBoardDeleted:
				w.print(func() { fmt.Fprintln(out, "board deleted") })
				return exitcode.Success
			}
		}
	}
}

// boardWatcher refetches into a store and prints after every accepted result.
type boardWatcher struct {
	sess  *Session
	store *store.Store
	epoch store.Epoch
	out   io.Writer
	log   *log.Entry

	mu      sync.Mutex
	printed bool
}

func (w *boardWatcher) refetchTasks(ctx context.Context) {
	boardID, _ := w.store.Current()
	if boardID == "" {
		return
	}
	tasks, err := w.sess.Gateway.ListTasks(ctx, boardID)
	if err != nil {
		w.log.WithError(err).Warn("task refetch failed")
		return
	}
	if !w.store.SetTasks(w.epoch, tasks) {
		return
	}
	board, _ := w.store.Board()
	groups := w.store.Groups()
	w.print(func() { output.FormatBoard(w.out, board, groups) })
}

func (w *boardWatcher) refetchMembers(ctx context.Context) {
	boardID, _ := w.store.Current()
	if boardID == "" {
		return
	}
	members, err := w.sess.Gateway.ListMembers(ctx, boardID)
	if err != nil {
		w.log.WithError(err).Warn("member refetch failed")
		return
	}
	if !w.store.SetMembers(w.epoch, members) {
		return
	}
	w.print(func() {
		fmt.Fprintf(w.out, "members (%d)\n", len(members))
		for _, m := range members {
			output.FormatMember(w.out, m)
		}
	})
}

// print serializes output from the refetch goroutines, separating blocks
// with a blank line.
func (w *boardWatcher) print(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.printed {
		fmt.Fprintln(w.out)
	}
	fn()
	w.printed = true
}
