// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"taskbin/internal/auth"
	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/logging"
	"taskbin/internal/push"
	"taskbin/internal/service"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires authentication.
	// Commands like help, version, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// sess always carries a logger; Gateway and User are set only when
	// NeedsAuth() returns true.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int
}

// Session is what an authenticated command runs against.
type Session struct {
	Gateway service.Service
	User    auth.Identity
	Push    push.Dialer
	Log     *log.Logger

	// Now overrides the clock.
	Now func() time.Time

	closers []func() error
}

// OnClose registers fn to run when the session is closed.
func (s *Session) OnClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases everything registered with OnClose, newest first.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Session) logger() *log.Logger {
	if s == nil {
		return logging.Discard()
	}
	return logging.OrDiscard(s.Log)
}

func (s *Session) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// notify broadcasts kind to the board's other viewers. Failures are logged
// and otherwise ignored.
func (s *Session) notify(ctx context.Context, boardID string, kind push.Kind) {
	if err := push.Notify(ctx, s.Push, boardID, s.User.UserID, kind); err != nil {
		s.logger().WithError(err).WithFields(log.Fields{
			"board": boardID,
			"kind":  kind,
		}).Warn("push notify failed")
	}
}

// fail prints err and returns its exit code.
func fail(errOut io.Writer, err error) int {
	code := exitcode.FromError(err)
	switch code {
	case exitcode.AuthError:
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
	case exitcode.UserError:
		fmt.Fprintf(errOut, "error: %s\n", userMessage(err))
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	}
	return code
}

// userMessage prefers the backend's own message for caller errors.
func userMessage(err error) string {
	var e *service.Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// usageError prints msg and returns the user error code.
func usageError(errOut io.Writer, msg string) int {
	fmt.Fprintf(errOut, "error: %s\n", msg)
	return exitcode.UserError
}

// ok prints the confirmation line unless quiet.
func ok(cfg *config.Config, out io.Writer) int {
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
