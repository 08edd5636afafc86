// Package cli parses the command line and runs the selected command.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"taskbin/internal/auth"
	"taskbin/internal/backend/rest"
	"taskbin/internal/commands"
	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/logging"
	"taskbin/internal/mockserver"
	"taskbin/internal/push"
)

const maxSuggestions = 3

// SessionFactory builds the session authenticated commands run against.
// Used to inject the backend during dispatch.
type SessionFactory func(ctx context.Context, cfg *config.Config, logger *log.Logger) (*commands.Session, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  SessionFactory
}

// NewDispatcher creates a new dispatcher with the given registry and session
// factory. A nil factory uses NewSession.
func NewDispatcher(registry *commands.Registry, factory SessionFactory) *Dispatcher {
	if factory == nil {
		factory = NewSession
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> list boards
	if len(args) == 0 {
		return d.dispatch(ctx, "boards", nil, out, errOut)
	}

	cmdName := args[0]

	// Flags require a command
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		msg := "unknown command: " + cmdName
		if s := d.registry.Suggest(cmdName); len(s) > 0 && len(s) <= maxSuggestions {
			msg += " (did you mean: " + strings.Join(s, ", ") + "?)"
		}
		fmt.Fprintf(errOut, "error: %s\n", msg)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		return flagError(errOut, err)
	}

	// A leading dash left after parsing is a flag placed after "--" or
	// after a positional.
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug
	if err := cfg.Load(); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	logger := logging.New(errOut, debug)

	sess := &commands.Session{Log: logger}
	if cmd.NeedsAuth() {
		sess, err = d.factory(ctx, cfg, logger)
		if err != nil {
			return sessionError(errOut, err)
		}
		if sess.Log == nil {
			sess.Log = logger
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logger.WithError(err).Warn("session close failed")
			}
		}()
	}

	return cmd.Run(ctx, cfg, sess, positionalArgs, out, errOut)
}

// flagError reports a flag parse failure.
func flagError(errOut io.Writer, err error) int {
	errStr := err.Error()

	// Missing flag value
	if strings.Contains(errStr, "needs a value") || strings.Contains(errStr, "flag needs an argument") {
		parts := strings.Split(errStr, ":")
		flagPart := strings.TrimSpace(parts[len(parts)-1])
		fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagPart)
		return exitcode.UserError
	}

	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
		return exitcode.UserError
	}

	fmt.Fprintf(errOut, "error: %s\n", errStr)
	return exitcode.UserError
}

// sessionError reports why no session could be built.
func sessionError(errOut io.Writer, err error) int {
	switch {
	case errors.Is(err, auth.ErrExpired):
		fmt.Fprintln(errOut, "error: auth error: credential expired (run: taskbin login)")
		return exitcode.AuthError
	case errors.Is(err, auth.ErrNoCredential):
		fmt.Fprintln(errOut, "error: not logged in (run: taskbin login)")
		return exitcode.AuthError
	case errors.Is(err, errNotConfigured):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	return exitcode.BackendError
}

var errNotConfigured = errors.New("api_base_url not configured (set it in config.yaml, or use_mock: true)")

// NewSession decodes the stored credential and connects the REST gateway and
// push dialer. In mock mode an in-process mock backend is started and
// stopped when the session closes.
func NewSession(ctx context.Context, cfg *config.Config, logger *log.Logger) (*commands.Session, error) {
	d, err := auth.NewDecoder(cfg.Settings.JWKSURL)
	if err != nil {
		return nil, err
	}
	id, err := auth.Load(cfg, d)
	d.Close()
	if err != nil {
		return nil, err
	}

	sess := &commands.Session{User: id, Log: logger}
	baseURL, pushURL := cfg.Settings.APIBaseURL, cfg.Settings.PushURL

	if cfg.Settings.UseMock {
		mock := cfg.Settings.Mock
		srv, err := mockserver.New(ctx, mockserver.Options{
			DBPath:   mock.DBPath,
			Secret:   cfg.Settings.MockSecret(),
			RedisURL: mock.RedisURL,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		if err := srv.Start(mock.Addr); err != nil {
			_ = srv.Close()
			return nil, err
		}
		sess.OnClose(srv.Close)
		baseURL = srv.URL()
		if pushURL == "" {
			pushURL = srv.PushURL()
		}
	}

	if baseURL == "" {
		_ = sess.Close()
		return nil, errNotConfigured
	}
	client, err := rest.New(rest.Options{
		BaseURL: baseURL,
		Token:   id.Token,
		Timeout: cfg.Settings.Timeout(),
		Logger:  logger,
	})
	if err != nil {
		_ = sess.Close()
		return nil, err
	}

	sess.Gateway = client
	sess.Push = push.Dialer{URL: pushURL, Timeout: cfg.Settings.Timeout(), Logger: logger}
	logger.WithFields(log.Fields{
		"api":  baseURL,
		"push": pushURL,
		"user": id.UserID,
	}).Debug("session ready")
	return sess, nil
}
