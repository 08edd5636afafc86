package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/mockserver"
)

func init() {
	Register(&ServeMockCmd{})
}

// ServeMockCmd runs the mock backend in the foreground.
type ServeMockCmd struct {
	addr     string
	dbPath   string
	redisURL string
}

func (c *ServeMockCmd) Name() string      { return "serve-mock" }
func (c *ServeMockCmd) Aliases() []string { return nil }
func (c *ServeMockCmd) Synopsis() string  { return "Run the mock backend" }
func (c *ServeMockCmd) Usage() string {
	return "taskbin serve-mock [--addr <host:port>] [--db <path>] [--redis <url>]"
}
func (c *ServeMockCmd) NeedsAuth() bool { return false }

func (c *ServeMockCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", "", "")
	fs.StringVar(&c.dbPath, "db", "", "")
	fs.StringVar(&c.redisURL, "redis", "", "")
}

func (c *ServeMockCmd) Run(ctx context.Context, cfg *config.Config, sess *Session, args []string, out, errOut io.Writer) int {
	mock := cfg.Settings.Mock
	if c.addr != "" {
		mock.Addr = c.addr
	}
	if c.dbPath != "" {
		mock.DBPath = c.dbPath
	}
	if c.redisURL != "" {
		mock.RedisURL = c.redisURL
	}

	srv, err := mockserver.New(ctx, mockserver.Options{
		DBPath:   mock.DBPath,
		Secret:   cfg.Settings.MockSecret(),
		RedisURL: mock.RedisURL,
		Logger:   sess.logger(),
	})
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	if err := srv.Start(mock.Addr); err != nil {
		_ = srv.Close()
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "api_base_url: %s\n", srv.URL())
		fmt.Fprintf(out, "push_url: %s\n", srv.PushURL())
	}

	<-ctx.Done()
	if err := srv.Close(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
