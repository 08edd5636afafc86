// Package mockserver is an in-process stand-in for the TaskBin backend:
// the REST routes, the access-code flow and the board push channel.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"

	"taskbin/internal/auth"
	"taskbin/internal/logging"
)

// CodeTTL is how long an access code stays valid.
const CodeTTL = time.Hour

// Options configure a Server.
type Options struct {
	// DBPath is the sqlite file; empty keeps state in memory.
	DBPath string

	// Secret signs and verifies bearer tokens.
	Secret string

	// RedisURL enables the redis relay for the push channel.
	RedisURL string

	Logger *log.Logger

	// Now overrides the clock.
	Now func() time.Time
}

// Server is one mock backend instance.
type Server struct {
	e      *echo.Echo
	db     *db
	hub    *hub
	relay  Relay
	secret string
	log    *log.Logger
	now    func() time.Time

	stop context.CancelFunc
	ln   net.Listener
}

// New opens storage, wires the relay and registers routes. The server
// does not listen until Start.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Secret == "" {
		return nil, errors.New("mock server: secret is required")
	}
	logger := logging.OrDiscard(opts.Logger)

	store, err := openDB(ctx, opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("mock storage: %w", err)
	}

	local := &localRelay{}
	var relay Relay = local
	if opts.RedisURL != "" {
		relay, err = newRedisRelay(opts.RedisURL, logger)
		if err != nil {
			_ = store.close()
			return nil, err
		}
	}

	s := &Server{
		e:      echo.New(),
		db:     store,
		relay:  relay,
		secret: opts.Secret,
		log:    logger,
		now:    opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.hub = newHub(relay, logger)
	local.deliver = s.hub.deliver

	runCtx, stop := context.WithCancel(context.Background())
	s.stop = stop
	go relay.Run(runCtx, s.hub.deliver)
	if rr, ok := relay.(*redisRelay); ok {
		select {
		case <-rr.ready:
		case <-time.After(5 * time.Second):
			stop()
			_ = rr.Close()
			_ = store.close()
			return nil, errors.New("mock server: redis relay did not subscribe")
		}
	}

	s.e.HideBanner = true
	s.e.HidePort = true
	s.e.JSONSerializer = sonicSerializer{}
	s.e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	s.e.Use(requestLogger(logger))
	s.register()
	return s, nil
}

func (s *Server) register() {
	s.e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	s.e.GET("/ws", s.hub.serveWS)

	api := s.e.Group("", s.authenticate)
	api.GET("/users/:user_id/boards", s.listBoards)
	api.GET("/users/:user_id/tasks", s.listUserTasks)
	api.POST("/boards/create", s.createBoard)
	api.POST("/boards/join", s.joinBoard)
	api.POST("/boards/task/create", s.createTask)
	api.PATCH("/boards/tasks/:task_id", s.editTask)
	api.GET("/boards/:board_id", s.getBoard)
	api.PATCH("/boards/:board_id", s.editBoard)
	api.DELETE("/boards/:board_id", s.deleteBoard)
	api.GET("/boards/:board_id/tasks", s.listBoardTasks)
	api.PATCH("/boards/:board_id/tasks/:task_id", s.updateTaskStatus)
	api.DELETE("/boards/:board_id/tasks/:task_id", s.deleteTask)
	api.GET("/boards/:board_id/members", s.listMembers)
	api.POST("/boards/:board_id/code", s.generateCode)
	api.POST("/boards/:board_id/leave", s.leaveBoard)
	api.POST("/boards/:board_id/share", s.shareBoard)
	api.POST("/boards/:board_id/unshare", s.unshareBoard)
	api.GET("/tasks/:task_id", s.getTask)
}

// Handler exposes the routes, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.e
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves in
// the background.
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock server listen: %w", err)
	}
	s.ln = ln
	s.e.Listener = ln
	go func() {
		if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("mock server stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("mock server listening")
	return nil
}

// URL is the REST base URL once started.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	return "http://" + s.ln.Addr().String()
}

// PushURL is the WebSocket endpoint once started.
func (s *Server) PushURL() string {
	if s.ln == nil {
		return ""
	}
	return "ws://" + s.ln.Addr().String() + "/ws"
}

// Connections reports how many push connections a board has on this instance.
func (s *Server) Connections(boardID string) int {
	return s.hub.connections(boardID)
}

// Close stops serving and releases storage and the relay.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if s.ln != nil {
		if err := s.e.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.stop()
	if err := s.relay.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.db.close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

const userKey = "user"

// authenticate requires a bearer token signed with the mock secret.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("Missing bearer token"))
		}
		id, err := auth.VerifyMock(s.secret, strings.TrimSpace(token))
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("Invalid token"))
		}
		c.Set(userKey, id.UserID)
		return next(c)
	}
}

// requestLogger logs every request at debug level.
func requestLogger(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.WithFields(log.Fields{
				"method":   c.Request().Method,
				"path":     c.Request().URL.Path,
				"status":   c.Response().Status,
				"duration": time.Since(start).Round(time.Microsecond),
			}).Debug("mock request")
			return nil
		}
	}
}

// sonicSerializer encodes echo responses with sonic.
type sonicSerializer struct{}

func (sonicSerializer) Serialize(c echo.Context, i any, indent string) error {
	enc := sonic.ConfigStd.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(c echo.Context, i any) error {
	return sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(i)
}
