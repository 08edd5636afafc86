package mockserver

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"taskbin/internal/push"
)

// RelayChannel is the redis pub/sub channel shared by mock instances.
const RelayChannel = "taskbin:push"

// envelope is one board message travelling through a Relay.
type envelope struct {
	BoardID string `json:"board_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Relay carries board messages to every hub that should deliver them.
type Relay interface {
	Publish(ctx context.Context, env envelope) error
	// Run delivers relayed messages to deliver until ctx is done.
	Run(ctx context.Context, deliver func(envelope))
	Close() error
}

// localRelay delivers in-process only.
type localRelay struct {
	deliver func(envelope)
}

func (r *localRelay) Publish(_ context.Context, env envelope) error {
	if r.deliver != nil {
		r.deliver(env)
	}
	return nil
}

func (r *localRelay) Run(ctx context.Context, _ func(envelope)) {
	<-ctx.Done()
}

func (r *localRelay) Close() error { return nil }

// redisRelay fans messages out through redis pub/sub so several mock
// instances serve the same boards.
type redisRelay struct {
	rc    *redis.Client
	log   *log.Logger
	ready chan struct{}
	once  sync.Once
}

func newRedisRelay(url string, logger *log.Logger) (*redisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	return &redisRelay{rc: redis.NewClient(opts), log: logger, ready: make(chan struct{})}, nil
}

func (r *redisRelay) Publish(ctx context.Context, env envelope) error {
	payload, err := sonic.ConfigStd.Marshal(env)
	if err != nil {
		return err
	}
	return r.rc.Publish(ctx, RelayChannel, payload).Err()
}

func (r *redisRelay) Run(ctx context.Context, deliver func(envelope)) {
	for {
		sub := r.rc.Subscribe(ctx, RelayChannel)
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			r.log.WithError(err).Error("relay: subscribe failed, retrying")
			time.Sleep(time.Second)
			continue
		}
		r.once.Do(func() { close(r.ready) })
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var env envelope
				if err := sonic.ConfigStd.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.log.WithError(err).Warn("relay: unable to parse message")
					continue
				}
				deliver(env)
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.log.Error("relay: pubsub channel closed, reconnecting")
		time.Sleep(time.Second)
	}
}

func (r *redisRelay) Close() error {
	return r.rc.Close()
}

type client struct {
	boardID string
	userID  string
	ch      chan push.Relayed
}

// hub tracks the WebSocket connections of each board.
type hub struct {
	mu     sync.Mutex
	boards map[string]map[*client]struct{}
	relay  Relay
	log    *log.Logger
}

func newHub(relay Relay, logger *log.Logger) *hub {
	return &hub{
		boards: make(map[string]map[*client]struct{}),
		relay:  relay,
		log:    logger,
	}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.boards[c.boardID]
	if !ok {
		set = make(map[*client]struct{})
		h.boards[c.boardID] = set
	}
	set[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.boards[c.boardID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.boards, c.boardID)
		}
	}
}

// connections returns the number of open connections for a board.
func (h *hub) connections(boardID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.boards[boardID])
}

// deliver hands a relayed message to every local connection of the board.
func (h *hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := push.Relayed{UserID: env.UserID, Message: env.Message}
	for c := range h.boards[env.BoardID] {
		select {
		case c.ch <- msg:
		default:
			h.log.WithField("board", env.BoardID).Warn("push: dropping message for slow connection")
		}
	}
}

// serveWS registers a connection for ?user_id=&board_id= and relays its
// sendmessage frames to that board, attributed to that user.
func (h *hub) serveWS(c echo.Context) error {
	userID := c.QueryParam("user_id")
	boardID := c.QueryParam("board_id")
	if userID == "" || boardID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing user_id or board_id"))
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{})
	if err != nil {
		return nil
	}
	defer conn.Close(websocket.StatusNormalClosure, "closing")

	cl := &client{boardID: boardID, userID: userID, ch: make(chan push.Relayed, 64)}
	h.add(cl)
	defer h.remove(cl)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			var msg push.Outbound
			if err := wsjson.Read(ctx, conn, &msg); err != nil {
				return
			}
			if msg.Action != push.ActionSendMessage {
				continue
			}
			// A connection only speaks for its own board and user.
			if msg.BoardID != "" && msg.BoardID != boardID {
				h.log.WithFields(log.Fields{"board": boardID, "frame_board": msg.BoardID}).Debug("push: dropping frame for another board")
				continue
			}
			if msg.Message == "" {
				continue
			}
			env := envelope{BoardID: boardID, UserID: userID, Message: msg.Message}
			if err := h.relay.Publish(ctx, env); err != nil {
				h.log.WithError(err).Warn("push: relay publish failed")
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-cl.ch:
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return nil
			}
		}
	}
}
