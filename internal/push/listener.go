package push

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"taskbin/internal/logging"
)

// DefaultDialTimeout bounds the WebSocket handshake.
const DefaultDialTimeout = 10 * time.Second

// Listener holds one push connection for a board.
type Listener struct {
	url     string
	boardID string
	userID  string
	timeout time.Duration
	log     *log.Logger

	mu     sync.Mutex
	state  State
	conn   *websocket.Conn
	err    error
	used   bool
	closed bool
	cancel context.CancelFunc

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// NewListener prepares a listener for boardID. Nothing is dialed until Connect.
func NewListener(pushURL, boardID, userID string, logger *log.Logger) (*Listener, error) {
	if boardID == "" || userID == "" {
		return nil, fmt.Errorf("push: board and user are required")
	}
	endpoint, err := socketURL(pushURL, boardID, userID)
	if err != nil {
		return nil, err
	}
	return &Listener{
		url:     endpoint,
		boardID: boardID,
		userID:  userID,
		timeout: DefaultDialTimeout,
		log:     logging.OrDiscard(logger),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}, nil
}

// socketURL adds the identifying query parameters and maps http schemes to ws.
func socketURL(pushURL, boardID, userID string) (string, error) {
	if pushURL == "" {
		return "", fmt.Errorf("push: url not configured")
	}
	u, err := url.Parse(pushURL)
	if err != nil {
		return "", fmt.Errorf("push: invalid url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("push: unsupported scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("user_id", userID)
	q.Set("board_id", boardID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the push channel and starts delivering events. A listener
// connects at most once.
func (l *Listener) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.closed || l.used {
		l.mu.Unlock()
		return fmt.Errorf("push: listener already used")
	}
	l.used = true
	l.state = StateConnecting
	l.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, l.url, nil)
	if err != nil {
		l.fail(fmt.Errorf("%w: %v", ErrDisconnected, err))
		l.closeEvents()
		return fmt.Errorf("dial push channel: %w", err)
	}

	readCtx, stop := context.WithCancel(context.Background())

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		stop()
		conn.Close(websocket.StatusNormalClosure, "closing")
		return ErrDisconnected
	}
	l.conn = conn
	l.cancel = stop
	l.state = StateConnected
	l.mu.Unlock()

	l.log.WithFields(log.Fields{"board": l.boardID}).Debug("push connected")
	go l.readLoop(readCtx, conn)
	return nil
}

func (l *Listener) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer close(l.done)
	defer l.closeEvents()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			l.mu.Lock()
			closing := l.closed
			l.mu.Unlock()
			if closing {
				l.setState(StateDisconnected)
			} else {
				l.log.WithError(err).WithField("board", l.boardID).Debug("push dropped")
				l.fail(fmt.Errorf("%w: %v", ErrDisconnected, err))
			}
			return
		}

		ev, ok := l.parse(data)
		if !ok {
			continue
		}
		select {
		case l.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) parse(data []byte) (Event, bool) {
	var msg inbound
	if err := sonic.ConfigStd.Unmarshal(data, &msg); err != nil {
		l.log.WithError(err).Debug("push: malformed message")
		return Event{}, false
	}
	tag := msg.Message
	if tag == "" {
		tag = msg.Type
	}
	kind, ok := ParseKind(tag)
	if !ok {
		l.log.WithField("message", tag).Debug("push: unknown tag")
		return Event{}, false
	}
	board := msg.BoardID
	if board == "" {
		board = l.boardID
	}
	return Event{Kind: kind, BoardID: board, UserID: msg.UserID}, true
}

// Events delivers inbound notifications. The channel is closed when the
// connection ends.
func (l *Listener) Events() <-chan Event {
	return l.events
}

// Broadcast sends kind to every connection of the board, including this one.
func (l *Listener) Broadcast(ctx context.Context, kind Kind) error {
	l.mu.Lock()
	conn, state := l.conn, l.state
	l.mu.Unlock()
	if conn == nil || state != StateConnected {
		return ErrDisconnected
	}

	data, err := sonic.ConfigStd.Marshal(Outbound{
		Action:  ActionSendMessage,
		BoardID: l.boardID,
		UserID:  l.userID,
		Message: string(kind),
	})
	if err != nil {
		return err
	}
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("push broadcast: %w", err)
	}
	return nil
}

// State returns the current connection state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Err returns ErrDisconnected (wrapped) if the connection dropped or could
// not be established, and nil after a clean Close.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Close shuts the connection down and waits for the read loop to exit.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conn, cancel := l.conn, l.cancel
	l.mu.Unlock()

	if conn == nil {
		l.setState(StateDisconnected)
		l.closeEvents()
		return nil
	}

	cancel()
	conn.Close(websocket.StatusNormalClosure, "closing")
	<-l.done
	l.setState(StateDisconnected)
	return nil
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

func (l *Listener) fail(err error) {
	l.mu.Lock()
	l.state = StateDisconnected
	l.err = err
	l.mu.Unlock()
}

func (l *Listener) closeEvents() {
	l.closeOnce.Do(func() { close(l.events) })
}
