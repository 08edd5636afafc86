package push

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// Dialer opens listeners against one push endpoint. A zero Dialer has no
// endpoint and Notify becomes a no-op.
type Dialer struct {
	URL     string
	Timeout time.Duration
	Logger  *log.Logger
}

// Enabled reports whether a push endpoint is configured.
func (d Dialer) Enabled() bool {
	return d.URL != ""
}

// Listen connects a listener for boardID on behalf of userID.
func (d Dialer) Listen(ctx context.Context, boardID, userID string) (*Listener, error) {
	l, err := NewListener(d.URL, boardID, userID, d.Logger)
	if err != nil {
		return nil, err
	}
	if d.Timeout > 0 {
		l.timeout = d.Timeout
	}
	if err := l.Connect(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Notify broadcasts a single tag over a short-lived connection.
func Notify(ctx context.Context, d Dialer, boardID, userID string, kind Kind) error {
	if !d.Enabled() {
		return nil
	}
	l, err := d.Listen(ctx, boardID, userID)
	if err != nil {
		return err
	}
	defer l.Close()
	return l.Broadcast(ctx, kind)
}
