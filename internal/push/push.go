// Package push receives and sends board change notifications over the
// backend's WebSocket channel.
package push

import (
	"errors"
	"strings"
)

// Kind is a push notification tag.
type Kind string

const (
	KindTaskUpdated  Kind = "taskUpdated"
	KindMemberJoined Kind = "memberJoined"
	KindBoardDeleted Kind = "boardDeleted"
)

var kinds = map[string]Kind{
	"taskupdated":  KindTaskUpdated,
	"memberjoined": KindMemberJoined,
	"boarddeleted": KindBoardDeleted,
}

// ParseKind maps a wire tag to a Kind. Matching ignores case and the
// separators "-" and "_".
func ParseKind(s string) (Kind, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "").Replace(key)
	k, ok := kinds[key]
	return k, ok
}

// Event is one inbound notification for a board.
type Event struct {
	Kind    Kind
	BoardID string
	UserID  string
}

// State is the connection state of a Listener.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ErrDisconnected reports that the push channel dropped or was never
// established. Listeners do not reconnect.
var ErrDisconnected = errors.New("push channel disconnected")

// inbound is what the backend relays to every connection of a board.
type inbound struct {
	UserID  string `json:"user_id"`
	BoardID string `json:"board_id,omitempty"`
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// Outbound is the send-message action understood by the backend.
type Outbound struct {
	Action  string `json:"action"`
	BoardID string `json:"board_id"`
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Relayed is the payload the backend fans out for an Outbound message.
type Relayed struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// ActionSendMessage is the only outbound action.
const ActionSendMessage = "sendmessage"
