// Package events defines the closed set of frames exchanged over a chat
// connection. Every frame is a JSON envelope {"event": name, "data": {...}};
// inbound frames are decoded into one concrete type per event name and
// validated before they reach any handler.
package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Inbound event names.
const (
	JoinChannel    = "joinChannel"
	LeaveChannel   = "leaveChannel"
	JoinWorkspace  = "joinWorkspace"
	Typing         = "typing"
	StoppedTyping  = "stoppedTyping"
	SendMessage    = "sendMessage"
	SendFile       = "sendFile"
	ChannelCreated = "channelCreated"
)

// Outbound event names. ChannelCreated is shared with the inbound set.
const (
	ReceiveMessage    = "receiveMessage"
	UserTyping        = "userTyping"
	UserStoppedTyping = "userStoppedTyping"
	SendFailed        = "sendFailed"
	Error             = "error"
)

var (
	// ErrUnknownEvent is returned for an event name outside the inbound set.
	ErrUnknownEvent = errors.New("unknown event")
	// ErrInvalidPayload is returned for frames that are not valid JSON or
	// whose data fails validation.
	ErrInvalidPayload = errors.New("invalid payload")
)

// Inbound is implemented by every event a client may send.
type Inbound interface {
	EventName() string
	validate() error
}

// Outbound is implemented by every event the server may send.
type Outbound interface {
	EventName() string
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type outEnvelope struct {
	Event string   `json:"event"`
	Data  Outbound `json:"data"`
}

// Decode parses one inbound frame.
func Decode(raw []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.Wrap(ErrInvalidPayload, err.Error())
	}

	ev := newInbound(env.Event)
	if ev == nil {
		return nil, errors.Wrapf(ErrUnknownEvent, "%q", env.Event)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.Wrapf(ErrInvalidPayload, "%s: missing data", env.Event)
	}
	if err := json.Unmarshal(env.Data, ev); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%s: %v", env.Event, err)
	}
	if err := ev.validate(); err != nil {
		return nil, errors.Wrapf(ErrInvalidPayload, "%s: %v", env.Event, err)
	}
	return ev, nil
}

func newInbound(name string) Inbound {
	switch name {
	case JoinChannel:
		return &JoinChannelEvent{}
	case LeaveChannel:
		return &LeaveChannelEvent{}
	case JoinWorkspace:
		return &JoinWorkspaceEvent{}
	case Typing:
		return &TypingEvent{}
	case StoppedTyping:
		return &StoppedTypingEvent{}
	case SendMessage:
		return &SendMessageEvent{}
	case SendFile:
		return &SendFileEvent{}
	case ChannelCreated:
		return &ChannelCreatedEvent{}
	default:
		return nil
	}
}

// Encode renders an outbound event as a frame.
func Encode(ev Outbound) ([]byte, error) {
	b, err := json.Marshal(outEnvelope{Event: ev.EventName(), Data: ev})
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s", ev.EventName())
	}
	return b, nil
}
