package events

import (
	"github.com/pkg/errors"
)

var errChannelID = errors.New("channelId must be positive")

// JoinChannelEvent asks to join a channel's room.
type JoinChannelEvent struct {
	ChannelID int64 `json:"channelId"`
}

func (*JoinChannelEvent) EventName() string { return JoinChannel }

func (e *JoinChannelEvent) validate() error { return checkChannel(e.ChannelID) }

// LeaveChannelEvent asks to leave a channel's room.
type LeaveChannelEvent struct {
	ChannelID int64 `json:"channelId"`
}

func (*LeaveChannelEvent) EventName() string { return LeaveChannel }

func (e *LeaveChannelEvent) validate() error { return checkChannel(e.ChannelID) }

// JoinWorkspaceEvent subscribes to a workspace's channelCreated notices.
type JoinWorkspaceEvent struct {
	WorkspaceID int64 `json:"workspaceId"`
}

func (*JoinWorkspaceEvent) EventName() string { return JoinWorkspace }

func (e *JoinWorkspaceEvent) validate() error {
	if e.WorkspaceID <= 0 {
		return errors.New("workspaceId must be positive")
	}
	return nil
}

// TypingEvent signals typing activity in a channel.
type TypingEvent struct {
	ChannelID int64 `json:"channelId"`
}

func (*TypingEvent) EventName() string { return Typing }

func (e *TypingEvent) validate() error { return checkChannel(e.ChannelID) }

// StoppedTypingEvent signals the end of a typing burst.
type StoppedTypingEvent struct {
	ChannelID int64 `json:"channelId"`
}

func (*StoppedTypingEvent) EventName() string { return StoppedTyping }

func (e *StoppedTypingEvent) validate() error { return checkChannel(e.ChannelID) }

// SendMessageEvent posts a text or file message. SenderID is accepted only so
// that older clients which still send it can be checked for consistency with
// the connection's identity; it never decides the sender.
type SendMessageEvent struct {
	ChannelID       int64  `json:"channelId"`
	Content         string `json:"content,omitempty"`
	Emoji           string `json:"emoji,omitempty"`
	FileURL         string `json:"fileUrl,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	FileType        string `json:"fileType,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	SenderID        *int64 `json:"senderId,omitempty"`
}

func (*SendMessageEvent) EventName() string { return SendMessage }

// Empty payloads are not a decode error; the message pipeline drops them.
func (e *SendMessageEvent) validate() error { return checkChannel(e.ChannelID) }

// Text returns the message body, using the emoji field when content is empty.
func (e *SendMessageEvent) Text() string {
	if e.Content != "" {
		return e.Content
	}
	return e.Emoji
}

// SendFileEvent posts an uploaded file.
type SendFileEvent struct {
	ChannelID       int64  `json:"channelId"`
	FileURL         string `json:"fileUrl"`
	FileName        string `json:"fileName,omitempty"`
	FileType        string `json:"fileType,omitempty"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
}

func (*SendFileEvent) EventName() string { return SendFile }

func (e *SendFileEvent) validate() error { return checkChannel(e.ChannelID) }

func checkChannel(id int64) error {
	if id <= 0 {
		return errChannelID
	}
	return nil
}
