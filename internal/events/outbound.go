package events

import "github.com/pkg/errors"

// ReceiveMessageEvent is a persisted message as delivered to room members.
type ReceiveMessageEvent struct {
	ID         int64  `json:"id"`
	ChannelID  int64  `json:"channelId"`
	Content    string `json:"content"`
	FileURL    string `json:"fileUrl,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	SenderName string `json:"senderName"`
	SenderID   int64  `json:"senderId"`
	CreatedAt  string `json:"createdAt"`
}

func (ReceiveMessageEvent) EventName() string { return ReceiveMessage }

// UserTypingEvent announces that a user started typing.
type UserTypingEvent struct {
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
}

func (UserTypingEvent) EventName() string { return UserTyping }

// UserStoppedTypingEvent announces the end of a user's typing burst.
type UserStoppedTypingEvent struct {
	ChannelID int64  `json:"channelId"`
	UserID    int64  `json:"userId"`
	UserName  string `json:"userName"`
}

func (UserStoppedTypingEvent) EventName() string { return UserStoppedTyping }

// ChannelCreatedEvent summarizes a newly created channel. It travels inbound
// from the client that created it and outbound to the workspace room.
type ChannelCreatedEvent struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	WorkspaceID int64  `json:"workspaceId"`
}

func (ChannelCreatedEvent) EventName() string { return ChannelCreated }

func (e *ChannelCreatedEvent) validate() error {
	if e.ID <= 0 {
		return errors.New("id must be positive")
	}
	return nil
}

// SendFailedEvent tells the sender that its message was not delivered.
type SendFailedEvent struct {
	ChannelID       int64  `json:"channelId"`
	ClientMessageID string `json:"clientMessageId,omitempty"`
	Error           string `json:"error"`
}

func (SendFailedEvent) EventName() string { return SendFailed }

// ErrorEvent reports a rejected inbound frame to its sender.
type ErrorEvent struct {
	Event string `json:"event,omitempty"`
	Error string `json:"error"`
}

func (ErrorEvent) EventName() string { return Error }
