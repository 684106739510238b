// Package messages turns submitted chat messages into persisted, ordered
// broadcasts. A submission is validated, authorized against the directory,
// written to the store and only then fanned out to the channel's room, so a
// message that fails to persist is never seen by anyone but its sender.
package messages

import (
	"context"
	"time"

	"github.com/Tyrowin/chatd/internal/events"
)

// Message is a persisted chat message. ID and CreatedAt are assigned by the
// store.
type Message struct {
	ID         int64
	ChannelID  int64
	SenderID   int64
	SenderName string
	Content    string
	FileURL    string
	FileName   string
	FileType   string
	CreatedAt  time.Time
}

// NewMessage is what the pipeline asks the store to persist.
type NewMessage struct {
	ChannelID  int64
	SenderID   int64
	SenderName string
	Content    string
	FileURL    string
	FileName   string
	FileType   string
}

// Store persists messages and lists a channel's history.
type Store interface {
	CreateMessage(ctx context.Context, m NewMessage) (Message, error)
	// ListMessages returns the channel's messages ascending by CreatedAt.
	ListMessages(ctx context.Context, channelID int64) ([]Message, error)
}

// Authorizer decides whether a user may read and post in a channel.
type Authorizer interface {
	CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error)
}

// Format converts m to its wire shape.
func Format(m Message) events.ReceiveMessageEvent {
	return events.ReceiveMessageEvent{
		ID:         m.ID,
		ChannelID:  m.ChannelID,
		Content:    m.Content,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		SenderName: m.SenderName,
		SenderID:   m.SenderID,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// FormatAll converts a history listing to its wire shape.
func FormatAll(ms []Message) []events.ReceiveMessageEvent {
	out := make([]events.ReceiveMessageEvent, 0, len(ms))
	for _, m := range ms {
		out = append(out, Format(m))
	}
	return out
}
