package messages

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/events"
	"github.com/Tyrowin/chatd/internal/rooms"
)

var (
	// ErrEmptyPayload is returned for a submission with neither text nor a
	// file. Callers drop it without telling anyone.
	ErrEmptyPayload = errors.New("empty message")
	// ErrForbidden is returned when the sender may not post in the channel.
	ErrForbidden = errors.New("not a member of this channel")
	// ErrPersistence wraps every store failure.
	ErrPersistence = errors.New("message could not be saved")
)

// Broadcaster fans an encoded event out to a room.
type Broadcaster interface {
	Broadcast(key string, payload []byte, skip rooms.Filter) int
}

// Submission is one message as sent by a client.
type Submission struct {
	ChannelID int64
	Content   string
	FileURL   string
	FileName  string
	FileType  string
}

// Empty reports whether s carries neither text nor a file.
func (s Submission) Empty() bool {
	return strings.TrimSpace(s.Content) == "" && strings.TrimSpace(s.FileURL) == ""
}

// Pipeline validates, persists and broadcasts messages.
type Pipeline struct {
	store  Store
	access Authorizer
	out    Broadcaster
	logger *zap.Logger
}

// NewPipeline wires a pipeline. access may be nil, in which case every
// authenticated user may post everywhere.
func NewPipeline(store Store, access Authorizer, out Broadcaster, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:  store,
		access: access,
		out:    out,
		logger: logger.Named("messages"),
	}
}

// Submit persists s on behalf of id and broadcasts the stored message to the
// whole channel room, sender included. Nothing is broadcast when an error is
// returned.
//
// No lock is held during the store write, so a stalled write delays only
// its own message. The broadcast takes the room lock, so every member sees
// a channel's messages in the same order, the order in which their writes
// completed.
func (p *Pipeline) Submit(ctx context.Context, id auth.Identity, s Submission) (Message, error) {
	if s.Empty() {
		return Message{}, ErrEmptyPayload
	}
	if err := p.authorize(ctx, id.ID, s.ChannelID); err != nil {
		return Message{}, err
	}

	msg, err := p.store.CreateMessage(ctx, NewMessage{
		ChannelID:  s.ChannelID,
		SenderID:   id.ID,
		SenderName: id.DisplayName,
		Content:    s.Content,
		FileURL:    s.FileURL,
		FileName:   s.FileName,
		FileType:   s.FileType,
	})
	if err != nil {
		p.logger.Error("persist message",
			zap.Int64("channel", s.ChannelID),
			zap.Int64("sender", id.ID),
			zap.Error(err))
		return Message{}, errors.Wrapf(ErrPersistence, "channel %d: %v", s.ChannelID, err)
	}
	// The store may not know display names; the connection's identity is
	// authoritative for this delivery.
	msg.SenderName = id.DisplayName

	payload, err := events.Encode(Format(msg))
	if err != nil {
		return msg, errors.Wrap(err, "encode message")
	}
	n := p.out.Broadcast(rooms.ChannelKey(msg.ChannelID), payload, nil)
	p.logger.Debug("message delivered",
		zap.Int64("id", msg.ID),
		zap.Int64("channel", msg.ChannelID),
		zap.Int("recipients", n))
	return msg, nil
}

// History returns the channel's messages in ascending order if id may read
// the channel.
func (p *Pipeline) History(ctx context.Context, id auth.Identity, channelID int64) ([]Message, error) {
	if err := p.authorize(ctx, id.ID, channelID); err != nil {
		return nil, err
	}
	ms, err := p.store.ListMessages(ctx, channelID)
	if err != nil {
		return nil, errors.Wrapf(ErrPersistence, "list channel %d: %v", channelID, err)
	}
	return ms, nil
}

func (p *Pipeline) authorize(ctx context.Context, userID, channelID int64) error {
	if p.access == nil {
		return nil
	}
	ok, err := p.access.CanAccessChannel(ctx, userID, channelID)
	if err != nil {
		return errors.Wrapf(err, "authorize channel %d", channelID)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
