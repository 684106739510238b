package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/events"
	"github.com/Tyrowin/chatd/internal/messages"
	"github.com/Tyrowin/chatd/internal/relay"
	"github.com/Tyrowin/chatd/internal/rooms"
)

// requestTimeout bounds the directory and store calls made for one frame.
const requestTimeout = 10 * time.Second

// Reasons reported back to the client.
const (
	reasonForbiddenChannel   = "not a member of this channel"
	reasonForbiddenWorkspace = "not a member of this workspace"
	reasonUnavailable        = "temporarily unavailable, try again"
	reasonSenderMismatch     = "senderId does not match the authenticated user"
	reasonNotSaved           = "message could not be saved"
	reasonUnknownChannel     = "unknown channel"
	reasonUnknownEvent       = "unknown event"
	reasonMalformedFrame     = "malformed frame"
	reasonRateLimited        = "rate limit exceeded, message not sent"
)

// handle runs one decoded frame. The connection's identity is the only
// source of who is acting.
func (c *Client) handle(ev events.Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch ev := ev.(type) {
	case *events.JoinChannelEvent:
		c.joinChannel(ctx, ev.ChannelID)
	case *events.LeaveChannelEvent:
		c.leaveChannel(ev.ChannelID)
	case *events.JoinWorkspaceEvent:
		c.joinWorkspace(ctx, ev.WorkspaceID)
	case *events.TypingEvent:
		c.startTyping(ev.ChannelID)
	case *events.StoppedTypingEvent:
		c.stopTyping(ev.ChannelID)
	case *events.SendMessageEvent:
		c.sendMessage(ctx, ev)
	case *events.SendFileEvent:
		c.submit(ctx, ev.ClientMessageID, messages.Submission{
			ChannelID: ev.ChannelID,
			FileURL:   ev.FileURL,
			FileName:  ev.FileName,
			FileType:  ev.FileType,
		})
	case *events.ChannelCreatedEvent:
		c.announceChannel(ctx, *ev)
	default:
		c.logger.Warn("unhandled event", zap.String("event", ev.EventName()))
	}
}

func (c *Client) joinChannel(ctx context.Context, channelID int64) {
	ok, err := c.srv.access.CanAccessChannel(ctx, c.identity.ID, channelID)
	if err != nil {
		c.logger.Error("check channel access", zap.Int64("channel", channelID), zap.Error(err))
		c.reply(events.ErrorEvent{Event: events.JoinChannel, Error: reasonUnavailable})
		return
	}
	if !ok {
		c.logger.Info("join refused", zap.Int64("channel", channelID))
		c.reply(events.ErrorEvent{Event: events.JoinChannel, Error: reasonForbiddenChannel})
		return
	}
	if !c.srv.rooms.Join(rooms.ChannelKey(channelID), c) {
		return
	}
	// A newcomer learns about bursts already in progress.
	for _, typist := range c.srv.typing.Typists(channelID) {
		if typist.ID == c.identity.ID {
			continue
		}
		c.reply(events.UserTypingEvent{ChannelID: channelID, UserID: typist.ID, UserName: typist.DisplayName})
	}
}

func (c *Client) leaveChannel(channelID int64) {
	c.stopTyping(channelID)
	c.srv.rooms.Leave(rooms.ChannelKey(channelID), c)
}

func (c *Client) joinWorkspace(ctx context.Context, workspaceID int64) {
	ok, err := c.srv.access.CanAccessWorkspace(ctx, c.identity.ID, workspaceID)
	if err != nil {
		c.logger.Error("check workspace access", zap.Int64("workspace", workspaceID), zap.Error(err))
		c.reply(events.ErrorEvent{Event: events.JoinWorkspace, Error: reasonUnavailable})
		return
	}
	if !ok {
		c.logger.Info("workspace join refused", zap.Int64("workspace", workspaceID))
		c.reply(events.ErrorEvent{Event: events.JoinWorkspace, Error: reasonForbiddenWorkspace})
		return
	}
	c.srv.rooms.Join(rooms.WorkspaceKey(workspaceID), c)
}

// Typing only makes sense in a channel the connection has joined; anything
// else is ignored rather than answered, since typing is advisory.
func (c *Client) startTyping(channelID int64) {
	if !c.srv.rooms.Joined(rooms.ChannelKey(channelID), c) {
		return
	}
	c.typingIn[channelID] = struct{}{}
	c.srv.typing.Start(channelID, c.identity)
}

func (c *Client) stopTyping(channelID int64) {
	if _, ok := c.typingIn[channelID]; !ok {
		return
	}
	delete(c.typingIn, channelID)
	c.srv.typing.Stop(channelID, c.identity)
}

func (c *Client) sendMessage(ctx context.Context, ev *events.SendMessageEvent) {
	if ev.SenderID != nil && *ev.SenderID != c.identity.ID {
		c.logger.Warn("rejecting message with spoofed sender",
			zap.Int64("claimed", *ev.SenderID),
			zap.Int64("channel", ev.ChannelID))
		c.reply(events.ErrorEvent{Event: events.SendMessage, Error: reasonSenderMismatch})
		return
	}
	c.submit(ctx, ev.ClientMessageID, messages.Submission{
		ChannelID: ev.ChannelID,
		Content:   ev.Text(),
		FileURL:   ev.FileURL,
		FileName:  ev.FileName,
		FileType:  ev.FileType,
	})
}

// submit hands a message to the pipeline. Empty messages vanish; every
// other failure is reported to this connection only.
func (c *Client) submit(ctx context.Context, clientMessageID string, s messages.Submission) {
	// A message ends the sender's typing burst.
	c.stopTyping(s.ChannelID)

	_, err := c.srv.pipeline.Submit(ctx, c.identity, s)
	switch {
	case err == nil:
		return
	case errors.Is(err, messages.ErrEmptyPayload):
		c.logger.Debug("dropping empty message", zap.Int64("channel", s.ChannelID))
		return
	case errors.Is(err, messages.ErrForbidden):
		c.reply(events.SendFailedEvent{ChannelID: s.ChannelID, ClientMessageID: clientMessageID, Error: reasonForbiddenChannel})
	case errors.Is(err, messages.ErrPersistence):
		c.reply(events.SendFailedEvent{ChannelID: s.ChannelID, ClientMessageID: clientMessageID, Error: reasonNotSaved})
	default:
		c.logger.Error("submit message", zap.Int64("channel", s.ChannelID), zap.Error(err))
		c.reply(events.SendFailedEvent{ChannelID: s.ChannelID, ClientMessageID: clientMessageID, Error: reasonUnavailable})
	}
}

func (c *Client) announceChannel(ctx context.Context, ev events.ChannelCreatedEvent) {
	_, err := c.srv.relay.AnnounceAs(ctx, c.identity.ID, ev)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrForbidden):
		c.reply(events.ErrorEvent{Event: events.ChannelCreated, Error: reasonForbiddenWorkspace})
	case errors.Is(err, directory.ErrNotFound):
		c.reply(events.ErrorEvent{Event: events.ChannelCreated, Error: reasonUnknownChannel})
	default:
		c.logger.Warn("announce channel", zap.Int64("channel", ev.ID), zap.Error(err))
		c.reply(events.ErrorEvent{Event: events.ChannelCreated, Error: reasonUnavailable})
	}
}
