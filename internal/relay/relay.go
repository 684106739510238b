// Package relay announces newly created channels to every connection that
// watches the owning workspace. Announcements arrive either from a client
// that just created a channel or from the channel management service over
// NATS.
package relay

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/events"
	"github.com/Tyrowin/chatd/internal/rooms"
)

// ErrForbidden is returned when a client announces a channel in a workspace
// it does not belong to.
var ErrForbidden = errors.New("not a member of this workspace")

// Resolver locates a channel's workspace and checks workspace membership.
type Resolver interface {
	ChannelWorkspace(ctx context.Context, channelID int64) (int64, error)
	CanAccessWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error)
	// Refresh drops anything cached about the channel.
	Refresh(ctx context.Context, channelID int64) error
}

// Broadcaster fans an encoded event out to a room.
type Broadcaster interface {
	Broadcast(key string, payload []byte, skip rooms.Filter) int
}

// Relay delivers channelCreated events to workspace rooms.
type Relay struct {
	dir    Resolver
	out    Broadcaster
	logger *zap.Logger
}

// New returns a Relay.
func New(dir Resolver, out Broadcaster, logger *zap.Logger) *Relay {
	return &Relay{dir: dir, out: out, logger: logger.Named("relay")}
}

// Announce delivers ev to the room of the workspace that owns the channel.
// The workspace is always looked up; a workspaceId carried by ev is
// overwritten. It returns the number of connections reached.
//
// Announce is fed by the channel management service, so the channel's
// cached directory entries are dropped first.
func (r *Relay) Announce(ctx context.Context, ev events.ChannelCreatedEvent) (int, error) {
	if err := r.dir.Refresh(ctx, ev.ID); err != nil {
		r.logger.Warn("refresh channel cache", zap.Int64("channel", ev.ID), zap.Error(err))
	}
	workspaceID, err := r.dir.ChannelWorkspace(ctx, ev.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "resolve channel %d", ev.ID)
	}
	return r.deliver(workspaceID, ev)
}

// AnnounceAs is Announce on behalf of a connected user, who must belong to
// the owning workspace.
func (r *Relay) AnnounceAs(ctx context.Context, userID int64, ev events.ChannelCreatedEvent) (int, error) {
	workspaceID, err := r.dir.ChannelWorkspace(ctx, ev.ID)
	if err != nil {
		return 0, errors.Wrapf(err, "resolve channel %d", ev.ID)
	}
	ok, err := r.dir.CanAccessWorkspace(ctx, userID, workspaceID)
	if err != nil {
		return 0, errors.Wrapf(err, "check workspace %d", workspaceID)
	}
	if !ok {
		return 0, ErrForbidden
	}
	return r.deliver(workspaceID, ev)
}

func (r *Relay) deliver(workspaceID int64, ev events.ChannelCreatedEvent) (int, error) {
	ev.WorkspaceID = workspaceID
	payload, err := events.Encode(ev)
	if err != nil {
		return 0, errors.Wrap(err, "encode channelCreated")
	}
	n := r.out.Broadcast(rooms.WorkspaceKey(workspaceID), payload, nil)
	r.logger.Debug("channel announced",
		zap.Int64("channel", ev.ID),
		zap.Int64("workspace", workspaceID),
		zap.Int("recipients", n))
	return n, nil
}
