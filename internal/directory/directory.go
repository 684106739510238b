// Package directory answers the two membership questions the chat engine
// asks of channel management: which workspace owns a channel, and whether a
// user belongs to a workspace.
package directory

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound is returned for an unknown channel.
var ErrNotFound = errors.New("not found")

// Directory is the source of truth for channel ownership and workspace
// membership.
type Directory interface {
	ChannelWorkspace(ctx context.Context, channelID int64) (int64, error)
	IsWorkspaceMember(ctx context.Context, userID, workspaceID int64) (bool, error)
}

// Access derives channel and workspace permissions from a Directory.
type Access struct {
	dir Directory
}

// NewAccess returns an Access backed by dir.
func NewAccess(dir Directory) *Access {
	return &Access{dir: dir}
}

// CanAccessChannel reports whether userID belongs to the workspace owning
// channelID. An unknown channel is not an error; it is simply not
// accessible.
func (a *Access) CanAccessChannel(ctx context.Context, userID, channelID int64) (bool, error) {
	workspaceID, err := a.dir.ChannelWorkspace(ctx, channelID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return a.dir.IsWorkspaceMember(ctx, userID, workspaceID)
}

// CanAccessWorkspace reports whether userID belongs to workspaceID.
func (a *Access) CanAccessWorkspace(ctx context.Context, userID, workspaceID int64) (bool, error) {
	return a.dir.IsWorkspaceMember(ctx, userID, workspaceID)
}

// ChannelWorkspace resolves the workspace owning channelID.
func (a *Access) ChannelWorkspace(ctx context.Context, channelID int64) (int64, error) {
	return a.dir.ChannelWorkspace(ctx, channelID)
}

type invalidator interface {
	Invalidate(ctx context.Context, channelID int64) error
}

// Refresh drops cached answers about channelID when the directory is
// cached, and is a no-op otherwise.
func (a *Access) Refresh(ctx context.Context, channelID int64) error {
	if c, ok := a.dir.(invalidator); ok {
		return c.Invalidate(ctx, channelID)
	}
	return nil
}
