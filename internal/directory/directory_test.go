package directory

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	channels map[int64]int64
	members  map[int64][]int64
	err      error

	channelCalls atomic.Int32
	memberCalls  atomic.Int32
}

func (d *fakeDirectory) ChannelWorkspace(_ context.Context, channelID int64) (int64, error) {
	d.channelCalls.Add(1)
	if d.err != nil {
		return 0, d.err
	}
	ws, ok := d.channels[channelID]
	if !ok {
		return 0, ErrNotFound
	}
	return ws, nil
}

func (d *fakeDirectory) IsWorkspaceMember(_ context.Context, userID, workspaceID int64) (bool, error) {
	d.memberCalls.Add(1)
	if d.err != nil {
		return false, d.err
	}
	for _, id := range d.members[workspaceID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		channels: map[int64]int64{10: 1, 11: 1, 20: 2},
		members:  map[int64][]int64{1: {100, 101}, 2: {101}},
	}
}

func TestAccess_CanAccessChannel(t *testing.T) {
	a := NewAccess(newFakeDirectory())
	ctx := context.Background()

	tests := []struct {
		name    string
		user    int64
		channel int64
		want    bool
	}{
		{"member of owning workspace", 100, 10, true},
		{"member of another workspace", 100, 20, false},
		{"member of both", 101, 20, true},
		{"unknown channel", 100, 99, false},
		{"stranger", 555, 10, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.CanAccessChannel(ctx, tt.user, tt.channel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccess_PropagatesDirectoryErrors(t *testing.T) {
	dir := newFakeDirectory()
	dir.err = errors.New("boom")
	a := NewAccess(dir)

	_, err := a.CanAccessChannel(context.Background(), 100, 10)
	assert.Error(t, err)
	_, err = a.CanAccessWorkspace(context.Background(), 100, 1)
	assert.Error(t, err)
}

func TestAccess_CanAccessWorkspace(t *testing.T) {
	a := NewAccess(newFakeDirectory())

	ok, err := a.CanAccessWorkspace(context.Background(), 101, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CanAccessWorkspace(context.Background(), 100, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheKeys(t *testing.T) {
	assert.Equal(t, "chat:dir:channel:10:workspace", channelKey(10))
	assert.Equal(t, "chat:dir:workspace:2:member:101", memberKey(101, 2))
}

type invalidatingDirectory struct {
	*fakeDirectory
	invalidated []int64
}

func (d *invalidatingDirectory) Invalidate(_ context.Context, channelID int64) error {
	d.invalidated = append(d.invalidated, channelID)
	return nil
}

func TestAccess_Refresh(t *testing.T) {
	assert.NoError(t, NewAccess(newFakeDirectory()).Refresh(context.Background(), 10))

	dir := &invalidatingDirectory{fakeDirectory: newFakeDirectory()}
	require.NoError(t, NewAccess(dir).Refresh(context.Background(), 10))
	assert.Equal(t, []int64{10}, dir.invalidated)
}
