// Package memory is an in-process message store and directory, used for
// development and tests when no database is configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/chatd/internal/directory"
	"github.com/Tyrowin/chatd/internal/messages"
)

// OpenWorkspaceID is the workspace every channel belongs to in open mode.
const OpenWorkspaceID int64 = 1

// Store keeps messages, channels and workspace memberships in memory.
type Store struct {
	mu       sync.RWMutex
	open     bool
	nextID   int64
	messages map[int64][]messages.Message
	channels map[int64]int64
	members  map[int64]map[int64]struct{}
	now      func() time.Time
}

// New returns an empty Store. Only registered channels and members are
// known to its directory.
func New() *Store {
	return &Store{
		messages: make(map[int64][]messages.Message),
		channels: make(map[int64]int64),
		members:  make(map[int64]map[int64]struct{}),
		now:      time.Now,
	}
}

// NewOpen returns a Store whose directory places every unregistered channel
// in OpenWorkspaceID and every user in every workspace.
func NewOpen() *Store {
	s := New()
	s.open = true
	return s
}

// AddChannel registers channelID as owned by workspaceID.
func (s *Store) AddChannel(channelID, workspaceID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[channelID] = workspaceID
}

// AddMember adds userID to workspaceID.
func (s *Store) AddMember(workspaceID, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.members[workspaceID]
	if !ok {
		set = make(map[int64]struct{})
		s.members[workspaceID] = set
	}
	set[userID] = struct{}{}
}

// CreateMessage implements messages.Store. Ids increase with every call and
// CreatedAt never goes backwards, so insertion order is listing order.
func (s *Store) CreateMessage(ctx context.Context, m messages.NewMessage) (messages.Message, error) {
	if err := ctx.Err(); err != nil {
		return messages.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	created := s.now().UTC()
	if prev := s.messages[m.ChannelID]; len(prev) > 0 {
		if last := prev[len(prev)-1].CreatedAt; created.Before(last) {
			created = last
		}
	}

	msg := messages.Message{
		ID:         s.nextID,
		ChannelID:  m.ChannelID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		FileURL:    m.FileURL,
		FileName:   m.FileName,
		FileType:   m.FileType,
		CreatedAt:  created,
	}
	s.messages[m.ChannelID] = append(s.messages[m.ChannelID], msg)
	return msg, nil
}

// ListMessages implements messages.Store.
func (s *Store) ListMessages(ctx context.Context, channelID int64) ([]messages.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]messages.Message(nil), s.messages[channelID]...), nil
}

// ChannelWorkspace implements directory.Directory.
func (s *Store) ChannelWorkspace(_ context.Context, channelID int64) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ws, ok := s.channels[channelID]; ok {
		return ws, nil
	}
	if s.open {
		return OpenWorkspaceID, nil
	}
	return 0, directory.ErrNotFound
}

// IsWorkspaceMember implements directory.Directory.
func (s *Store) IsWorkspaceMember(_ context.Context, userID, workspaceID int64) (bool, error) {
	if s.open {
		return true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[workspaceID][userID]
	return ok, nil
}
