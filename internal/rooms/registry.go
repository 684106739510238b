// Package rooms keeps the in-memory broadcast groups that connections join,
// and fans events out to their members.
//
// Each room has its own lock: membership changes and broadcasts on one room
// are serialized, so every member observes the same relative order of
// events, while broadcasts to different rooms proceed in parallel. Rooms are
// created on first join and removed once their last member leaves.
package rooms

import (
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Member is a connection that can sit in rooms.
type Member interface {
	// ID uniquely identifies the connection.
	ID() string
	// UserID is the id of the identity bound to the connection.
	UserID() int64
	// Deliver enqueues payload without blocking and reports whether it was
	// accepted. A false return means the member cannot keep up or is gone.
	Deliver(payload []byte) bool
	// Drop disconnects a member that failed a delivery. It must not block
	// and must be safe to call more than once.
	Drop()
}

// Filter reports whether a member should be skipped by a broadcast.
type Filter func(Member) bool

// ExcludeUser skips every connection of one user.
func ExcludeUser(userID int64) Filter {
	return func(x Member) bool { return x.UserID() == userID }
}

// ChannelKey names the room of a channel.
func ChannelKey(channelID int64) string {
	return "channel_" + strconv.FormatInt(channelID, 10)
}

// WorkspaceKey names the room of a workspace.
func WorkspaceKey(workspaceID int64) string {
	return "workspace_" + strconv.FormatInt(workspaceID, 10)
}

type room struct {
	mu      sync.Mutex
	members map[string]Member
	// closed is set once the room has been removed from the registry; a
	// joiner holding a stale pointer must look the room up again.
	closed bool
}

// Registry maps room keys to their members.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	idxMu       sync.Mutex
	memberships map[string]map[string]struct{}

	logger *zap.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:       make(map[string]*room),
		memberships: make(map[string]map[string]struct{}),
		logger:      logger.Named("rooms"),
	}
}

// Join adds m to the room at key, creating the room if needed. It reports
// whether m was newly added; joining twice has no further effect.
func (r *Registry) Join(key string, m Member) bool {
	for {
		rm := r.getOrCreate(key)

		rm.mu.Lock()
		if rm.closed {
			rm.mu.Unlock()
			continue
		}
		_, exists := rm.members[m.ID()]
		rm.members[m.ID()] = m
		count := len(rm.members)
		rm.mu.Unlock()

		if exists {
			return false
		}
		r.index(m.ID(), key, true)
		r.logger.Debug("member joined",
			zap.String("room", key),
			zap.String("member", m.ID()),
			zap.Int("members", count))
		return true
	}
}

// Leave removes m from the room at key. Leaving a room m is not in is a
// no-op.
func (r *Registry) Leave(key string, m Member) {
	r.index(m.ID(), key, false)

	rm := r.lookup(key)
	if rm == nil {
		return
	}

	rm.mu.Lock()
	_, existed := rm.members[m.ID()]
	delete(rm.members, m.ID())
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	if existed {
		r.logger.Debug("member left", zap.String("room", key), zap.String("member", m.ID()))
	}
	if empty {
		r.collect(key, rm)
	}
}

// LeaveAll removes m from every room it joined and returns their keys.
func (r *Registry) LeaveAll(m Member) []string {
	keys := r.Rooms(m)
	for _, key := range keys {
		r.Leave(key, m)
	}
	return keys
}

// Rooms returns the keys of the rooms m has joined.
func (r *Registry) Rooms(m Member) []string {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()

	joined := r.memberships[m.ID()]
	keys := make([]string, 0, len(joined))
	for key := range joined {
		keys = append(keys, key)
	}
	return keys
}

// Joined reports whether m is in the room at key.
func (r *Registry) Joined(key string, m Member) bool {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()
	_, ok := r.memberships[m.ID()][key]
	return ok
}

// Broadcast delivers payload to every member of the room at key that skip
// does not exclude, and returns how many members accepted it. Members whose
// queue rejects the payload are dropped after the room lock is released.
// Broadcasting to an empty or unknown room is a no-op.
func (r *Registry) Broadcast(key string, payload []byte, skip Filter) int {
	rm := r.lookup(key)
	if rm == nil {
		return 0
	}

	var (
		delivered int
		failed    []Member
	)

	rm.mu.Lock()
	for _, m := range rm.members {
		if skip != nil && skip(m) {
			continue
		}
		if m.Deliver(payload) {
			delivered++
		} else {
			failed = append(failed, m)
		}
	}
	rm.mu.Unlock()

	for _, m := range failed {
		r.logger.Warn("dropping member that cannot keep up",
			zap.String("room", key),
			zap.String("member", m.ID()),
			zap.Int64("user", m.UserID()))
		m.Drop()
	}
	return delivered
}

// Members returns the number of members in the room at key.
func (r *Registry) Members(key string) int {
	rm := r.lookup(key)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.members)
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

func (r *Registry) lookup(key string) *room {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[key]
}

func (r *Registry) getOrCreate(key string) *room {
	if rm := r.lookup(key); rm != nil {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[key]
	if !ok {
		rm = &room{members: make(map[string]Member)}
		r.rooms[key] = rm
	}
	return rm
}

// collect removes rm from the registry if it is still the room at key and
// still empty. Lock order is registry, then room.
func (r *Registry) collect(key string, rm *room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if len(rm.members) > 0 || r.rooms[key] != rm {
		return
	}
	rm.closed = true
	delete(r.rooms, key)
	r.logger.Debug("room collected", zap.String("room", key))
}

func (r *Registry) index(memberID, key string, joined bool) {
	r.idxMu.Lock()
	defer r.idxMu.Unlock()

	set := r.memberships[memberID]
	if joined {
		if set == nil {
			set = make(map[string]struct{})
			r.memberships[memberID] = set
		}
		set[key] = struct{}{}
		return
	}

	if set == nil {
		return
	}
	delete(set, key)
	if len(set) == 0 {
		delete(r.memberships, memberID)
	}
}
