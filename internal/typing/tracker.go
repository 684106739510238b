// Package typing tracks who is currently typing in each channel.
//
// Typing state is a hint, not a delivery guarantee: nothing here returns an
// error, and a lost announcement only delays what other members see. An
// entry lives until an explicit stop or until the inactivity window passes
// without a refresh, whichever comes first.
package typing

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tyrowin/chatd/internal/auth"
	"github.com/Tyrowin/chatd/internal/events"
	"github.com/Tyrowin/chatd/internal/rooms"
)

// DefaultWindow is how long a typing entry survives without a refresh.
const DefaultWindow = 2 * time.Second

// Broadcaster fans an encoded event out to a room.
type Broadcaster interface {
	Broadcast(key string, payload []byte, skip rooms.Filter) int
}

type entry struct {
	identity auth.Identity
	last     time.Time
	timer    *time.Timer
}

type channelState struct {
	mu      sync.Mutex
	entries map[int64]*entry
	closed  bool
}

// Tracker holds the typing entries of every channel.
type Tracker struct {
	mu       sync.Mutex
	channels map[int64]*channelState

	window time.Duration
	out    Broadcaster
	logger *zap.Logger
}

// NewTracker returns a Tracker announcing through out. A non-positive window
// falls back to DefaultWindow.
func NewTracker(out Broadcaster, window time.Duration, logger *zap.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		channels: make(map[int64]*channelState),
		window:   window,
		out:      out,
		logger:   logger.Named("typing"),
	}
}

// Start records typing activity by id in channelID. The first call of a
// burst announces userTyping to the channel's other members; later calls
// only push the expiry back. It reports whether an announcement was made.
func (t *Tracker) Start(channelID int64, id auth.Identity) bool {
	for {
		cs := t.getOrCreate(channelID)

		cs.mu.Lock()
		if cs.closed {
			cs.mu.Unlock()
			continue
		}

		if e, ok := cs.entries[id.ID]; ok {
			e.last = time.Now()
			e.timer.Reset(t.window)
			cs.mu.Unlock()
			return false
		}

		e := &entry{identity: id, last: time.Now()}
		e.timer = time.AfterFunc(t.window, func() { t.expire(channelID, e) })
		cs.entries[id.ID] = e
		t.announce(channelID, events.UserTypingEvent{
			ChannelID: channelID,
			UserID:    id.ID,
			UserName:  id.DisplayName,
		}, id.ID)
		cs.mu.Unlock()
		return true
	}
}

// Stop ends id's typing burst in channelID and announces userStoppedTyping.
// It reports whether there was a burst to end.
func (t *Tracker) Stop(channelID int64, id auth.Identity) bool {
	cs := t.lookup(channelID)
	if cs == nil {
		return false
	}

	cs.mu.Lock()
	e, ok := cs.entries[id.ID]
	if ok {
		e.timer.Stop()
		t.remove(channelID, cs, e)
	}
	empty := len(cs.entries) == 0
	cs.mu.Unlock()

	if empty {
		t.collect(channelID, cs)
	}
	return ok
}

// Clear ends id's typing bursts in every listed channel. It is called when a
// connection goes away.
func (t *Tracker) Clear(id auth.Identity, channelIDs []int64) {
	for _, channelID := range channelIDs {
		t.Stop(channelID, id)
	}
}

// IsTyping reports whether userID has a live entry in channelID.
func (t *Tracker) IsTyping(channelID, userID int64) bool {
	cs := t.lookup(channelID)
	if cs == nil {
		return false
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, ok := cs.entries[userID]
	return ok
}

// Typists returns the identities currently typing in channelID.
func (t *Tracker) Typists(channelID int64) []auth.Identity {
	cs := t.lookup(channelID)
	if cs == nil {
		return nil
	}
	cs.mu.Lock()
	defer cs.mu.Unlock()

	out := make([]auth.Identity, 0, len(cs.entries))
	for _, e := range cs.entries {
		out = append(out, e.identity)
	}
	return out
}

// Close stops every pending expiry timer without announcing anything.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for channelID, cs := range t.channels {
		cs.mu.Lock()
		for _, e := range cs.entries {
			e.timer.Stop()
		}
		cs.entries = make(map[int64]*entry)
		cs.closed = true
		cs.mu.Unlock()
		delete(t.channels, channelID)
	}
}

func (t *Tracker) expire(channelID int64, e *entry) {
	cs := t.lookup(channelID)
	if cs == nil {
		return
	}

	cs.mu.Lock()
	current, ok := cs.entries[e.identity.ID]
	// A refresh between the timer firing and this lock re-armed the timer;
	// that later firing will expire the entry.
	if !ok || current != e || time.Since(e.last) < t.window {
		cs.mu.Unlock()
		return
	}
	t.remove(channelID, cs, e)
	empty := len(cs.entries) == 0
	cs.mu.Unlock()

	t.logger.Debug("typing expired",
		zap.Int64("channel", channelID),
		zap.Int64("user", e.identity.ID))
	if empty {
		t.collect(channelID, cs)
	}
}

// remove deletes e and announces the stop. cs.mu must be held.
func (t *Tracker) remove(channelID int64, cs *channelState, e *entry) {
	delete(cs.entries, e.identity.ID)
	t.announce(channelID, events.UserStoppedTypingEvent{
		ChannelID: channelID,
		UserID:    e.identity.ID,
		UserName:  e.identity.DisplayName,
	}, e.identity.ID)
}

func (t *Tracker) announce(channelID int64, ev events.Outbound, typist int64) {
	payload, err := events.Encode(ev)
	if err != nil {
		t.logger.Error("encode typing event", zap.Error(err))
		return
	}
	t.out.Broadcast(rooms.ChannelKey(channelID), payload, rooms.ExcludeUser(typist))
}

func (t *Tracker) lookup(channelID int64) *channelState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.channels[channelID]
}

func (t *Tracker) getOrCreate(channelID int64) *channelState {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.channels[channelID]
	if !ok {
		cs = &channelState{entries: make(map[int64]*entry)}
		t.channels[channelID] = cs
	}
	return cs
}

func (t *Tracker) collect(channelID int64, cs *channelState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs.mu.Lock()
	defer cs.mu.Unlock()

	if len(cs.entries) > 0 || t.channels[channelID] != cs {
		return
	}
	cs.closed = true
	delete(t.channels, channelID)
}
