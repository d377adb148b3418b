package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
)

type channelShard struct {
	mu      sync.RWMutex
	members map[domain.GroupID]map[domain.ConnectionID]contract.Connection
}

type attachment struct {
	conn   contract.Connection
	groups map[domain.GroupID]struct{}
}

type attachShard struct {
	mu       sync.Mutex
	attached map[domain.ConnectionID]*attachment
}

// Membership tracks which group channels every live connection joined.
// Lock order: attach shard, then channel shard.
type Membership struct {
	log      *slog.Logger
	groups   contract.GroupStore
	registry *Registry
	timeout  time.Duration
	channels []*channelShard
	attached []*attachShard
}

func NewMembership(log *slog.Logger, groups contract.GroupStore, registry *Registry,
	timeout time.Duration, shards int) *Membership {
	n := shardCount(shards)
	m := &Membership{
		log:      log,
		groups:   groups,
		registry: registry,
		timeout:  timeout,
		channels: make([]*channelShard, n),
		attached: make([]*attachShard, n),
	}
	for i := 0; i < n; i++ {
		m.channels[i] = &channelShard{members: make(map[domain.GroupID]map[domain.ConnectionID]contract.Connection)}
		m.attached[i] = &attachShard{attached: make(map[domain.ConnectionID]*attachment)}
	}
	return m
}

func (m *Membership) channelShard(id domain.GroupID) *channelShard {
	return m.channels[shardIndex(id, len(m.channels))]
}

func (m *Membership) attachShard(id domain.ConnectionID) *attachShard {
	return m.attached[shardIndex(id, len(m.attached))]
}

// ChannelsFor asks the group store for the user's groups.
// A failing or slow store yields no channels: connecting must not wait on it.
func (m *Membership) ChannelsFor(ctx context.Context, userID domain.UserID) []domain.GroupID {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	groups, err := m.groups.FindByMember(ctx, userID)
	if err != nil {
		m.log.Warn("Unable to resolve group channels, joining none",
			"user_id", userID, "error", err)
		return nil
	}
	ids := make([]domain.GroupID, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	return ids
}

// Prepare attaches a registered connection to no channel yet, so that
// membership changes landing while its channels are resolved still join it.
func (m *Membership) Prepare(conn contract.Connection) {
	as := m.attachShard(conn.ID())
	as.mu.Lock()
	defer as.mu.Unlock()
	if _, ok := as.attached[conn.ID()]; !ok {
		as.attached[conn.ID()] = &attachment{conn: conn, groups: make(map[domain.GroupID]struct{})}
	}
}

// Attach joins a registered connection to its channels.
// Attaching twice adds the new channels to the existing ones.
func (m *Membership) Attach(conn contract.Connection, groupIDs []domain.GroupID) {
	m.Prepare(conn)
	m.Merge(conn.ID(), groupIDs)
}

// Merge joins a prepared connection to more channels. It returns false when
// the connection was detached in the meantime and joins nothing.
func (m *Membership) Merge(connID domain.ConnectionID, groupIDs []domain.GroupID) bool {
	as := m.attachShard(connID)
	as.mu.Lock()
	defer as.mu.Unlock()

	a, ok := as.attached[connID]
	if !ok {
		return false
	}
	for _, id := range groupIDs {
		if _, joined := a.groups[id]; joined {
			continue
		}
		a.groups[id] = struct{}{}
		m.join(id, a.conn)
	}
	return true
}

// Detach leaves every channel the connection joined and returns them.
func (m *Membership) Detach(connID domain.ConnectionID) []domain.GroupID {
	as := m.attachShard(connID)
	as.mu.Lock()
	defer as.mu.Unlock()

	a, ok := as.attached[connID]
	if !ok {
		return nil
	}
	delete(as.attached, connID)

	left := make([]domain.GroupID, 0, len(a.groups))
	for id := range a.groups {
		m.leave(id, connID)
		left = append(left, id)
	}
	return left
}

// OnGroupMembershipChanged joins the live connections of the added users to
// the group channel and returns how many connections joined.
// Connections are prepared right after registration, so one that is still
// resolving its channels joins here as well.
func (m *Membership) OnGroupMembershipChanged(groupID domain.GroupID, added []domain.UserID) int {
	joined := 0
	for _, userID := range added {
		for _, conn := range m.registry.ConnectionsFor(userID) {
			if m.joinAttached(groupID, conn) {
				joined++
			}
		}
	}
	if joined > 0 {
		m.log.Debug("Live connections joined group channel", "group_id", groupID, "count", joined)
	}
	return joined
}

func (m *Membership) joinAttached(groupID domain.GroupID, conn contract.Connection) bool {
	as := m.attachShard(conn.ID())
	as.mu.Lock()
	defer as.mu.Unlock()

	a, ok := as.attached[conn.ID()]
	if !ok {
		return false
	}
	if _, joined := a.groups[groupID]; joined {
		return false
	}
	a.groups[groupID] = struct{}{}
	m.join(groupID, conn)
	return true
}

// Members returns the connections joined to the channel.
func (m *Membership) Members(groupID domain.GroupID) []contract.Connection {
	cs := m.channelShard(groupID)
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	set := cs.members[groupID]
	conns := make([]contract.Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

// ChannelsOf returns the channels a connection joined.
func (m *Membership) ChannelsOf(connID domain.ConnectionID) []domain.GroupID {
	as := m.attachShard(connID)
	as.mu.Lock()
	defer as.mu.Unlock()
	a, ok := as.attached[connID]
	if !ok {
		return nil
	}
	ids := make([]domain.GroupID, 0, len(a.groups))
	for id := range a.groups {
		ids = append(ids, id)
	}
	return ids
}

func (m *Membership) ChannelCount() int {
	total := 0
	for _, cs := range m.channels {
		cs.mu.RLock()
		total += len(cs.members)
		cs.mu.RUnlock()
	}
	return total
}

func (m *Membership) join(groupID domain.GroupID, conn contract.Connection) {
	cs := m.channelShard(groupID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	set, ok := cs.members[groupID]
	if !ok {
		set = make(map[domain.ConnectionID]contract.Connection)
		cs.members[groupID] = set
	}
	set[conn.ID()] = conn
}

func (m *Membership) leave(groupID domain.GroupID, connID domain.ConnectionID) {
	cs := m.channelShard(groupID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	set := cs.members[groupID]
	delete(set, connID)
	if len(set) == 0 {
		delete(cs.members, groupID)
	}
}
