package runtime

import (
	"fmt"
	"slices"
	"sync"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/errors"
)

type userShard struct {
	mu    sync.RWMutex
	conns map[domain.UserID]map[domain.ConnectionID]contract.Connection
}

type ownerShard struct {
	mu     sync.Mutex
	owners map[domain.ConnectionID]domain.UserID
}

// Registry maps users to their live connections.
// State is split across shards so that connect and disconnect of unrelated
// users never contend on the same lock. Lock order: owner shard, then user shard.
type Registry struct {
	users  []*userShard
	owners []*ownerShard
}

func NewRegistry(shards int) *Registry {
	n := shardCount(shards)
	r := &Registry{
		users:  make([]*userShard, n),
		owners: make([]*ownerShard, n),
	}
	for i := 0; i < n; i++ {
		r.users[i] = &userShard{conns: make(map[domain.UserID]map[domain.ConnectionID]contract.Connection)}
		r.owners[i] = &ownerShard{owners: make(map[domain.ConnectionID]domain.UserID)}
	}
	return r
}

func (r *Registry) userShard(id domain.UserID) *userShard {
	return r.users[shardIndex(id, len(r.users))]
}

func (r *Registry) ownerShard(id domain.ConnectionID) *ownerShard {
	return r.owners[shardIndex(id, len(r.owners))]
}

// Register adds the connection under its user.
// first is true when the user had no connection before.
func (r *Registry) Register(conn contract.Connection) (first bool, err error) {
	connID, userID := conn.ID(), conn.UserID()

	ow := r.ownerShard(connID)
	ow.mu.Lock()
	defer ow.mu.Unlock()
	if owner, ok := ow.owners[connID]; ok {
		return false, fmt.Errorf("%w: %s already owned by %s", errors.ErrConnectionAlreadyRegistered, connID, owner)
	}

	us := r.userShard(userID)
	us.mu.Lock()
	set, ok := us.conns[userID]
	if !ok {
		set = make(map[domain.ConnectionID]contract.Connection)
		us.conns[userID] = set
	}
	set[connID] = conn
	first = len(set) == 1
	us.mu.Unlock()

	ow.owners[connID] = userID
	return first, nil
}

// Unregister removes the connection.
// last is true when the owning user has no connection left.
// An unknown connection returns ErrConnectionNotFound, disconnects may race.
func (r *Registry) Unregister(connID domain.ConnectionID) (userID domain.UserID, last bool, err error) {
	ow := r.ownerShard(connID)
	ow.mu.Lock()
	defer ow.mu.Unlock()
	userID, ok := ow.owners[connID]
	if !ok {
		return "", false, fmt.Errorf("%w: %s", errors.ErrConnectionNotFound, connID)
	}
	delete(ow.owners, connID)

	us := r.userShard(userID)
	us.mu.Lock()
	defer us.mu.Unlock()
	set := us.conns[userID]
	delete(set, connID)
	if len(set) == 0 {
		delete(us.conns, userID)
		last = true
	}
	return userID, last, nil
}

// ConnectionsFor returns a copy of the user's connections.
func (r *Registry) ConnectionsFor(userID domain.UserID) []contract.Connection {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	set := us.conns[userID]
	conns := make([]contract.Connection, 0, len(set))
	for _, c := range set {
		conns = append(conns, c)
	}
	return conns
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	us := r.userShard(userID)
	us.mu.RLock()
	defer us.mu.RUnlock()
	return len(us.conns[userID]) > 0
}

// OnlineUserIDs lists every user with at least one connection, sorted.
// Shards are read one after the other: the result is consistent per user,
// not across the whole registry.
func (r *Registry) OnlineUserIDs() []domain.UserID {
	var ids []domain.UserID
	for _, us := range r.users {
		us.mu.RLock()
		for id := range us.conns {
			ids = append(ids, id)
		}
		us.mu.RUnlock()
	}
	slices.Sort(ids)
	return ids
}

// Connections returns every live connection.
func (r *Registry) Connections() []contract.Connection {
	var conns []contract.Connection
	for _, us := range r.users {
		us.mu.RLock()
		for _, set := range us.conns {
			for _, c := range set {
				conns = append(conns, c)
			}
		}
		us.mu.RUnlock()
	}
	return conns
}

func (r *Registry) Stats() (users int, connections int) {
	for _, us := range r.users {
		us.mu.RLock()
		users += len(us.conns)
		for _, set := range us.conns {
			connections += len(set)
		}
		us.mu.RUnlock()
	}
	return users, connections
}
