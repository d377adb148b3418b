package domain

import "time"

type PresenceStatus string

const (
	Online  PresenceStatus = "online"
	Offline PresenceStatus = "offline"
)

// PresenceState is derived from the registry; only LastSeen is persisted.
type PresenceState struct {
	UserID   UserID
	Status   PresenceStatus
	LastSeen time.Time
}
