// Package domain contains core concepts of the chat system.
// This file defines messages. A message targets exactly one receiver or
// one group and is only mutated to flip its read state.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID         uuid.UUID
	SenderID   UserID
	ReceiverID UserID
	GroupID    GroupID
	Text       string
	ImageURL   string
	Lang       string
	Read       bool
	ReadAt     time.Time
	CreatedAt  time.Time
}

func (m Message) IsGroup() bool {
	return m.GroupID != ""
}

// HasSingleTarget is true when exactly one of receiver and group is set.
func (m Message) HasSingleTarget() bool {
	return (m.ReceiverID == "") != (m.GroupID == "")
}
