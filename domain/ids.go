// Package domain contains core concepts of the chat system.
// No runtime, network, or storage logic should be added here.
package domain

import "github.com/google/uuid"

type UserID string

type GroupID string

// ConnectionID identifies one live real-time session.
// Created on connect, never reused.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func NewGroupID() GroupID {
	return GroupID(uuid.NewString())
}

func NewUserID() UserID {
	return UserID(uuid.NewString())
}
