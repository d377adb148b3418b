package domain

import "time"

type User struct {
	ID           UserID
	FullName     string
	Email        string
	ProfilePic   string
	PasswordHash string
	CreatedAt    time.Time
	LastSeen     time.Time
}

// UserFilter narrows FindMany. Zero value lists every user.
type UserFilter struct {
	IDs       []UserID
	ExcludeID UserID
	Query     string
	Limit     int
}
