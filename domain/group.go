package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	DefaultMaxGroupSize = 10
	DefaultGroupPicture = "/group.png"
)

// Group members are unique and always include the creator.
type Group struct {
	ID        GroupID
	Name      string
	Members   []UserID
	CreatedBy UserID
	CreatedAt time.Time
	Picture   string
}

func (g Group) HasMember(userID UserID) bool {
	return slices.Contains(g.Members, userID)
}

// NormalizeMembers puts the creator first, drops blanks and duplicates,
// and keeps the caller's order otherwise.
func NormalizeMembers(creator UserID, members []UserID) []UserID {
	all := append([]UserID{creator}, members...)
	all = lo.Filter(all, func(id UserID, _ int) bool {
		return strings.TrimSpace(string(id)) != ""
	})
	return lo.Uniq(all)
}

// NewMembers returns the ids of candidates that are not in the group yet.
func (g Group) NewMembers(candidates []UserID) []UserID {
	fresh := lo.Filter(lo.Uniq(candidates), func(id UserID, _ int) bool {
		return id != "" && !g.HasMember(id)
	})
	return fresh
}
