package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanDeliver_IsSymmetric(t *testing.T) {
	tests := []struct {
		name       string
		aBlocks    BlockList
		bBlocks    BlockList
		canDeliver bool
	}{
		{"nobody blocks", NewBlockList(), NewBlockList(), true},
		{"a blocked b", NewBlockList("b"), NewBlockList(), false},
		{"b blocked a", NewBlockList(), NewBlockList("a"), false},
		{"both blocked", NewBlockList("b"), NewBlockList("a"), false},
		{"unrelated blocks", NewBlockList("c"), NewBlockList("d"), true},
		{"nil lists", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			req.Equal(tt.canDeliver, CanDeliver("a", "b", tt.aBlocks, tt.bBlocks))
			req.Equal(tt.canDeliver, CanDeliver("b", "a", tt.bBlocks, tt.aBlocks))
		})
	}
}

func TestFilterRecipients_OnlyDropsBlockedPair(t *testing.T) {
	req := require.New(t)

	// Given c blocked the sender and the sender blocked d
	lists := map[UserID]BlockList{
		"a": NewBlockList("d"),
		"c": NewBlockList("a"),
	}

	// When
	allowed := FilterRecipients("a", []UserID{"a", "b", "c", "d", "e"}, lists)

	// Then
	req.Equal([]UserID{"a", "b", "e"}, allowed)
}

func TestFirstBlockedPair(t *testing.T) {
	req := require.New(t)

	a, b, found := FirstBlockedPair([]UserID{"a", "b", "c"}, map[UserID]BlockList{"a": NewBlockList("c")})
	req.True(found)
	req.Equal(UserID("a"), a)
	req.Equal(UserID("c"), b)

	_, _, found = FirstBlockedPair([]UserID{"a", "b"}, map[UserID]BlockList{"a": NewBlockList("z")})
	req.False(found)
}
