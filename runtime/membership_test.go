package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestMembership_ChannelsForReturnsGroupIDs(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	groups := mocks.NewMockGroupStore(ctrl)
	m := NewMembership(testLogger(), groups, NewRegistry(2), time.Second, 2)

	groups.EXPECT().FindByMember(gomock.Any(), domain.UserID("u1")).
		Return([]domain.Group{{ID: "g1"}, {ID: "g2"}}, nil)

	req.Equal([]domain.GroupID{"g1", "g2"}, m.ChannelsFor(context.Background(), "u1"))
}

func TestMembership_ChannelsForToleratesStoreFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	groups := mocks.NewMockGroupStore(ctrl)
	m := NewMembership(testLogger(), groups, NewRegistry(2), time.Second, 2)

	groups.EXPECT().FindByMember(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("store down"))

	req.Empty(m.ChannelsFor(context.Background(), "u1"))
}

func TestMembership_ChannelsForIsBoundedByTimeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	groups := mocks.NewMockGroupStore(ctrl)
	m := NewMembership(testLogger(), groups, NewRegistry(2), 20*time.Millisecond, 2)

	// Given a store that only answers when the caller gives up
	groups.EXPECT().FindByMember(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domain.UserID) ([]domain.Group, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	start := time.Now()
	channels := m.ChannelsFor(context.Background(), "u1")

	req.Empty(channels)
	req.Less(time.Since(start), time.Second)
}

func TestMembership_AttachDetach(t *testing.T) {
	req := require.New(t)
	m := NewMembership(testLogger(), nil, NewRegistry(2), time.Second, 2)
	conn := newConn("u1")

	m.Attach(conn, []domain.GroupID{"g1", "g2"})
	req.Len(m.Members("g1"), 1)
	req.ElementsMatch([]domain.GroupID{"g1", "g2"}, m.ChannelsOf(conn.ID()))
	req.Equal(2, m.ChannelCount())

	left := m.Detach(conn.ID())
	req.ElementsMatch([]domain.GroupID{"g1", "g2"}, left)
	req.Empty(m.Members("g1"))
	req.Zero(m.ChannelCount())
	req.Nil(m.Detach(conn.ID()))
}

func TestMembership_OnGroupMembershipChangedJoinsLiveConnections(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(2)
	m := NewMembership(testLogger(), nil, registry, time.Second, 2)

	// Given u2 has two attached devices and u3 is offline
	phone, laptop := newConn("u2"), newConn("u2")
	for _, c := range []*fakeConn{phone, laptop} {
		_, err := registry.Register(c)
		req.NoError(err)
		m.Attach(c, nil)
	}

	// When u2 and u3 are added to g1
	joined := m.OnGroupMembershipChanged("g1", []domain.UserID{"u2", "u3"})

	// Then both devices joined, and a second notification is a no-op
	req.Equal(2, joined)
	req.Len(m.Members("g1"), 2)
	req.Zero(m.OnGroupMembershipChanged("g1", []domain.UserID{"u2"}))
}

func TestMembership_OnGroupMembershipChangedSkipsUnattached(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(2)
	m := NewMembership(testLogger(), nil, registry, time.Second, 2)
	conn := newConn("u1")
	_, err := registry.Register(conn)
	req.NoError(err)

	req.Zero(m.OnGroupMembershipChanged("g1", []domain.UserID{"u1"}))
	req.Empty(m.Members("g1"))
}

func TestMembership_PreparedConnectionJoinsBeforeMerge(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(2)
	m := NewMembership(testLogger(), nil, registry, time.Second, 2)
	conn := newConn("u1")
	_, err := registry.Register(conn)
	req.NoError(err)

	// Given a prepared connection whose channels are not resolved yet
	m.Prepare(conn)

	// When a group gains u1, then the stale lookup result is merged
	req.Equal(1, m.OnGroupMembershipChanged("g1", []domain.UserID{"u1"}))
	req.True(m.Merge(conn.ID(), []domain.GroupID{"g2"}))

	// Then both channels are kept
	req.ElementsMatch([]domain.GroupID{"g1", "g2"}, m.ChannelsOf(conn.ID()))
}

func TestMembership_MergeAfterDetachJoinsNothing(t *testing.T) {
	req := require.New(t)
	m := NewMembership(testLogger(), nil, NewRegistry(2), time.Second, 2)
	conn := newConn("u1")

	m.Prepare(conn)
	m.Detach(conn.ID())

	req.False(m.Merge(conn.ID(), []domain.GroupID{"g1"}))
	req.Empty(m.Members("g1"))
	req.Zero(m.ChannelCount())
}
