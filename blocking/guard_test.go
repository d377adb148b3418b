package blocking

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"
	"my-chat-backend/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// staticSource serves block lists from a map, unknown users are not found.
type staticSource map[domain.UserID]domain.BlockList

func (s staticSource) GetBlockList(_ context.Context, id domain.UserID) (domain.BlockList, error) {
	list, ok := s[id]
	if !ok {
		return nil, errors.ErrUserNotFound
	}
	return list, nil
}

func newGuard(source BlockListSource) *Guard {
	return NewGuard(slog.Default(), source, time.Second)
}

func TestGuard_CanDeliverIsSymmetric(t *testing.T) {
	tests := []struct {
		name   string
		source staticSource
		want   bool
	}{
		{"no block", staticSource{"a": {}, "b": {}}, true},
		{"sender blocked recipient", staticSource{"a": domain.NewBlockList("b"), "b": {}}, false},
		{"recipient blocked sender", staticSource{"a": {}, "b": domain.NewBlockList("a")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			g := newGuard(tt.source)

			ab, err := g.CanDeliver(context.Background(), "a", "b")
			req.NoError(err)
			ba, err := g.CanDeliver(context.Background(), "b", "a")
			req.NoError(err)

			req.Equal(tt.want, ab)
			req.Equal(tt.want, ba)
		})
	}
}

func TestGuard_CanDeliverSurfacesStoreFailure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	users.EXPECT().GetBlockList(gomock.Any(), gomock.Any()).Return(nil, fmt.Errorf("io error")).AnyTimes()

	_, err := newGuard(users).CanDeliver(context.Background(), "a", "b")

	req.ErrorIs(err, errors.ErrExternalUnavailable)
}

func TestGuard_FilterGroupRecipients(t *testing.T) {
	req := require.New(t)
	g := newGuard(staticSource{
		"a": domain.NewBlockList("d"),
		"b": {},
		"c": domain.NewBlockList("a"),
		"d": {},
	})

	// "e" left the platform: treated as having no blocks
	allowed, err := g.FilterGroupRecipients(context.Background(), "a", []domain.UserID{"a", "b", "c", "d", "e"})

	req.NoError(err)
	req.Equal([]domain.UserID{"a", "b", "e"}, allowed)
}

func TestGuard_ValidateGroupRejectsBlockedPair(t *testing.T) {
	req := require.New(t)
	g := newGuard(staticSource{"a": domain.NewBlockList("c"), "b": {}, "c": {}})

	err := g.ValidateGroup(context.Background(), []domain.UserID{"a", "b", "c"})

	req.ErrorIs(err, errors.ErrBlockedPair)
	req.ErrorIs(err, errors.ErrInvalidArgument)
}

func TestGuard_ValidateGroupRejectsUnknownUser(t *testing.T) {
	req := require.New(t)
	g := newGuard(staticSource{"a": {}})

	err := g.ValidateGroup(context.Background(), []domain.UserID{"a", "ghost"})

	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestGuard_ValidateGroupAccepts(t *testing.T) {
	g := newGuard(staticSource{"a": domain.NewBlockList("z"), "b": {}, "c": {}})
	require.NoError(t, g.ValidateGroup(context.Background(), []domain.UserID{"a", "b", "c"}))
}

func TestGuard_FetchesEachUserOnce(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	users := mocks.NewMockUserStore(ctrl)
	users.EXPECT().GetBlockList(gomock.Any(), domain.UserID("a")).Return(domain.NewBlockList(), nil).Times(1)
	users.EXPECT().GetBlockList(gomock.Any(), domain.UserID("b")).Return(domain.NewBlockList(), nil).Times(1)

	allowed, err := newGuard(users).FilterGroupRecipients(context.Background(), "a", []domain.UserID{"a", "b"})

	req.NoError(err)
	req.Len(allowed, 2)
}
