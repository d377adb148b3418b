package services

import (
	"context"
	"fmt"
	"testing"

	"my-chat-backend/domain"
	"my-chat-backend/errors"
	"my-chat-backend/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestBlockService(t *testing.T) {
	t.Run("block, list and unblock", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		a, b := f.user(t, "a"), f.user(t, "b")
		svc := NewBlockService(f.log, f.users)

		req.NoError(svc.Block(ctx, a, b))
		req.NoError(svc.Block(ctx, a, b))
		blocked, err := svc.Blocked(ctx, a)
		req.NoError(err)
		req.Len(blocked, 1)
		req.Equal(b, blocked[0].ID)

		req.NoError(svc.Unblock(ctx, a, b))
		blocked, err = svc.Blocked(ctx, a)
		req.NoError(err)
		req.Empty(blocked)
	})

	t.Run("rejects self and unknown targets", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		f := newFixture(t)
		a := f.user(t, "a")
		svc := NewBlockService(f.log, f.users)

		req.ErrorIs(svc.Block(ctx, a, a), errors.ErrSelfBlock)
		req.ErrorIs(svc.Block(ctx, a, "ghost"), errors.ErrUserNotFound)
	})

	t.Run("store failures become unavailable", func(t *testing.T) {
		req := require.New(t)
		ctrl := gomock.NewController(t)
		users := mocks.NewMockUserStore(ctrl)
		users.EXPECT().FindByID(gomock.Any(), domain.UserID("b")).Return(domain.User{ID: "b"}, nil)
		users.EXPECT().AddBlock(gomock.Any(), domain.UserID("a"), domain.UserID("b")).Return(fmt.Errorf("io error"))
		svc := NewBlockService(newFixture(t).log, users)

		req.ErrorIs(svc.Block(context.Background(), "a", "b"), errors.ErrExternalUnavailable)
	})
}
