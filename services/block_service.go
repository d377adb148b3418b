package services

import (
	"context"
	"log/slog"

	"my-chat-backend/contract"
	"my-chat-backend/domain"
	"my-chat-backend/errors"
)

type IBlockService interface {
	Block(ctx context.Context, me, target domain.UserID) error
	Unblock(ctx context.Context, me, target domain.UserID) error
	Blocked(ctx context.Context, me domain.UserID) ([]domain.User, error)
}

type BlockService struct {
	log   *slog.Logger
	users contract.UserStore
}

func NewBlockService(log *slog.Logger, users contract.UserStore) *BlockService {
	return &BlockService{log: log, users: users}
}

// Block is idempotent. The target must exist.
func (s *BlockService) Block(ctx context.Context, me, target domain.UserID) error {
	if me == target {
		return errors.ErrSelfBlock
	}
	if _, err := s.users.FindByID(ctx, target); err != nil {
		return errors.External(err)
	}
	if err := s.users.AddBlock(ctx, me, target); err != nil {
		return errors.External(err)
	}
	s.log.Info("User blocked", "user_id", me, "target_id", target)
	return nil
}

func (s *BlockService) Unblock(ctx context.Context, me, target domain.UserID) error {
	if err := s.users.RemoveBlock(ctx, me, target); err != nil {
		return errors.External(err)
	}
	s.log.Info("User unblocked", "user_id", me, "target_id", target)
	return nil
}

// Blocked lists the profiles of the users I blocked.
func (s *BlockService) Blocked(ctx context.Context, me domain.UserID) ([]domain.User, error) {
	list, err := s.users.GetBlockList(ctx, me)
	if err != nil {
		return nil, errors.External(err)
	}
	if len(list) == 0 {
		return []domain.User{}, nil
	}
	users, err := s.users.FindMany(ctx, domain.UserFilter{IDs: list.IDs()})
	return users, errors.External(err)
}
