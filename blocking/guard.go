// Package blocking decides whether an event may travel between two users.
// A block set by either side suppresses delivery in both directions.
package blocking

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

const maxParallelFetches = 8

type BlockListSource interface {
	GetBlockList(ctx context.Context, id domain.UserID) (domain.BlockList, error)
}

type Guard struct {
	log     *slog.Logger
	source  BlockListSource
	timeout time.Duration
}

func NewGuard(log *slog.Logger, source BlockListSource, timeout time.Duration) *Guard {
	return &Guard{log: log, source: source, timeout: timeout}
}

// CanDeliver is false when sender or recipient blocked the other.
func (g *Guard) CanDeliver(ctx context.Context, sender, recipient domain.UserID) (bool, error) {
	lists, err := g.snapshot(ctx, []domain.UserID{sender, recipient}, false)
	if err != nil {
		return false, err
	}
	return domain.CanDeliver(sender, recipient, lists[sender], lists[recipient]), nil
}

// FilterGroupRecipients keeps the members the sender may reach.
// A block only removes that one member.
func (g *Guard) FilterGroupRecipients(ctx context.Context, sender domain.UserID, members []domain.UserID) ([]domain.UserID, error) {
	lists, err := g.snapshot(ctx, append([]domain.UserID{sender}, members...), false)
	if err != nil {
		return nil, err
	}
	allowed := domain.FilterRecipients(sender, members, lists)
	if dropped := len(members) - len(allowed); dropped > 0 {
		g.log.Debug("Group recipients suppressed by blocks", "sender_id", sender, "count", dropped)
	}
	return allowed, nil
}

// ValidateGroup rejects a member set containing any blocked pair.
// Every block list is fetched before any pair is checked, so the decision
// runs on one snapshot. Unknown users are rejected.
func (g *Guard) ValidateGroup(ctx context.Context, members []domain.UserID) error {
	lists, err := g.snapshot(ctx, members, true)
	if err != nil {
		return err
	}
	if a, b, found := domain.FirstBlockedPair(members, lists); found {
		return fmt.Errorf("%w: %s and %s", errors.ErrBlockedPair, a, b)
	}
	return nil
}

// snapshot fetches the block lists of ids concurrently under one timeout.
// With strict unset, a vanished user counts as having no blocks.
func (g *Guard) snapshot(ctx context.Context, ids []domain.UserID, strict bool) (map[domain.UserID]domain.BlockList, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	ids = lo.Uniq(ids)
	var mu sync.Mutex
	lists := make(map[domain.UserID]domain.BlockList, len(ids))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(maxParallelFetches)
	for _, id := range ids {
		eg.Go(func() error {
			list, err := g.source.GetBlockList(egCtx, id)
			if err != nil {
				if !strict && stderrors.Is(err, errors.ErrNotFound) {
					list = domain.NewBlockList()
				} else {
					return fmt.Errorf("block list of %s: %w", id, errors.External(err))
				}
			}
			mu.Lock()
			lists[id] = list
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return lists, nil
}
