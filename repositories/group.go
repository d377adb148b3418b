package repositories

import (
	"context"
	stderrors "errors"
	"log/slog"
	"slices"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/dgraph-io/badger/v4"
)

// GroupRepository stores groups with a member index so that the groups of
// a user are found with one prefix scan.
type GroupRepository struct {
	db  *badger.DB
	log *slog.Logger
	now func() time.Time
}

func NewGroupRepository(db *badger.DB, log *slog.Logger) *GroupRepository {
	return &GroupRepository{db: db, log: log, now: time.Now}
}

func (r *GroupRepository) Create(ctx context.Context, name string, members []domain.UserID, creator domain.UserID) (domain.Group, error) {
	g := domain.Group{
		ID:        domain.NewGroupID(),
		Name:      name,
		Members:   domain.NormalizeMembers(creator, members),
		CreatedBy: creator,
		CreatedAt: r.now().UTC(),
		Picture:   domain.DefaultGroupPicture,
	}
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		return saveGroup(txn, g, g.Members)
	})
	if err != nil {
		return domain.Group{}, err
	}
	r.log.Debug("Group created", "group_id", g.ID, "members", len(g.Members))
	return g, nil
}

func (r *GroupRepository) FindByID(ctx context.Context, id domain.GroupID) (domain.Group, error) {
	var group domain.Group
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		g, err := loadGroup(txn, id)
		group = g
		return err
	})
	return group, err
}

// FindByMember returns the groups of a user, oldest first.
func (r *GroupRepository) FindByMember(ctx context.Context, userID domain.UserID) ([]domain.Group, error) {
	groups := []domain.Group{}
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := groupMembershipPrefix(userID)
		var ids []domain.GroupID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, domain.GroupID(it.Item().Key()[len(prefix):]))
		}
		for _, id := range ids {
			g, err := loadGroup(txn, id)
			if stderrors.Is(err, errors.ErrGroupNotFound) {
				r.log.Warn("Dangling group membership", "user_id", userID, "group_id", id)
				continue
			}
			if err != nil {
				return err
			}
			groups = append(groups, g)
		}
		return nil
	})
	slices.SortStableFunc(groups, func(a, b domain.Group) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return groups, err
}

// AddMembers appends the users that are not members yet and returns the
// updated group.
func (r *GroupRepository) AddMembers(ctx context.Context, groupID domain.GroupID, userIDs []domain.UserID) (domain.Group, error) {
	var group domain.Group
	err := update(ctx, r.db, func(txn *badger.Txn) error {
		g, err := loadGroup(txn, groupID)
		if err != nil {
			return err
		}
		fresh := g.NewMembers(userIDs)
		g.Members = append(g.Members, fresh...)
		group = g
		if len(fresh) == 0 {
			return nil
		}
		return saveGroup(txn, g, fresh)
	})
	return group, err
}

func saveGroup(txn *badger.Txn, g domain.Group, indexed []domain.UserID) error {
	if err := txn.Set(groupKey(g.ID), encodeGroup(g)); err != nil {
		return err
	}
	for _, m := range indexed {
		if err := txn.Set(groupMemberKey(m, g.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func loadGroup(txn *badger.Txn, id domain.GroupID) (domain.Group, error) {
	raw, err := getValue(txn, groupKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Group{}, errors.ErrGroupNotFound
	}
	if err != nil {
		return domain.Group{}, err
	}
	return decodeGroup(raw)
}
