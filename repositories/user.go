package repositories

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

// UserRepository stores users and their block lists in Badger.
// The optional index serves free text lookups, a scan is used otherwise.
type UserRepository struct {
	db    *badger.DB
	log   *slog.Logger
	index *UserIndex
	now   func() time.Time
}

func NewUserRepository(db *badger.DB, log *slog.Logger, index *UserIndex) *UserRepository {
	return &UserRepository{db: db, log: log, index: index, now: time.Now}
}

// Create persists a new user. Email addresses are unique, case insensitive.
func (r *UserRepository) Create(ctx context.Context, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = domain.NewUserID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = r.now().UTC()
	}
	u.Email = normalizeEmail(u.Email)

	err := update(ctx, r.db, func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(u.Email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if _, err := txn.Get(userKey(u.ID)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(u.ID), encodeUser(u, nil))
	})
	if err != nil {
		return domain.User{}, err
	}

	if r.index != nil {
		if err := r.index.Index(u); err != nil {
			r.log.Warn("User not indexed", "user_id", u.ID, "error", err)
		}
	}
	return u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id domain.UserID) (domain.User, error) {
	var user domain.User
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		u, _, err := loadUser(txn, id)
		user = u
		return err
	})
	return user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		raw, err := getValue(txn, emailKey(email))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		u, _, err := loadUser(txn, domain.UserID(raw))
		user = u
		return err
	})
	return user, err
}

// FindMany lists users matching the filter. Explicit ids keep the caller's
// order, indexed searches keep relevance order and scans sort by name.
func (r *UserRepository) FindMany(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	query := strings.TrimSpace(filter.Query)
	ids := filter.IDs
	if len(ids) == 0 && query != "" && r.index != nil {
		found, err := r.index.Search(ctx, query, searchLimit(filter.Limit))
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return []domain.User{}, nil
		}
		ids = found
	}

	var users []domain.User
	var err error
	if len(ids) > 0 {
		users, err = r.loadMany(ctx, lo.Uniq(ids))
	} else {
		users, err = r.scan(ctx, query)
	}
	if err != nil {
		return nil, err
	}

	users = lo.Filter(users, func(u domain.User, _ int) bool {
		return filter.ExcludeID == "" || u.ID != filter.ExcludeID
	})
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func searchLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	// one extra hit covers an excluded caller
	return limit + 1
}

func (r *UserRepository) loadMany(ctx context.Context, ids []domain.UserID) ([]domain.User, error) {
	users := make([]domain.User, 0, len(ids))
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		for _, id := range ids {
			u, _, err := loadUser(txn, id)
			if stderrors.Is(err, errors.ErrUserNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			users = append(users, u)
		}
		return nil
	})
	return users, err
}

func (r *UserRepository) scan(ctx context.Context, query string) ([]domain.User, error) {
	needle := strings.ToLower(query)
	var users []domain.User
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(userPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			u, _, err := decodeUser(raw)
			if err != nil {
				return err
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(u.FullName), needle) &&
				!strings.Contains(u.Email, needle) {
				continue
			}
			users = append(users, u)
		}
		return nil
	})
	slices.SortStableFunc(users, func(a, b domain.User) int {
		return strings.Compare(strings.ToLower(a.FullName), strings.ToLower(b.FullName))
	})
	return users, err
}

func (r *UserRepository) UpdateLastSeen(ctx context.Context, id domain.UserID, at time.Time) error {
	return r.mutate(ctx, id, func(u *domain.User, _ domain.BlockList) {
		u.LastSeen = at.UTC()
	})
}

func (r *UserRepository) GetBlockList(ctx context.Context, id domain.UserID) (domain.BlockList, error) {
	var blocked domain.BlockList
	err := view(ctx, r.db, func(txn *badger.Txn) error {
		_, b, err := loadUser(txn, id)
		blocked = b
		return err
	})
	return blocked, err
}

// AddBlock is idempotent.
func (r *UserRepository) AddBlock(ctx context.Context, id, target domain.UserID) error {
	return r.mutate(ctx, id, func(_ *domain.User, blocked domain.BlockList) {
		blocked[target] = struct{}{}
	})
}

func (r *UserRepository) RemoveBlock(ctx context.Context, id, target domain.UserID) error {
	return r.mutate(ctx, id, func(_ *domain.User, blocked domain.BlockList) {
		delete(blocked, target)
	})
}

// mutate is a read-modify-write of one user record.
func (r *UserRepository) mutate(ctx context.Context, id domain.UserID, fn func(u *domain.User, blocked domain.BlockList)) error {
	return update(ctx, r.db, func(txn *badger.Txn) error {
		u, blocked, err := loadUser(txn, id)
		if err != nil {
			return err
		}
		fn(&u, blocked)
		return txn.Set(userKey(id), encodeUser(u, blocked))
	})
}

func loadUser(txn *badger.Txn, id domain.UserID) (domain.User, domain.BlockList, error) {
	raw, err := getValue(txn, userKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, nil, errors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return decodeUser(raw)
}
