package repositories

import (
	"context"
	"testing"

	"my-chat-backend/domain"
	"my-chat-backend/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_User_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), nil)

	_, err := repo.Create(ctx, domain.User{FullName: "Ada", Email: "ada@example.com"})
	req.NoError(err)

	_, err = repo.Create(ctx, domain.User{FullName: "Other Ada", Email: " ADA@example.com"})
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Find_User_By_ID_And_Email(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), nil)
	users := seedUsers(t, repo, "ada")

	byID, err := repo.FindByID(ctx, users[0].ID)
	req.NoError(err)
	req.Equal(users[0], byID)

	byEmail, err := repo.FindByEmail(ctx, "Ada@Example.com")
	req.NoError(err)
	req.Equal(users[0].ID, byEmail.ID)

	_, err = repo.FindByID(ctx, "missing")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_Block_List_Round_Trip(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), nil)
	users := seedUsers(t, repo, "ada", "bob", "cid")
	ada, bob, cid := users[0].ID, users[1].ID, users[2].ID

	// Given ada blocks bob twice and cid once
	req.NoError(repo.AddBlock(ctx, ada, bob))
	req.NoError(repo.AddBlock(ctx, ada, bob))
	req.NoError(repo.AddBlock(ctx, ada, cid))

	// When cid is unblocked
	req.NoError(repo.RemoveBlock(ctx, ada, cid))

	// Then only bob remains blocked
	blocked, err := repo.GetBlockList(ctx, ada)
	req.NoError(err)
	req.Equal(domain.NewBlockList(bob), blocked)

	// And the profile is untouched
	u, err := repo.FindByID(ctx, ada)
	req.NoError(err)
	req.Equal(users[0], u)

	req.ErrorIs(repo.AddBlock(ctx, "missing", ada), errors.ErrUserNotFound)
}

func Test_Update_Last_Seen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), nil)
	users := seedUsers(t, repo, "ada")

	req.NoError(repo.UpdateLastSeen(ctx, users[0].ID, baseTime))

	u, err := repo.FindByID(ctx, users[0].ID)
	req.NoError(err)
	req.True(baseTime.Equal(u.LastSeen))
	req.ErrorIs(repo.UpdateLastSeen(ctx, "missing", baseTime), errors.ErrUserNotFound)
}

func Test_Find_Many_Scan(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), nil)
	users := seedUsers(t, repo, "carol", "alice", "bob")

	// Sidebar: everybody but the caller, sorted by name
	list, err := repo.FindMany(ctx, domain.UserFilter{ExcludeID: users[2].ID})
	req.NoError(err)
	req.Equal([]string{"alice", "carol"}, fullNames(list))

	// Substring query without an index
	list, err = repo.FindMany(ctx, domain.UserFilter{Query: "AR"})
	req.NoError(err)
	req.Equal([]string{"carol"}, fullNames(list))

	// Explicit ids keep their order and skip unknown ones
	list, err = repo.FindMany(ctx, domain.UserFilter{IDs: []domain.UserID{users[2].ID, "missing", users[0].ID}})
	req.NoError(err)
	req.Equal([]string{"bob", "carol"}, fullNames(list))

	list, err = repo.FindMany(ctx, domain.UserFilter{Limit: 1})
	req.NoError(err)
	req.Len(list, 1)
}

func Test_Find_Many_With_Index(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(openDB(t), testLogger(), openIndex(t))

	users := []domain.User{
		{FullName: "Alice Martin", Email: "alice@example.com"},
		{FullName: "Alicia Keys", Email: "keys@example.com"},
		{FullName: "Bob Martin", Email: "bob@example.com"},
	}
	for _, u := range users {
		_, err := repo.Create(ctx, u)
		req.NoError(err)
	}

	list, err := repo.FindMany(ctx, domain.UserFilter{Query: "ali"})
	req.NoError(err)
	req.ElementsMatch([]string{"Alice Martin", "Alicia Keys"}, fullNames(list))

	list, err = repo.FindMany(ctx, domain.UserFilter{Query: "martin bo"})
	req.NoError(err)
	req.Equal([]string{"Bob Martin"}, fullNames(list))

	list, err = repo.FindMany(ctx, domain.UserFilter{Query: "zed"})
	req.NoError(err)
	req.Empty(list)
}

func fullNames(users []domain.User) []string {
	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.FullName
	}
	return names
}
