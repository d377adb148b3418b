package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"my-chat-backend/domain"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openIndex(t *testing.T) *UserIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewUserIndex(writer, testLogger())
}

func testLogger() *slog.Logger {
	return logs.GetLoggerFromLevel(slog.LevelDebug)
}

func seedUsers(t *testing.T, repo *UserRepository, names ...string) []domain.User {
	t.Helper()
	users := make([]domain.User, 0, len(names))
	for _, name := range names {
		u, err := repo.Create(context.Background(), domain.User{
			FullName: name,
			Email:    name + "@example.com",
		})
		require.NoError(t, err)
		users = append(users, u)
	}
	return users
}
