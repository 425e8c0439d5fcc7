package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fastsns/sns-backend/pkg/db/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.User{}))
	return conn
}

func TestRepositoryCreateAndFind(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{UserName: "alice", PasswordHash: "hash"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, created.ID)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.UserName)

	byName, err := repo.FindByUserName(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)
}

func TestRepositoryFindMissingUser(t *testing.T) {
	repo := NewRepository(newTestDB(t))

	_, err := repo.FindByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUniqueUserName(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	_, err := repo.Create(ctx, CreateUserDTO{UserName: "bob", PasswordHash: "hash"})
	require.NoError(t, err)

	_, err = repo.Create(ctx, CreateUserDTO{UserName: "bob", PasswordHash: "hash"})
	require.Error(t, err, "duplicate user name must be rejected")
}

func TestRepositoryExists(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, CreateUserDTO{UserName: "carol", PasswordHash: "hash"})
	require.NoError(t, err)

	ok, err := repo.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
