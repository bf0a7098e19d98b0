package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAdminFlags(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	admin := testUser(t, database, 100)
	member := testUser(t, database, 200)

	require.NoError(t, database.SyncAdminFlags(ctx, []int64{100}))

	got, err := database.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAdmin)

	got, err = database.GetUserByID(ctx, member.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)

	// A dropped ID is demoted on the next sync.
	require.NoError(t, database.SyncAdminFlags(ctx, []int64{200}))
	got, err = database.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAdmin)
}

func TestDeleteUser_AdminProtected(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	admin := testUser(t, database, 100)
	member := testUser(t, database, 200)
	require.NoError(t, database.SyncAdminFlags(ctx, []int64{100}))

	assert.ErrorIs(t, database.DeleteUser(ctx, admin.ID), ErrAdminProtected)

	require.NoError(t, database.DeleteUser(ctx, member.ID))
	got, err := database.GetUserByID(ctx, member.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, database.DeleteUser(ctx, member.ID), ErrUserNotFound)
}

func TestListUsers(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	testUser(t, database, 100)
	testUser(t, database, 200)

	users, err := database.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
