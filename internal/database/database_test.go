package database_test

import (
	"context"
	"testing"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/database"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutConnection(t *testing.T) {
	prev := database.DB
	database.DB = nil
	defer func() { database.DB = prev }()

	assert.Error(t, database.Health(context.Background()))
}

func TestMigrateAndHealth(t *testing.T) {
	db := testutil.NewDB(t)

	require.NoError(t, database.Health(context.Background()))
	for _, m := range models.AllModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}
}

func TestUsernameUniqueIgnoresCase(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "Rahim", models.RoleMember)

	dup := &models.User{Email: "other@example.com", Username: "rahim", PasswordHash: "x"}
	assert.Error(t, db.Create(dup).Error)
}
