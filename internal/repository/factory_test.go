package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/pkg/config"
)

func TestNewGormDB(t *testing.T) {
	t.Run("UnsupportedType", func(t *testing.T) {
		db, err := NewGormDB(&config.DatabaseConfig{Type: "oracle"})
		assert.Nil(t, db)
		assert.Contains(t, err.Error(), "unsupported database type")
	})

	t.Run("SQLiteDefault", func(t *testing.T) {
		db, err := NewGormDB(&config.DatabaseConfig{Path: ":memory:"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", db.Dialector.Name())
	})
}

func TestOpen(t *testing.T) {
	repos, err := Open(&config.DatabaseConfig{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	require.NotNil(t, repos.Dump)

	assert.NoError(t, repos.HealthCheck(context.Background()))
	assert.True(t, repos.gormDB.Migrator().HasTable(&DumpRecord{}))
	assert.True(t, repos.gormDB.Migrator().HasTable(&DescriptorRow{}))

	assert.NoError(t, repos.Close())
}

func TestRepositories_CloseNil(t *testing.T) {
	repos := &Repositories{}
	assert.NoError(t, repos.Close())
}
