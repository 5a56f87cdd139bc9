package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shotlens/internal/config"
	"github.com/timmy/shotlens/internal/repository"
	"gorm.io/gorm"
)

func TestNew_ClosesDatabaseWhenStorageFails(t *testing.T) {
	var opened *gorm.DB
	openDB = func(cfg *config.DatabaseConfig) (*gorm.DB, error) {
		db, err := repository.InitDB(cfg)
		opened = db
		return db, err
	}
	t.Cleanup(func() { openDB = repository.InitDB })

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(t.TempDir(), "shotlens.db"),
			AutoMigrate: true,
		},
		// Nothing listens on port 1, so the bucket check fails.
		Storage: config.StorageConfig{
			Endpoint:  "127.0.0.1:1",
			Bucket:    "screenshots",
			AccessKey: "key",
			SecretKey: "secret",
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	a, err := New(ctx, cfg)
	require.Error(t, err)
	assert.Nil(t, a)
	assert.Contains(t, err.Error(), "storage bucket")

	require.NotNil(t, opened)
	sqlDB, err := opened.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping())
}
