package database

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/rankpaper-api/internal/models"
)

func TestMigrateCreatesEngineTables(t *testing.T) {
	dsn := fmt.Sprintf("file:migrate_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	for _, model := range []interface{}{
		&models.Paper{}, &models.Question{}, &models.Option{}, &models.PaperEnrollment{},
		&models.Attempt{}, &models.Answer{}, &models.Marks{}, &models.ActivityLog{}, &models.Notification{},
	} {
		require.True(t, db.Migrator().HasTable(model), "%T", model)
	}
}

func TestConnectRequiresURLs(t *testing.T) {
	_, err := ConnectPostgres("")
	require.Error(t, err)
	_, err = ConnectRedis("")
	require.Error(t, err)
	_, err = ConnectNATS("", "rankpaper")
	require.Error(t, err)
}
