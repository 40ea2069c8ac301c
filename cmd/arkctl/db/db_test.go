package db_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

func TestCompactOnStartupRemovesNullKeyedRows(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&model.ServerMod{}, &model.ServerConfig{}))

	require.NoError(t, conn.Exec(`INSERT INTO server_mods (server_name, mod_id, mod_name, enabled) VALUES ('C1-Isle', '', '', 0)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO server_mods (server_name, mod_id, mod_name, enabled) VALUES ('C1-Isle', '111', 'x', 1)`).Error)
	require.NoError(t, conn.Exec(`INSERT INTO server_configs (server_name, json) VALUES ('', '{}')`).Error)

	result, err := db.CompactOnStartup(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.ServerModsRemoved)
	assert.Equal(t, int64(1), result.ServerConfigsRemoved)

	var mods []model.ServerMod
	require.NoError(t, conn.Find(&mods).Error)
	assert.Len(t, mods, 1)
}
