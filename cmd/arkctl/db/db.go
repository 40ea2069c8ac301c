// Package db implements the Persistence Store (C1): the gorm/sqlite-backed
// system of record for server configs, mods, mod settings, and jobs. See
// spec §4.1.
package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tjper/arkctl/cmd/arkctl/model"
	igorm "github.com/tjper/arkctl/internal/gorm"
	"github.com/tjper/arkctl/internal/migrate"
)

// Open opens a connection to the embedded sqlite database at path.
func Open(path string) (*gorm.DB, error) {
	return igorm.Open(path, igorm.WithTablePrefix("arkctl_"))
}

// Migrate runs the arkctl schema migrations against db.
func Migrate(db *gorm.DB, migrations string) error {
	dbconn, err := db.DB()
	if err != nil {
		return err
	}
	return migrate.Migrate(
		dbconn,
		migrations,
		migrate.WithMigrationsTable("arkctl_migrations"),
	)
}

// CompactionResult reports how many rows of each kind CompactOnStartup
// removed, so the caller can log it.
type CompactionResult struct {
	ServerModsRemoved    int64
	ServerConfigsRemoved int64
}

// CompactOnStartup deletes server_mods rows with a null mod_id and
// server_configs rows with a null server_name. Safe to run on every process
// start; once insert paths reject nulls (they do, see Store.UpsertServerMod
// and Store.UpsertServerConfig) the condition cannot recur, so later runs
// simply report zero.
func CompactOnStartup(ctx context.Context, conn *gorm.DB) (CompactionResult, error) {
	var result CompactionResult

	res := conn.WithContext(ctx).
		Where("mod_id IS NULL OR mod_id = ''").
		Delete(&model.ServerMod{})
	if res.Error != nil {
		return result, fmt.Errorf("compact server_mods: %w", res.Error)
	}
	result.ServerModsRemoved = res.RowsAffected

	res = conn.WithContext(ctx).
		Where("server_name IS NULL OR server_name = ''").
		Delete(&model.ServerConfig{})
	if res.Error != nil {
		return result, fmt.Errorf("compact server_configs: %w", res.Error)
	}
	result.ServerConfigsRemoved = res.RowsAffected

	return result, nil
}
