package model

import "time"

// ServerConfig is the JSON-document mirror of a server's configuration
// persisted by the store (C1), keyed by server name. The document shape is
// opaque to the store itself; callers (Provisioning Engine, REST boundary)
// decide what it contains.
type ServerConfig struct {
	ServerName string `gorm:"column:server_name;primaryKey"`
	JSON       string `gorm:"column:json"`
	UpdatedAt  time.Time
}

// ServerSettings holds the one per-server flag the mod resolution algorithm
// reads outside of ModManagement: whether global shared mods are excluded
// for this server.
type ServerSettings struct {
	ServerName        string `gorm:"column:server_name;primaryKey"`
	ExcludeSharedMods bool   `gorm:"column:exclude_shared_mods"`
}
