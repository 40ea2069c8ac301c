// Package model contains the domain record types shared by every component
// of the control plane: clusters, servers, mods, jobs, and the settings
// documents that back them. Types here are plain structs with JSON tags;
// dynamic, weakly-typed input (legacy cluster.json shapes, nested INI maps)
// is normalized into these types at the edges (layout, resolver) rather than
// carried as map[string]interface{} through the rest of the system.
package model

import "time"

// PortConfiguration describes how a freshly provisioned cluster assigns the
// game, query, and RCON ports to its member servers.
type PortConfiguration struct {
	BasePort           int `json:"basePort"`
	PortIncrement      int `json:"portIncrement"`
	QueryPortBase      int `json:"queryPortBase"`
	QueryPortIncrement int `json:"queryPortIncrement"`
	RconPortBase       int `json:"rconPortBase"`
	RconPortIncrement  int `json:"rconPortIncrement"`
}

// ClusterSettings is the ASA-native cluster identity, distinct from the
// control plane's own Cluster.Name.
type ClusterSettings struct {
	ClusterId          string `json:"clusterId"`
	ClusterName        string `json:"clusterName"`
	ClusterPassword    string `json:"clusterPassword"`
	ClusterOwner       string `json:"clusterOwner"`
	ClusterDescription string `json:"clusterDescription"`
}

// ModManagement describes a cluster's shared/excluded/server-specific mod
// sets, the input to the resolver's mod resolution algorithm (§4.2).
type ModManagement struct {
	SharedMods      []ModId                      `json:"sharedMods" validate:"dive,modid"`
	ServerMods      map[string]ServerModOverride `json:"serverMods" validate:"dive"`
	ExcludedServers []string                     `json:"excludedServers" validate:"dive,resourcename"`
}

// ServerModOverride is the per-server entry in ModManagement.ServerMods.
type ServerModOverride struct {
	AdditionalMods    []ModId `json:"additionalMods" validate:"dive,modid"`
	ExcludeSharedMods bool    `json:"excludeSharedMods"`
}

// GlobalSettings holds the cluster-wide INI documents that servers inherit
// and may override per-server.
type GlobalSettings struct {
	GameUserSettings Settings `json:"gameUserSettings"`
	GameIni          Settings `json:"gameIni"`
}

// Cluster is the aggregate root owning a named group of ASA servers that
// share a ClusterId and allow character transfer between members.
//
// Invariant C-1: every ModManagement.ServerMods key and every
// ModManagement.ExcludedServers member names an existing entry in Servers.
// Invariant C-2: ClusterSettings.ClusterId is unique per host.
type Cluster struct {
	Name            string            `json:"name" gorm:"primaryKey" validate:"required,resourcename"`
	Description     string            `json:"description"`
	CreatedAt       time.Time         `json:"createdAt"`
	GlobalSettings  GlobalSettings    `json:"globalSettings" gorm:"-"`
	ClusterSettings ClusterSettings   `json:"clusterSettings" gorm:"-"`
	PortConfig      PortConfiguration `json:"portConfiguration" gorm:"-"`
	Servers         []Server          `json:"servers" gorm:"-" validate:"required,min=1,dive"`
	ModManagement   ModManagement     `json:"modManagement" gorm:"-"`
}

// ServerNames returns the cluster's member server names in declaration
// order.
func (c Cluster) ServerNames() []string {
	names := make([]string, len(c.Servers))
	for i, s := range c.Servers {
		names[i] = s.Name
	}
	return names
}

// IsExcludedServer reports whether name appears in ExcludedServers.
func (mm ModManagement) IsExcludedServer(name string) bool {
	for _, n := range mm.ExcludedServers {
		if n == name {
			return true
		}
	}
	return false
}
