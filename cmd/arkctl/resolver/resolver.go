// Package resolver implements the Config Resolver (C2): a pure function
// layer with no I/O that merges global, cluster, and server configuration
// and computes the effective mod list and port assignments for a server.
// Every failure here is an input-validation error, never a transport or
// storage error.
package resolver

import (
	"fmt"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

// InvalidConfig creates the ValidationFailed error this package returns for
// every failure mode, carrying the offending field path.
func InvalidConfig(path, reason string) *arkerrors.Error {
	return arkerrors.New(arkerrors.ValidationFailed, "%s: %s", path, reason)
}

// SharedModSource supplies the global shared-mod rows from the persistence
// store (C1), used by steps 4-5 of ResolveMods.
type SharedModSource interface {
	ListSharedMods() ([]model.SharedMod, error)
	ListServerMods(serverName string) ([]model.ServerMod, error)
}

// ResolveMods implements the mod resolution algorithm in §4.2 for server
// name within cluster c (c may be nil for an individual server, per the §9
// open question, collapsing to steps 4-5 only).
func ResolveMods(c *model.Cluster, serverName string, excludeSharedMods bool, store SharedModSource) (model.ModIdSet, error) {
	set := model.ModIdSet{}

	if c != nil {
		excluded := c.ModManagement.IsExcludedServer(serverName)
		if !excluded && !excludeSharedMods {
			set.AppendAll(c.ModManagement.SharedMods)
		}
		if override, ok := c.ModManagement.ServerMods[serverName]; ok {
			set.AppendAll(override.AdditionalMods)
		}
	}

	if store != nil {
		shared, err := store.ListSharedMods()
		if err != nil {
			return set, fmt.Errorf("list shared mods: %w", err)
		}
		if !excludeSharedMods {
			for _, m := range shared {
				if m.Enabled {
					set.Append(m.ModId)
				}
			}
		}

		serverMods, err := store.ListServerMods(serverName)
		if err != nil {
			return set, fmt.Errorf("list server mods: %w", err)
		}
		for _, m := range serverMods {
			if m.Enabled {
				set.Append(m.ModId)
			}
		}
	}

	return set, nil
}

// MergeSettings performs the two-level deep merge described in §4.2: a
// server's settings override cluster globals whole-value, section by
// section, entry by entry.
func MergeSettings(clusterGlobal, serverOverride model.Settings) model.Settings {
	return model.Merge(clusterGlobal, serverOverride)
}

// AllocatedPorts is the (port, queryPort, rconPort) triple assigned to one
// server during provisioning.
type AllocatedPorts struct {
	Port      int
	QueryPort int
	RconPort  int
}

// AllocatePorts implements §4.2's port allocation for a freshly provisioned
// cluster of n servers, then verifies invariant S-1 (all 3*n ports unique)
// across the result.
func AllocatePorts(cfg model.PortConfiguration, n int) ([]AllocatedPorts, error) {
	if n <= 0 {
		return nil, InvalidConfig("servers", "cluster must have at least one server")
	}
	if cfg.PortIncrement < 0 || cfg.QueryPortIncrement < 0 || cfg.RconPortIncrement < 0 {
		return nil, InvalidConfig("portConfiguration", "increments must be non-negative")
	}

	allocations := make([]AllocatedPorts, n)
	seen := make(map[int]struct{}, 3*n)
	for i := 0; i < n; i++ {
		a := AllocatedPorts{
			Port:      cfg.BasePort + i*cfg.PortIncrement,
			QueryPort: cfg.QueryPortBase + i*cfg.QueryPortIncrement,
			RconPort:  cfg.RconPortBase + i*cfg.RconPortIncrement,
		}
		for _, p := range []int{a.Port, a.QueryPort, a.RconPort} {
			if _, dup := seen[p]; dup {
				return nil, InvalidConfig("portConfiguration", fmt.Sprintf("port %d is assigned to more than one server or role", p))
			}
			seen[p] = struct{}{}
		}
		allocations[i] = a
	}

	if len(seen) != 3*n {
		return nil, InvalidConfig("portConfiguration", "computed port set does not satisfy the pairwise-disjoint invariant")
	}

	return allocations, nil
}

// ValidateNoCollision checks a freshly allocated port set against ports
// already in use by servers provisioned earlier on this host (§4.5 step 2).
func ValidateNoCollision(allocations []AllocatedPorts, existing []model.Server) error {
	used := make(map[int]string, len(existing)*3)
	for _, s := range existing {
		for _, p := range s.Ports() {
			used[p] = s.Name
		}
	}
	for _, a := range allocations {
		for _, p := range []int{a.Port, a.QueryPort, a.RconPort} {
			if owner, ok := used[p]; ok {
				return InvalidConfig("portConfiguration", fmt.Sprintf("port %d already in use by server %q", p, owner))
			}
		}
	}
	return nil
}
