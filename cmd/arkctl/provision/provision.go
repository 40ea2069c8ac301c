// Package provision implements the Provisioning Engine (C5): the
// checkpointed createCluster/deleteCluster flow that ties together the
// Config Resolver, Filesystem Layout Manager, SteamCMD Driver, and
// Persistence Store. See spec §4.5.
package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/resolver"
	"github.com/tjper/arkctl/cmd/arkctl/steamcmd"
)

// SteamCmdDriver is the narrow slice of steamcmd.Driver the Provisioning
// Engine depends on, so tests can substitute a fake that never shells out.
type SteamCmdDriver interface {
	EnsureInstalled(ctx context.Context, foreground bool) (string, error)
	InstallOrUpdateAsa(ctx context.Context, steamCmdPath, targetDir string, foreground bool, onProgress steamcmd.ProgressFunc) error
}

// Engine implements createCluster and deleteCluster.
type Engine struct {
	logger   *zap.Logger
	layout   *layout.Manager
	steamcmd SteamCmdDriver
	store    db.IStore
}

// New creates a provisioning Engine.
func New(logger *zap.Logger, lm *layout.Manager, sc SteamCmdDriver, store db.IStore) *Engine {
	return &Engine{logger: logger, layout: lm, steamcmd: sc, store: store}
}

// CreateClusterHandler adapts CreateCluster to the jobs.Handler shape so the
// Job Engine can run it as a create-cluster job.
func (e *Engine) CreateClusterHandler(ctx context.Context, job *model.Job, report jobs.ProgressFunc) (string, error) {
	var cluster model.Cluster
	if err := json.Unmarshal([]byte(job.Data), &cluster); err != nil {
		return "", arkerrors.Wrap(arkerrors.ValidationFailed, err, "parse create-cluster job data")
	}
	if err := e.CreateCluster(ctx, &cluster, false, report); err != nil {
		return "", err
	}
	return fmt.Sprintf("cluster %q created with %d server(s)", cluster.Name, len(cluster.Servers)), nil
}

// installRequest is the job payload shape for install-steamcmd and
// install-asa-binaries, matching the REST boundary's request body.
type installRequest struct {
	Foreground bool `json:"foreground"`
}

// InstallSteamCmdHandler adapts ensureInstalled to the jobs.Handler shape.
func (e *Engine) InstallSteamCmdHandler(ctx context.Context, job *model.Job, report jobs.ProgressFunc) (string, error) {
	var req installRequest
	if job.Data != "" {
		if err := json.Unmarshal([]byte(job.Data), &req); err != nil {
			return "", arkerrors.Wrap(arkerrors.ValidationFailed, err, "parse install-steamcmd job data")
		}
	}

	report(0, "locating or installing steamcmd")
	path, err := e.steamcmd.EnsureInstalled(ctx, req.Foreground)
	if err != nil {
		return "", arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "ensure steamcmd installed")
	}
	report(100, "steamcmd ready")
	return path, nil
}

// InstallAsaBinariesHandler installs or updates the ASA dedicated-server
// binaries into the shared binaries tree, for deployments that run servers
// out of a shared install rather than one copy per server (§4.3).
func (e *Engine) InstallAsaBinariesHandler(ctx context.Context, job *model.Job, report jobs.ProgressFunc) (string, error) {
	var req installRequest
	if job.Data != "" {
		if err := json.Unmarshal([]byte(job.Data), &req); err != nil {
			return "", arkerrors.Wrap(arkerrors.ValidationFailed, err, "parse install-asa-binaries job data")
		}
	}

	report(0, "ensuring steamcmd is installed")
	steamCmdPath, err := e.steamcmd.EnsureInstalled(ctx, req.Foreground)
	if err != nil {
		return "", arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "ensure steamcmd installed")
	}

	report(10, "installing asa binaries")
	targetDir := e.layout.SharedBinariesDir()
	err = e.steamcmd.InstallOrUpdateAsa(ctx, steamCmdPath, targetDir, req.Foreground, func(pct int, line string) {
		report(10+pct*90/100, line)
	})
	if err != nil {
		return "", arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "install/update asa binaries")
	}
	report(100, "asa binaries installed")
	return targetDir, nil
}

// DeleteClusterHandler adapts DeleteCluster to the jobs.Handler shape.
func (e *Engine) DeleteClusterHandler(ctx context.Context, job *model.Job, report jobs.ProgressFunc) (string, error) {
	var req struct {
		ClusterName string   `json:"clusterName"`
		ServerNames []string `json:"serverNames"`
	}
	if err := json.Unmarshal([]byte(job.Data), &req); err != nil {
		return "", arkerrors.Wrap(arkerrors.ValidationFailed, err, "parse delete-cluster job data")
	}

	report(0, "removing cluster "+req.ClusterName)
	if err := e.DeleteCluster(ctx, req.ClusterName, req.ServerNames); err != nil {
		return "", err
	}
	report(100, "cluster removed")
	return fmt.Sprintf("cluster %q removed", req.ClusterName), nil
}

// CreateCluster runs the full checkpointed provisioning flow (§4.5 steps
// 1-8). The servers already persisted in the store are loaded for the
// port-collision check in step 2.
func (e *Engine) CreateCluster(ctx context.Context, cluster *model.Cluster, foreground bool, report jobs.ProgressFunc) error {
	report(0, "validating cluster input")
	if err := e.validate(cluster); err != nil {
		return arkerrors.Wrap(arkerrors.ValidationFailed, err, "create-cluster: validation checkpoint failed")
	}
	clusterName := cluster.Name
	for i := range cluster.Servers {
		cluster.Servers[i].ClusterName = &clusterName
	}

	report(5, "allocating ports")
	existing, err := e.existingServers(ctx)
	if err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create-cluster: load existing servers")
	}
	if err := e.allocatePorts(cluster, existing); err != nil {
		return arkerrors.Wrap(arkerrors.ValidationFailed, err, "create-cluster: port allocation checkpoint failed")
	}

	report(10, "creating directory layout")
	if err := e.layout.CreateClusterTree(cluster.Name, cluster.ServerNames()); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create-cluster: layout checkpoint failed")
	}

	report(15, "writing cluster and server configuration")
	if err := e.writeConfigs(cluster); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create-cluster: write-config checkpoint failed")
	}

	report(20, "ensuring steamcmd is installed")
	steamCmdPath, err := e.steamcmd.EnsureInstalled(ctx, foreground)
	if err != nil {
		return arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "create-cluster: ensure-steamcmd checkpoint failed")
	}

	n := len(cluster.Servers)
	for i, server := range cluster.Servers {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		targetDir := e.layout.ServerBinariesDir(cluster.Name, server.Name)
		base := 20 + (i * 60 / max(n, 1))
		err := e.steamcmd.InstallOrUpdateAsa(ctx, steamCmdPath, targetDir, foreground, func(pct int, line string) {
			inner := base + (pct * (60 / max(n, 1)) / 100)
			report(inner, fmt.Sprintf("installing binaries for %s (%d/%d): %s", server.Name, i+1, n, line))
		})
		if err != nil {
			return arkerrors.Wrap(arkerrors.SteamCmdFailed, err, "create-cluster: install-binaries checkpoint failed for %q", server.Name)
		}
	}

	report(85, "generating start scripts")
	if err := e.generateStartScripts(ctx, cluster); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create-cluster: start-script checkpoint failed")
	}

	report(95, "persisting server configs")
	if err := e.persistServerConfigs(ctx, cluster); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create-cluster: persist checkpoint failed")
	}

	report(100, "cluster created")
	return nil
}

// DeleteCluster reverses creation: the caller must already have stopped
// every member server (C6) before calling this. Removes persisted configs,
// then best-effort removes the directory tree.
func (e *Engine) DeleteCluster(ctx context.Context, clusterName string, serverNames []string) error {
	for _, name := range serverNames {
		if err := e.store.DeleteServerConfig(ctx, name); err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "delete-cluster: remove server config %q", name)
		}
	}
	if err := e.layout.RemoveClusterTree(clusterName); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "delete-cluster: remove directory tree")
	}
	return nil
}

func (e *Engine) validate(cluster *model.Cluster) error {
	return validateCluster(cluster)
}

// validateCluster runs the structural checks every createCluster call must
// pass before port allocation: non-empty name, at least one server, no
// duplicate server names, and every modManagement reference naming an
// existing server.
func validateCluster(cluster *model.Cluster) error {
	if cluster.Name == "" {
		return resolver.InvalidConfig("name", "must not be empty")
	}
	if len(cluster.Servers) == 0 {
		return resolver.InvalidConfig("servers", "cluster must have at least one server")
	}
	seen := make(map[string]struct{}, len(cluster.Servers))
	for _, s := range cluster.Servers {
		if _, ok := seen[s.Name]; ok {
			return resolver.InvalidConfig(fmt.Sprintf("servers[%s]", s.Name), "duplicate server name within cluster")
		}
		seen[s.Name] = struct{}{}
	}
	for serverName := range cluster.ModManagement.ServerMods {
		if _, ok := seen[serverName]; !ok {
			return resolver.InvalidConfig(fmt.Sprintf("modManagement.serverMods[%s]", serverName), "references unknown server")
		}
	}
	for _, excluded := range cluster.ModManagement.ExcludedServers {
		if _, ok := seen[excluded]; !ok {
			return resolver.InvalidConfig(fmt.Sprintf("modManagement.excludedServers[%s]", excluded), "references unknown server")
		}
	}
	return nil
}

// ValidateClusterRequest runs the same synchronous checks CreateCluster
// performs before it allocates ports: structural validation plus a
// port-collision dry run against cluster.PortConfig and any already-persisted
// servers. It neither mutates cluster nor persists anything, so the REST
// boundary can reject a colliding payload with a 400 instead of letting it
// surface later as a failed job.
func ValidateClusterRequest(cluster *model.Cluster, existing []model.Server) error {
	if err := validateCluster(cluster); err != nil {
		return err
	}
	allocations, err := resolver.AllocatePorts(cluster.PortConfig, len(cluster.Servers))
	if err != nil {
		return err
	}
	return resolver.ValidateNoCollision(allocations, existing)
}

func (e *Engine) allocatePorts(cluster *model.Cluster, existing []model.Server) error {
	allocations, err := resolver.AllocatePorts(cluster.PortConfig, len(cluster.Servers))
	if err != nil {
		return err
	}
	for i := range cluster.Servers {
		cluster.Servers[i].Port = allocations[i].Port
		cluster.Servers[i].QueryPort = allocations[i].QueryPort
		cluster.Servers[i].RconPort = allocations[i].RconPort
	}
	return resolver.ValidateNoCollision(allocations, existing)
}

func (e *Engine) existingServers(ctx context.Context) ([]model.Server, error) {
	configs, err := e.store.ListServerConfigs(ctx)
	if err != nil {
		return nil, err
	}
	servers := make([]model.Server, 0, len(configs))
	for _, c := range configs {
		var s model.Server
		if err := json.Unmarshal([]byte(c.JSON), &s); err != nil {
			continue
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func (e *Engine) writeConfigs(cluster *model.Cluster) error {
	if err := e.layout.WriteClusterJSON(*cluster); err != nil {
		return err
	}
	for _, server := range cluster.Servers {
		if err := e.layout.WriteServerJSON(cluster.Name, server); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) generateStartScripts(ctx context.Context, cluster *model.Cluster) error {
	for _, server := range cluster.Servers {
		excludeSharedMods := cluster.ModManagement.ServerMods[server.Name].ExcludeSharedMods
		mods, err := resolver.ResolveMods(cluster, server.Name, excludeSharedMods, nil)
		if err != nil {
			return err
		}
		if err := e.store.UpsertServerSettings(ctx, server.Name, excludeSharedMods); err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "persist server settings %q", server.Name)
		}
		in := layout.StartScriptInput{
			ClusterName: cluster.Name,
			ServerName:  server.Name,
			Server:      server,
			Cluster:     cluster,
			Mods:        mods.Slice(),
		}
		script, err := layout.GenerateStartScript(e.layout, in)
		if err != nil {
			return err
		}
		path := e.layout.StartScriptPath(cluster.Name, server.Name)
		if err := os.WriteFile(path, script, 0o644); err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "write start script %q", path)
		}
	}
	return nil
}

func (e *Engine) persistServerConfigs(ctx context.Context, cluster *model.Cluster) error {
	for _, server := range cluster.Servers {
		b, err := json.Marshal(server)
		if err != nil {
			return err
		}
		if err := e.store.UpsertServerConfig(ctx, server.Name, string(b)); err != nil {
			return err
		}
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
