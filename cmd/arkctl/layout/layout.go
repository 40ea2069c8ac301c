// Package layout implements the Filesystem Layout Manager (C3): it creates
// and validates the on-disk tree rooted at baseDir, and reads/writes the
// JSON and INI documents that live in it. See §4.3 for the full tree shape.
package layout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
)

const (
	dirSteamCmd        = "steamcmd"
	dirSharedBinaries  = "shared-binaries"
	dirClusters        = "clusters"
	dirServers         = "servers"
	dirBinaries        = "binaries"
	dirConfigs         = "configs"
	dirSaves           = "saves"
	dirLogs            = "logs"
	fileClusterJSON    = "cluster.json"
	fileServerJSON     = "server-config.json"
	fileStartScript    = "start.bat"
	binariesRelPath    = "ShooterGame/Binaries/Win64"
	fileGameUserSettings = "GameUserSettings.ini"
	fileGameIni          = "Game.ini"
	fileEngineIni        = "Engine.ini"
)

// Manager owns the on-disk layout rooted at a configured baseDir.
type Manager struct {
	baseDir string
}

// New creates a Manager rooted at baseDir, creating baseDir itself if
// absent. Failure to create baseDir is fatal at process startup (§7).
func New(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "create base directory %q", baseDir)
	}
	m := &Manager{baseDir: baseDir}
	for _, dir := range []string{dirSteamCmd, dirSharedBinaries, dirClusters, dirServers} {
		if err := os.MkdirAll(filepath.Join(baseDir, dir), 0o755); err != nil {
			return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "create layout directory %q", dir)
		}
	}
	return m, nil
}

// BaseDir returns the configured root of the layout.
func (m *Manager) BaseDir() string { return m.baseDir }

// SteamCmdDir is the SteamCMD install tree (C4-owned).
func (m *Manager) SteamCmdDir() string { return filepath.Join(m.baseDir, dirSteamCmd) }

// SharedBinariesDir is the shared ASA install tree used in shared-binary
// mode.
func (m *Manager) SharedBinariesDir() string { return filepath.Join(m.baseDir, dirSharedBinaries) }

// ClusterDir is the root directory for a named cluster.
func (m *Manager) ClusterDir(clusterName string) string {
	return filepath.Join(m.baseDir, dirClusters, clusterName)
}

// ServerDir is a server's per-server root: under its cluster if clusterName
// is non-empty, otherwise under the top-level servers/ tree (an individual
// server, per the §9 open question).
func (m *Manager) ServerDir(clusterName, serverName string) string {
	if clusterName == "" {
		return filepath.Join(m.baseDir, dirServers, serverName)
	}
	return filepath.Join(m.ClusterDir(clusterName), serverName)
}

// ServerBinariesDir is where a server's native ASA install lives in
// native-per-server mode.
func (m *Manager) ServerBinariesDir(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), dirBinaries)
}

// ServerBinWin64Dir is the working directory the start script cd's into
// before launching the executable (§4.3 step 1).
func (m *Manager) ServerBinWin64Dir(clusterName, serverName string) string {
	return filepath.Join(m.ServerBinariesDir(clusterName, serverName), filepath.FromSlash(binariesRelPath))
}

// ServerConfigsDir holds Game.ini, GameUserSettings.ini, Engine.ini.
func (m *Manager) ServerConfigsDir(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), dirConfigs)
}

// ServerSavesDir holds SavedArks/ and friends.
func (m *Manager) ServerSavesDir(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), dirSaves)
}

// ServerLogsDir holds ShooterGame.log and backups.
func (m *Manager) ServerLogsDir(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), dirLogs)
}

// StartScriptPath is the generated start.bat for a server.
func (m *Manager) StartScriptPath(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), fileStartScript)
}

// ServerConfigJSONPath is server-config.json, the Server entity mirror.
func (m *Manager) ServerConfigJSONPath(clusterName, serverName string) string {
	return filepath.Join(m.ServerDir(clusterName, serverName), fileServerJSON)
}

// ClusterJSONPath is cluster.json, the Cluster entity mirror.
func (m *Manager) ClusterJSONPath(clusterName string) string {
	return filepath.Join(m.ClusterDir(clusterName), fileClusterJSON)
}

// CreateClusterTree creates the cluster root and every member server's
// per-server subtree. Calls are overwrite-safe: MkdirAll on an existing
// directory is a no-op, satisfying the provisioning engine's checkpoint
// retry requirement (§4.5).
func (m *Manager) CreateClusterTree(clusterName string, serverNames []string) error {
	if err := os.MkdirAll(m.ClusterDir(clusterName), 0o755); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create cluster directory %q", clusterName)
	}
	for _, name := range serverNames {
		if err := m.CreateServerTree(clusterName, name); err != nil {
			return err
		}
	}
	return nil
}

// CreateServerTree creates one server's subtree: binaries/, configs/,
// saves/, logs/.
func (m *Manager) CreateServerTree(clusterName, serverName string) error {
	dirs := []string{
		m.ServerBinariesDir(clusterName, serverName),
		m.ServerConfigsDir(clusterName, serverName),
		m.ServerSavesDir(clusterName, serverName),
		m.ServerLogsDir(clusterName, serverName),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return arkerrors.Wrap(arkerrors.IOFailed, err, "create server directory %q", dir)
		}
	}
	return nil
}

// legacyCluster is the historical on-disk shape this package upgrades on
// read, per the §9 "Dynamic JSON configs" design note: a flat GlobalMods
// list instead of the current nested ModManagement.SharedMods.
type legacyCluster struct {
	GlobalMods []model.ModId `json:"globalMods,omitempty"`
}

// WriteClusterJSON writes cluster.json, pretty-printed with stable key
// ordering (struct field order, per encoding/json's default behavior).
func (m *Manager) WriteClusterJSON(c model.Cluster) error {
	return writeJSON(m.ClusterJSONPath(c.Name), c)
}

// ReadClusterJSON reads cluster.json, upgrading the legacy globalMods[]
// shape to modManagement.sharedMods in memory if present and
// modManagement is otherwise empty.
func (m *Manager) ReadClusterJSON(clusterName string) (*model.Cluster, error) {
	b, err := os.ReadFile(m.ClusterJSONPath(clusterName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, arkerrors.Wrap(arkerrors.NotFound, err, "cluster %q has no cluster.json", clusterName)
		}
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "read cluster.json for %q", clusterName)
	}

	var c model.Cluster
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "parse cluster.json for %q", clusterName)
	}

	var legacy legacyCluster
	if err := json.Unmarshal(b, &legacy); err == nil && len(legacy.GlobalMods) > 0 && len(c.ModManagement.SharedMods) == 0 {
		c.ModManagement.SharedMods = legacy.GlobalMods
	}

	return &c, nil
}

// WriteServerJSON writes server-config.json.
func (m *Manager) WriteServerJSON(clusterName string, s model.Server) error {
	return writeJSON(m.ServerConfigJSONPath(clusterName, s.Name), s)
}

// ReadServerJSON reads server-config.json.
func (m *Manager) ReadServerJSON(clusterName, serverName string) (*model.Server, error) {
	b, err := os.ReadFile(m.ServerConfigJSONPath(clusterName, serverName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, arkerrors.Wrap(arkerrors.NotFound, err, "server %q has no server-config.json", serverName)
		}
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "read server-config.json for %q", serverName)
	}
	var s model.Server
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "parse server-config.json for %q", serverName)
	}
	return &s, nil
}

// ListClusterNames returns every cluster with a cluster.json present,
// sorted by name.
func (m *Manager) ListClusterNames() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.baseDir, dirClusters))
	if err != nil {
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "list clusters directory")
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.baseDir, dirClusters, entry.Name(), fileClusterJSON)); err != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// RemoveClusterTree removes a cluster's entire directory tree with
// os.RemoveAll, which removes everything it can. On failure it returns only
// the first error encountered, wrapped as IOFailed; the other paths that
// could not be removed are not reported.
func (m *Manager) RemoveClusterTree(clusterName string) error {
	if err := os.RemoveAll(m.ClusterDir(clusterName)); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "remove cluster directory %q", clusterName)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "marshal %T", v)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "create parent directory for %q", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return arkerrors.Wrap(arkerrors.IOFailed, err, "write %q", path)
	}
	return nil
}
