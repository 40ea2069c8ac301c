package provision_test

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/provision"
	"github.com/tjper/arkctl/cmd/arkctl/steamcmd"
)

type fakeSteamCmd struct {
	installCalls []string
}

func (f *fakeSteamCmd) EnsureInstalled(ctx context.Context, foreground bool) (string, error) {
	return "/fake/steamcmd", nil
}

func (f *fakeSteamCmd) InstallOrUpdateAsa(ctx context.Context, steamCmdPath, targetDir string, foreground bool, onProgress steamcmd.ProgressFunc) error {
	f.installCalls = append(f.installCalls, targetDir)
	onProgress(50, "Update state (0x5) downloading, progress: 50.0")
	onProgress(100, "Success! App '2430930' fully installed.")
	return nil
}

type fakeStore struct {
	mu       sync.Mutex
	configs  map[string]string
	settings map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{configs: make(map[string]string), settings: make(map[string]bool)}
}

func (s *fakeStore) UpsertServerConfig(ctx context.Context, serverName, json string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[serverName] = json
	return nil
}
func (s *fakeStore) GetServerConfig(ctx context.Context, serverName string) (*model.ServerConfig, error) {
	return nil, nil
}
func (s *fakeStore) ListServerConfigs(ctx context.Context) ([]model.ServerConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ServerConfig, 0, len(s.configs))
	for name, j := range s.configs {
		out = append(out, model.ServerConfig{ServerName: name, JSON: j})
	}
	return out, nil
}
func (s *fakeStore) DeleteServerConfig(ctx context.Context, serverName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.configs, serverName)
	return nil
}
func (s *fakeStore) UpsertSharedMod(ctx context.Context, modId model.ModId, modName string, enabled bool) error {
	return nil
}
func (s *fakeStore) ListSharedMods(ctx context.Context) ([]model.SharedMod, error) { return nil, nil }
func (s *fakeStore) UpsertServerMod(ctx context.Context, serverName string, modId model.ModId, modName string, enabled bool) error {
	return nil
}
func (s *fakeStore) ListServerMods(ctx context.Context, serverName string) ([]model.ServerMod, error) {
	return nil, nil
}
func (s *fakeStore) GetServerSettings(ctx context.Context, serverName string) (*model.ServerSettings, error) {
	return nil, nil
}
func (s *fakeStore) UpsertServerSettings(ctx context.Context, serverName string, excludeSharedMods bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[serverName] = excludeSharedMods
	return nil
}
func (s *fakeStore) CreateJob(ctx context.Context, id uuid.UUID, jobType model.JobType, data string) (*model.Job, error) {
	return nil, nil
}
func (s *fakeStore) UpdateJob(ctx context.Context, id uuid.UUID, changes db.JobChanges) (*model.Job, error) {
	return nil, nil
}
func (s *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) { return nil, nil }
func (s *fakeStore) ListJobs(ctx context.Context) ([]model.Job, error)            { return nil, nil }
func (s *fakeStore) PurgeTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

func testCluster() *model.Cluster {
	return &model.Cluster{
		Name: "Crossplay-Cluster",
		PortConfig: model.PortConfiguration{
			BasePort: 7777, PortIncrement: 1,
			QueryPortBase: 27015, QueryPortIncrement: 1,
			RconPortBase: 32330, RconPortIncrement: 1,
		},
		ClusterSettings: model.ClusterSettings{ClusterId: "xplay-1", ClusterName: "Crossplay-Cluster"},
		Servers: []model.Server{
			{Name: "C1-Isle", Map: "TheIsland_WP", MaxPlayers: 70, AdminPassword: "adminpass"},
			{Name: "C1-Aberration", Map: "Aberration_WP", MaxPlayers: 70, AdminPassword: "adminpass"},
		},
	}
}

func newEngine(t *testing.T) (*provision.Engine, *fakeSteamCmd, *fakeStore, *layout.Manager) {
	t.Helper()
	lm, err := layout.New(t.TempDir())
	require.NoError(t, err)
	sc := &fakeSteamCmd{}
	store := newFakeStore()
	return provision.New(zap.NewNop(), lm, sc, store), sc, store, lm
}

func noopProgress(progress int, message string) {}

func TestCreateClusterRunsAllCheckpoints(t *testing.T) {
	engine, sc, store, lm := newEngine(t)
	cluster := testCluster()

	var progressCalls []int
	err := engine.CreateCluster(context.Background(), cluster, false, func(progress int, message string) {
		progressCalls = append(progressCalls, progress)
	})
	require.NoError(t, err)

	assert.Len(t, sc.installCalls, 2, "one sequential install per server")
	assert.Equal(t, 7777, cluster.Servers[0].Port)
	assert.Equal(t, 7778, cluster.Servers[1].Port)
	assert.NotEqual(t, cluster.Servers[0].QueryPort, cluster.Servers[1].QueryPort)

	_, err = os.Stat(lm.ClusterJSONPath(cluster.Name))
	assert.NoError(t, err, "cluster.json must be written")

	for _, server := range cluster.Servers {
		_, err := os.Stat(lm.StartScriptPath(cluster.Name, server.Name))
		assert.NoError(t, err, "start.bat must be generated for %s", server.Name)

		cfg, ok := store.configs[server.Name]
		require.True(t, ok, "server config must be persisted for %s", server.Name)
		var persisted model.Server
		require.NoError(t, json.Unmarshal([]byte(cfg), &persisted))
		assert.Equal(t, server.Port, persisted.Port)
	}

	assert.Equal(t, 100, progressCalls[len(progressCalls)-1])
}

func TestCreateClusterHonorsExcludeSharedModsOverride(t *testing.T) {
	engine, _, store, lm := newEngine(t)
	cluster := testCluster()
	cluster.ModManagement.SharedMods = []model.ModId{"111", "222"}
	cluster.ModManagement.ServerMods = map[string]model.ServerModOverride{
		"C1-Aberration": {ExcludeSharedMods: true},
	}

	err := engine.CreateCluster(context.Background(), cluster, false, noopProgress)
	require.NoError(t, err)

	isleScript, err := os.ReadFile(lm.StartScriptPath(cluster.Name, "C1-Isle"))
	require.NoError(t, err)
	assert.Contains(t, string(isleScript), "-mods=111,222")

	aberrationScript, err := os.ReadFile(lm.StartScriptPath(cluster.Name, "C1-Aberration"))
	require.NoError(t, err)
	assert.NotContains(t, string(aberrationScript), "-mods=")

	assert.False(t, store.settings["C1-Isle"])
	assert.True(t, store.settings["C1-Aberration"], "override must be persisted so later regeneration repeats it")
}

func TestCreateClusterRejectsEmptyName(t *testing.T) {
	engine, _, _, _ := newEngine(t)
	cluster := testCluster()
	cluster.Name = ""

	err := engine.CreateCluster(context.Background(), cluster, false, noopProgress)
	assert.Error(t, err)
}

func TestCreateClusterRejectsDuplicateServerNames(t *testing.T) {
	engine, _, _, _ := newEngine(t)
	cluster := testCluster()
	cluster.Servers[1].Name = cluster.Servers[0].Name

	err := engine.CreateCluster(context.Background(), cluster, false, noopProgress)
	assert.Error(t, err)
}

func TestCreateClusterRejectsPortCollisionWithExistingServer(t *testing.T) {
	engine, _, store, _ := newEngine(t)

	existing := model.Server{Name: "Other-Server", Port: 7777, QueryPort: 27015, RconPort: 32330}
	b, err := json.Marshal(existing)
	require.NoError(t, err)
	require.NoError(t, store.UpsertServerConfig(context.Background(), existing.Name, string(b)))

	cluster := testCluster()
	err = engine.CreateCluster(context.Background(), cluster, false, noopProgress)
	assert.Error(t, err)
}

func TestInstallSteamCmdHandlerReturnsPath(t *testing.T) {
	engine, _, _, _ := newEngine(t)

	result, err := engine.InstallSteamCmdHandler(context.Background(), &model.Job{Data: `{"foreground":true}`}, noopProgress)
	require.NoError(t, err)
	assert.Equal(t, "/fake/steamcmd", result)
}

func TestInstallAsaBinariesHandlerInstallsIntoSharedDir(t *testing.T) {
	engine, sc, _, lm := newEngine(t)

	result, err := engine.InstallAsaBinariesHandler(context.Background(), &model.Job{Data: `{}`}, noopProgress)
	require.NoError(t, err)
	assert.Equal(t, lm.SharedBinariesDir(), result)
	assert.Equal(t, []string{lm.SharedBinariesDir()}, sc.installCalls)
}

func TestDeleteClusterRemovesConfigsAndDirectory(t *testing.T) {
	engine, _, store, lm := newEngine(t)
	cluster := testCluster()
	require.NoError(t, engine.CreateCluster(context.Background(), cluster, false, noopProgress))

	err := engine.DeleteCluster(context.Background(), cluster.Name, cluster.ServerNames())
	require.NoError(t, err)

	assert.Empty(t, store.configs)
	_, statErr := os.Stat(lm.ClusterDir(cluster.Name))
	assert.True(t, os.IsNotExist(statErr))
}
