package rest

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
)

// fakeStore is a minimal in-memory db.IStore stand-in for endpoint tests.
type fakeStore struct {
	configs  map[string]model.ServerConfig
	settings map[string]model.ServerSettings
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		configs:  map[string]model.ServerConfig{},
		settings: map[string]model.ServerSettings{},
	}
}

var _ db.IStore = (*fakeStore)(nil)

func (f *fakeStore) UpsertServerConfig(ctx context.Context, serverName, json string) error {
	f.configs[serverName] = model.ServerConfig{ServerName: serverName, JSON: json}
	return nil
}

func (f *fakeStore) GetServerConfig(ctx context.Context, serverName string) (*model.ServerConfig, error) {
	cfg, ok := f.configs[serverName]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (f *fakeStore) ListServerConfigs(ctx context.Context) ([]model.ServerConfig, error) {
	out := make([]model.ServerConfig, 0, len(f.configs))
	for _, c := range f.configs {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) DeleteServerConfig(ctx context.Context, serverName string) error {
	delete(f.configs, serverName)
	return nil
}

func (f *fakeStore) UpsertSharedMod(ctx context.Context, modId model.ModId, modName string, enabled bool) error {
	return nil
}

func (f *fakeStore) ListSharedMods(ctx context.Context) ([]model.SharedMod, error) { return nil, nil }

func (f *fakeStore) UpsertServerMod(ctx context.Context, serverName string, modId model.ModId, modName string, enabled bool) error {
	return nil
}

func (f *fakeStore) ListServerMods(ctx context.Context, serverName string) ([]model.ServerMod, error) {
	return nil, nil
}

func (f *fakeStore) GetServerSettings(ctx context.Context, serverName string) (*model.ServerSettings, error) {
	s, ok := f.settings[serverName]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeStore) UpsertServerSettings(ctx context.Context, serverName string, excludeSharedMods bool) error {
	f.settings[serverName] = model.ServerSettings{ServerName: serverName, ExcludeSharedMods: excludeSharedMods}
	return nil
}

func (f *fakeStore) CreateJob(ctx context.Context, id uuid.UUID, jobType model.JobType, data string) (*model.Job, error) {
	return nil, nil
}

func (f *fakeStore) UpdateJob(ctx context.Context, id uuid.UUID, changes db.JobChanges) (*model.Job, error) {
	return nil, nil
}

func (f *fakeStore) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) { return nil, nil }

func (f *fakeStore) ListJobs(ctx context.Context) ([]model.Job, error) { return nil, nil }
func (f *fakeStore) PurgeTerminalJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// fakeSupervisor is a minimal Supervisor stand-in.
type fakeSupervisor struct {
	statuses map[string]supervisor.Status

	startCalls   []string
	stopCalls    []string
	restartCalls []string
	err          error
}

func (f *fakeSupervisor) List() map[string]supervisor.Status { return f.statuses }

func (f *fakeSupervisor) StatusOf(name string) supervisor.Status {
	if f.statuses == nil {
		return supervisor.Status{}
	}
	return f.statuses[name]
}

func (f *fakeSupervisor) Start(ctx context.Context, name string) error {
	f.startCalls = append(f.startCalls, name)
	return f.err
}

func (f *fakeSupervisor) Stop(ctx context.Context, name string, opts supervisor.StopOptions) error {
	f.stopCalls = append(f.stopCalls, name)
	return f.err
}

func (f *fakeSupervisor) Restart(ctx context.Context, name string, opts supervisor.StopOptions) error {
	f.restartCalls = append(f.restartCalls, name)
	return f.err
}

// fakeJobs is a minimal JobSubmitter stand-in.
type fakeJobs struct {
	lastType      model.JobType
	lastData      string
	lastExclusive bool
	id            uuid.UUID
	err           error
}

func (f *fakeJobs) Submit(ctx context.Context, jobType model.JobType, data string, exclusive bool) (uuid.UUID, error) {
	f.lastType = jobType
	f.lastData = data
	f.lastExclusive = exclusive
	if f.err != nil {
		return uuid.Nil, f.err
	}
	if f.id == uuid.Nil {
		f.id = uuid.New()
	}
	return f.id, nil
}

// fakeRcon is a minimal RconExecutor stand-in.
type fakeRcon struct {
	response string
	err      error

	lastAddr    string
	lastCommand string
}

func (f *fakeRcon) Execute(ctx context.Context, name, addr, password, command string) (string, error) {
	f.lastAddr = addr
	f.lastCommand = command
	return f.response, f.err
}

// fakeLock is a minimal Locker stand-in.
type fakeLock struct {
	status jobs.LockStatus
	err    error
}

func (f *fakeLock) Lock(ctx context.Context, owner, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.status = jobs.LockStatus{Locked: true, Owner: owner, Reason: reason}
	return nil
}

func (f *fakeLock) Unlock() {
	f.status = jobs.LockStatus{}
}

func (f *fakeLock) Status() jobs.LockStatus {
	return f.status
}
