package supervisor_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
)

type fakeScripts struct {
	path string
	err  error
}

func (f fakeScripts) RegenerateStartScript(ctx context.Context, name string) (string, error) {
	return f.path, f.err
}

type noopRcon struct{}

func (noopRcon) SaveAndExit(ctx context.Context, name, addr, password string) error { return nil }
func (noopRcon) Close(name string)                                                 {}

func longRunningScript(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "start.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 5\n"), 0o755))
	return path
}

func TestStartTransitionsToRunning(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})

	err := sup.Start(context.Background(), "C1-Isle")
	require.NoError(t, err)

	status := sup.StatusOf("C1-Isle")
	assert.Equal(t, model.StatusRunning, status.State)
	require.NotNil(t, status.PID)
}

func TestStartRejectedWhileRunning(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})
	require.NoError(t, sup.Start(context.Background(), "C1-Isle"))

	err := sup.Start(context.Background(), "C1-Isle")
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})

	err := sup.Stop(context.Background(), "never-started", supervisor.StopOptions{})
	assert.NoError(t, err)
}

func TestStopIsNoopOnFailedServer(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{err: assertAnError{}}, noopRcon{})
	require.Error(t, sup.Start(context.Background(), "C1-Isle"))
	require.Equal(t, model.StatusFailed, sup.StatusOf("C1-Isle").State)

	err := sup.Stop(context.Background(), "C1-Isle", supervisor.StopOptions{})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusFailed, sup.StatusOf("C1-Isle").State, "failed state must be left unchanged")
}

func TestStopForceKillsProcess(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})
	require.NoError(t, sup.Start(context.Background(), "C1-Isle"))

	err := sup.Stop(context.Background(), "C1-Isle", supervisor.StopOptions{Graceful: false})
	require.NoError(t, err)

	status := sup.StatusOf("C1-Isle")
	assert.Equal(t, model.StatusStopped, status.State)
}

func TestStartFailsWhenScriptGenerationFails(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{err: assertAnError{}}, noopRcon{})
	err := sup.Start(context.Background(), "C1-Isle")
	require.Error(t, err)
	assert.Equal(t, model.StatusFailed, sup.StatusOf("C1-Isle").State)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "script generation failed" }

func TestListReportsTrackedServers(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})
	require.NoError(t, sup.Start(context.Background(), "C1-Isle"))

	list := sup.List()
	require.Contains(t, list, "C1-Isle")
	assert.Equal(t, model.StatusRunning, list["C1-Isle"].State)

	// avoid leaking the sleeping child process past the test
	_ = sup.Stop(context.Background(), "C1-Isle", supervisor.StopOptions{})
	_ = time.Second
}

func TestActionHandlerStartsServer(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})

	job := &model.Job{Data: `{"serverName":"C1-Isle","action":"start"}`}
	var progress []int
	result, err := sup.ActionHandler(context.Background(), job, func(p int, msg string) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.Equal(t, "C1-Isle started", result)
	assert.Equal(t, model.StatusRunning, sup.StatusOf("C1-Isle").State)
	assert.Equal(t, []int{0, 100}, progress)

	_ = sup.Stop(context.Background(), "C1-Isle", supervisor.StopOptions{})
}

func TestActionHandlerRejectsUnknownAction(t *testing.T) {
	sup := supervisor.New(zap.NewNop(), fakeScripts{path: longRunningScript(t)}, noopRcon{})

	job := &model.Job{Data: `{"serverName":"C1-Isle","action":"teleport"}`}
	_, err := sup.ActionHandler(context.Background(), job, func(int, string) {})
	assert.Error(t, err)
}
