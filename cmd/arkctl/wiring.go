package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tjper/arkctl/cmd/arkctl/chat"
	"github.com/tjper/arkctl/cmd/arkctl/db"
	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/resolver"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
)

// loopbackRconAddr builds the loopback RCON address for a server's
// allocated RCON port, falling back to defaultPort if none was supplied.
func loopbackRconAddr(serverRconPort, defaultPort int) string {
	port := serverRconPort
	if port == 0 {
		port = defaultPort
	}
	return "127.0.0.1:" + strconv.Itoa(port)
}

// serverLocation is a persisted server together with the cluster it
// belongs to, looked up by name.
type serverLocation struct {
	server      model.Server
	clusterName string
}

// locateServer loads a persisted server by name and, for a cluster member,
// its owning cluster.json. Individual servers (ClusterName nil, the §9
// open question) are not produced by any operation this module
// implements, so that case surfaces as NotFound here rather than being
// silently handled.
func locateServer(ctx context.Context, store db.IStore, lm *layout.Manager, serverName string) (serverLocation, *model.Cluster, error) {
	cfg, err := store.GetServerConfig(ctx, serverName)
	if err != nil {
		return serverLocation{}, nil, err
	}
	if cfg == nil {
		return serverLocation{}, nil, arkerrors.New(arkerrors.NotFound, "server %q does not exist", serverName)
	}

	var server model.Server
	if err := json.Unmarshal([]byte(cfg.JSON), &server); err != nil {
		return serverLocation{}, nil, arkerrors.Wrap(arkerrors.IOFailed, err, "parse stored config for %q", serverName)
	}
	if server.ClusterName == nil {
		return serverLocation{}, nil, arkerrors.New(arkerrors.NotFound, "server %q has no owning cluster", serverName)
	}

	cluster, err := lm.ReadClusterJSON(*server.ClusterName)
	if err != nil {
		return serverLocation{}, nil, err
	}

	return serverLocation{server: server, clusterName: *server.ClusterName}, cluster, nil
}

// sharedModStore adapts db.IStore, bound to a fixed context, to
// resolver.SharedModSource.
type sharedModStore struct {
	ctx   context.Context
	store db.IStore
}

func (s sharedModStore) ListSharedMods() ([]model.SharedMod, error) {
	return s.store.ListSharedMods(s.ctx)
}

func (s sharedModStore) ListServerMods(serverName string) ([]model.ServerMod, error) {
	return s.store.ListServerMods(s.ctx, serverName)
}

// scriptRegenerator adapts the layout manager, store, and resolver to
// supervisor.ScriptGenerator, so the Process Supervisor can regenerate a
// server's start.bat immediately before every start without depending on
// those packages directly.
type scriptRegenerator struct {
	layout *layout.Manager
	store  db.IStore
}

var _ supervisor.ScriptGenerator = scriptRegenerator{}

func (g scriptRegenerator) RegenerateStartScript(ctx context.Context, serverName string) (string, error) {
	loc, cluster, err := locateServer(ctx, g.store, g.layout, serverName)
	if err != nil {
		return "", err
	}

	settings, err := g.store.GetServerSettings(ctx, serverName)
	if err != nil {
		return "", err
	}
	exclude := settings != nil && settings.ExcludeSharedMods

	mods, err := resolver.ResolveMods(cluster, serverName, exclude, sharedModStore{ctx: ctx, store: g.store})
	if err != nil {
		return "", err
	}

	in := layout.StartScriptInput{
		ClusterName: loc.clusterName,
		ServerName:  serverName,
		Server:      loc.server,
		Cluster:     cluster,
		Mods:        mods.Slice(),
	}
	script, err := layout.GenerateStartScript(g.layout, in)
	if err != nil {
		return "", err
	}

	path := g.layout.StartScriptPath(loc.clusterName, serverName)
	if err := os.WriteFile(path, script, 0o644); err != nil {
		return "", arkerrors.Wrap(arkerrors.IOFailed, err, "write start script %q", path)
	}
	return path, nil
}

// logPathResolver builds a push.LogPathResolver that maps a subscribed
// (serverName, logFileName) pair onto the server's log directory, so the
// dashboard's start-ark-logs message can be satisfied without the push
// package knowing anything about cluster layout.
func logPathResolver(store db.IStore, lm *layout.Manager) func(serverName, logFileName string) (string, bool) {
	return func(serverName, logFileName string) (string, bool) {
		loc, _, err := locateServer(context.Background(), store, lm, serverName)
		if err != nil {
			return "", false
		}
		return filepath.Join(lm.ServerLogsDir(loc.clusterName, serverName), logFileName), true
	}
}

// chatTargetsHandler wraps a supervisor action handler so that a
// successful "start" begins chat polling for the server and a successful
// "stop" ends it — the Chat Poller (C8) runs only for servers the
// Supervisor reports as up.
func chatTargetsHandler(sup *supervisor.Supervisor, store db.IStore, rconDefaultPort int, poller *chat.Poller) jobs.Handler {
	return func(ctx context.Context, job *model.Job, report jobs.ProgressFunc) (string, error) {
		var req struct {
			ServerName string                 `json:"serverName"`
			Action     string                 `json:"action"`
			Options    supervisor.StopOptions `json:"options"`
		}
		if err := json.Unmarshal([]byte(job.Data), &req); err != nil {
			return "", arkerrors.Wrap(arkerrors.ValidationFailed, err, "parse server action job data")
		}

		result, err := sup.ActionHandler(ctx, job, report)
		if err != nil {
			return "", err
		}

		switch req.Action {
		case "start":
			rconAddr := req.Options.RconAddr
			if rconAddr == "" {
				cfg, cfgErr := store.GetServerConfig(ctx, req.ServerName)
				if cfgErr == nil && cfg != nil {
					var server model.Server
					if json.Unmarshal([]byte(cfg.JSON), &server) == nil {
						rconAddr = loopbackRconAddr(server.RconPort, rconDefaultPort)
					}
				}
			}
			poller.Start(context.Background(), chat.Target{
				ServerName:   req.ServerName,
				RconAddr:     rconAddr,
				RconPassword: req.Options.RconPassword,
			})
		case "stop":
			poller.Stop(req.ServerName)
		}

		return result, nil
	}
}
