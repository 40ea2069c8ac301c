package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
	ihttp "github.com/tjper/arkctl/internal/http"
)

const serverNameParam = "name"

// nativeServer is the wire shape returned by ListNativeServers, per §6.
type nativeServer struct {
	Name             string  `json:"name"`
	ClusterName      *string `json:"clusterName,omitempty"`
	Map              string  `json:"map"`
	Status           string  `json:"status"`
	PID              *int    `json:"pid,omitempty"`
	Port             int     `json:"port"`
	QueryPort        int     `json:"queryPort"`
	RconPort         int     `json:"rconPort"`
	DisableBattleEye bool    `json:"disableBattleEye"`
	ModCount         int     `json:"modCount"`
}

// ListNativeServers handles GET /api/native-servers.
type ListNativeServers struct{ API }

func (ep ListNativeServers) Route(router chi.Router) {
	router.Get("/api/native-servers", ep.ServeHTTP)
}

func (ep ListNativeServers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	configs, err := ep.store.ListServerConfigs(r.Context())
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	out := make([]nativeServer, 0, len(configs))
	for _, cfg := range configs {
		var server model.Server
		if err := json.Unmarshal([]byte(cfg.JSON), &server); err != nil {
			ep.logger.Warn("skipping malformed server config", zap.String("server", cfg.ServerName), zap.Error(err))
			continue
		}

		mods, err := ep.store.ListServerMods(r.Context(), server.Name)
		if err != nil {
			ihttp.ErrInternal(ep.logger, w, err)
			return
		}

		status := ep.supervisor.StatusOf(server.Name)
		out = append(out, nativeServer{
			Name:             server.Name,
			ClusterName:      server.ClusterName,
			Map:              string(server.Map),
			Status:           string(status.State),
			PID:              status.PID,
			Port:             server.Port,
			QueryPort:        server.QueryPort,
			RconPort:         server.RconPort,
			DisableBattleEye: server.DisableBattleEye,
			ModCount:         len(mods),
		})
	}

	if err := json.NewEncoder(w).Encode(out); err != nil {
		ep.logger.Error("encoding native servers list", zap.Error(err))
	}
}

// GetStartBat handles GET /api/native-servers/:name/start-bat.
type GetStartBat struct{ API }

func (ep GetStartBat) Route(router chi.Router) {
	router.Get("/api/native-servers/{"+serverNameParam+"}/start-bat", ep.ServeHTTP)
}

func (ep GetStartBat) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, serverNameParam)
	server, clusterName, err := lookupServer(r.Context(), ep.API, name)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	b, err := readFileOrNotFound(ep.layout.StartScriptPath(clusterName, server.Name))
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(b)
}

// allowedActions are the only values ServerAction accepts for the {action}
// path segment, per §6.
var allowedActions = map[string]bool{"start": true, "stop": true, "restart": true}

// ServerAction handles POST /api/native-servers/:name/start|stop|restart.
type ServerAction struct{ API }

func (ep ServerAction) Route(router chi.Router) {
	router.Post("/api/native-servers/{"+serverNameParam+"}/{action}", ep.ServeHTTP)
}

func (ep ServerAction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, serverNameParam)
	action := chi.URLParam(r, "action")
	if !allowedActions[action] {
		ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "unknown action %q", action))
		return
	}

	server, _, err := lookupServer(r.Context(), ep.API, name)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	var body struct {
		Graceful     bool   `json:"graceful"`
		GraceSeconds int    `json:"graceSeconds"`
		RconPassword string `json:"rconPassword"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	opts := supervisor.StopOptions{
		Graceful:     body.Graceful,
		GraceSeconds: body.GraceSeconds,
		RconAddr:     rconAddr(server.RconPort, ep.rconDefaultPort),
		RconPassword: firstNonEmpty(body.RconPassword, server.RconPassword),
	}

	data, err := json.Marshal(struct {
		ServerName string                 `json:"serverName"`
		Action     string                 `json:"action"`
		Options    supervisor.StopOptions `json:"options"`
	}{ServerName: name, Action: action, Options: opts})
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	jobID, err := ep.jobs.Submit(r.Context(), model.JobUpdateServer, string(data), true)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(struct {
		JobID string `json:"jobId"`
	}{JobID: jobID.String()})
}
