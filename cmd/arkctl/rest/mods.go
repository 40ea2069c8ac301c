package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// PutClusterMods handles PUT /api/provisioning/clusters/:clusterName/mods.
type PutClusterMods struct{ API }

func (ep PutClusterMods) Route(router chi.Router) {
	router.Put("/api/provisioning/clusters/{"+clusterNameParam+"}/mods", ep.ServeHTTP)
}

func (ep PutClusterMods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clusterName := chi.URLParam(r, clusterNameParam)

	var body struct {
		SharedMods      []model.ModId                      `json:"sharedMods"`
		ServerMods      map[string]model.ServerModOverride `json:"serverMods"`
		ExcludedServers []string                            `json:"excludedServers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	cluster, err := ep.layout.ReadClusterJSON(clusterName)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	for name := range body.ServerMods {
		if !containsServer(cluster.Servers, name) {
			ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "serverMods references unknown server %q", name))
			return
		}
	}
	for _, name := range body.ExcludedServers {
		if !containsServer(cluster.Servers, name) {
			ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "excludedServers references unknown server %q", name))
			return
		}
	}

	cluster.ModManagement = model.ModManagement{
		SharedMods:      body.SharedMods,
		ServerMods:      body.ServerMods,
		ExcludedServers: body.ExcludedServers,
	}

	if err := ep.layout.WriteClusterJSON(*cluster); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(cluster); err != nil {
		ep.logger.Error("encoding updated cluster", zap.Error(err))
	}
}

// PutServerMods handles PUT
// /api/provisioning/clusters/:clusterName/servers/:serverName/mods.
type PutServerMods struct{ API }

func (ep PutServerMods) Route(router chi.Router) {
	router.Put("/api/provisioning/clusters/{"+clusterNameParam+"}/servers/{"+serverNameParam+"}/mods", ep.ServeHTTP)
}

func (ep PutServerMods) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clusterName := chi.URLParam(r, clusterNameParam)
	serverName := chi.URLParam(r, serverNameParam)

	var body struct {
		AdditionalMods    []model.ModId `json:"additionalMods"`
		ExcludeSharedMods bool          `json:"excludeSharedMods"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	cluster, err := ep.layout.ReadClusterJSON(clusterName)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}
	if !containsServer(cluster.Servers, serverName) {
		ihttp.ErrNotFound(ep.logger, w, arkerrors.New(arkerrors.NotFound, "cluster %q has no server %q", clusterName, serverName))
		return
	}

	if cluster.ModManagement.ServerMods == nil {
		cluster.ModManagement.ServerMods = map[string]model.ServerModOverride{}
	}
	cluster.ModManagement.ServerMods[serverName] = model.ServerModOverride{
		AdditionalMods:    body.AdditionalMods,
		ExcludeSharedMods: body.ExcludeSharedMods,
	}

	if err := ep.layout.WriteClusterJSON(*cluster); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	if err := ep.store.UpsertServerSettings(r.Context(), serverName, body.ExcludeSharedMods); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(cluster); err != nil {
		ep.logger.Error("encoding updated cluster", zap.Error(err))
	}
}

func containsServer(servers []model.Server, name string) bool {
	for _, s := range servers {
		if s.Name == name {
			return true
		}
	}
	return false
}
