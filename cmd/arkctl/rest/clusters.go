package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/provision"
	ihttp "github.com/tjper/arkctl/internal/http"
)

const clusterNameParam = "clusterName"

// ListClusters handles GET /api/provisioning/clusters.
type ListClusters struct{ API }

func (ep ListClusters) Route(router chi.Router) {
	router.Get("/api/provisioning/clusters", ep.ServeHTTP)
}

func (ep ListClusters) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	names, err := ep.layout.ListClusterNames()
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	clusters := make([]model.Cluster, 0, len(names))
	for _, name := range names {
		c, err := ep.layout.ReadClusterJSON(name)
		if err != nil {
			ihttp.ErrInternal(ep.logger, w, err)
			return
		}
		clusters = append(clusters, *c)
	}

	if err := json.NewEncoder(w).Encode(clusters); err != nil {
		ep.logger.Error("encoding clusters list", zap.Error(err))
	}
}

// CreateCluster handles POST /api/provisioning/clusters.
type CreateCluster struct{ API }

func (ep CreateCluster) Route(router chi.Router) {
	router.Post("/api/provisioning/clusters", ep.ServeHTTP)
}

func (ep CreateCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var cluster model.Cluster
	if err := json.NewDecoder(r.Body).Decode(&cluster); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	if err := ep.valid.Struct(cluster); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	existing, err := existingServers(r.Context(), ep.API)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}
	if err := provision.ValidateClusterRequest(&cluster, existing); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}

	data, err := json.Marshal(cluster)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	jobID, err := ep.jobs.Submit(r.Context(), model.JobCreateCluster, string(data), true)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(struct {
		JobID string `json:"jobId"`
	}{JobID: jobID.String()})
}
