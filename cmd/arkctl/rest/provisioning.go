package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tjper/arkctl/cmd/arkctl/model"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// installBody is the shared request shape for the two install endpoints.
type installBody struct {
	Foreground bool `json:"foreground"`
}

func submitInstallJob(ep API, w http.ResponseWriter, r *http.Request, jobType model.JobType) {
	var body installBody
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	data, err := json.Marshal(body)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	jobID, err := ep.jobs.Submit(r.Context(), jobType, string(data), true)
	if err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(struct {
		JobID string `json:"jobId"`
	}{JobID: jobID.String()})
}

// InstallSteamCmd handles POST /api/provisioning/install-steamcmd.
type InstallSteamCmd struct{ API }

func (ep InstallSteamCmd) Route(router chi.Router) {
	router.Post("/api/provisioning/install-steamcmd", ep.ServeHTTP)
}

func (ep InstallSteamCmd) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	submitInstallJob(ep.API, w, r, model.JobInstallSteamCmd)
}

// InstallAsaBinaries handles POST /api/provisioning/install-asa-binaries.
type InstallAsaBinaries struct{ API }

func (ep InstallAsaBinaries) Route(router chi.Router) {
	router.Post("/api/provisioning/install-asa-binaries", ep.ServeHTTP)
}

func (ep InstallAsaBinaries) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	submitInstallJob(ep.API, w, r, model.JobInstallAsaBinaries)
}
