package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// PostRcon handles POST /api/rcon/:server. Unlike every other mutation in
// this boundary, RCON commands run synchronously: the dashboard waits on
// the response rather than polling a job (§6).
type PostRcon struct{ API }

func (ep PostRcon) Route(router chi.Router) {
	router.Post("/api/rcon/{"+serverNameParam+"}", ep.ServeHTTP)
}

func (ep PostRcon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, serverNameParam)

	var body struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}
	if body.Command == "" {
		ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "command must not be empty"))
		return
	}

	server, _, err := lookupServer(r.Context(), ep.API, name)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	addr := rconAddr(server.RconPort, ep.rconDefaultPort)
	response, err := ep.rcon.Execute(r.Context(), name, addr, server.RconPassword, body.Command)
	if err != nil {
		ihttp.WriteError(ep.logger, w, err)
		return
	}

	_ = json.NewEncoder(w).Encode(struct {
		Response string `json:"response"`
	}{Response: response})
}
