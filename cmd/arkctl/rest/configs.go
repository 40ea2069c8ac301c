package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// allowedConfigFiles are the only values the ?file= query parameter
// accepts, per §6.
var allowedConfigFiles = map[string]bool{"GameUserSettings.ini": true, "Game.ini": true}

func configFileParam(r *http.Request, w http.ResponseWriter, ep API) (string, bool) {
	file := r.URL.Query().Get("file")
	if !allowedConfigFiles[file] {
		ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "unknown config file %q", file))
		return "", false
	}
	return file, true
}

// GetConfig handles GET /api/configs/:server?file=GameUserSettings.ini|Game.ini.
type GetConfig struct{ API }

func (ep GetConfig) Route(router chi.Router) {
	router.Get("/api/configs/{"+serverNameParam+"}", ep.ServeHTTP)
}

func (ep GetConfig) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, serverNameParam)
	file, ok := configFileParam(r, w, ep.API)
	if !ok {
		return
	}

	_, clusterName, err := lookupServer(r.Context(), ep.API, name)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	b, err := ep.layout.ReadConfigFile(clusterName, name, file)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	_ = json.NewEncoder(w).Encode(struct {
		Content string `json:"content"`
	}{Content: string(b)})
}

// PutConfig handles PUT /api/configs/:server?file=GameUserSettings.ini|Game.ini.
type PutConfig struct{ API }

func (ep PutConfig) Route(router chi.Router) {
	router.Put("/api/configs/{"+serverNameParam+"}", ep.ServeHTTP)
}

func (ep PutConfig) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, serverNameParam)

	var body struct {
		Content string `json:"content"`
		File    string `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		ihttp.ErrBadRequest(ep.logger, w, err)
		return
	}
	if !allowedConfigFiles[body.File] {
		ihttp.ErrBadRequest(ep.logger, w, arkerrors.New(arkerrors.ValidationFailed, "unknown config file %q", body.File))
		return
	}

	_, clusterName, err := lookupServer(r.Context(), ep.API, name)
	if err != nil {
		writeLookupError(ep.API, w, err)
		return
	}

	if err := ep.layout.WriteConfigFile(clusterName, name, body.File, []byte(body.Content)); err != nil {
		ihttp.ErrInternal(ep.logger, w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
