package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjper/arkctl/cmd/arkctl/model"
)

func TestGetConfigRejectsUnknownFile(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI(t)

	router := chi.NewRouter()
	GetConfig{api}.Route(router)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/configs/C1-Isle?file=nope.ini", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutThenGetConfigRoundTrips(t *testing.T) {
	api, store, _, _, _, _ := newTestAPI(t)

	server := model.Server{Name: "C1-Isle"}
	b, err := json.Marshal(server)
	require.NoError(t, err)
	require.NoError(t, store.UpsertServerConfig(context.Background(), server.Name, string(b)))
	require.NoError(t, api.layout.CreateServerTree("", server.Name))

	putRouter := chi.NewRouter()
	PutConfig{api}.Route(putRouter)

	putBody := bytes.NewBufferString(`{"content":"[ServerSettings]\nDifficultyOffset=1.0\n","file":"GameUserSettings.ini"}`)
	putReq := httptest.NewRequest(http.MethodPut, "/api/configs/C1-Isle", putBody)
	putRR := httptest.NewRecorder()
	putRouter.ServeHTTP(putRR, putReq)
	require.Equal(t, http.StatusNoContent, putRR.Code)

	getRouter := chi.NewRouter()
	GetConfig{api}.Route(getRouter)

	getReq := httptest.NewRequest(http.MethodGet, "/api/configs/C1-Isle?file=GameUserSettings.ini", nil)
	getRR := httptest.NewRecorder()
	getRouter.ServeHTTP(getRR, getReq)
	require.Equal(t, http.StatusOK, getRR.Code)

	var out struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(getRR.Body.Bytes(), &out))
	assert.Contains(t, out.Content, "DifficultyOffset=1.0")
}
