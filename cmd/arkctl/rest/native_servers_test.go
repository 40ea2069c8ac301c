package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
)

func newTestAPI(t *testing.T) (API, *fakeStore, *fakeSupervisor, *fakeJobs, *fakeRcon, *fakeLock) {
	t.Helper()
	lm, err := layout.New(t.TempDir())
	require.NoError(t, err)

	store := newFakeStore()
	sup := &fakeSupervisor{statuses: map[string]supervisor.Status{}}
	jobEngine := &fakeJobs{}
	rcon := &fakeRcon{}
	lock := &fakeLock{}

	api := NewAPI(zap.NewNop(), store, lm, sup, jobEngine, rcon, lock, nil, 32330)
	return api, store, sup, jobEngine, rcon, lock
}

func TestListNativeServersReturnsPersistedServers(t *testing.T) {
	api, store, sup, _, _, _ := newTestAPI(t)

	server := model.Server{Name: "C1-Isle", Port: 7777, QueryPort: 27015, RconPort: 32330}
	b, err := json.Marshal(server)
	require.NoError(t, err)
	require.NoError(t, store.UpsertServerConfig(context.Background(), server.Name, string(b)))
	sup.statuses[server.Name] = supervisor.Status{State: model.StatusRunning}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/native-servers", nil)
	ListNativeServers{api}.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out []nativeServer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "C1-Isle", out[0].Name)
	assert.Equal(t, "running", out[0].Status)
}

func TestServerActionRejectsUnknownAction(t *testing.T) {
	api, store, _, _, _, _ := newTestAPI(t)

	server := model.Server{Name: "C1-Isle"}
	b, err := json.Marshal(server)
	require.NoError(t, err)
	require.NoError(t, store.UpsertServerConfig(context.Background(), server.Name, string(b)))

	router := chi.NewRouter()
	ServerAction{api}.Route(router)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/native-servers/C1-Isle/nuke", strings.NewReader("{}"))
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServerActionSubmitsExclusiveJob(t *testing.T) {
	api, store, _, jobEngine, _, _ := newTestAPI(t)

	server := model.Server{Name: "C1-Isle", RconPort: 32330}
	b, err := json.Marshal(server)
	require.NoError(t, err)
	require.NoError(t, store.UpsertServerConfig(context.Background(), server.Name, string(b)))

	router := chi.NewRouter()
	ServerAction{api}.Route(router)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/native-servers/C1-Isle/start", strings.NewReader("{}"))
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, model.JobUpdateServer, jobEngine.lastType)
	assert.True(t, jobEngine.lastExclusive)
}
