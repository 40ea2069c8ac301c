package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjper/arkctl/cmd/arkctl/model"
)

func TestListClustersReadsEveryClusterJSON(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI(t)

	require.NoError(t, api.layout.CreateClusterTree("Crossplay", []string{"C1-Isle"}))
	require.NoError(t, api.layout.WriteClusterJSON(model.Cluster{Name: "Crossplay"}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/provisioning/clusters", nil)
	ListClusters{api}.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out []model.Cluster
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Crossplay", out[0].Name)
}

func validCreateClusterPayload() model.Cluster {
	return model.Cluster{
		Name: "Crossplay",
		PortConfig: model.PortConfiguration{
			BasePort: 7777, PortIncrement: 1,
			QueryPortBase: 27015, QueryPortIncrement: 1,
			RconPortBase: 32330, RconPortIncrement: 1,
		},
		Servers: []model.Server{
			{Name: "C1-Isle", Map: "TheIsland_WP"},
			{Name: "C1-Aberration", Map: "Aberration_WP"},
		},
	}
}

func TestCreateClusterSubmitsExclusiveJob(t *testing.T) {
	api, _, _, jobEngine, _, _ := newTestAPI(t)

	cluster := validCreateClusterPayload()
	buf := new(bytes.Buffer)
	require.NoError(t, json.NewEncoder(buf).Encode(cluster))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/provisioning/clusters", buf)
	CreateCluster{api}.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, model.JobCreateCluster, jobEngine.lastType)
	assert.True(t, jobEngine.lastExclusive)

	var decoded model.Cluster
	require.NoError(t, json.Unmarshal([]byte(jobEngine.lastData), &decoded))
	assert.Equal(t, "Crossplay", decoded.Name)
}

func TestCreateClusterRejectsMalformedBody(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/provisioning/clusters", bytes.NewBufferString("not-json"))
	CreateCluster{api}.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateClusterRejectsInvalidName(t *testing.T) {
	api, _, _, jobEngine, _, _ := newTestAPI(t)

	cluster := validCreateClusterPayload()
	cluster.Name = "has a space"
	buf := new(bytes.Buffer)
	require.NoError(t, json.NewEncoder(buf).Encode(cluster))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/provisioning/clusters", buf)
	CreateCluster{api}.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, jobEngine.lastType, "no job should be submitted for an invalid payload")
}

func TestCreateClusterRejectsPortCollisionSynchronously(t *testing.T) {
	api, _, _, jobEngine, _, _ := newTestAPI(t)

	cluster := validCreateClusterPayload()
	// Zero increments: both servers would collide on every port.
	cluster.PortConfig.PortIncrement = 0
	cluster.PortConfig.QueryPortIncrement = 0
	cluster.PortConfig.RconPortIncrement = 0
	buf := new(bytes.Buffer)
	require.NoError(t, json.NewEncoder(buf).Encode(cluster))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/provisioning/clusters", buf)
	CreateCluster{api}.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Empty(t, jobEngine.lastType, "a colliding payload must be rejected before a job is submitted")
}
