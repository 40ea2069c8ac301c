package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockStatusLifecycle(t *testing.T) {
	api, _, _, _, _, _ := newTestAPI(t)

	getRR := httptest.NewRecorder()
	GetLockStatus{api}.ServeHTTP(getRR, httptest.NewRequest(http.MethodGet, "/api/lock-status", nil))
	require.Equal(t, http.StatusOK, getRR.Code)

	var before lockStatusWire
	require.NoError(t, json.Unmarshal(getRR.Body.Bytes(), &before))
	assert.False(t, before.Locked)

	postRR := httptest.NewRecorder()
	postReq := httptest.NewRequest(http.MethodPost, "/api/lock-status", bytes.NewBufferString(`{"reason":"maintenance"}`))
	PostLockStatus{api}.ServeHTTP(postRR, postReq)
	require.Equal(t, http.StatusOK, postRR.Code)

	var after lockStatusWire
	require.NoError(t, json.Unmarshal(postRR.Body.Bytes(), &after))
	assert.True(t, after.Locked)
	assert.Equal(t, "maintenance", after.Reason)

	delRR := httptest.NewRecorder()
	DeleteLockStatus{api}.ServeHTTP(delRR, httptest.NewRequest(http.MethodDelete, "/api/lock-status", nil))
	require.Equal(t, http.StatusNoContent, delRR.Code)

	finalRR := httptest.NewRecorder()
	GetLockStatus{api}.ServeHTTP(finalRR, httptest.NewRequest(http.MethodGet, "/api/lock-status", nil))
	var final lockStatusWire
	require.NoError(t, json.Unmarshal(finalRR.Body.Bytes(), &final))
	assert.False(t, final.Locked)
}
