package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	ihttp "github.com/tjper/arkctl/internal/http"
	"github.com/tjper/arkctl/internal/session"
)

// lockStatusWire is the wire shape for every lock-status endpoint.
type lockStatusWire struct {
	Locked     bool   `json:"locked"`
	Owner      string `json:"owner,omitempty"`
	Reason     string `json:"reason,omitempty"`
	AcquiredAt string `json:"acquiredAt,omitempty"`
}

// GetLockStatus handles GET /api/lock-status.
type GetLockStatus struct{ API }

func (ep GetLockStatus) Route(router chi.Router) {
	router.Get("/api/lock-status", ep.ServeHTTP)
}

func (ep GetLockStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := ep.lock.Status()
	_ = json.NewEncoder(w).Encode(lockStatusWire{
		Locked:     status.Locked,
		Owner:      status.Owner,
		Reason:     status.Reason,
		AcquiredAt: formatTime(status.AcquiredAt),
	})
}

// PostLockStatus handles POST /api/lock-status, a manual acquire wrapping
// the Update Lock (§6) - used by an operator to reserve the lock ahead of a
// sequence of dashboard actions it wants serialized against the engine's
// own exclusive jobs.
type PostLockStatus struct{ API }

func (ep PostLockStatus) Route(router chi.Router) {
	router.Post("/api/lock-status", ep.ServeHTTP)
}

func (ep PostLockStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	owner := "unknown"
	if user, ok := session.FromContext(r.Context()); ok {
		owner = user.Email
	}

	if err := ep.lock.Lock(r.Context(), owner, body.Reason); err != nil {
		ihttp.WriteError(ep.logger, w, err)
		return
	}

	status := ep.lock.Status()
	_ = json.NewEncoder(w).Encode(lockStatusWire{
		Locked:     status.Locked,
		Owner:      status.Owner,
		Reason:     status.Reason,
		AcquiredAt: formatTime(status.AcquiredAt),
	})
}

// DeleteLockStatus handles DELETE /api/lock-status: releases a manually
// held lock.
type DeleteLockStatus struct{ API }

func (ep DeleteLockStatus) Route(router chi.Router) {
	router.Delete("/api/lock-status", ep.ServeHTTP)
}

func (ep DeleteLockStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ep.lock.Unlock()
	w.WriteHeader(http.StatusNoContent)
}
