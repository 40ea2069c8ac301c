// Package rest implements the HTTP + WebSocket boundary (§6): the
// dashboard-facing API that authenticates callers, validates input, and
// delegates to the engine components. Each endpoint is its own type
// embedding API, following the go-chi/chi/v5 Route(router chi.Router)
// convention used throughout this boundary.
package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validatorpkg "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/db"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
	ihttp "github.com/tjper/arkctl/internal/http"
	"github.com/tjper/arkctl/internal/validator"
)

// Supervisor is the slice of supervisor.Supervisor the boundary depends on.
type Supervisor interface {
	List() map[string]supervisor.Status
	StatusOf(name string) supervisor.Status
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string, opts supervisor.StopOptions) error
	Restart(ctx context.Context, name string, opts supervisor.StopOptions) error
}

// JobSubmitter is the slice of jobs.Engine the boundary depends on.
type JobSubmitter interface {
	Submit(ctx context.Context, jobType model.JobType, data string, exclusive bool) (uuid.UUID, error)
}

// RconExecutor is the slice of rcon.Pool the boundary depends on.
type RconExecutor interface {
	Execute(ctx context.Context, name, addr, password, command string) (string, error)
}

// Locker is the slice of jobs.UpdateLock the boundary depends on, exposed
// to the dashboard as a manual wrapper (§6).
type Locker interface {
	Lock(ctx context.Context, owner, reason string) error
	Unlock()
	Status() jobs.LockStatus
}

// API bundles every engine component an endpoint may need. Endpoint types
// embed it by value, matching the style used across this boundary.
type API struct {
	logger *zap.Logger
	valid  *validatorpkg.Validate

	store      db.IStore
	layout     *layout.Manager
	supervisor Supervisor
	jobs       JobSubmitter
	rcon       RconExecutor
	lock       Locker
	auth       *ihttp.AuthMiddleware

	rconDefaultPort int
}

// NewAPI creates the API shared by every endpoint.
func NewAPI(
	logger *zap.Logger,
	store db.IStore,
	lm *layout.Manager,
	sup Supervisor,
	jobEngine JobSubmitter,
	rconPool RconExecutor,
	lock Locker,
	auth *ihttp.AuthMiddleware,
	rconDefaultPort int,
) API {
	return API{
		logger:          logger,
		valid:           validator.New(),
		store:           store,
		layout:          lm,
		supervisor:      sup,
		jobs:            jobEngine,
		rcon:            rconPool,
		lock:            lock,
		auth:            auth,
		rconDefaultPort: rconDefaultPort,
	}
}

// Router builds the full chi.Router for this boundary. ws, if non-nil, is
// mounted at /ws behind authentication only (no role gate: every connected
// role may watch the broadcast channels).
func Router(api API, ws http.HandlerFunc, corsOrigins []string, requestsPerSecond float64) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(zapRequestLogger(api.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(rateLimit(requestsPerSecond))

	r.Group(func(r chi.Router) {
		r.Use(api.auth.Authenticate())

		mount := func(ep interface{ Route(chi.Router) }) { ep.Route(r) }

		viewer := requirePolicy(roleEnforcer, "dashboard", "read")
		operator := requirePolicy(roleEnforcer, "dashboard", "write")
		admin := requirePolicy(roleEnforcer, "dashboard", "admin")

		r.With(viewer).Group(func(r chi.Router) {
			mount(ListNativeServers{api})
			mount(GetStartBat{api})
			mount(ListClusters{api})
			mount(GetConfig{api})
			mount(GetLockStatus{api})
		})

		r.With(operator).Group(func(r chi.Router) {
			mount(ServerAction{api})
			mount(PostRcon{api})
			mount(PutConfig{api})
			mount(PostLockStatus{api})
			mount(DeleteLockStatus{api})
		})

		r.With(admin).Group(func(r chi.Router) {
			mount(CreateCluster{api})
			mount(PutClusterMods{api})
			mount(PutServerMods{api})
			mount(InstallSteamCmd{api})
			mount(InstallAsaBinaries{api})
		})

		if ws != nil {
			r.Get("/ws", ws)
		}
	})

	return r
}
