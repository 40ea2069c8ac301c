package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"gorm.io/gorm"

	"github.com/tjper/arkctl/cmd/arkctl/chat"
	"github.com/tjper/arkctl/cmd/arkctl/config"
	"github.com/tjper/arkctl/cmd/arkctl/db"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/cmd/arkctl/layout"
	"github.com/tjper/arkctl/cmd/arkctl/logger"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	"github.com/tjper/arkctl/cmd/arkctl/provision"
	"github.com/tjper/arkctl/cmd/arkctl/push"
	"github.com/tjper/arkctl/cmd/arkctl/rcon"
	"github.com/tjper/arkctl/cmd/arkctl/rest"
	"github.com/tjper/arkctl/cmd/arkctl/steamcmd"
	"github.com/tjper/arkctl/cmd/arkctl/supervisor"
	"github.com/tjper/arkctl/internal/healthz"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// jobPurgeSchedule is when the terminal-job TTL sweep runs: daily, off-peak.
const jobPurgeSchedule = "0 0 3 * * *"

func main() {
	zlog := newLogger()
	defer func() { _ = zlog.Sync() }()

	store, dbconn := newStore(zlog)
	defer func() {
		if sqlDB, err := dbconn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	lm := newLayout(zlog)

	steamCmdDir := lm.SteamCmdDir()
	if override := config.SteamCmdPath(); override != "" {
		steamCmdDir = override
	}
	sc := steamcmd.New(zlog, steamCmdDir)
	provisioner := provision.New(zlog, lm, sc, store)

	rconPool := rcon.NewPool(zlog)
	sup := supervisor.New(zlog, scriptRegenerator{layout: lm, store: store}, rconPool)

	hub := push.New(zlog)
	tailer := push.NewTailer(zlog, hub)
	hub.SetLogTailing(tailer, logPathResolver(store, lm))
	tailer.TailSystemLog(context.Background(), filepath.Join(config.NativeBasePath(), "arkctl.log"))

	chatPoller := chat.New(zlog, rconPool, hub)

	lock := jobs.NewUpdateLock()
	jobEngine := jobs.New(zlog, store, lock, hub)
	jobEngine.RegisterHandler(model.JobInstallSteamCmd, provisioner.InstallSteamCmdHandler)
	jobEngine.RegisterHandler(model.JobInstallAsaBinaries, provisioner.InstallAsaBinariesHandler)
	jobEngine.RegisterHandler(model.JobCreateCluster, provisioner.CreateClusterHandler)
	jobEngine.RegisterHandler(model.JobDeleteCluster, provisioner.DeleteClusterHandler)
	jobEngine.RegisterHandler(model.JobUpdateServer, chatTargetsHandler(sup, store, config.RconDefaultPort(), chatPoller))
	// "update all" runs the same handler as install-asa-binaries, which
	// installs or updates only the shared binaries tree
	// (layout.Manager.SharedBinariesDir). The per-server installs written by
	// CreateCluster, which the start scripts launch from, are not updated.
	jobEngine.RegisterHandler(model.JobUpdateAll, provisioner.InstallAsaBinariesHandler)

	stopPurge, err := jobEngine.StartTTLPurge(jobPurgeSchedule, 0)
	if err != nil {
		zlog.Panic("[Startup] Failed to schedule job TTL purge.", zap.Error(err))
	}
	defer stopPurge()
	defer jobEngine.Stop()

	auth := ihttp.NewAuthMiddleware(config.JWTSecret())
	api := rest.NewAPI(zlog, store, lm, sup, jobEngine, rconPool, lock, auth, config.RconDefaultPort())
	handler := rest.Router(api, hub.ServeWS, config.CorsOrigins(), float64(config.RateLimitMax()))

	srv := http.Server{
		Handler:      handler,
		Addr:         fmt.Sprintf("%s:%d", config.Host(), config.Port()),
		ReadTimeout:  config.HTTPReadTimeout(),
		WriteTimeout: config.HTTPWriteTimeout(),
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalc := make(chan os.Signal, 1)
	signal.Notify(signalc, unix.SIGTERM, unix.SIGINT)

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			return
		case <-signalc:
			cancel()
		}
	}()

	health := healthz.NewHTTP()
	health.Healthy()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer health.Sick()
		<-ctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		jobEngine.Stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zlog.Error("[Startup] Failed to gracefully shut down arkctl.", zap.Error(err))
		}
	}()

	zlog.Sugar().Infof("[Startup] arkctl API listening at %s:%d", config.Host(), config.Port())
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	if err != nil {
		zlog.Panic("[Startup] Failed to listen and serve arkctl API.", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	zlog, err := logger.New(config.LogLevel(), config.NativeBasePath())
	if err != nil {
		log.Fatal(err)
	}
	return zlog
}

func newStore(zlog *zap.Logger) (db.IStore, *gorm.DB) {
	if err := os.MkdirAll(config.NativeBasePath(), 0o755); err != nil {
		zlog.Panic("[Startup] Failed to create native base path.", zap.Error(err))
	}

	dbconn, err := db.Open(config.DBPath())
	if err != nil {
		zlog.Panic("[Startup] Failed to establish DB connection.", zap.Error(err))
	}
	if err := db.Migrate(dbconn, config.Migrations()); err != nil {
		zlog.Panic("[Startup] Failed to migrate DB.", zap.Error(err))
	}

	result, err := db.CompactOnStartup(context.Background(), dbconn)
	if err != nil {
		zlog.Panic("[Startup] Failed to compact DB on startup.", zap.Error(err))
	}
	if result.ServerModsRemoved > 0 || result.ServerConfigsRemoved > 0 {
		zlog.Sugar().Infof(
			"[Startup] Compacted %d server-mods and %d server-configs rows with null keys.",
			result.ServerModsRemoved, result.ServerConfigsRemoved,
		)
	}

	return db.NewStore(zlog, dbconn), dbconn
}

func newLayout(zlog *zap.Logger) *layout.Manager {
	lm, err := layout.New(config.NativeBasePath())
	if err != nil {
		zlog.Panic("[Startup] Failed to initialize filesystem layout.", zap.Error(err))
	}
	return lm
}
