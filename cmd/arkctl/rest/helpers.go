package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/tjper/arkctl/cmd/arkctl/model"
	ihttp "github.com/tjper/arkctl/internal/http"
)

// lookupServer loads a persisted server config by name and reports the
// cluster it belongs to ("" for an individual server, per the §9 open
// question).
func lookupServer(ctx context.Context, api API, name string) (model.Server, string, error) {
	cfg, err := api.store.GetServerConfig(ctx, name)
	if err != nil {
		return model.Server{}, "", err
	}
	if cfg == nil {
		return model.Server{}, "", arkerrors.New(arkerrors.NotFound, "server %q does not exist", name)
	}

	var server model.Server
	if err := json.Unmarshal([]byte(cfg.JSON), &server); err != nil {
		return model.Server{}, "", arkerrors.Wrap(arkerrors.IOFailed, err, "parse stored config for %q", name)
	}

	clusterName := ""
	if server.ClusterName != nil {
		clusterName = *server.ClusterName
	}
	return server, clusterName, nil
}

// existingServers loads every persisted server config, skipping rows that
// fail to unmarshal (mirrors ListNativeServers' tolerance for malformed
// legacy rows).
func existingServers(ctx context.Context, api API) ([]model.Server, error) {
	configs, err := api.store.ListServerConfigs(ctx)
	if err != nil {
		return nil, err
	}
	servers := make([]model.Server, 0, len(configs))
	for _, cfg := range configs {
		var s model.Server
		if err := json.Unmarshal([]byte(cfg.JSON), &s); err != nil {
			continue
		}
		servers = append(servers, s)
	}
	return servers, nil
}

func writeLookupError(api API, w http.ResponseWriter, err error) {
	ihttp.WriteError(api.logger, w, err)
}

func readFileOrNotFound(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, arkerrors.Wrap(arkerrors.NotFound, err, "file %q does not exist", path)
		}
		return nil, arkerrors.Wrap(arkerrors.IOFailed, err, "read %q", path)
	}
	return b, nil
}

// rconAddr builds the loopback RCON address for a server's allocated RCON
// port, falling back to defaultPort if the server has none allocated yet.
func rconAddr(serverRconPort, defaultPort int) string {
	port := serverRconPort
	if port == 0 {
		port = defaultPort
	}
	return "127.0.0.1:" + strconv.Itoa(port)
}

// formatTime renders t as ISO-8601, or "" for the zero value (no lock held
// yet).
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
