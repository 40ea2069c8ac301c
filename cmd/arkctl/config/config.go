// Package config exposes the control plane's configuration, driven
// exclusively by the environment variables enumerated in §6 — that list is
// exhaustive; no other environment variables or config files are consulted.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	keyPort               = "PORT"
	keyHost                = "HOST"
	keyJWTSecret           = "JWT_SECRET"
	keyServerMode          = "SERVER_MODE"
	keyNativeBasePath      = "NATIVE_BASE_PATH"
	keyRconDefaultPort     = "RCON_DEFAULT_PORT"
	keyRateLimitMax        = "RATE_LIMIT_MAX"
	keyLogLevel            = "LOG_LEVEL"
	keyAutoInstallSteamCmd = "AUTO_INSTALL_STEAMCMD"
	keySteamCmdPath        = "STEAMCMD_PATH"
	keyCorsOrigin          = "CORS_ORIGIN"
)

// ServerMode is the SERVER_MODE enumeration from §6.
type ServerMode string

const (
	ModeNative ServerMode = "native"
	ModeDocker ServerMode = "docker"
	ModeHybrid ServerMode = "hybrid"
)

var global *config

func init() {
	c := &config{viper: viper.New()}
	c.viper.AutomaticEnv()
	c.loadDefaults()
	global = c
}

type config struct {
	viper *viper.Viper
}

func (c *config) loadDefaults() {
	c.viper.SetDefault(keyPort, 8080)
	c.viper.SetDefault(keyHost, "0.0.0.0")
	c.viper.SetDefault(keyJWTSecret, "")
	c.viper.SetDefault(keyServerMode, string(ModeNative))
	c.viper.SetDefault(keyNativeBasePath, "./data")
	c.viper.SetDefault(keyRconDefaultPort, 27020)
	c.viper.SetDefault(keyRateLimitMax, 100)
	c.viper.SetDefault(keyLogLevel, "info")
	c.viper.SetDefault(keyAutoInstallSteamCmd, true)
	c.viper.SetDefault(keySteamCmdPath, "")
	c.viper.SetDefault(keyCorsOrigin, "*")
}

// Port is the PORT the HTTP+WebSocket boundary listens on.
func Port() int { return global.viper.GetInt(keyPort) }

// Host is the HOST the boundary binds to.
func Host() string { return global.viper.GetString(keyHost) }

// JWTSecret validates bearer tokens at the boundary (§1: token issuance is
// out of scope; only validation happens here).
func JWTSecret() string { return global.viper.GetString(keyJWTSecret) }

// Mode is the process's SERVER_MODE; this module implements "native".
func Mode() ServerMode { return ServerMode(global.viper.GetString(keyServerMode)) }

// NativeBasePath is baseDir, the root of the filesystem layout (§4.3).
func NativeBasePath() string { return global.viper.GetString(keyNativeBasePath) }

// RconDefaultPort is used when a server config omits an explicit RCON port.
func RconDefaultPort() int { return global.viper.GetInt(keyRconDefaultPort) }

// RateLimitMax is the boundary's external rate-limiting budget; the engine
// itself does not enforce it (§1, out of scope).
func RateLimitMax() int { return global.viper.GetInt(keyRateLimitMax) }

// LogLevel is the zap level name.
func LogLevel() string { return global.viper.GetString(keyLogLevel) }

// AutoInstallSteamCmd reports the AUTO_INSTALL_STEAMCMD setting. Nothing in
// this module reads it: steamcmd.Driver.EnsureInstalled downloads SteamCMD
// whenever it is absent, whatever this returns.
func AutoInstallSteamCmd() bool { return global.viper.GetBool(keyAutoInstallSteamCmd) }

// SteamCmdPath, when set, replaces the layout's steamcmd directory as the
// directory SteamCMD is looked up in and, if absent there, installed into;
// empty means the layout's own steamcmd directory is used.
func SteamCmdPath() string { return global.viper.GetString(keySteamCmdPath) }

// CorsOrigins is the parsed comma list from CORS_ORIGIN.
func CorsOrigins() []string {
	raw := global.viper.GetString(keyCorsOrigin)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// HTTPReadTimeout bounds how long the boundary waits to read a request.
func HTTPReadTimeout() time.Duration { return 15 * time.Second }

// HTTPWriteTimeout bounds how long the boundary takes to write a response.
func HTTPWriteTimeout() time.Duration { return 15 * time.Second }

// DBPath is the embedded sqlite database file, rooted under
// NativeBasePath rather than a separate environment variable: §6's
// environment variable list is exhaustive and has none for it.
func DBPath() string { return filepath.Join(NativeBasePath(), "arkctl.db") }

// Migrations is the golang-migrate source URL for the schema migrations
// applied at startup.
func Migrations() string { return "file://migrations" }
