package logger

import (
	"context"
	"net/http"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var osStdout = os.Stdout

// New builds the process logger at the given level name ("debug", "info",
// "warn", "error"). Logs are written to stdout and, for warn-and-above, to a
// rotating file under logDir so long-lived server-host processes don't
// accumulate unbounded log files.
func New(level, logDir string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	stdoutCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(zapcore.Lock(zapcore.AddSync(osStdout))),
		lvl,
	)

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logDir + "/arkctl.log",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}),
		zapcore.WarnLevel,
	)

	core := zapcore.NewTee(stdoutCore, fileCore)
	return zap.New(core, zap.AddCaller()), nil
}

// key is a key used to store and retrieve a logger from the context.
// SA1029: should not use built-in type string as key for value; define your
// own type to avoid collisions
type key string

var loggerCtxKey key = "logger_context_key"

// withRequestId creates a new context a requestId value.
func withRequestId(ctx context.Context, requestId uuid.UUID) context.Context {
	return context.WithValue(ctx, loggerCtxKey, requestId)
}

// requestIdFromCtx retrieves the requestId from the context if it exists.
func requestIdFromCtx(ctx context.Context) (uuid.UUID, bool) {
	val, ok := ctx.Value(loggerCtxKey).(uuid.UUID)
	return val, ok
}

// ContextFields checks the context for a set of fields and returns them for
// use in a zap.Logger if they are available.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0)
	if requestId, ok := requestIdFromCtx(ctx); ok {
		fields = append(fields, zap.String("request_id", requestId.String()))
	}
	return fields
}

// Middleware extends the incoming request's context with request scoped
// information critical to logging.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withRequestId(r.Context(), uuid.New())
			r = r.WithContext(ctx)
			next.ServeHTTP(w, r)
		})
	}
}
