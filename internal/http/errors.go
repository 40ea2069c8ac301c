package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// envelope is the JSON error body returned to the dashboard per §7:
// {success: false, message, code?}.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// statusOf maps a closed error Kind (§7) to the HTTP status the boundary
// responds with.
func statusOf(kind arkerrors.Kind) int {
	switch kind {
	case arkerrors.ValidationFailed:
		return http.StatusBadRequest
	case arkerrors.Unauthorized:
		return http.StatusUnauthorized
	case arkerrors.Forbidden:
		return http.StatusForbidden
	case arkerrors.NotFound:
		return http.StatusNotFound
	case arkerrors.Conflict:
		return http.StatusConflict
	case arkerrors.PreconditionFailed:
		return http.StatusPreconditionFailed
	case arkerrors.RconConnectionRefused, arkerrors.RconTimeout:
		return http.StatusServiceUnavailable
	case arkerrors.RconAuthFailed, arkerrors.RconProtocolError, arkerrors.RconTransportError,
		arkerrors.IOFailed, arkerrors.ProcessFailed, arkerrors.SteamCmdFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as the standard JSON error envelope, translating its
// classified Kind (if any) to an HTTP status code per §7. Errors that are
// not an *arkerrors.Error are treated as Internal.
func WriteError(logger *zap.Logger, w http.ResponseWriter, err error) {
	kind := arkerrors.KindOf(err)
	status := statusOf(kind)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		logger.Warn("request rejected", zap.String("kind", string(kind)), zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Message: err.Error(),
		Code:    string(kind),
	})
}

func ErrInternal(logger *zap.Logger, w http.ResponseWriter, err error) {
	WriteError(logger, w, arkerrors.Wrap(arkerrors.Internal, err, "internal server error"))
}

func ErrUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: "unauthorized; please sign-in to continue.", Code: string(arkerrors.Unauthorized)})
}

func ErrForbidden(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: "forbidden; user does not have permission to carry out this action.", Code: string(arkerrors.Forbidden)})
}

func ErrBadRequest(logger *zap.Logger, w http.ResponseWriter, err error) {
	logger.Warn("bad request", zap.Error(err))

	var valerrors validator.ValidationErrors
	if !errors.As(err, &valerrors) {
		WriteError(logger, w, arkerrors.Wrap(arkerrors.ValidationFailed, err, "request failed validation"))
		return
	}

	msgs := make([]string, len(valerrors))
	for i, fe := range valerrors {
		msgs[i] = fmt.Sprintf("%q failed %q validator", fe.Field(), fe.Tag())
	}
	WriteError(logger, w, arkerrors.New(arkerrors.ValidationFailed, "%s", strings.Join(msgs, ", ")))
}

func ErrConflict(logger *zap.Logger, w http.ResponseWriter, err error) {
	WriteError(logger, w, arkerrors.Wrap(arkerrors.Conflict, err, "conflict occurred carrying out request"))
}

func ErrNotFound(logger *zap.Logger, w http.ResponseWriter, err error) {
	WriteError(logger, w, arkerrors.Wrap(arkerrors.NotFound, err, "resource not found"))
}
