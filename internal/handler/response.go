package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/service"
	"hybrid-auth-service/internal/util"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta represents pagination metadata
type Meta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// ValidationResponse is the body of the session validation endpoints.
type ValidationResponse struct {
	Valid   bool        `json:"valid"`
	Session interface{} `json:"session,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{
		Success: true,
		Data:    data,
		Message: message,
	}
}

func errorResponse(err error, message string) Response {
	return Response{
		Success: false,
		Error:   err.Error(),
		Message: message,
	}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		util.Error("Failed to encode response", util.ErrorField(err))
	}
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, statusCode int, err error, message string) {
	if statusCode >= http.StatusInternalServerError {
		logger.Error("HTTP request failed",
			util.Int("status_code", statusCode),
			util.ErrorField(err),
			util.String("message", message))
	} else {
		logger.Debug("HTTP request rejected",
			util.Int("status_code", statusCode),
			util.ErrorField(err),
			util.String("message", message))
	}
	respondWithJSON(w, statusCode, errorResponse(err, message))
}

// getStatusCode maps auth error kinds onto HTTP status codes.
func getStatusCode(err error) int {
	switch service.KindOf(err) {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindExpired, service.KindInvalidCredentials:
		return http.StatusUnauthorized
	case service.KindPermissionDenied:
		return http.StatusForbidden
	case service.KindNotFound:
		if err.Error() == service.MsgInvalidSession {
			return http.StatusUnauthorized
		}
		return http.StatusNotFound
	case service.KindConflict, service.KindCapacityExceeded:
		return http.StatusConflict
	case service.KindLocked:
		return http.StatusLocked
	default:
		return http.StatusInternalServerError
	}
}

// publicError keeps driver details out of responses; *AuthError messages are
// already safe to show.
func publicError(err error) error {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		return errors.New(authErr.Message)
	}
	return errors.New("internal error")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodeAndValidate reads a JSON body into dst and runs its validate tags.
func decodeAndValidate(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := validate.Struct(dst); err != nil {
		return describeValidation(err)
	}
	return nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// clientIP strips the port from RemoteAddr, which RealIP may already have
// replaced with a bare forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
