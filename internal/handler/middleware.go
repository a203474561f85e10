package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository/redis"
	"hybrid-auth-service/internal/util"
)

type ctxKey int

const (
	adminSessionKey ctxKey = iota
	staffSessionKey
)

// StaffTokenHeader carries the staff session token on staff routes.
const StaffTokenHeader = "X-Staff-Token"

type adminValidator interface {
	ValidateAdminSession(ctx context.Context, token string) (*models.AdminSession, error)
}

type staffValidator interface {
	ValidateStaffSession(ctx context.Context, token string) (*models.StaffSession, error)
}

// IPLimiter is the per-IP fixed window limiter guarding PIN attempts.
type IPLimiter interface {
	AllowIP(ctx context.Context, operation, ipAddress string) (redis.RateLimitResult, error)
}

// requireHTTPS rejects any request that wasn't made over TLS
func requireHTTPS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.TLS == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUpgradeRequired) // 426
			w.Write([]byte(`{"error":"https required"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoggerMiddleware creates a middleware that logs HTTP requests
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("request_id", middleware.GetReqID(r.Context())),
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// RequireAdmin admits requests carrying a valid admin session token and
// stores the session in the request context.
func RequireAdmin(auth adminValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.ValidateAdminSession(r.Context(), bearerToken(r))
			if err != nil {
				respondWithError(w, logger, getStatusCode(err), publicError(err), "Admin authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), adminSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff is RequireAdmin for staff tokens sent in X-Staff-Token.
func RequireStaff(auth staffValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := auth.ValidateStaffSession(r.Context(), r.Header.Get(StaffTokenHeader))
			if err != nil {
				respondWithError(w, logger, getStatusCode(err), publicError(err), "Staff authentication required")
				return
			}
			ctx := context.WithValue(r.Context(), staffSessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitIP caps requests per client IP for one operation. Limiter
// failures let the request through.
func RateLimitIP(limiter IPLimiter, operation string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := limiter.AllowIP(r.Context(), operation, clientIP(r))
			if err != nil {
				logger.Warn("Rate limiter unavailable",
					util.String("operation", operation),
					util.ErrorField(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(result.Limit-result.CurrentCount, 0)))
			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				respondWithError(w, logger, http.StatusTooManyRequests,
					errors.New("too many attempts"), "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func adminSessionFrom(ctx context.Context) *models.AdminSession {
	session, _ := ctx.Value(adminSessionKey).(*models.AdminSession)
	return session
}

func staffSessionFrom(ctx context.Context) *models.StaffSession {
	session, _ := ctx.Value(staffSessionKey).(*models.StaffSession)
	return session
}
