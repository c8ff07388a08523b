package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/jobmatch/internal/domain/auth"
)

const requestIDHeader = "X-Request-ID"

// Logging assigns a request ID (honouring an inbound X-Request-ID) and logs one line per
// request. 5xx responses log at error level and 4xx at warn.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" || len(reqID) > 128 {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			level := slog.LevelInfo
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http",
				slog.String("request_id", reqID),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Int64("bytes", rec.written),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(p)
	s.written += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Recover turns a handler panic into a logged 500. http.ErrAbortHandler is re-raised so the
// server can abort the connection.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler { //nolint:errorlint // sentinel is compared by identity
					panic(rv)
				}
				logger.ErrorContext(r.Context(), "panic",
					slog.Any("error", rv),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error"})
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionResolver looks up the session behind a session cookie.
type SessionResolver interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

var (
	errAuthRequired     = errors.New("authentication required")
	errPermissionDenied = errors.New("insufficient permissions")
)

// RequireAuth rejects requests without a live session with 401.
func RequireAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return RequireRole(resolver, domainauth.RoleGuest)
}

// RequireRole rejects anonymous requests with 401 and sessions ranked below role with 403.
func RequireRole(resolver SessionResolver, role domainauth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session := resolveSession(r, resolver)
			switch {
			case session == nil:
				WriteError(w, ErrorParams{Code: http.StatusUnauthorized, ErrCode: "authentication_required", Err: errAuthRequired})
			case !roleAtLeast(session.Role, role):
				WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "insufficient_permissions", Err: errPermissionDenied})
			default:
				next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
			}
		})
	}
}

// OptionalAuth attaches the session when there is one and never rejects.
func OptionalAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session := resolveSession(r, resolver); session != nil {
				r = r.WithContext(WithSession(r.Context(), session))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveSession(r *http.Request, resolver SessionResolver) *domainauth.Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	session, err := resolver.GetSession(r.Context(), c.Value)
	if err != nil {
		return nil
	}
	return session
}

var roleRank = map[domainauth.Role]int{
	domainauth.RoleGuest: 1,
	domainauth.RoleUser:  2,
	domainauth.RoleAdmin: 3,
}

// roleAtLeast orders guest < user < admin. Unknown roles never qualify.
func roleAtLeast(have, want domainauth.Role) bool {
	h, w := roleRank[have], roleRank[want]
	return h > 0 && w > 0 && h >= w
}
