package httpx

import (
	"context"

	domainauth "github.com/target/jobmatch/internal/domain/auth"
)

type sessionCtxKey struct{}

// WithSession attaches the authenticated session to ctx. A nil session leaves ctx untouched.
func WithSession(ctx context.Context, session *domainauth.Session) context.Context {
	if session == nil {
		return ctx
	}
	return context.WithValue(ctx, sessionCtxKey{}, session)
}

// SessionFromContext returns the session set by the auth middleware.
func SessionFromContext(ctx context.Context) (*domainauth.Session, bool) {
	s, ok := ctx.Value(sessionCtxKey{}).(*domainauth.Session)
	return s, ok && s != nil
}

// CurrentSession is SessionFromContext without the presence flag.
func CurrentSession(ctx context.Context) *domainauth.Session {
	s, _ := SessionFromContext(ctx)
	return s
}

// IsGuestUser reports whether the request has no registered identity behind it. Anonymous
// requests count as guests.
func IsGuestUser(ctx context.Context) bool {
	s, ok := SessionFromContext(ctx)
	return !ok || s.IsGuest()
}
