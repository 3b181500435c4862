package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Session identifies the logged-in principal of a request.
type Session struct {
	ID    string
	Email string
}

type sessionKey struct{}

// WithSession returns a context carrying a new session for email.
func WithSession(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, sessionKey{}, Session{ID: uuid.NewString(), Email: email})
}

// SessionFrom returns the session carried by ctx, if any.
func SessionFrom(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.Email != ""
}
