// Package tenant binds the caller's identity to storage work so that
// tenant-owned rows (tasks, refresh tokens) are filtered below the
// application queries.
//
// A Scope is either bound to a user, to a refresh token digest the caller
// has proven possession of, or to nothing. The zero Scope admits no rows.
package tenant

import (
	"context"

	"github.com/google/uuid"
)

type Scope struct {
	UserID      uuid.UUID
	TokenDigest string
}

// ForUser binds a scope to a user.
func ForUser(id uuid.UUID) Scope {
	return Scope{UserID: id}
}

// ForToken binds a scope to a refresh token digest only.
func ForToken(digest string) Scope {
	return Scope{TokenDigest: digest}
}

// Bound reports whether s can admit any row at all.
func (s Scope) Bound() bool {
	return s.UserID != uuid.Nil || s.TokenDigest != ""
}

// Admits is the row predicate: the row belongs to the bound user, or it is
// the refresh token whose digest is bound. Rows without a digest pass "".
func (s Scope) Admits(owner uuid.UUID, tokenHash string) bool {
	if s.UserID != uuid.Nil && owner == s.UserID {
		return true
	}
	return s.TokenDigest != "" && tokenHash == s.TokenDigest
}

type ctxKey struct{}

// WithScope returns a copy of ctx carrying s.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope bound to ctx, or the zero Scope.
func FromContext(ctx context.Context) Scope {
	s, _ := ctx.Value(ctxKey{}).(Scope)
	return s
}
