// Package auth holds the credential primitives: Argon2id password digests,
// HS256 access tokens and refresh token secrets.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/taskmanager/internal/common"
	"github.com/dmitrijs2005/taskmanager/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAccessTokenTTL is used when neither the codec nor the caller
// provide a positive lifetime.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims is the decoded identity carried by an access token.
type Claims struct {
	UserID    uuid.UUID
	Email     string
	Role      models.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Codec signs and verifies access tokens with a single HMAC secret.
// It is safe for concurrent use.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type CodecOption func(*Codec)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(secret []byte, ttl time.Duration, opts ...CodecOption) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	c := &Codec{secret: secret, ttl: ttl, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// TTL returns the default access token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs claims.UserID, Email and Role. IssuedAt and ExpiresAt are
// set from the codec clock; ttl <= 0 uses the codec default.
func (c *Codec) Encode(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
		},
		Email: claims.Email,
		Role:  string(claims.Role),
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// ceilSecond rounds t up to a whole second. exp has second precision and a
// token must live for at least its full ttl.
func ceilSecond(t time.Time) time.Time {
	if r := t.Truncate(time.Second); !r.Equal(t) {
		return r.Add(time.Second)
	}
	return t
}

// Decode verifies the signature, algorithm and expiry of token. Every
// failure is reported as common.ErrInvalidToken.
func (c *Codec) Decode(token string) (*Claims, error) {
	tc := &tokenClaims{}

	parsed, err := jwt.ParseWithClaims(token, tc, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !parsed.Valid {
		return nil, common.ErrInvalidToken
	}

	// jwt treats the expiry second itself as valid; tokens end at exp.
	if !c.now().Before(tc.ExpiresAt.Time) {
		return nil, common.ErrInvalidToken
	}

	userID, err := uuid.Parse(tc.Subject)
	if err != nil || userID == uuid.Nil {
		return nil, common.ErrInvalidToken
	}

	role := models.Role(tc.Role)
	if !role.Valid() {
		return nil, common.ErrInvalidToken
	}

	out := &Claims{
		UserID:    userID,
		Email:     tc.Email,
		Role:      role,
		ExpiresAt: tc.ExpiresAt.Time,
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	return out, nil
}
