package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ArgonParams are the Argon2id cost parameters. They are encoded into every
// digest, so changing them only affects newly hashed passwords.
type ArgonParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgonParams: t=3, m=64 MiB, p=1.
var DefaultArgonParams = ArgonParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 1,
	KeyLen:  32,
	SaltLen: 16,
}

var ErrInvalidHash = errors.New("invalid password hash")

// PasswordHasher derives and verifies PHC-encoded Argon2id digests:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
type PasswordHasher struct {
	Params ArgonParams
}

func NewPasswordHasher(p ArgonParams) *PasswordHasher {
	return &PasswordHasher{Params: p}
}

// Hash returns the PHC digest of password under a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	p := h.Params

	salt := make([]byte, p.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify re-derives password with the parameters stored in digest and
// compares in constant time. A malformed digest yields ErrInvalidHash.
func (h *PasswordHasher) Verify(password, digest string) (bool, error) {
	salt, key, p, err := decodePHC(digest)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key)))

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

var defaultHasher = NewPasswordHasher(DefaultArgonParams)

// HashPassword hashes with DefaultArgonParams.
func HashPassword(password string) (string, error) {
	return defaultHasher.Hash(password)
}

// VerifyPassword checks password against a PHC digest.
func VerifyPassword(password, digest string) (bool, error) {
	return defaultHasher.Verify(password, digest)
}

func decodePHC(encoded string) (salt, key []byte, p ArgonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, nil, p, ErrInvalidHash
	}

	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidHash, parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, p, fmt.Errorf("%w: version: %v", ErrInvalidHash, err)
	}
	if version != argon2.Version {
		return nil, nil, p, fmt.Errorf("%w: unsupported version %d", ErrInvalidHash, version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return nil, nil, p, fmt.Errorf("%w: parameters: %v", ErrInvalidHash, err)
	}
	if p.Time == 0 || p.Memory == 0 || p.Threads == 0 {
		return nil, nil, p, fmt.Errorf("%w: zero parameter", ErrInvalidHash)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, p, fmt.Errorf("%w: salt: %v", ErrInvalidHash, err)
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, p, fmt.Errorf("%w: key", ErrInvalidHash)
	}

	return salt, key, p, nil
}
