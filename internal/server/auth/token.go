package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/taskmanager/internal/common"
)

// RefreshTokenBytes is the entropy of a raw refresh token (256 bits).
const RefreshTokenBytes = 32

// GenerateRefreshToken returns a new URL-safe raw refresh token.
func GenerateRefreshToken() (string, error) {
	raw, err := common.MakeRandURLString(RefreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return raw, nil
}

// HashToken returns the hex SHA-256 digest under which a refresh token is
// stored and looked up.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
