package common

// RefreshTokenCookieName is the cookie carrying the raw refresh token.
const RefreshTokenCookieName = "refresh_token"

// AuthorizationHeaderName is the HTTP header / gRPC metadata key carrying
// the bearer access token.
const AuthorizationHeaderName = "authorization"
