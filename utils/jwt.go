package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/cache"
	"github.com/Web2Bizz/atom-dbro-backend-sub000/config"
)

type contextKey string

const UserIDKey = contextKey("userID")
const UserRoleKey = contextKey("userRole")
const RequestIDKey = contextKey("requestID")

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

const revokedKeyPrefix = "jwt:blacklist:"

// TokenIssuer signs and checks HS256 access tokens. Revocations is optional;
// when set, revoked token ids are kept there until the token would have
// expired anyway.
type TokenIssuer struct {
	secret      []byte
	audience    string
	issuer      string
	revocations cache.KV
}

func NewTokenIssuer(cfg config.Auth, revocations cache.KV) *TokenIssuer {
	return &TokenIssuer{
		secret:      []byte(cfg.JWTSecret),
		audience:    cfg.Audience,
		issuer:      cfg.Issuer,
		revocations: revocations,
	}
}

// GenerateAccessToken issues a token for userID valid for expiry.
func (t *TokenIssuer) GenerateAccessToken(userID uint, role string, expiry time.Duration) (string, error) {
	if len(t.secret) == 0 {
		return "", errors.New("JWT_SECRET is not set")
	}
	jti, err := generateJTI(16)
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"id":   userID,
		"role": role,
		"exp":  now.Add(expiry).Unix(),
		"iat":  now.Unix(),
		"nbf":  now.Unix(),
		"jti":  jti,
	}
	if t.audience != "" {
		claims["aud"] = t.audience
	}
	if t.issuer != "" {
		claims["iss"] = t.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ValidateAccessToken checks signature, exp/nbf, audience, issuer and the
// revocation list. Revocation lookups that fail are ignored so an outage of
// the store does not lock everyone out.
func (t *TokenIssuer) ValidateAccessToken(ctx context.Context, tokenStr string) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if t.audience != "" {
		opts = append(opts, jwt.WithAudience(t.audience))
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if jti, _ := claims["jti"].(string); jti != "" && t.revocations != nil {
		if v, err := t.revocations.Get(ctx, revokedKeyPrefix+jti); err == nil && string(v) == "1" {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke blacklists a token id for ttl.
func (t *TokenIssuer) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("empty jti")
	}
	if t.revocations == nil {
		return errors.New("no revocation store configured")
	}
	return t.revocations.Set(ctx, revokedKeyPrefix+jti, []byte("1"), ttl)
}

// ClaimUint reads a numeric claim. JSON numbers arrive as float64.
func ClaimUint(claims jwt.MapClaims, key string) (uint, bool) {
	switch v := claims[key].(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint(v), true
	case uint:
		return v, true
	case string:
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, false
		}
		return uint(n), true
	}
	return 0, false
}

func generateJTI(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jti: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GetUserID returns the authenticated user id injected by the auth middleware.
func GetUserID(r *http.Request) (uint, bool) {
	id, ok := r.Context().Value(UserIDKey).(uint)
	return id, ok
}

func GetUserRole(r *http.Request) string {
	role, _ := r.Context().Value(UserRoleKey).(string)
	return role
}

func GetRequestID(r *http.Request) string {
	rid, _ := r.Context().Value(RequestIDKey).(string)
	return rid
}
