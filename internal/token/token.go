// Package token issues and validates the signed credentials used for
// sessions, account activation, and password resets.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"quorum/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Failure taxonomy. Decode returns ErrExpired or ErrMalformed; the
// callers that resolve identities against the database report
// ErrSubjectNotFound and ErrIdentityMismatch.
var (
	ErrExpired          = errors.New("token has expired")
	ErrMalformed        = errors.New("token is malformed or has an invalid signature")
	ErrIdentityMismatch = errors.New("email or username mismatch, please log in again")
	ErrSubjectNotFound  = errors.New("token subject no longer exists")
	ErrBlacklisted      = errors.New("token has been blocked")
	ErrWrongKind        = errors.New("token kind not valid for this operation")
)

// Token kinds carried in the "typ" claim.
const (
	KindAccess  = "access"
	KindRefresh = "refresh"
	KindAction  = "action"
)

const (
	issuer   = "quorum-api"
	audience = "quorum-client"
)

// Pair is an access/refresh token pair.
type Pair struct {
	Access  string `json:"token"`
	Refresh string `json:"refresh"`
}

// Identity is the decoded content of a valid token.
type Identity struct {
	UserID    uint
	Email     string
	Username  string
	JTI       string
	Kind      string
	ExpiresAt time.Time
}

// Service signs and verifies tokens. The Redis client backs the
// refresh-token blacklist and may be nil (blacklisting becomes a noop
// and lookups report not-blacklisted).
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	rdb        *redis.Client
}

// NewService creates a token service with the given signing secret and lifetimes.
func NewService(secret string, accessTTL, refreshTTL time.Duration, rdb *redis.Client) *Service {
	return &Service{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		rdb:        rdb,
	}
}

func (s *Service) sign(user *models.User, kind string, ttl time.Duration, extra jwt.MapClaims) (string, error) {
	if len(s.secret) == 0 {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"email":    user.Email,
		"username": user.Username,
		"iss":      issuer,
		"aud":      audience,
		"typ":      kind,
		"exp":      now.Add(ttl).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      uuid.NewString(),
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Issue produces an access/refresh pair for the given user.
func (s *Service) Issue(user *models.User) (Pair, error) {
	access, err := s.sign(user, KindAccess, s.accessTTL, nil)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.sign(user, KindRefresh, s.refreshTTL, nil)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// IssueActionToken produces a single-purpose token for account
// activation or password reset. The signature expiry stays at the
// refresh lifetime while the application-level "expire" claim elapses
// after the given lifetime, so the token can be cryptographically
// valid yet already expired for its purpose.
func (s *Service) IssueActionToken(user *models.User, lifetime time.Duration) (string, error) {
	return s.sign(user, KindAction, s.refreshTTL, jwt.MapClaims{
		"expire": time.Now().Add(lifetime).Unix(),
	})
}

// Decode verifies the signature and standard claims and returns the
// embedded identity. A token whose custom "expire" claim has elapsed
// fails with ErrExpired even when the signature is still valid.
func (s *Service) Decode(tokenString string) (*Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return nil, ErrMalformed
	}
	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil {
		return nil, ErrMalformed
	}

	if expire, ok := claims["expire"].(float64); ok {
		if time.Now().Unix() > int64(expire) {
			return nil, ErrExpired
		}
	}

	id := &Identity{UserID: uint(userID)}
	if email, ok := claims["email"].(string); ok {
		id.Email = email
	}
	if username, ok := claims["username"].(string); ok {
		id.Username = username
	}
	if jti, ok := claims["jti"].(string); ok {
		id.JTI = jti
	}
	if kind, ok := claims["typ"].(string); ok {
		id.Kind = kind
	}
	if exp, ok := claims["exp"].(float64); ok {
		id.ExpiresAt = time.Unix(int64(exp), 0)
	}

	return id, nil
}

// VerifyIdentity checks the decoded claims against the current user
// record. A stale email or username invalidates the token without
// explicit revocation.
func (s *Service) VerifyIdentity(id *Identity, user *models.User) error {
	if user == nil || user.ID != id.UserID {
		return ErrSubjectNotFound
	}
	if id.Email != user.Email || id.Username != user.Username {
		return ErrIdentityMismatch
	}
	return nil
}

func blacklistKey(jti string) string {
	return "token:blacklist:" + jti
}

// Blacklist blocks a refresh token until its natural expiry.
func (s *Service) Blacklist(ctx context.Context, id *Identity) error {
	if id.Kind != KindRefresh {
		return ErrWrongKind
	}
	if s.rdb == nil {
		return nil
	}
	ttl := time.Until(id.ExpiresAt)
	if ttl <= 0 {
		return nil // already expired, nothing to block
	}
	return s.rdb.Set(ctx, blacklistKey(id.JTI), "1", ttl).Err()
}

// IsBlacklisted reports whether the token's jti has been blocked.
func (s *Service) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	if s.rdb == nil || jti == "" {
		return false, nil
	}
	_, err := s.rdb.Get(ctx, blacklistKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
