package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
)

// JWTClaims extends standard JWT claims with opsgate fields
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// JWTManager handles JWT token creation and validation
type JWTManager struct {
	secret      []byte
	issuer      string
	tokenExpiry time.Duration
	generated   bool
	now         func() time.Time
}

var _ Verifier = (*JWTManager)(nil)

// NewJWTManager creates a new JWT manager with the given configuration
func NewJWTManager(config *am.AuthConfig) (*JWTManager, error) {
	secret := config.JWTSecret
	generated := false
	if secret == "" {
		// Tokens signed with a generated secret only live as long as the process
		s, err := generateSecureSecret(32)
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate JWT secret")
		}
		secret = s
		generated = true
	}

	tokenExpiry, err := time.ParseDuration(config.TokenExpiry)
	if err != nil || tokenExpiry <= 0 {
		tokenExpiry = 30 * 24 * time.Hour // Default 30 days
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "opsgate"
	}

	return &JWTManager{
		secret:      []byte(secret),
		issuer:      issuer,
		tokenExpiry: tokenExpiry,
		generated:   generated,
		now:         time.Now,
	}, nil
}

// GenerateToken creates a new signed token for the given claims
func (m *JWTManager) GenerateToken(claims *Claims) (string, error) {
	if claims == nil || (claims.UserID == "" && claims.Email == "") {
		return "", errors.BadRequestf("token needs a user id or email")
	}

	now := m.now()
	subject := claims.UserID
	if subject == "" {
		subject = claims.Email
	}
	jwtClaims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
		},
		UserID: claims.UserID,
		Email:  claims.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT token, returning the claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Newf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now))

	if err != nil {
		return nil, errors.WithKind(errors.Wrap(err, "invalid token"), errors.KindUnauthorized)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return &Claims{
			UserID: claims.UserID,
			Email:  claims.Email,
		}, nil
	}

	return nil, errors.Unauthorizedf("invalid token claims")
}

// Verify implements Verifier
func (m *JWTManager) Verify(_ context.Context, token string) (*Claims, error) {
	return m.ValidateToken(token)
}

// TokenExpiry returns the configured token expiry duration
func (m *JWTManager) TokenExpiry() time.Duration {
	return m.tokenExpiry
}

// GeneratedSecret reports whether no secret was configured and a
// process-local one is in use.
func (m *JWTManager) GeneratedSecret() bool {
	return m.generated
}

// generateSecureSecret generates a cryptographically secure random hex string
func generateSecureSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "failed to generate random bytes")
	}
	return hex.EncodeToString(b), nil
}
