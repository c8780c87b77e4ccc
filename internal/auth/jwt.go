package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"voice-routing/internal/config"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Manager signs and verifies HS256 access tokens.
type Manager struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	ttl := cfg.AccessTokenTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Manager{
		secret:    []byte(cfg.JWTSecret),
		issuer:    cfg.JWTIssuer,
		audience:  cfg.JWTAudience,
		accessTTL: ttl,
	}, nil
}

// Issue signs an access token for id. Tokens are normally minted by the dashboard
// backend sharing JWT_SECRET; this is used by operators and tests.
func (m *Manager) Issue(now time.Time, id Identity) (string, error) {
	if id.UserID == "" || id.WorkspaceID == "" || id.Role == "" {
		return "", errors.New("auth: user_id, workspace_id and role required")
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTTL)),
			ID:        uuid.NewString(),
		},
		UserID:      id.UserID,
		WorkspaceID: id.WorkspaceID,
		Role:        id.Role,
		TokenType:   tokenTypeAccess,
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify checks signature, expiry (30s leeway), issuer and audience when configured,
// and the custom claims. Every failure wraps ErrInvalidToken.
func (m *Manager) Verify(token string, now time.Time) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	var claims Claims
	if _, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...); err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}

	switch {
	case claims.TokenType != tokenTypeAccess:
		return Identity{}, errors.Join(ErrInvalidToken, errors.New("token_type must be access"))
	case claims.UserID == "" || claims.WorkspaceID == "" || claims.Role == "":
		return Identity{}, errors.Join(ErrInvalidToken, errors.New("user_id, workspace_id and role required"))
	}
	return Identity{UserID: claims.UserID, WorkspaceID: claims.WorkspaceID, Role: claims.Role}, nil
}
