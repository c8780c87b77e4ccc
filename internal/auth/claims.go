package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the access token shape accepted by the admin API.
// WorkspaceID scopes every request; super admins may act on any workspace.
type Claims struct {
	jwt.RegisteredClaims

	UserID      string `json:"user_id"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
	TokenType   string `json:"token_type"`
}

const tokenTypeAccess = "access"
