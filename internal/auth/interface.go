package auth

import (
	"context"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
)

// Authenticator validates access tokens. The websocket handler depends on
// this instead of the full service.
type Authenticator interface {
	Authenticate(ctx context.Context, tokenString string) (*models.User, error)
}

// AuthServiceInterface defines the contract for authentication operations
type AuthServiceInterface interface {
	Authenticator
	Register(ctx context.Context, req RegisterRequest, client ClientInfo) (*AuthResponse, error)
	Login(ctx context.Context, req LoginRequest, client ClientInfo) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
	ActiveSessions(ctx context.Context, userID string) (int64, error)
}

var _ AuthServiceInterface = (*Service)(nil)
