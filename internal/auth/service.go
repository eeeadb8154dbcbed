package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/logger"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/metrics"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/models"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/repository"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/security"
	"github.com/Avishekdevnath/KhoshGolpo-sub001/internal/util"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailTaken          = errors.New("email already registered")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidUsername     = errors.New("username may only contain letters, digits and underscores")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountDisabled     = errors.New("account is suspended or banned")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshReuse        = errors.New("refresh token reuse detected")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
)

// dummyHash is compared against when the user does not exist so unknown
// identifiers take as long as wrong passwords.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("khoshgolpo-timing"), bcrypt.DefaultCost)

// Config configures token lifetimes and signing
type Config struct {
	JWTSecret       []byte
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// Service handles registration, login and the refresh-token lifecycle
type Service struct {
	users      repository.UserRepository
	sessions   repository.SessionRepository
	recorder   *security.Recorder
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewService creates a new authentication service
func NewService(cfg Config, users repository.UserRepository, sessions repository.SessionRepository, recorder *security.Recorder) *Service {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = 15 * time.Minute
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		users:      users,
		sessions:   sessions,
		recorder:   recorder,
		jwtSecret:  cfg.JWTSecret,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		bcryptCost: cfg.BcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ClientInfo identifies where an auth request came from
type ClientInfo struct {
	IP        string
	UserAgent string
	Path      string
}

// AuthResponse is returned by register, login and refresh
type AuthResponse struct {
	AccessToken      string       `json:"access_token"`
	RefreshToken     string       `json:"refresh_token"`
	TokenType        string       `json:"token_type"`
	ExpiresAt        time.Time    `json:"expires_at"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	User             *models.User `json:"user"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	Username    string `json:"username" binding:"required,min=3,max=30"`
	Password    string `json:"password" binding:"required,min=8,max=72"`
	DisplayName string `json:"display_name" binding:"omitempty,max=50"`
}

// LoginRequest accepts an email or a username as identifier
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Register creates a member account and signs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest, client ClientInfo) (*AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	if !util.IsValidUsername(username) {
		return nil, ErrInvalidUsername
	}

	if err := s.ensureAvailable(ctx, email, username); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = username
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         models.RoleMember,
		Status:       models.UserStatusActive,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		// lost a race against a concurrent registration
		if availErr := s.ensureAvailable(ctx, email, username); availErr != nil {
			return nil, availErr
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.Get().AuthAttemptsTotal.WithLabelValues("register", "success").Inc()
	logger.Log.Info("User registered", logger.WithUserID(user.ID), zap.String("username", user.Username))

	return s.issue(ctx, user, client)
}

func (s *Service) ensureAvailable(ctx context.Context, email, username string) error {
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("database error: %w", err)
	}

	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return fmt.Errorf("database error: %w", err)
	}
	return nil
}

// Login verifies credentials and issues a token pair
func (s *Service) Login(ctx context.Context, req LoginRequest, client ClientInfo) (*AuthResponse, error) {
	identifier := strings.TrimSpace(req.Identifier)

	user, err := s.users.GetUserByIdentifier(ctx, identifier)
	if err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		s.loginFailed(ctx, client, identifier, "", "unknown_user")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.loginFailed(ctx, client, identifier, user.ID, "wrong_password")
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive() {
		metrics.Get().AuthAttemptsTotal.WithLabelValues("login", "blocked").Inc()
		s.recorder.Record(ctx, security.Event{
			Type:      models.EventBlockedLogin,
			Severity:  models.SeverityWarning,
			UserID:    user.ID,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Path:      client.Path,
			Details:   map[string]interface{}{"status": string(user.Status)},
		})
		return nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.users.TouchLastActive(ctx, user.ID, now); err != nil {
		logger.WarnWithFields("Failed to update last_active_at", err)
	}
	user.LastActiveAt = &now

	metrics.Get().AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	s.recorder.Record(ctx, security.Event{
		Type:      models.EventLoginSucceeded,
		UserID:    user.ID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Path:      client.Path,
	})

	return s.issue(ctx, user, client)
}

func (s *Service) loginFailed(ctx context.Context, client ClientInfo, identifier, userID, reason string) {
	metrics.Get().AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
	s.recorder.Record(ctx, security.Event{
		Type:      models.EventLoginFailed,
		Severity:  models.SeverityWarning,
		UserID:    userID,
		IP:        client.IP,
		UserAgent: client.UserAgent,
		Path:      client.Path,
		Details: map[string]interface{}{
			"identifier": util.Truncate(identifier, 254),
			"reason":     reason,
		},
	})
}

// Refresh rotates a refresh token. A token that was already rotated or revoked
// is treated as stolen: every session of its user is revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	session, err := s.sessions.GetByTokenHash(ctx, hashToken(refreshToken))
	if errors.Is(err, repository.ErrSessionNotFound) {
		metrics.Get().AuthAttemptsTotal.WithLabelValues("refresh", "failure").Inc()
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	now := s.now()
	if session.RevokedAt != nil {
		revoked, err := s.sessions.RevokeAllForUser(ctx, session.UserID, now)
		if err != nil {
			logger.ErrorWithFields("Failed to revoke sessions after token reuse", err)
		}
		metrics.Get().AuthAttemptsTotal.WithLabelValues("refresh", "reuse").Inc()
		s.recorder.Record(ctx, security.Event{
			Type:      models.EventRefreshReuse,
			Severity:  models.SeverityCritical,
			UserID:    session.UserID,
			IP:        client.IP,
			UserAgent: client.UserAgent,
			Path:      client.Path,
			Details: map[string]interface{}{
				"session_id":       session.ID,
				"sessions_revoked": revoked,
			},
		})
		return nil, ErrRefreshReuse
	}
	if !now.Before(session.ExpiresAt) {
		metrics.Get().AuthAttemptsTotal.WithLabelValues("refresh", "expired").Inc()
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUser(ctx, session.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !user.IsActive() {
		_ = s.sessions.Revoke(ctx, session.ID, now)
		return nil, ErrAccountDisabled
	}

	resp, next, err := s.newPair(user, client, now)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Rotate(ctx, session, next); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// a concurrent refresh won the race
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}

	metrics.Get().AuthAttemptsTotal.WithLabelValues("refresh", "success").Inc()
	return resp, nil
}

// Logout revokes the session behind refreshToken. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	session, err := s.sessions.GetByTokenHash(ctx, hashToken(refreshToken))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	return s.sessions.Revoke(ctx, session.ID, s.now())
}

// RevokeAllSessions signs a user out everywhere
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.RevokeAllForUser(ctx, userID, s.now())
}

// ActiveSessions counts unexpired, unrevoked sessions
func (s *Service) ActiveSessions(ctx context.Context, userID string) (int64, error) {
	return s.sessions.CountActive(ctx, userID, s.now())
}

// Authenticate validates an access token and loads its user
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return user, nil
}

// HashPassword hashes with the service's bcrypt cost
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	return string(hash), err
}

func (s *Service) issue(ctx context.Context, user *models.User, client ClientInfo) (*AuthResponse, error) {
	resp, session, err := s.newPair(user, client, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return resp, nil
}

func (s *Service) newPair(user *models.User, client ClientInfo, now time.Time) (*AuthResponse, *models.Session, error) {
	access, expiresAt, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, nil, err
	}
	refresh, hash, err := newRefreshToken()
	if err != nil {
		return nil, nil, err
	}

	session := &models.Session{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.refreshTTL),
		UserAgent: util.Truncate(client.UserAgent, 255),
		IP:        client.IP,
	}
	return &AuthResponse{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresAt:        expiresAt,
		RefreshExpiresAt: session.ExpiresAt,
		User:             user,
	}, session, nil
}
