package service

import (
	"context"
	"errors"
	"time"

	"bazap-service/internal/auth"
	"bazap-service/internal/models"
	"bazap-service/internal/store"
	"bazap-service/internal/util"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore is the persistence surface the auth service needs
type AuthStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpsertUser(ctx context.Context, user *models.User) error
	CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) error
	GetRefreshToken(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
}

// AuthService issues and refreshes bearer tokens
type AuthService struct {
	store           AuthStore
	jwtSecret       string
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	logger          *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store AuthStore, jwtSecret string, accessTTL, refreshTTL time.Duration) *AuthService {
	return &AuthService{
		store:           store,
		jwtSecret:       jwtSecret,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
		logger:          util.GetLogger(),
	}
}

// LoginRequest carries user credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserDTO identifies the authenticated user
type UserDTO struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse carries the issued token pair
type LoginResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	User         UserDTO `json:"user"`
}

// RefreshRequest carries the stale access token and its refresh token
type RefreshRequest struct {
	AccessToken  string `json:"access_token" binding:"required"`
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshResponse carries the rotated token pair
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login verifies credentials and issues an access/refresh token pair.
// The refresh token is persisted hashed so it can be checked and revoked.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		util.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, Invalidf("שם משתמש או סיסמה שגויים")
	}
	if err != nil {
		return nil, Internalf(err, "failed to load user")
	}
	if !user.IsActive || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		util.LoginAttemptsTotal.WithLabelValues("failure").Inc()
		return nil, Invalidf("שם משתמש או סיסמה שגויים")
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	util.LoginAttemptsTotal.WithLabelValues("success").Inc()
	s.logger.Info("User logged in", zap.String("username", user.Username))

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: UserDTO{
			ID:       user.ID,
			Username: user.Username,
			Role:     user.Role,
		},
	}, nil
}

// Refresh re-derives the user from the stale access token, checks the
// persisted refresh token and rotates it, then issues a new pair.
func (s *AuthService) Refresh(ctx context.Context, req *RefreshRequest) (*RefreshResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Refresh")
	defer span.End()

	claims, err := auth.ParseExpired(s.jwtSecret, req.AccessToken)
	if err != nil {
		return nil, Invalidf("טוקן לא תקין")
	}

	tokenHash := auth.HashToken(req.RefreshToken)
	stored, err := s.store.GetRefreshToken(ctx, tokenHash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Invalidf("טוקן רענון לא תקין")
	}
	if err != nil {
		return nil, Internalf(err, "failed to check refresh token")
	}
	if stored.UserID != claims.UserID {
		return nil, Invalidf("טוקן רענון לא תקין")
	}

	user, err := s.store.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, Invalidf("משתמש לא קיים")
	}
	if err != nil {
		return nil, Internalf(err, "failed to load user")
	}
	if !user.IsActive {
		return nil, Invalidf("משתמש לא קיים")
	}

	if err := s.store.RevokeRefreshToken(ctx, tokenHash); err != nil {
		return nil, Internalf(err, "failed to rotate refresh token")
	}

	accessToken, refreshToken, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	return &RefreshResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Bootstrap idempotently seeds the admin user. Run once at startup.
func (s *AuthService) Bootstrap(ctx context.Context, username, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Internalf(err, "failed to hash bootstrap password")
	}

	admin := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := s.store.UpsertUser(ctx, admin); err != nil {
		return Internalf(err, "failed to seed admin user")
	}

	s.logger.Info("Bootstrap user ensured", zap.String("username", username))
	return nil
}

// ValidateAccess checks a bearer token and returns its claims
func (s *AuthService) ValidateAccess(tokenStr string) (*auth.Claims, error) {
	claims, err := auth.ValidateToken(s.jwtSecret, tokenStr)
	if err != nil {
		return nil, Invalidf("טוקן לא תקין")
	}
	return claims, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, user *models.User) (string, string, error) {
	accessToken, err := auth.GenerateAccessToken(s.jwtSecret, user.ID, user.Username, user.Role, s.accessTokenTTL)
	if err != nil {
		return "", "", Internalf(err, "failed to sign access token")
	}

	refreshToken, err := auth.GenerateRefreshToken()
	if err != nil {
		return "", "", Internalf(err, "failed to generate refresh token")
	}

	expiresAt := time.Now().Add(s.refreshTokenTTL)
	if err := s.store.CreateRefreshToken(ctx, user.ID, auth.HashToken(refreshToken), expiresAt); err != nil {
		return "", "", Internalf(err, "failed to persist refresh token")
	}

	return accessToken, refreshToken, nil
}
