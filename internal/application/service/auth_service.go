package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/garyjia/vehicle-service-tracker/internal/application/port"
	"github.com/garyjia/vehicle-service-tracker/internal/domain/entity"
	"github.com/garyjia/vehicle-service-tracker/pkg/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// AuthConfig holds token signing parameters
type AuthConfig struct {
	Secret          []byte
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int
}

// TokenPair is returned on login and refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// TokenClaims are the JWT claims of both token kinds. Subject carries the user id.
type TokenClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// AuthService authenticates operators and issues tokens
type AuthService interface {
	Register(ctx context.Context, username, password string) (*entity.User, error)
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	// Refresh rotates a refresh token: the presented token is revoked and a new pair issued
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	// ParseAccessToken validates an access token and returns the user id it was issued to
	ParseAccessToken(token string) (int64, error)
	// CurrentUser loads the account behind an authenticated user id
	CurrentUser(ctx context.Context, userID int64) (*entity.User, error)
	// PurgeTokens deletes expired and revoked refresh tokens
	PurgeTokens(ctx context.Context) (int64, error)
}

type authServiceImpl struct {
	users     port.UserRepository
	tokens    port.RefreshTokenRepository
	txManager port.TransactionManager
	cfg       AuthConfig
	logger    Logger
	now       func() time.Time
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users port.UserRepository,
	tokens port.RefreshTokenRepository,
	txManager port.TransactionManager,
	cfg AuthConfig,
	logger Logger,
) AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "vehicle-service-tracker"
	}
	return &authServiceImpl{
		users:     users,
		tokens:    tokens,
		txManager: txManager,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Register creates an operator account
func (s *authServiceImpl) Register(ctx context.Context, username, password string) (*entity.User, error) {
	if err := utils.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}
	if err := utils.ValidatePassword(password); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username %q", entity.ErrAlreadyExists, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{Username: username, PasswordHash: string(hash), CreatedAt: s.now()}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("Failed to register user", "error", err, "username", username)
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", username)
	return user, nil
}

func (s *authServiceImpl) CurrentUser(ctx context.Context, userID int64) (*entity.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d no longer exists", entity.ErrUnauthorized, userID)
	}
	return user, nil
}

// Login checks credentials and issues a token pair
func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("Login rejected", "username", username)
		return nil, fmt.Errorf("%w: invalid credentials", entity.ErrUnauthorized)
	}

	pair, err := s.issuePair(ctx, user.ID)
	if err != nil {
		s.logger.Error("Failed to issue tokens", "error", err, "user_id", user.ID)
		return nil, err
	}
	s.logger.Info("User logged in", "user_id", user.ID)
	return pair, nil
}

// Refresh exchanges a usable refresh token for a new pair
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	userID, err := subjectID(claims)
	if err != nil {
		return nil, err
	}

	var pair *TokenPair
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		stored, err := s.tokens.GetByTokenID(txCtx, claims.ID)
		if err != nil {
			return fmt.Errorf("get refresh token: %w", err)
		}
		if stored == nil || stored.UserID != userID || !stored.Usable(s.now()) {
			return fmt.Errorf("%w: refresh token is not usable", entity.ErrUnauthorized)
		}

		revoked, err := s.tokens.Revoke(txCtx, claims.ID)
		if err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
		if !revoked {
			return fmt.Errorf("%w: refresh token already used", entity.ErrUnauthorized)
		}

		pair, err = s.issuePair(txCtx, userID)
		return err
	})
	if err != nil {
		if !errors.Is(err, entity.ErrUnauthorized) {
			s.logger.Error("Failed to refresh tokens", "error", err, "user_id", userID)
		}
		return nil, err
	}
	return pair, nil
}

// Logout revokes a refresh token. Revoking an already revoked token succeeds.
func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return err
	}
	if _, err := s.tokens.Revoke(ctx, claims.ID); err != nil {
		s.logger.Error("Failed to revoke refresh token", "error", err)
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	s.logger.Info("User logged out", "user", claims.Subject)
	return nil
}

func (s *authServiceImpl) ParseAccessToken(token string) (int64, error) {
	claims, err := s.parse(token, tokenTypeAccess)
	if err != nil {
		return 0, err
	}
	return subjectID(claims)
}

func (s *authServiceImpl) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("Failed to purge refresh tokens", "error", err)
		return 0, err
	}
	return n, nil
}

func (s *authServiceImpl) issuePair(ctx context.Context, userID int64) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(TokenClaims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTokenTTL)),
		},
	})
	if err != nil {
		return nil, err
	}

	record := &entity.RefreshToken{
		TokenID:   uuid.NewString(),
		UserID:    userID,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		CreatedAt: now,
	}
	refresh, err := s.sign(TokenClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        record.TokenID,
			Issuer:    s.cfg.Issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
		},
	})
	if err != nil {
		return nil, err
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
	}, nil
}

func (s *authServiceImpl) sign(claims TokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *authServiceImpl) parse(token, wantType string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrUnauthorized, err)
	}
	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%w: expected %s token", entity.ErrUnauthorized, wantType)
	}
	return claims, nil
}

func subjectID(claims *TokenClaims) (int64, error) {
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed subject", entity.ErrUnauthorized)
	}
	return id, nil
}
