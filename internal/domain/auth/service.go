package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/medimind/medimind-api/pkg/errors"
)

// Service exposes authentication workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	GoogleAuthURL(ctx context.Context, state, codeChallenge string) (string, error)
	GoogleCallback(ctx context.Context, code, codeVerifier string) (LoginResponse, error)
	ValidateToken(ctx context.Context, token string) (Claims, error)
	Refresh(ctx context.Context, refreshToken string) (LoginResponse, error)
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
	Logout(ctx context.Context, userID int64) error
}

type service struct {
	cfg    Config
	repo   Repository
	cache  Cache
	logger *slog.Logger
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

func userTypeKey(userID int64) string { return "usertype:" + strconv.FormatInt(userID, 10) }
func resetKey(token string) string    { return "pwreset:" + token }

// NewService constructs a Service instance.
func NewService(cfg Config, repo Repository, cache Cache, logger *slog.Logger) Service {
	return &service{
		cfg:    cfg,
		repo:   repo,
		cache:  cache,
		logger: logger.With("component", "auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, apperrors.Wrap("invalid_input", "invalid email address", err)
	}
	fullName, err := normalizeFullName(req.FullName)
	if err != nil {
		return UserView{}, apperrors.New("invalid_input", err.Error())
	}
	userType, err := normalizeUserType(req.UserType)
	if err != nil {
		return UserView{}, apperrors.New("invalid_input", err.Error())
	}
	if err := validatePassword(req.Password); err != nil {
		return UserView{}, apperrors.New("invalid_input", err.Error())
	}
	_, exists, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "failed to check user", err)
	}
	if exists {
		return UserView{}, apperrors.New("email_exists", "email already registered")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserView{}, apperrors.Wrap("auth_error", "failed to hash password", err)
	}
	user, err := s.repo.Create(ctx, User{
		Email:        email,
		FullName:     fullName,
		UserType:     userType,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			return UserView{}, apperrors.Wrap("email_exists", "email already registered", err)
		}
		return UserView{}, apperrors.Wrap("auth_error", "failed to create user", err)
	}
	s.cacheUserType(ctx, user)
	return toView(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("invalid_input", "invalid email address", err)
	}
	if strings.TrimSpace(req.Password) == "" {
		return LoginResponse{}, apperrors.New("invalid_input", "password cannot be empty")
	}
	user, found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to fetch user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.New("invalid_credentials", "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return LoginResponse{}, apperrors.New("invalid_credentials", "invalid email or password")
	}
	user.UserType = s.resolveUserType(ctx, user)
	return s.buildLoginResponse(user)
}

func (s *service) ValidateToken(ctx context.Context, token string) (Claims, error) {
	if strings.TrimSpace(token) == "" {
		return Claims{}, apperrors.New("invalid_token", "token missing")
	}
	claims, err := s.parseToken(token)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess {
		return Claims{}, apperrors.New("invalid_token", "token type mismatch")
	}
	return claims, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (LoginResponse, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return LoginResponse{}, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return LoginResponse{}, apperrors.New("invalid_token", "token type mismatch")
	}
	user, found, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return LoginResponse{}, apperrors.Wrap("auth_error", "failed to load user", err)
	}
	if !found {
		return LoginResponse{}, apperrors.New("user_not_found", "user not found")
	}
	user.UserType = s.resolveUserType(ctx, user)
	return s.buildLoginResponse(user)
}

// ForgotPassword issues a single-use reset token. A lookup miss is not
// reported to the caller, so the endpoint does not reveal which emails exist.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return apperrors.Wrap("invalid_input", "invalid email address", err)
	}
	user, found, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return apperrors.Wrap("auth_error", "failed to fetch user", err)
	}
	if !found {
		return nil
	}
	token := uuid.NewString()
	if err := s.cache.Set(ctx, resetKey(token), strconv.FormatInt(user.ID, 10), s.cfg.ResetTokenTTL); err != nil {
		return apperrors.Wrap("auth_error", "failed to issue reset token", err)
	}
	// Delivery is handled out of band; the token lands in the operator log.
	s.logger.Info("password reset token issued", "user_id", user.ID, "token", token)
	return nil
}

func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return apperrors.New("invalid_token", "reset token missing")
	}
	if err := validatePassword(req.Password); err != nil {
		return apperrors.New("invalid_input", err.Error())
	}
	raw, found, err := s.cache.Get(ctx, resetKey(token))
	if err != nil {
		return apperrors.Wrap("auth_error", "failed to check reset token", err)
	}
	if !found {
		return apperrors.New("invalid_token", "reset token invalid or expired")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return apperrors.Wrap("auth_error", "corrupt reset token entry", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return apperrors.Wrap("auth_error", "failed to hash password", err)
	}
	if err := s.repo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return apperrors.Wrap("auth_error", "failed to update password", err)
	}
	if err := s.cache.Del(ctx, resetKey(token)); err != nil {
		s.logger.Warn("failed to delete used reset token", "error", err)
	}
	return nil
}

// resolveUserType prefers the cached role and falls back to the user row,
// refreshing the cache on a miss.
func (s *service) resolveUserType(ctx context.Context, user User) string {
	if cached, found, err := s.cache.Get(ctx, userTypeKey(user.ID)); err == nil && found {
		if cached == UserTypeDoctor || cached == UserTypePatient {
			return cached
		}
	}
	userType := user.UserType
	if userType == "" {
		userType = UserTypePatient
	}
	s.cacheUserType(ctx, User{ID: user.ID, UserType: userType})
	return userType
}

func (s *service) cacheUserType(ctx context.Context, user User) {
	if err := s.cache.Set(ctx, userTypeKey(user.ID), user.UserType, 0); err != nil {
		s.logger.Warn("failed to cache user type", "error", err, "user_id", user.ID)
	}
}

func (s *service) buildLoginResponse(user User) (LoginResponse, error) {
	access, err := s.generateToken(user, tokenTypeAccess, s.cfg.TokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	refresh, err := s.generateToken(user, tokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return LoginResponse{}, err
	}
	return LoginResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         toView(user),
	}, nil
}

func (s *service) generateToken(user User, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID:    user.ID,
		Email:     user.Email,
		UserType:  user.UserType,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        newTokenID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap("auth_error", "failed to sign token", err)
	}
	return signed, nil
}

func (s *service) parseToken(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Claims{}, apperrors.Wrap("invalid_token", "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.New("invalid_token", "token invalid")
	}
	if claims.ExpiresAt == nil {
		return Claims{}, apperrors.New("invalid_token", "token missing expiry")
	}
	if claims.ExpiresAt.Time.Before(time.Now()) {
		return Claims{}, apperrors.New("invalid_token", "token expired")
	}
	return Claims{
		UserID:    claims.UserID,
		Email:     claims.Email,
		UserType:  claims.UserType,
		TokenType: claims.TokenType,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func toView(user User) UserView {
	return UserView{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		UserType:  user.UserType,
		PhotoURL:  user.PhotoURL,
		CreatedAt: user.CreatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", err
	}
	return email, nil
}

func normalizeFullName(raw string) (string, error) {
	fullName := strings.TrimSpace(raw)
	if fullName == "" {
		return "", errors.New("full name cannot be empty")
	}
	if len([]rune(fullName)) > 100 {
		return "", errors.New("full name cannot exceed 100 characters")
	}
	return fullName, nil
}

func normalizeUserType(raw string) (string, error) {
	userType := strings.TrimSpace(strings.ToLower(raw))
	switch userType {
	case UserTypeDoctor, UserTypePatient:
		return userType, nil
	case "":
		return "", errors.New("user type cannot be empty")
	default:
		return "", errors.New("user type must be doctor or patient")
	}
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"userId"`
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	TokenType string `json:"type"`
}

func newTokenID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return hex.EncodeToString(buf)
}
