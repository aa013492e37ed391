package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"os"
	"regexp"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for request validation
type CreateUserRequest struct {
	TelegramID string `json:"telegram_id" binding:"required"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	PinCode    string `json:"pin_code"`
	Password   string `json:"password" binding:"omitempty,min=6"`
	Role       string `json:"role" binding:"required"`
}

type UpdateUserRequest struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	PinCode   string `json:"pin_code"`
	Password  string `json:"password" binding:"omitempty,min=6"`
	Role      string `json:"role"`
	IsActive  *bool  `json:"is_active"`
}

// LoginRequest authenticates a shop-floor user by telegram id + PIN, or a
// back-office user by telegram id + password.
type LoginRequest struct {
	TelegramID string `json:"telegram_id" binding:"required"`
	PinCode    string `json:"pin_code"`
	Password   string `json:"password"`
}

type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// UserService manages accounts and authentication.
type UserService interface {
	Create(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error)
	Login(ctx context.Context, req LoginRequest) (*AuthResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID string) (*model.User, error)
	List(ctx context.Context, role string, offset, limit int) ([]model.User, int64, error)
	Update(ctx context.Context, actor Actor, id uuid.UUID, req UpdateUserRequest) (*model.User, error)
	Delete(ctx context.Context, actor Actor, id uuid.UUID) error
}

type userService struct {
	repo            repository.UserRepository
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{
		repo:            repo,
		accessTokenTTL:  24 * time.Hour,
		refreshTokenTTL: 7 * 24 * time.Hour,
	}
}

func (s *userService) Create(ctx context.Context, actor Actor, req CreateUserRequest) (*model.User, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("user creation requires an elevated role")
	}
	if !model.ValidRole(req.Role) {
		return nil, apperr.Validation("unknown role %q", req.Role)
	}
	if req.PinCode != "" && !pinPattern.MatchString(req.PinCode) {
		return nil, apperr.Validation("pin code must be exactly 4 digits")
	}
	if req.PinCode == "" && req.Password == "" {
		return nil, apperr.Validation("either a pin code or a password is required")
	}
	if _, err := s.repo.GetByTelegramID(ctx, req.TelegramID); err == nil {
		return nil, apperr.Conflict("telegram id %s is already registered", req.TelegramID)
	}

	user := &model.User{
		TelegramID: req.TelegramID,
		Username:   req.Username,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		PinCode:    req.PinCode,
		Role:       req.Role,
		IsActive:   true,
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	user, err := s.repo.GetByTelegramID(ctx, req.TelegramID)
	if err != nil {
		return nil, apperr.Forbidden("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is deactivated")
	}

	switch {
	case req.PinCode != "":
		if user.PinCode == "" || user.PinCode != req.PinCode {
			return nil, apperr.Forbidden("invalid credentials")
		}
	case req.Password != "":
		if user.PasswordHash == "" ||
			bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			return nil, apperr.Forbidden("invalid credentials")
		}
	default:
		return nil, apperr.Validation("either a pin code or a password is required")
	}

	return s.issueTokens(ctx, user)
}

func (s *userService) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	stored, err := s.repo.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, apperr.Forbidden("refresh token is invalid or expired")
	}

	user, err := s.repo.GetByID(ctx, stored.UserID)
	if err != nil || !user.IsActive {
		return nil, apperr.Forbidden("refresh token is invalid or expired")
	}

	// Rotate: old refresh tokens die with every refresh.
	if err := s.repo.DeleteRefreshTokensForUser(ctx, user.ID); err != nil {
		return nil, err
	}
	return s.issueTokens(ctx, user)
}

func (s *userService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.repo.DeleteRefreshTokensForUser(ctx, userID)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*AuthResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         user.ID.String(),
		"telegram_id": user.TelegramID,
		"role":        user.Role,
		"exp":         time.Now().Add(s.accessTokenTTL).Unix(),
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "default_super_secret_key"
	}
	accessToken, err := token.SignedString([]byte(secret))
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	refreshToken := hex.EncodeToString(raw)

	if err := s.repo.CreateRefreshToken(ctx, &model.RefreshToken{
		UserID:    user.ID,
		Token:     refreshToken,
		ExpiresAt: time.Now().Add(s.refreshTokenTTL),
	}); err != nil {
		return nil, err
	}

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

func (s *userService) GetByTelegramID(ctx context.Context, telegramID string) (*model.User, error) {
	user, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, apperr.NotFound("user not found")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, role string, offset, limit int) ([]model.User, int64, error) {
	if role != "" && !model.ValidRole(role) {
		return nil, 0, apperr.Validation("unknown role %q", role)
	}
	return s.repo.List(ctx, role, offset, limit)
}

func (s *userService) Update(ctx context.Context, actor Actor, id uuid.UUID, req UpdateUserRequest) (*model.User, error) {
	if !actor.Elevated() {
		return nil, apperr.Forbidden("user update requires an elevated role")
	}

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Role != "" {
		if !model.ValidRole(req.Role) {
			return nil, apperr.Validation("unknown role %q", req.Role)
		}
		user.Role = req.Role
	}
	if req.Username != "" {
		user.Username = req.Username
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.PinCode != "" {
		if !pinPattern.MatchString(req.PinCode) {
			return nil, apperr.Validation("pin code must be exactly 4 digits")
		}
		user.PinCode = req.PinCode
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if !actor.Elevated() {
		return apperr.Forbidden("user deletion requires an elevated role")
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
