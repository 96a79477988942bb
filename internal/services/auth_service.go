// internal/services/auth_service.go
package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/thesisflow/thesisflow-backend/internal/apperrors"
	"github.com/thesisflow/thesisflow-backend/internal/config"
	"github.com/thesisflow/thesisflow-backend/internal/models"
	"github.com/thesisflow/thesisflow-backend/internal/utils"
)

// defaultMaxStudents applies when a professor registers without naming a cap.
const defaultMaxStudents = 5

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email       string                 `json:"email" validate:"required,email"`
	Name        string                 `json:"name" validate:"required,min=2,max=120"`
	Password    string                 `json:"password" validate:"required,strong_password"`
	Role        models.UserRole        `json:"role" validate:"required,user_role"`
	MaxStudents int                    `json:"max_students,omitempty" validate:"omitempty,min=1,max=100"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
	}
}

func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.InvalidInput("validation failed").WithContext("fields", utils.GetValidationErrors(err))
	}

	// Check if user already exists
	var existingUser models.User
	if err := s.db.Where("email = ?", req.Email).First(&existingUser).Error; err == nil {
		return nil, apperrors.Conflict("an account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.FromDatabase("failed to look up account", err)
	}

	// Only professors carry a supervision cap
	maxStudents := 0
	if req.Role == models.UserRoleProfessor {
		maxStudents = req.MaxStudents
		if maxStudents == 0 {
			maxStudents = defaultMaxStudents
		}
	} else if req.MaxStudents != 0 {
		return nil, apperrors.InvalidInput("students cannot set a supervision cap")
	}

	// Create new user
	user := &models.User{
		Email:       req.Email,
		Name:        req.Name,
		Role:        req.Role,
		MaxStudents: maxStudents,
		ProfileData: models.JSONB(req.ProfileData),
	}

	// Set password
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	// Save user
	if err := s.db.Create(user).Error; err != nil {
		return nil, apperrors.FromDatabase("failed to create user", err)
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.InvalidInput("validation failed").WithContext("fields", utils.GetValidationErrors(err))
	}

	// Find user by email
	var user models.User
	if err := s.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Forbidden("invalid email or password")
		}
		return nil, apperrors.FromDatabase("failed to look up account", err)
	}

	// Verify password
	if err := user.CheckPassword(req.Password); err != nil {
		return nil, apperrors.Forbidden("invalid email or password")
	}

	// Update last login time
	now := time.Now()
	user.LastLoginAt = &now
	s.db.Save(&user)

	return s.issueTokens(&user)
}

func (s *AuthService) RefreshToken(refreshToken string) (*AuthResponse, error) {
	// Validate refresh token
	userID, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperrors.Forbidden("invalid refresh token")
	}

	// Find user
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.FromDatabase("failed to look up account", err)
	}

	return s.issueTokens(&user)
}

func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.FromDatabase("failed to look up account", err)
	}
	return &user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(
		user.ID,
		user.Name,
		string(user.Role),
		s.cfg.JWT.AccessTokenTTL,
	)
	if err != nil {
		return nil, apperrors.Internal("failed to generate access token", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("failed to generate refresh token", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}
