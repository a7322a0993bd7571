package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/booklane/library-backend/v1/models"
)

// TokenMinter abstracts session token creation so the service does not
// depend on the middleware package directly
type TokenMinter interface {
	MintToken(userID uint, username string, role models.Role, ttl time.Duration) (string, error)
}

// AuthService handles registration, login and the role-branched
// post-login destination
type AuthService struct {
	db       *gorm.DB
	minter   TokenMinter
	tokenTTL time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB, minter TokenMinter, tokenTTL time.Duration) *AuthService {
	return &AuthService{db: db, minter: minter, tokenTTL: tokenTTL}
}

// Register creates the login identity and its member profile in one logical
// operation. The profile role always defaults to Member; staff accounts are
// provisioned out of band.
func (s *AuthService) Register(ctx context.Context, req *models.RegisterRequest) (*models.MemberProfile, error) {
	if req.Username == "" || req.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", req.Username).
		Count(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if existing > 0 {
		return nil, ErrDuplicateUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &models.MemberProfile{
		Role:         models.RoleMember,
		MembershipID: uuid.New().String(),
		Phone:        req.Phone,
		Address:      req.Address,
		RollNo:       req.RollNo,
		Department:   req.Department,
		IsActive:     true,
		JoinedDate:   models.Today(time.Now()),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
		}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		profile.UserID = user.ID
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("failed to create member profile: %w", err)
		}

		profile.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Registered member", "username", req.Username, "membershipId", profile.MembershipID)
	return profile, nil
}

// Login validates credentials and mints a session token. The redirect target
// branches by role: members land on their dashboard, staff on the catalog.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	var profile models.MemberProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load member profile: %w", err)
	}

	token, err := s.minter.MintToken(user.ID, user.Username, profile.Role, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mint session token: %w", err)
	}

	return &models.LoginResponse{
		Token:      token,
		Role:       profile.Role,
		RedirectTo: destinationForRole(profile.Role),
	}, nil
}

// EnsureAdmin seeds a staff account if the given username does not exist yet.
// The original system provisioned staff through an out-of-band admin surface;
// a standalone service needs an in-band bootstrap path.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user := models.User{Username: username, PasswordHash: string(hash)}
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to create admin user: %w", err)
		}

		profile := models.MemberProfile{
			UserID:       user.ID,
			Role:         models.RoleAdmin,
			MembershipID: uuid.New().String(),
			IsActive:     true,
			JoinedDate:   models.Today(time.Now()),
		}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create admin profile: %w", err)
		}

		slog.Info("Seeded admin account", "username", username)
		return nil
	})
}

func destinationForRole(role models.Role) string {
	if role == models.RoleMember {
		return "/member_dashboard/"
	}
	return "/librarian_dashboard"
}
