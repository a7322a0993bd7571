package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/booklane/library-backend/v1/models"
)

// MemberService handles member profile lookups
type MemberService struct {
	db *gorm.DB
}

// NewMemberService creates a new member service
func NewMemberService(db *gorm.DB) *MemberService {
	return &MemberService{db: db}
}

// GetProfileByUserID loads the member profile linked to a login identity
func (s *MemberService) GetProfileByUserID(ctx context.Context, userID uint) (*models.MemberProfile, error) {
	var profile models.MemberProfile
	err := s.db.WithContext(ctx).Preload("User").
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to load member profile: %w", err)
	}
	return &profile, nil
}

// GetProfileByID loads a member profile by its primary key
func (s *MemberService) GetProfileByID(ctx context.Context, memberID uint) (*models.MemberProfile, error) {
	var profile models.MemberProfile
	err := s.db.WithContext(ctx).Preload("User").First(&profile, memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to load member profile: %w", err)
	}
	return &profile, nil
}

// ListMembers returns profiles with role Member, optionally filtered by a
// case-insensitive username substring. Feeds the member picker on the
// borrow page.
func (s *MemberService) ListMembers(ctx context.Context, nameFilter string) ([]models.MemberSummary, error) {
	query := s.db.WithContext(ctx).Model(&models.MemberProfile{}).
		Joins("JOIN users ON users.id = member_profiles.user_id").
		Where("member_profiles.role = ?", models.RoleMember)

	if nameFilter != "" {
		pattern := "%" + strings.ToLower(nameFilter) + "%"
		query = query.Where("LOWER(users.username) LIKE ?", pattern)
	}

	var rows []struct {
		ID           uint
		Username     string
		MembershipID string
		Department   string
	}
	err := query.
		Select("member_profiles.id, users.username, member_profiles.membership_id, member_profiles.department").
		Order("users.username").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	members := make([]models.MemberSummary, 0, len(rows))
	for _, row := range rows {
		members = append(members, models.MemberSummary{
			MemberID:     row.ID,
			Username:     row.Username,
			MembershipID: row.MembershipID,
			Department:   row.Department,
		})
	}
	return members, nil
}
