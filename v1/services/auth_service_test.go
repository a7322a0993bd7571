package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/booklane/library-backend/v1/models"
	"github.com/booklane/library-backend/v1/testutils"
)

// stubMinter mints predictable tokens for service-level tests
type stubMinter struct {
	err error
}

func (m *stubMinter) MintToken(userID uint, username string, role models.Role, ttl time.Duration) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return fmt.Sprintf("token-%s-%s", username, role), nil
}

func TestRegisterCreatesMemberProfile(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	profile, err := svc.Register(context.Background(), &models.RegisterRequest{
		Username:   "alice",
		Email:      "alice@example.com",
		Password:   "s3cret",
		Department: "Physics",
	})
	require.NoError(t, err)

	assert.Equal(t, models.RoleMember, profile.Role)
	assert.NotEmpty(t, profile.MembershipID)
	assert.True(t, profile.IsActive)
	assert.Equal(t, "Physics", profile.Department)

	var user models.User
	require.NoError(t, db.Where("username = ?", "alice").First(&user).Error)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")))
	assert.NotEqual(t, "s3cret", user.PasswordHash)
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	req := &models.RegisterRequest{Username: "alice", Password: "s3cret"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegisterRequiresCredentials(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	_, err := svc.Register(context.Background(), &models.RegisterRequest{Username: "alice"})
	assert.Error(t, err)

	_, err = svc.Register(context.Background(), &models.RegisterRequest{Password: "s3cret"})
	assert.Error(t, err)
}

func TestLoginBranchesByRole(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	_, err := svc.Register(context.Background(), &models.RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, svc.EnsureAdmin(context.Background(), "root", "adminpass"))

	memberResp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, memberResp.Role)
	assert.Equal(t, "/member_dashboard/", memberResp.RedirectTo)
	assert.Equal(t, "token-alice-Member", memberResp.Token)

	adminResp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "root", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, adminResp.Role)
	assert.Equal(t, "/librarian_dashboard", adminResp.RedirectTo)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	_, err := svc.Register(context.Background(), &models.RegisterRequest{Username: "alice", Password: "s3cret"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), &models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), &models.LoginRequest{Username: "nobody", Password: "s3cret"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	db := testutils.SetupTestDB(t)
	svc := NewAuthService(db, &stubMinter{}, time.Hour)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "root", "adminpass"))
	require.NoError(t, svc.EnsureAdmin(context.Background(), "root", "different"))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("username = ?", "root").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// The original password still works after the second call
	resp, err := svc.Login(context.Background(), &models.LoginRequest{Username: "root", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Role)
}
