package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bidua-hosting/backend/internal/config"
	"github.com/bidua-hosting/backend/internal/constants"
	"github.com/bidua-hosting/backend/internal/models"
	"github.com/bidua-hosting/backend/internal/repository"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestRegisterCreatesAccountWithReferralEdge(t *testing.T) {
	svc, db := setupUserAuthServiceTest(t)

	referrer, _, _, err := svc.Register("referrer@example.com", "Str0ngPass!", "Referrer", "")
	if err != nil {
		t.Fatalf("register referrer failed: %v", err)
	}
	if referrer.ReferralCode == "" {
		t.Fatalf("expected generated referral code")
	}

	referred, token, expiresAt, err := svc.Register("referred@example.com", "Str0ngPass!", "", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("register referred failed: %v", err)
	}
	if token == "" || !expiresAt.After(time.Now()) {
		t.Fatalf("expected a fresh token, got %q expiring %v", token, expiresAt)
	}
	if referred.DisplayName != "referred" {
		t.Fatalf("expected display name derived from email, got %q", referred.DisplayName)
	}

	var edge models.ReferralEdge
	if err := db.Where("referred_id = ?", referred.ID).First(&edge).Error; err != nil {
		t.Fatalf("load referral edge failed: %v", err)
	}
	if edge.ReferrerID != referrer.ID {
		t.Fatalf("expected referrer %d, got %d", referrer.ID, edge.ReferrerID)
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc, _ := setupUserAuthServiceTest(t)

	if _, _, _, err := svc.Register("not-an-email", "Str0ngPass!", "", ""); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, _, _, err := svc.Register("short@example.com", "abc", "", ""); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if _, _, _, err := svc.Register("stranger@example.com", "Str0ngPass!", "", "MISSING1"); !errors.Is(err, ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode, got %v", err)
	}

	if _, _, _, err := svc.Register("dup@example.com", "Str0ngPass!", "", ""); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, _, _, err := svc.Register("DUP@example.com", "Str0ngPass!", "", ""); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists for case-insensitive duplicate, got %v", err)
	}
}

func TestLoginVerifiesCredentialsAndStatus(t *testing.T) {
	svc, db := setupUserAuthServiceTest(t)

	user, _, _, err := svc.Register("login@example.com", "Str0ngPass!", "", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	loggedIn, token, _, err := svc.Login("Login@Example.com", "Str0ngPass!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loggedIn.ID != user.ID || token == "" {
		t.Fatalf("unexpected login result: user=%d token=%q", loggedIn.ID, token)
	}

	if _, _, _, err := svc.Login("login@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, _, err := svc.Login("ghost@example.com", "Str0ngPass!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}

	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("status", constants.UserStatusSuspended).Error; err != nil {
		t.Fatalf("suspend user failed: %v", err)
	}
	if _, _, _, err := svc.Login("login@example.com", "Str0ngPass!"); !errors.Is(err, ErrUserSuspended) {
		t.Fatalf("expected ErrUserSuspended, got %v", err)
	}
}

func TestUserJWTRoundTrip(t *testing.T) {
	svc, _ := setupUserAuthServiceTest(t)

	user, token, _, err := svc.Register("claims@example.com", "Str0ngPass!", "", "")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	claims, err := svc.ParseUserJWT(token)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if claims.UserID != user.ID || claims.Email != user.Email {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := svc.ParseUserJWT(token + "tampered"); err == nil {
		t.Fatalf("expected tampered token to be rejected")
	}
}

func setupUserAuthServiceTest(t *testing.T) (*UserAuthService, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:user_auth_service_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.ReferralEdge{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}

	cfg := &config.Config{}
	cfg.UserJWT.SecretKey = "user-auth-service-test-secret-key"
	cfg.UserJWT.ExpireHours = 24
	cfg.Security.PasswordPolicy = config.PasswordPolicyConfig{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
	}

	userRepo := repository.NewUserRepository(db)
	referralSvc := NewReferralService(repository.NewReferralRepository(db), userRepo)
	return NewUserAuthService(cfg, userRepo, referralSvc), db
}
