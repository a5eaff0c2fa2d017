package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alansalbums/alans-albums-backend/internal/app/model"
	"github.com/alansalbums/alans-albums-backend/internal/app/repository"
	"github.com/alansalbums/alans-albums-backend/pkg/logger"
	"github.com/alansalbums/alans-albums-backend/pkg/util"
	"gorm.io/gorm"
)

var ErrInvalidResetToken = errors.New("invalid or expired reset token")

const (
	ResetTokenExpiry = 1 * time.Hour
	resetTokenBytes  = 32
	minPasswordLen   = 8
)

type PasswordResetService interface {
	RequestReset(email string) error
	ResetPassword(token, newPassword string) error
	PurgeExpired() (int64, error)
}

type passwordResetService struct {
	resetRepo repository.PasswordResetRepository
	userRepo  repository.UserRepository
	mailer    MailSender
	publicURL string
	now       func() time.Time
}

func NewPasswordResetService(
	resetRepo repository.PasswordResetRepository,
	userRepo repository.UserRepository,
	mailer MailSender,
	publicURL string,
) PasswordResetService {
	return &passwordResetService{
		resetRepo: resetRepo,
		userRepo:  userRepo,
		mailer:    mailer,
		publicURL: strings.TrimRight(publicURL, "/"),
		now:       time.Now,
	}
}

// RequestReset mails a reset link. Unknown addresses succeed silently so the
// endpoint cannot be used to probe for accounts.
func (s *passwordResetService) RequestReset(email string) error {
	email = normalizeEmail(email)

	user, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Password reset requested for unknown email", map[string]interface{}{
				"email": email,
			})
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}

	token, err := util.GenerateToken(resetTokenBytes)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	reset := &model.PasswordReset{
		Email:     user.Email,
		Token:     token,
		ExpiresAt: s.now().Add(ResetTokenExpiry),
	}
	if err := s.resetRepo.Create(reset); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.publicURL, url.QueryEscape(token))
	body := fmt.Sprintf("Hi %s,\n\nUse the link below to choose a new password. It expires in one hour.\n\n%s\n\nIf you did not ask for this you can ignore this email.\n",
		user.Name, link)

	if s.mailer != nil {
		if err := s.mailer.Send(user.Email, "Reset your Alan's Albums password", body); err != nil {
			logger.Error("Failed to send password reset mail", err, map[string]interface{}{
				"user_id": user.ID,
			})
			return fmt.Errorf("%w: mail delivery failed", ErrExternalService)
		}
	}

	logger.Info("Password reset link sent", map[string]interface{}{
		"user_id":    user.ID,
		"expires_at": reset.ExpiresAt,
	})
	return nil
}

func (s *passwordResetService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	reset, err := s.resetRepo.FindByToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}
	if !reset.Usable(s.now()) {
		logger.Warn("Spent or expired reset token presented", map[string]interface{}{
			"email": reset.Email,
			"used":  reset.Used,
		})
		return ErrInvalidResetToken
	}

	user, err := s.userRepo.FindByEmail(reset.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("find user: %w", err)
	}

	claimed, err := s.resetRepo.MarkAsUsed(reset.ID)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if !claimed {
		return ErrInvalidResetToken
	}

	hashed, err := util.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hashed
	if err := s.userRepo.Update(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	logger.Info("Password reset", map[string]interface{}{
		"user_id": user.ID,
	})
	return nil
}

// PurgeExpired deletes spent tokens and tokens past their expiry
func (s *passwordResetService) PurgeExpired() (int64, error) {
	return s.resetRepo.DeleteExpired(s.now())
}
