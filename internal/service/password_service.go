package service

import (
	"context"
	"errors"

	"sitecms/internal/entity"
	"sitecms/internal/repository"
	"sitecms/internal/utils"

	"github.com/sirupsen/logrus"
)

type PasswordService struct {
	users    repository.UserRepository
	codes    *CodeIssuer
	provider IdentityProvider
	sender   EmailSender
	ledger   *AuditLedger
	logger   logrus.FieldLogger
	config   PasswordConfig
}

func NewPasswordService(
	users repository.UserRepository,
	codes *CodeIssuer,
	provider IdentityProvider,
	sender EmailSender,
	ledger *AuditLedger,
	logger logrus.FieldLogger,
	config PasswordConfig,
) *PasswordService {
	return &PasswordService{
		users:    users,
		codes:    codes,
		provider: provider,
		sender:   sender,
		ledger:   ledger,
		logger:   logger,
		config:   config,
	}
}

// RequestCode issues a password change code and delivers it by email.
// The caller is identified by an authenticated principal, or by email and
// current password which are re-verified with the provider.
func (s *PasswordService) RequestCode(ctx context.Context, input RequestCodeInput) error {
	user, err := s.requester(ctx, input)
	if err != nil {
		return err
	}

	code, err := s.codes.Issue(ctx, user.ID)
	if err != nil {
		return err
	}
	s.deliver(ctx, user, code)
	return nil
}

func (s *PasswordService) requester(ctx context.Context, input RequestCodeInput) (*entity.User, error) {
	if input.Principal != nil {
		user, err := s.users.FindByID(ctx, input.Principal.ID)
		if err != nil {
			return nil, internal("find user", err)
		}
		if user == nil {
			return nil, ErrNotAuthenticated
		}
		if input.CurrentPassword != "" {
			if err := s.verifyPassword(ctx, user.Email, input.CurrentPassword); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.CurrentPassword == "" {
		return nil, ErrNotAuthenticated
	}
	if err := s.verifyPassword(ctx, email, input.CurrentPassword); err != nil {
		return nil, err
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, internal("find user by email", err)
	}
	if user == nil {
		return nil, ErrNotAuthenticated
	}
	return user, nil
}

func (s *PasswordService) verifyPassword(ctx context.Context, email string, password string) error {
	if _, err := s.provider.SignIn(ctx, email, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return ErrNotAuthenticated
		}
		return internal("provider sign in", err)
	}
	return nil
}

func (s *PasswordService) deliver(ctx context.Context, user *entity.User, code string) {
	if s.sender != nil {
		err := s.sender.SendVerificationCode(ctx, user.Email, code)
		if err == nil {
			return
		}
		s.logger.WithField("user_id", user.ID).WithError(err).Warn("verification email not sent")
	}

	if s.config.DevEmailFallback {
		s.logger.WithFields(logrus.Fields{
			"email": user.Email,
			"code":  code,
		}).Warn("DEVELOPMENT EMAIL FALLBACK: verification code")
		return
	}
	s.logger.WithField("user_id", user.ID).Warn("no email transport, verification code not delivered")
}

// ChangePassword consumes a code and rotates the password at the provider.
// An unknown email is indistinguishable from a wrong code.
func (s *PasswordService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if len(input.NewPassword) < s.minPasswordLength() {
		return ErrInvalidInput
	}

	var (
		user *entity.User
		err  error
	)
	if input.Principal != nil {
		user, err = s.users.FindByID(ctx, input.Principal.ID)
	} else {
		user, err = s.users.FindByEmail(ctx, utils.NormalizeEmail(input.Email))
	}
	if err != nil {
		return internal("find user", err)
	}
	if user == nil {
		return ErrInvalidOrExpired
	}

	if err := s.codes.Consume(ctx, user.ID, input.Code); err != nil {
		return err
	}

	if err := s.provider.UpdatePassword(ctx, user.ID, input.NewPassword); err != nil {
		s.logger.WithField("user_id", user.ID).WithError(err).Error("provider password update failed after code consumed")
		return internal("provider update password", err)
	}

	s.ledger.Append(ctx, &user.ID, entity.AuditPasswordChange, userEntity, idString(user.ID), Diff{
		New: map[string]any{"passwordChanged": true},
	})
	return nil
}

func (s *PasswordService) minPasswordLength() int {
	if s.config.MinPasswordLength <= 0 {
		return 8
	}
	return s.config.MinPasswordLength
}
