package service

import (
	"context"
	"errors"
	"strings"

	"sitecms/internal/entity"
	"sitecms/internal/repository"
	"sitecms/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type SessionService struct {
	verifier TokenVerifier
	provider IdentityProvider
	users    repository.UserRepository
	ledger   *AuditLedger
	logger   logrus.FieldLogger
}

func NewSessionService(
	verifier TokenVerifier,
	provider IdentityProvider,
	users repository.UserRepository,
	ledger *AuditLedger,
	logger logrus.FieldLogger,
) *SessionService {
	return &SessionService{
		verifier: verifier,
		provider: provider,
		users:    users,
		ledger:   ledger,
		logger:   logger,
	}
}

// Authenticate resolves the bearer token from the Authorization header,
// or from the session cookie when the header carries none. Every failure
// is reported as ErrNotAuthenticated.
func (s *SessionService) Authenticate(ctx context.Context, authorization string, cookie string) (*Principal, error) {
	token := BearerToken(authorization)
	if token == "" {
		token = strings.TrimSpace(cookie)
	}
	if token == "" || s.verifier == nil {
		return nil, ErrNotAuthenticated
	}

	identity, err := s.verifier.VerifyToken(ctx, token)
	if err != nil {
		s.logger.WithError(err).Debug("token rejected")
		return nil, ErrNotAuthenticated
	}
	if identity == nil || identity.ID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	return &Principal{ID: identity.ID, Email: identity.Email}, nil
}

// Login signs in with the provider and requires a matching local user.
func (s *SessionService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	session, err := s.provider.SignIn(ctx, email, input.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return nil, ErrNotAuthenticated
		}
		return nil, internal("provider sign in", err)
	}

	user, err := s.users.FindByID(ctx, session.Identity.ID)
	if err != nil {
		return nil, internal("find user", err)
	}
	if user == nil {
		s.logger.WithField("user_id", session.Identity.ID).Warn("provider identity has no local user")
		return nil, ErrNotAuthenticated
	}

	diff := Diff{}
	if input.IPAddress != nil {
		diff.New = map[string]any{"ipAddress": *input.IPAddress}
	}
	s.ledger.Append(ctx, &user.ID, entity.AuditLogin, userEntity, idString(user.ID), diff)

	return &LoginResult{
		AccessToken: session.AccessToken,
		ExpiresIn:   session.ExpiresIn,
		User:        user,
	}, nil
}

// BearerToken returns the token of a "Bearer <token>" header value, or "".
func BearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
