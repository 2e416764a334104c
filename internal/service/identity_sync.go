package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitecms/internal/entity"
	"sitecms/internal/repository"
	"sitecms/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// IdentitySynchronizer keeps the provider's identities and the local user
// table in step. The provider is written first; a failed local write is
// compensated by deleting the provider identity.
type IdentitySynchronizer struct {
	users    repository.UserRepository
	roles    *RoleDirectory
	provider IdentityProvider
	ledger   *AuditLedger
	clock    Clock
	logger   logrus.FieldLogger
	config   SyncConfig
}

func NewIdentitySynchronizer(
	users repository.UserRepository,
	roles *RoleDirectory,
	provider IdentityProvider,
	ledger *AuditLedger,
	clock Clock,
	logger logrus.FieldLogger,
	config SyncConfig,
) *IdentitySynchronizer {
	return &IdentitySynchronizer{
		users:    users,
		roles:    roles,
		provider: provider,
		ledger:   ledger,
		clock:    clock,
		logger:   logger,
		config:   config,
	}
}

func (s *IdentitySynchronizer) Create(ctx context.Context, actor *Principal, input CreateUserInput) (*entity.User, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}
	return s.create(ctx, &actor.ID, input, entity.AuditCreate)
}

// Setup creates the first account as SuperAdmin. It is refused once any
// user exists.
func (s *IdentitySynchronizer) Setup(ctx context.Context, input SetupInput) (*entity.User, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, internal("count users", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: setup already completed", ErrInvalidOperation)
	}

	role, err := s.roles.ResolveByName(ctx, entity.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, nil, CreateUserInput{
		Email:       input.Email,
		Password:    input.Password,
		DisplayName: input.DisplayName,
		RoleID:      role.ID,
	}, entity.AuditSetup)
}

func (s *IdentitySynchronizer) create(
	ctx context.Context,
	actorID *uuid.UUID,
	input CreateUserInput,
	action entity.AuditAction,
) (*entity.User, error) {
	email := utils.NormalizeEmail(input.Email)
	displayName := strings.TrimSpace(input.DisplayName)
	if !validEmail(email) || displayName == "" || len(input.Password) < s.minPasswordLength() {
		return nil, ErrInvalidInput
	}

	role, err := s.roles.Resolve(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, internal("find user by email", err)
	}
	if existing != nil {
		return nil, ErrConflict
	}

	identity, err := s.provider.CreateIdentity(ctx, email, input.Password)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		ID:          identity.ID,
		Email:       email,
		DisplayName: displayName,
		RoleID:      role.ID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.WithField("user_id", identity.ID).WithError(err).Error("local user insert failed, removing provider identity")
		bestEffort(ctx, s.logger, s.config.ProviderTimeout, "compensate_create",
			logrus.Fields{"user_id": identity.ID},
			func(ctx context.Context) error {
				return s.provider.DeleteIdentity(ctx, identity.ID)
			},
		)
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, internal("create local user", err)
	}
	user.Role = *role

	s.ledger.Append(ctx, actorID, action, userEntity, idString(user.ID), Diff{New: user.Snapshot()})
	return user, nil
}

func (s *IdentitySynchronizer) Update(
	ctx context.Context,
	actor *Principal,
	id uuid.UUID,
	input UpdateUserInput,
) (*entity.User, error) {
	if actor == nil {
		return nil, ErrNotAuthenticated
	}

	var email, displayName string
	if input.Email != nil {
		email = utils.NormalizeEmail(*input.Email)
		if !validEmail(email) {
			return nil, ErrInvalidInput
		}
	}
	if input.DisplayName != nil {
		displayName = strings.TrimSpace(*input.DisplayName)
		if displayName == "" {
			return nil, ErrInvalidInput
		}
	}
	if input.Password != nil && len(*input.Password) < s.minPasswordLength() {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, internal("find user", err)
	}
	if existing == nil {
		return nil, ErrUserNotFound
	}

	fields := map[string]any{"updated_at": s.now()}
	newValues := existing.Snapshot()

	if input.Email != nil && email != existing.Email {
		other, err := s.users.FindByEmail(ctx, email)
		if err != nil {
			return nil, internal("find user by email", err)
		}
		if other != nil && other.ID != existing.ID {
			return nil, ErrConflict
		}
		// The provider keeps its own email; only the local profile changes.
		s.logger.WithField("user_id", id).Info("email changed locally, provider email left unchanged")
		fields["email"] = email
		newValues["email"] = email
	}
	if input.RoleID != nil && *input.RoleID != existing.RoleID {
		if _, err := s.roles.Resolve(ctx, *input.RoleID); err != nil {
			return nil, err
		}
		fields["role_id"] = *input.RoleID
		newValues["roleId"] = input.RoleID.String()
	}
	if input.DisplayName != nil && displayName != existing.DisplayName {
		fields["display_name"] = displayName
		newValues["displayName"] = displayName
	}

	rows, err := s.users.Update(ctx, id, fields)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrConflict
		}
		return nil, internal("update user", err)
	}
	if rows == 0 {
		return nil, ErrUserNotFound
	}

	if input.Password != nil {
		newValues["passwordChanged"] = true
		bestEffort(ctx, s.logger, s.config.ProviderTimeout, "update_password",
			logrus.Fields{"user_id": id},
			func(ctx context.Context) error {
				return s.provider.UpdatePassword(ctx, id, *input.Password)
			},
		)
	}

	s.ledger.Append(ctx, &actor.ID, entity.AuditUpdate, userEntity, idString(id), Diff{
		Old: existing.Snapshot(),
		New: newValues,
	})

	updated, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, internal("reload user", err)
	}
	if updated == nil {
		return nil, ErrUserNotFound
	}
	return updated, nil
}

func (s *IdentitySynchronizer) Delete(ctx context.Context, actor *Principal, id uuid.UUID) error {
	if actor == nil {
		return ErrNotAuthenticated
	}
	if actor.ID == id {
		return fmt.Errorf("%w: cannot delete your own account", ErrInvalidOperation)
	}

	existing, err := s.users.FindByID(ctx, id)
	if err != nil {
		return internal("find user", err)
	}
	if existing == nil {
		return ErrUserNotFound
	}

	rows, err := s.users.Delete(ctx, id)
	if err != nil {
		return internal("delete user", err)
	}
	if rows == 0 {
		return ErrUserNotFound
	}

	bestEffort(ctx, s.logger, s.config.ProviderTimeout, "delete_identity",
		logrus.Fields{"user_id": id},
		func(ctx context.Context) error {
			return s.provider.DeleteIdentity(ctx, id)
		},
	)

	s.ledger.Append(ctx, &actor.ID, entity.AuditDelete, userEntity, idString(id), Diff{Old: existing.Snapshot()})
	return nil
}

func (s *IdentitySynchronizer) Get(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, internal("find user", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *IdentitySynchronizer) List(ctx context.Context, limit, offset int) ([]entity.User, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, internal("list users", err)
	}
	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, 0, internal("count users", err)
	}
	return users, total, nil
}

// RoleOf returns the role name of the local user with the given id.
func (s *IdentitySynchronizer) RoleOf(ctx context.Context, id uuid.UUID) (string, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role.Name, nil
}

func (s *IdentitySynchronizer) AuditTrail(ctx context.Context, id uuid.UUID, limit int) ([]entity.AuditEntry, error) {
	return s.ledger.History(ctx, userEntity, id.String(), limit)
}

func (s *IdentitySynchronizer) minPasswordLength() int {
	if s.config.MinPasswordLength <= 0 {
		return 8
	}
	return s.config.MinPasswordLength
}

func (s *IdentitySynchronizer) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

var emailValidator = validator.New()

func validEmail(email string) bool {
	return emailValidator.Var(email, "required,email") == nil
}
