package service

import (
	"context"

	"sitecms/internal/entity"
	"sitecms/internal/repository"

	"github.com/google/uuid"
)

type RoleDirectory struct {
	roles repository.RoleRepository
}

func NewRoleDirectory(roles repository.RoleRepository) *RoleDirectory {
	return &RoleDirectory{roles: roles}
}

func (d *RoleDirectory) Resolve(ctx context.Context, id uuid.UUID) (*entity.Role, error) {
	if id == uuid.Nil {
		return nil, ErrRoleNotFound
	}
	role, err := d.roles.FindByID(ctx, id)
	if err != nil {
		return nil, internal("find role", err)
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (d *RoleDirectory) ResolveByName(ctx context.Context, name string) (*entity.Role, error) {
	role, err := d.roles.FindByName(ctx, name)
	if err != nil {
		return nil, internal("find role", err)
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

func (d *RoleDirectory) List(ctx context.Context) ([]entity.Role, error) {
	roles, err := d.roles.List(ctx)
	if err != nil {
		return nil, internal("list roles", err)
	}
	return roles, nil
}
