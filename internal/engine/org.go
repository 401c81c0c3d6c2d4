package engine

import (
	"context"

	"rhflow/internal/domain"
	"rhflow/internal/repo"
)

func (e Engine) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	return e.Repo.ListDepartments(ctx)
}

type DepartmentOptions struct {
	Code      string
	Name      string
	ManagerID *int64
	Phone     *string
}

func (e Engine) CreateDepartment(ctx context.Context, actor domain.UserProfile, opts DepartmentOptions) (domain.Department, error) {
	if !actor.Role.Admin() {
		return domain.Department{}, ForbiddenError{}
	}
	if opts.Code == "" || opts.Name == "" {
		return domain.Department{}, ValidationError{Message: "Code and name are required"}
	}
	now := e.nowRFC3339()
	d := domain.Department{
		Code:      opts.Code,
		Name:      opts.Name,
		ManagerID: opts.ManagerID,
		Phone:     opts.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertDepartment(ctx, tx, d)
	if err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	d.ID = id
	return d, nil
}

func (e Engine) UpdateDepartment(ctx context.Context, actor domain.UserProfile, id int64, opts DepartmentOptions) (domain.Department, error) {
	if !actor.Role.Admin() {
		return domain.Department{}, ForbiddenError{}
	}
	if opts.Code == "" || opts.Name == "" {
		return domain.Department{}, ValidationError{Message: "Code and name are required"}
	}
	d, err := e.Repo.GetDepartment(ctx, id)
	if err != nil {
		return domain.Department{}, err
	}
	d.Code = opts.Code
	d.Name = opts.Name
	d.ManagerID = opts.ManagerID
	d.Phone = opts.Phone
	d.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Department{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateDepartment(ctx, tx, d); err != nil {
		return domain.Department{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Department{}, err
	}
	return d, nil
}

func (e Engine) ListPositions(ctx context.Context) ([]domain.Position, error) {
	return e.Repo.ListPositions(ctx, repo.PositionFilters{})
}

// ListPositionsByRole returns only active positions for the role.
func (e Engine) ListPositionsByRole(ctx context.Context, role domain.Role) ([]domain.Position, error) {
	return e.Repo.ListPositions(ctx, repo.PositionFilters{Role: role, ActiveOnly: true})
}

type PositionOptions struct {
	Name   string
	Role   domain.Role
	Active bool
}

func (e Engine) CreatePosition(ctx context.Context, actor domain.UserProfile, opts PositionOptions) (domain.Position, error) {
	if !actor.Role.Admin() {
		return domain.Position{}, ForbiddenError{}
	}
	if opts.Name == "" || !opts.Role.Valid() {
		return domain.Position{}, ValidationError{Message: "Name and role are required"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.PositionNameExists(ctx, tx, opts.Name, opts.Role, 0)
	if err != nil {
		return domain.Position{}, err
	}
	if exists {
		return domain.Position{}, ValidationError{Message: "Já existe um cargo com este nome para este nível"}
	}
	code, err := e.Repo.NextPositionCode(ctx, tx)
	if err != nil {
		return domain.Position{}, err
	}
	now := e.nowRFC3339()
	p := domain.Position{
		Code:      code,
		Name:      opts.Name,
		Role:      opts.Role,
		Active:    opts.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := e.Repo.InsertPosition(ctx, tx, p)
	if err != nil {
		return domain.Position{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Position{}, err
	}
	p.ID = id
	return p, nil
}

// UpdatePosition edits a position. inactivated_at is stamped only when the
// active flag drops from 1 to 0 and is never cleared afterwards.
func (e Engine) UpdatePosition(ctx context.Context, actor domain.UserProfile, id int64, opts PositionOptions) (domain.Position, error) {
	if !actor.Role.Admin() {
		return domain.Position{}, ForbiddenError{}
	}
	if opts.Name == "" || !opts.Role.Valid() {
		return domain.Position{}, ValidationError{Message: "Name and role are required"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Position{}, err
	}
	defer tx.Rollback()

	exists, err := e.Repo.PositionNameExists(ctx, tx, opts.Name, opts.Role, id)
	if err != nil {
		return domain.Position{}, err
	}
	if exists {
		return domain.Position{}, ValidationError{Message: "Já existe um cargo com este nome para este nível"}
	}
	now := e.nowRFC3339()
	p := domain.Position{
		ID:        id,
		Name:      opts.Name,
		Role:      opts.Role,
		Active:    opts.Active,
		UpdatedAt: now,
	}
	if err := e.Repo.UpdatePosition(ctx, tx, p, now); err != nil {
		return domain.Position{}, err
	}
	updated, err := e.Repo.GetPositionTx(ctx, tx, id)
	if err != nil {
		return domain.Position{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Position{}, err
	}
	return updated, nil
}
