package engine

import (
	"context"

	"rhflow/internal/domain"
)

// CurrentUser resolves the caller's profile from the external identity id.
func (e Engine) CurrentUser(ctx context.Context, externalID string) (domain.UserProfile, error) {
	return e.Repo.GetProfileByExternalID(ctx, externalID)
}

// IsFirstUser reports whether no profile exists yet.
func (e Engine) IsFirstUser(ctx context.Context) (bool, error) {
	n, err := e.Repo.CountProfiles(ctx)
	return n == 0, err
}

type ProfileCreateOptions struct {
	ExternalID   string
	Email        string
	Name         string
	Role         domain.Role
	Position     *string
	DepartmentID *int64
	ManagerID    *int64
}

// CreateProfile creates the caller's own profile during onboarding. The first
// profile in an empty system is stored as c-level regardless of the submitted
// role; the count check and the insert share one transaction.
func (e Engine) CreateProfile(ctx context.Context, opts ProfileCreateOptions) (domain.UserProfile, error) {
	if opts.Name == "" {
		return domain.UserProfile{}, ValidationError{Message: "Name is required"}
	}
	if opts.ExternalID == "" {
		return domain.UserProfile{}, ValidationError{Message: "External id is required"}
	}
	role := opts.Role
	if !role.Valid() {
		return domain.UserProfile{}, ValidationError{Message: "Invalid role"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()

	count, err := e.Repo.CountProfilesTx(ctx, tx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if count == 0 {
		role = domain.RoleCLevel
	}

	now := e.nowRFC3339()
	p := domain.UserProfile{
		ExternalID:   opts.ExternalID,
		Email:        opts.Email,
		Name:         opts.Name,
		Role:         role,
		Position:     opts.Position,
		DepartmentID: opts.DepartmentID,
		ManagerID:    opts.ManagerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := e.Repo.InsertProfile(ctx, tx, p)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	p.ID = id
	return p, nil
}

func (e Engine) ListProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	return e.Repo.ListProfiles(ctx)
}

type UserCreateOptions struct {
	Email        string
	Name         string
	Role         domain.Role
	Position     *string
	DepartmentID *int64
	ManagerID    *int64
}

// CreateUser is the admin path: the profile gets a generated USR%04d external
// id and is claimed later when the person first signs in.
func (e Engine) CreateUser(ctx context.Context, actor domain.UserProfile, opts UserCreateOptions) (domain.UserProfile, error) {
	if !actor.Role.Admin() {
		return domain.UserProfile{}, ForbiddenError{}
	}
	if opts.Name == "" {
		return domain.UserProfile{}, ValidationError{Message: "Name is required"}
	}
	role := opts.Role
	if !role.Valid() {
		return domain.UserProfile{}, ValidationError{Message: "Invalid role"}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()

	externalID, err := e.Repo.NextExternalID(ctx, tx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	now := e.nowRFC3339()
	p := domain.UserProfile{
		ExternalID:   externalID,
		Email:        opts.Email,
		Name:         opts.Name,
		Role:         role,
		Position:     opts.Position,
		DepartmentID: opts.DepartmentID,
		ManagerID:    opts.ManagerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := e.Repo.InsertProfile(ctx, tx, p)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	p.ID = id
	return p, nil
}

type UserUpdateOptions struct {
	ID           int64
	Email        *string
	Name         *string
	Role         *domain.Role
	Position     *string
	DepartmentID *int64
	ManagerID    *int64
}

func (e Engine) UpdateUser(ctx context.Context, actor domain.UserProfile, opts UserUpdateOptions) (domain.UserProfile, error) {
	if !actor.Role.Admin() {
		return domain.UserProfile{}, ForbiddenError{}
	}
	p, err := e.Repo.GetProfile(ctx, opts.ID)
	if err != nil {
		return domain.UserProfile{}, err
	}
	if opts.Email != nil {
		p.Email = *opts.Email
	}
	if opts.Name != nil {
		if *opts.Name == "" {
			return domain.UserProfile{}, ValidationError{Message: "Name is required"}
		}
		p.Name = *opts.Name
	}
	if opts.Role != nil {
		if !opts.Role.Valid() {
			return domain.UserProfile{}, ValidationError{Message: "Invalid role"}
		}
		p.Role = *opts.Role
	}
	if opts.Position != nil {
		p.Position = opts.Position
	}
	if opts.DepartmentID != nil {
		p.DepartmentID = opts.DepartmentID
	}
	if opts.ManagerID != nil {
		p.ManagerID = opts.ManagerID
	}
	p.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProfile(ctx, tx, p); err != nil {
		return domain.UserProfile{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}
