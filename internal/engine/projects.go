package engine

import (
	"context"

	"rhflow/internal/domain"
)

// ProjectWithStats pairs a project with its per-status task rollup for the
// project list view.
type ProjectWithStats struct {
	domain.Project
	Stats domain.ProjectStats `json:"stats"`
}

func (e Engine) ListProjects(ctx context.Context) ([]ProjectWithStats, error) {
	projects, err := e.Repo.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]ProjectWithStats, 0, len(projects))
	for _, p := range projects {
		stats, err := e.Repo.ProjectStats(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		res = append(res, ProjectWithStats{Project: p, Stats: stats})
	}
	return res, nil
}

func (e Engine) ListActiveProjects(ctx context.Context) ([]domain.Project, error) {
	return e.Repo.ListActiveProjects(ctx)
}

func (e Engine) ListProjectsForUser(ctx context.Context, userID int64) ([]domain.Project, error) {
	return e.Repo.ListProjectsForUser(ctx, userID)
}

func (e Engine) ProjectStats(ctx context.Context, projectID int64) (domain.ProjectStats, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.ProjectStats{}, err
	}
	return e.Repo.ProjectStats(ctx, projectID)
}

type ProjectOptions struct {
	Name        string
	Description *string
	StartDate   *string
	EndDate     *string
	Status      domain.ProjectStatus
}

func (e Engine) CreateProject(ctx context.Context, actor domain.UserProfile, opts ProjectOptions) (domain.Project, error) {
	if !actor.Role.Admin() {
		return domain.Project{}, ForbiddenError{}
	}
	if opts.Name == "" {
		return domain.Project{}, ValidationError{Message: "Name is required"}
	}
	status := opts.Status
	if status == "" {
		status = domain.ProjectEmAndamento
	}
	if _, ok := domain.ParseProjectStatus(string(status)); !ok {
		return domain.Project{}, ValidationError{Message: "Invalid project status"}
	}
	now := e.nowRFC3339()
	p := domain.Project{
		Name:        opts.Name,
		Description: opts.Description,
		StartDate:   opts.StartDate,
		EndDate:     opts.EndDate,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertProject(ctx, tx, p)
	if err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	p.ID = id
	return p, nil
}

func (e Engine) UpdateProject(ctx context.Context, actor domain.UserProfile, id int64, opts ProjectOptions) (domain.Project, error) {
	if !actor.Role.Admin() {
		return domain.Project{}, ForbiddenError{}
	}
	if opts.Name == "" {
		return domain.Project{}, ValidationError{Message: "Name is required"}
	}
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	p.Name = opts.Name
	p.Description = opts.Description
	p.StartDate = opts.StartDate
	p.EndDate = opts.EndDate
	if opts.Status != "" {
		if _, ok := domain.ParseProjectStatus(string(opts.Status)); !ok {
			return domain.Project{}, ValidationError{Message: "Invalid project status"}
		}
		p.Status = opts.Status
	}
	p.UpdatedAt = e.nowRFC3339()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}
