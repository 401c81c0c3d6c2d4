package repo

import (
	"context"
	"database/sql"

	"rhflow/internal/domain"
)

const projectColumns = `id,name,description,start_date,end_date,status,created_at,updated_at`

func scanProjectRow(scan func(dest ...any) error) (domain.Project, error) {
	var p domain.Project
	var description, startDate, endDate sql.NullString
	var status string
	err := scan(&p.ID, &p.Name, &description, &startDate, &endDate, &status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Status = domain.ProjectStatus(status)
	p.Description = stringPtr(description)
	p.StartDate = stringPtr(startDate)
	p.EndDate = stringPtr(endDate)
	return p, nil
}

func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	return scanProjectRow(row.Scan)
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return r.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC, id DESC`)
}

func (r Repo) ListActiveProjects(ctx context.Context) ([]domain.Project, error) {
	return r.queryProjects(ctx, `SELECT `+projectColumns+` FROM projects WHERE status='em_andamento' ORDER BY name ASC`)
}

// ListProjectsForUser returns projects with at least one task assigned to or
// created by the user.
func (r Repo) ListProjectsForUser(ctx context.Context, userID int64) ([]domain.Project, error) {
	return r.queryProjects(ctx, `SELECT DISTINCT p.id,p.name,p.description,p.start_date,p.end_date,p.status,p.created_at,p.updated_at
FROM projects p
JOIN tasks t ON t.project_id=p.id
WHERE t.assignee_id=? OR t.creator_id=?
ORDER BY p.created_at DESC, p.id DESC`, userID, userID)
}

func (r Repo) queryProjects(ctx context.Context, query string, args ...any) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO projects(name,description,start_date,end_date,status,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		p.Name, nullableStringPtr(p.Description), nullableStringPtr(p.StartDate), nullableStringPtr(p.EndDate), string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	res, err := tx.ExecContext(ctx, `UPDATE projects SET name=?, description=?, start_date=?, end_date=?, status=?, updated_at=? WHERE id=?`,
		p.Name, nullableStringPtr(p.Description), nullableStringPtr(p.StartDate), nullableStringPtr(p.EndDate), string(p.Status), p.UpdatedAt, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ProjectStats aggregates task counts per status for one project.
func (r Repo) ProjectStats(ctx context.Context, projectID int64) (domain.ProjectStats, error) {
	stats := domain.ProjectStats{ProjectID: projectID}
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE project_id=? GROUP BY status`, projectID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		switch domain.TaskStatus(status) {
		case domain.StatusAberta:
			stats.Aberta = count
		case domain.StatusEmAndamento:
			stats.EmAndamento = count
		case domain.StatusConcluida:
			stats.Concluida = count
		case domain.StatusNaoEntregue:
			stats.NaoEntregue = count
		}
	}
	return stats, rows.Err()
}
