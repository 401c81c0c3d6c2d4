package repo

import (
	"context"
	"database/sql"

	"rhflow/internal/domain"
)

const taskColumns = `t.id,t.title,t.description,t.status,t.deadline,t.assignee_id,t.creator_id,t.importance,t.notes,t.project_id,t.completed_at,t.created_at,t.updated_at`

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var description, deadline, notes, completedAt sql.NullString
	var status, importance string
	var assigneeID, projectID sql.NullInt64
	err := scan(&t.ID, &t.Title, &description, &status, &deadline, &assigneeID, &t.CreatorID, &importance, &notes, &projectID, &completedAt, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TaskStatus(status)
	t.Importance = domain.Importance(importance)
	t.Description = stringPtr(description)
	t.Deadline = stringPtr(deadline)
	t.Notes = stringPtr(notes)
	t.CompletedAt = stringPtr(completedAt)
	t.AssigneeID = int64Ptr(assigneeID)
	t.ProjectID = int64Ptr(projectID)
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id=?`, id)
	return scanTask(row.Scan)
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(title,description,status,deadline,assignee_id,creator_id,importance,notes,project_id,completed_at,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.Title, nullableStringPtr(t.Description), string(t.Status), nullableStringPtr(t.Deadline),
		nullableInt64Ptr(t.AssigneeID), t.CreatorID, string(t.Importance), nullableStringPtr(t.Notes),
		nullableInt64Ptr(t.ProjectID), nullableStringPtr(t.CompletedAt), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, status=?, deadline=?, assignee_id=?, importance=?, notes=?, project_id=?, completed_at=?, updated_at=? WHERE id=?`,
		t.Title, nullableStringPtr(t.Description), string(t.Status), nullableStringPtr(t.Deadline),
		nullableInt64Ptr(t.AssigneeID), string(t.Importance), nullableStringPtr(t.Notes),
		nullableInt64Ptr(t.ProjectID), nullableStringPtr(t.CompletedAt), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SweepOverdue flips open tasks whose deadline date is strictly before today
// to nao_entregue. Idempotent; safe to run on every list.
func (r Repo) SweepOverdue(ctx context.Context, today, now string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET status='nao_entregue', updated_at=?
WHERE status IN ('aberta','em_andamento') AND deadline IS NOT NULL AND DATE(deadline) < DATE(?)`, now, today)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// TaskFilter is a visibility predicate over the aliased task listing query
// (t = tasks, a = assignee profile, c = creator profile).
type TaskFilter struct {
	Where string
	Args  []any
}

type TaskListOptions struct {
	Visibility TaskFilter
	ProjectID  *int64
	Status     string
}

func (r Repo) ListTasks(ctx context.Context, opts TaskListOptions) ([]domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t
LEFT JOIN user_profiles a ON a.id=t.assignee_id
LEFT JOIN user_profiles c ON c.id=t.creator_id`
	clauses := []string{}
	var args []any
	if opts.Visibility.Where != "" {
		clauses = append(clauses, opts.Visibility.Where)
		args = append(args, opts.Visibility.Args...)
	}
	if opts.ProjectID != nil {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, *opts.ProjectID)
	}
	if opts.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, opts.Status)
	}
	for i, c := range clauses {
		if i == 0 {
			query += "\nWHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += "\nORDER BY t.deadline ASC, t.created_at DESC"
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListChangeLog(ctx context.Context, taskID int64) ([]domain.TaskChangeLog, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,author_id,field,old_value,new_value,created_at FROM task_change_log WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskChangeLog
	for rows.Next() {
		var c domain.TaskChangeLog
		var oldValue, newValue sql.NullString
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.Field, &oldValue, &newValue, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.OldValue = stringPtr(oldValue)
		c.NewValue = stringPtr(newValue)
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r Repo) InsertTaskUpdate(ctx context.Context, tx *sql.Tx, u domain.TaskUpdate) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO task_updates(task_id,author_id,comment,status_before,status_after,created_at) VALUES (?,?,?,?,?,?)`,
		u.TaskID, u.AuthorID, u.Comment, string(u.StatusBefore), string(u.StatusAfter), u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTaskUpdate(ctx context.Context, id int64) (domain.TaskUpdate, error) {
	var u domain.TaskUpdate
	var before, after string
	err := r.DB.QueryRowContext(ctx, `SELECT id,task_id,author_id,comment,status_before,status_after,created_at FROM task_updates WHERE id=?`, id).
		Scan(&u.ID, &u.TaskID, &u.AuthorID, &u.Comment, &before, &after, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.StatusBefore = domain.TaskStatus(before)
	u.StatusAfter = domain.TaskStatus(after)
	return u, nil
}

func (r Repo) GetTaskUpdateTx(ctx context.Context, tx *sql.Tx, id int64) (domain.TaskUpdate, error) {
	var u domain.TaskUpdate
	var before, after string
	err := tx.QueryRowContext(ctx, `SELECT id,task_id,author_id,comment,status_before,status_after,created_at FROM task_updates WHERE id=?`, id).
		Scan(&u.ID, &u.TaskID, &u.AuthorID, &u.Comment, &before, &after, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	u.StatusBefore = domain.TaskStatus(before)
	u.StatusAfter = domain.TaskStatus(after)
	return u, nil
}

// ListTaskUpdates returns all updates for a task newest first, each with its
// attachments populated.
func (r Repo) ListTaskUpdates(ctx context.Context, taskID int64) ([]domain.TaskUpdate, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,author_id,comment,status_before,status_after,created_at FROM task_updates WHERE task_id=? ORDER BY created_at DESC, id DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskUpdate
	for rows.Next() {
		var u domain.TaskUpdate
		var before, after string
		if err := rows.Scan(&u.ID, &u.TaskID, &u.AuthorID, &u.Comment, &before, &after, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.StatusBefore = domain.TaskStatus(before)
		u.StatusAfter = domain.TaskStatus(after)
		res = append(res, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	attachments, err := r.listAttachmentsByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	byUpdate := map[int64][]domain.TaskAttachment{}
	for _, a := range attachments {
		byUpdate[a.UpdateID] = append(byUpdate[a.UpdateID], a)
	}
	for i := range res {
		res[i].Attachments = byUpdate[res[i].ID]
	}
	return res, nil
}

func (r Repo) InsertAttachment(ctx context.Context, a domain.TaskAttachment) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO task_attachments(update_id,task_id,filename,size,content_type,storage_key,created_at) VALUES (?,?,?,?,?,?,?)`,
		a.UpdateID, a.TaskID, a.Filename, a.Size, a.ContentType, a.StorageKey, a.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetAttachment(ctx context.Context, id int64) (domain.TaskAttachment, error) {
	var a domain.TaskAttachment
	err := r.DB.QueryRowContext(ctx, `SELECT id,update_id,task_id,filename,size,content_type,storage_key,created_at FROM task_attachments WHERE id=?`, id).
		Scan(&a.ID, &a.UpdateID, &a.TaskID, &a.Filename, &a.Size, &a.ContentType, &a.StorageKey, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	return a, err
}

func (r Repo) listAttachmentsByTask(ctx context.Context, taskID int64) ([]domain.TaskAttachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,update_id,task_id,filename,size,content_type,storage_key,created_at FROM task_attachments WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskAttachment
	for rows.Next() {
		var a domain.TaskAttachment
		if err := rows.Scan(&a.ID, &a.UpdateID, &a.TaskID, &a.Filename, &a.Size, &a.ContentType, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

// MemberTaskStats aggregates one assignee's task counts for the team rollup.
func (r Repo) MemberTaskStats(ctx context.Context, userID int64, today string) (domain.TeamMemberStats, error) {
	var s domain.TeamMemberStats
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks WHERE assignee_id=? GROUP BY status`, userID)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return s, err
		}
		s.Total += count
		switch domain.TaskStatus(status) {
		case domain.StatusAberta:
			s.Aberta = count
		case domain.StatusEmAndamento:
			s.EmAndamento = count
		case domain.StatusConcluida:
			s.Concluida = count
		case domain.StatusNaoEntregue:
			s.NaoEntregue = count
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	err = r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE assignee_id=? AND status <> 'concluida' AND deadline IS NOT NULL AND DATE(deadline) < DATE(?)`, userID, today).Scan(&s.Overdue)
	return s, err
}

// ListTasksForUser returns every task where the user is assignee or creator,
// newest first. Used for the assistant context and overdue digest.
func (r Repo) ListTasksForUser(ctx context.Context, userID int64) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.assignee_id=? OR t.creator_id=? ORDER BY t.created_at DESC, t.id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ListOverdueTasksForUser returns the still-overdue tasks the user is
// assignee or creator of, for the daily digest.
func (r Repo) ListOverdueTasksForUser(ctx context.Context, userID int64, today string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks t
WHERE (t.assignee_id=? OR t.creator_id=?) AND t.status IN ('aberta','em_andamento','nao_entregue') AND t.deadline IS NOT NULL AND DATE(t.deadline) < DATE(?)
ORDER BY t.deadline ASC, t.id ASC`, userID, userID, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
