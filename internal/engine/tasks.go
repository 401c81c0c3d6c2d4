package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"rhflow/internal/audit"
	"rhflow/internal/domain"
	"rhflow/internal/repo"
	"rhflow/internal/storage"
)

// MaxAttachmentSize caps each uploaded file; checked before the store write.
const MaxAttachmentSize = 10 * 1024 * 1024

type TaskCreateOptions struct {
	Title       string
	Description *string
	Deadline    *string
	AssigneeID  *int64
	Importance  domain.Importance
	Notes       *string
	ProjectID   *int64
}

// CreateTask opens a new task in status aberta and records the creation in the
// change log.
func (e Engine) CreateTask(ctx context.Context, actor domain.UserProfile, opts TaskCreateOptions) (domain.Task, error) {
	if opts.Title == "" {
		return domain.Task{}, ValidationError{Message: "Title is required"}
	}
	importance := opts.Importance
	if importance == "" {
		importance = domain.ImportanceMedia
	}
	if _, ok := domain.ParseImportance(string(importance)); !ok {
		return domain.Task{}, ValidationError{Message: "Invalid importance"}
	}

	now := e.nowRFC3339()
	t := domain.Task{
		Title:       opts.Title,
		Description: opts.Description,
		Status:      domain.StatusAberta,
		Deadline:    opts.Deadline,
		AssigneeID:  opts.AssigneeID,
		CreatorID:   actor.ID,
		Importance:  importance,
		Notes:       opts.Notes,
		ProjectID:   opts.ProjectID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	id, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	created := "Task created"
	if err := e.auditWriter().Append(ctx, tx, id, actor.ID, []audit.Change{{Field: "created", New: &created}}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.ID = id
	return t, nil
}

// TaskUpdateOptions carries a partial edit; nil fields are left unchanged.
type TaskUpdateOptions struct {
	ID          int64
	Status      *domain.TaskStatus
	Title       *string
	Description *string
	AssigneeID  *int64
	Deadline    *string
	Importance  *domain.Importance
	Notes       *string
	Comment     string
}

// UpdateTask applies a partial edit. Every field whose value actually changes
// gets one change-log row; a supplied comment additionally appends one
// TaskUpdate row capturing the status transition. A task may only hold status
// em_andamento with an assignee, pre-existing or supplied in this call.
func (e Engine) UpdateTask(ctx context.Context, actor domain.UserProfile, opts TaskUpdateOptions) (domain.Task, error) {
	task, err := e.Repo.GetTask(ctx, opts.ID)
	if err != nil {
		return domain.Task{}, err
	}

	if opts.Status != nil {
		if _, ok := domain.ParseTaskStatus(string(*opts.Status)); !ok {
			return domain.Task{}, ValidationError{Message: "Invalid status"}
		}
	}
	if opts.Importance != nil {
		if _, ok := domain.ParseImportance(string(*opts.Importance)); !ok {
			return domain.Task{}, ValidationError{Message: "Invalid importance"}
		}
	}
	if opts.Status != nil && *opts.Status == domain.StatusEmAndamento && task.AssigneeID == nil && opts.AssigneeID == nil {
		return domain.Task{}, ValidationError{Message: "Não é possível iniciar uma tarefa sem responsável atribuído"}
	}

	oldStatus := task.Status
	var changes []audit.Change

	if opts.Status != nil && *opts.Status != task.Status {
		changes = append(changes, change("status", strPtr(string(task.Status)), strPtr(string(*opts.Status))))
		task.Status = *opts.Status
	}
	if opts.Title != nil && *opts.Title != task.Title {
		changes = append(changes, change("title", strPtr(task.Title), opts.Title))
		task.Title = *opts.Title
	}
	if opts.Description != nil && !equalStr(opts.Description, task.Description) {
		changes = append(changes, change("description", task.Description, opts.Description))
		task.Description = opts.Description
	}
	if opts.AssigneeID != nil && !equalInt64(opts.AssigneeID, task.AssigneeID) {
		changes = append(changes, change("assignee_id", int64Str(task.AssigneeID), int64Str(opts.AssigneeID)))
		task.AssigneeID = opts.AssigneeID
	}
	if opts.Deadline != nil && !equalStr(opts.Deadline, task.Deadline) {
		changes = append(changes, change("deadline", task.Deadline, opts.Deadline))
		task.Deadline = opts.Deadline
	}
	if opts.Importance != nil && *opts.Importance != task.Importance {
		changes = append(changes, change("importance", strPtr(string(task.Importance)), strPtr(string(*opts.Importance))))
		task.Importance = *opts.Importance
	}
	if opts.Notes != nil && !equalStr(opts.Notes, task.Notes) {
		changes = append(changes, change("notes", task.Notes, opts.Notes))
		task.Notes = opts.Notes
	}

	now := e.nowRFC3339()
	if task.Status == domain.StatusConcluida {
		// Re-stamped on every save while concluida; never cleared.
		task.CompletedAt = &now
	}
	task.UpdatedAt = now

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, task); err != nil {
		return domain.Task{}, err
	}
	if err := e.auditWriter().Append(ctx, tx, task.ID, actor.ID, changes); err != nil {
		return domain.Task{}, err
	}
	if opts.Comment != "" {
		_, err := e.Repo.InsertTaskUpdate(ctx, tx, domain.TaskUpdate{
			TaskID:       task.ID,
			AuthorID:     actor.ID,
			Comment:      opts.Comment,
			StatusBefore: oldStatus,
			StatusAfter:  task.Status,
			CreatedAt:    now,
		})
		if err != nil {
			return domain.Task{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

type TaskListOptions struct {
	ProjectID *int64
	Status    string
}

// ListTasks sweeps overdue tasks, resolves the caller's visibility scope and
// returns the matching tasks.
func (e Engine) ListTasks(ctx context.Context, actor domain.UserProfile, opts TaskListOptions) ([]domain.Task, error) {
	if _, err := e.Repo.SweepOverdue(ctx, e.today(), e.nowRFC3339()); err != nil {
		return nil, fmt.Errorf("sweep overdue: %w", err)
	}
	scope, err := e.resolveScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, repo.TaskListOptions{
		Visibility: Resolve(scope),
		ProjectID:  opts.ProjectID,
		Status:     opts.Status,
	})
}

func (e Engine) resolveScope(ctx context.Context, actor domain.UserProfile) (Scope, error) {
	scope := Scope{
		Role:         actor.Role,
		UserID:       actor.ID,
		DepartmentID: actor.DepartmentID,
	}
	switch actor.Role {
	case domain.RoleCoordenacao, domain.RoleSupervisao:
		reports, err := e.Repo.DirectReports(ctx, actor.ID)
		if err != nil {
			return scope, err
		}
		scope.Reports = reports
	case domain.RoleAnalista, domain.RoleAssistente, domain.RoleAuxiliar:
		if actor.ManagerID != nil {
			peers, err := e.Repo.PeersByManager(ctx, *actor.ManagerID)
			if err != nil {
				return scope, err
			}
			scope.Peers = peers
		}
	}
	return scope, nil
}

func (e Engine) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

// ListProjectTasks returns a project's tasks without visibility filtering.
func (e Engine) ListProjectTasks(ctx context.Context, projectID int64) ([]domain.Task, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return e.Repo.ListTasks(ctx, repo.TaskListOptions{ProjectID: &projectID})
}

// TaskUpdates returns a task's comment thread, newest first, with attachments.
func (e Engine) TaskUpdates(ctx context.Context, taskID int64) ([]domain.TaskUpdate, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListTaskUpdates(ctx, taskID)
}

func (e Engine) TaskChangeLog(ctx context.Context, taskID int64) ([]domain.TaskChangeLog, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListChangeLog(ctx, taskID)
}

// FileUpload is one incoming multipart file.
type FileUpload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AttachmentResult reports one file's outcome; failures are isolated per file.
type AttachmentResult struct {
	Filename string                 `json:"filename"`
	Error    string                 `json:"error,omitempty"`
	Saved    *domain.TaskAttachment `json:"attachment,omitempty"`
}

// AttachFiles stores uploads against an existing task update. Each file is
// checked against the size cap before any storage write; one file failing does
// not abort the others.
func (e Engine) AttachFiles(ctx context.Context, actor domain.UserProfile, taskID, updateID int64, files []FileUpload) ([]AttachmentResult, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	update, err := e.Repo.GetTaskUpdate(ctx, updateID)
	if err != nil {
		return nil, err
	}
	if update.TaskID != taskID {
		return nil, ValidationError{Message: "Update does not belong to this task"}
	}

	results := make([]AttachmentResult, 0, len(files))
	for _, f := range files {
		results = append(results, e.attachOne(ctx, taskID, updateID, f))
	}
	return results, nil
}

func (e Engine) attachOne(ctx context.Context, taskID, updateID int64, f FileUpload) AttachmentResult {
	res := AttachmentResult{Filename: f.Filename}
	if f.Filename == "" {
		res.Error = "No file provided"
		return res
	}
	if int64(len(f.Data)) > MaxAttachmentSize {
		res.Error = "Só é possível subir documentos até 10MB de tamanho"
		return res
	}
	key := storage.AttachmentKey(taskID, updateID, e.now(), f.Filename)
	if err := e.Store.Put(ctx, key, f.ContentType, f.Data); err != nil {
		res.Error = "Failed to upload attachment"
		return res
	}
	a := domain.TaskAttachment{
		UpdateID:    updateID,
		TaskID:      taskID,
		Filename:    f.Filename,
		Size:        int64(len(f.Data)),
		ContentType: f.ContentType,
		StorageKey:  key,
		CreatedAt:   e.nowRFC3339(),
	}
	id, err := e.Repo.InsertAttachment(ctx, a)
	if err != nil {
		res.Error = "Failed to save attachment metadata"
		return res
	}
	a.ID = id
	res.Saved = &a
	return res
}

// OpenAttachment loads attachment metadata and its bytes from the store.
func (e Engine) OpenAttachment(ctx context.Context, id int64) (domain.TaskAttachment, []byte, error) {
	a, err := e.Repo.GetAttachment(ctx, id)
	if err != nil {
		return domain.TaskAttachment{}, nil, err
	}
	data, err := e.Store.Get(ctx, a.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return a, nil, repo.ErrNotFound
		}
		return a, nil, err
	}
	return a, data, nil
}

// TeamStats returns the caller's direct reports with their task rollups.
func (e Engine) TeamStats(ctx context.Context, actor domain.UserProfile) ([]domain.TeamMemberStats, error) {
	reportIDs, err := e.Repo.DirectReports(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	members, err := e.Repo.ListProfilesByIDs(ctx, reportIDs)
	if err != nil {
		return nil, err
	}
	today := e.today()
	res := make([]domain.TeamMemberStats, 0, len(members))
	for _, m := range members {
		stats, err := e.Repo.MemberTaskStats(ctx, m.ID, today)
		if err != nil {
			return nil, err
		}
		stats.Member = m
		res = append(res, stats)
	}
	return res, nil
}

func change(field string, from, to *string) audit.Change {
	return audit.Change{Field: field, Old: from, New: to}
}

func strPtr(s string) *string { return &s }

func int64Str(v *int64) *string {
	if v == nil {
		return nil
	}
	s := strconv.FormatInt(*v, 10)
	return &s
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt64(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
