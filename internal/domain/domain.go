package domain

type UserProfile struct {
	ID           int64   `json:"id"`
	ExternalID   string  `json:"external_id"`
	Email        string  `json:"email,omitempty"`
	Name         string  `json:"name"`
	Role         Role    `json:"role" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	Position     *string `json:"position,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	ManagerID    *int64  `json:"manager_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
	UpdatedAt    string  `json:"updated_at" format:"date-time"`
}

type Department struct {
	ID        int64   `json:"id"`
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	ManagerID *int64  `json:"manager_id,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
	UpdatedAt string  `json:"updated_at" format:"date-time"`
}

type Position struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Role          Role    `json:"role"`
	Active        bool    `json:"active"`
	InactivatedAt *string `json:"inactivated_at,omitempty" format:"date-time"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
	UpdatedAt     string  `json:"updated_at" format:"date-time"`
}

type Project struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description,omitempty"`
	StartDate   *string       `json:"start_date,omitempty" format:"date"`
	EndDate     *string       `json:"end_date,omitempty" format:"date"`
	Status      ProjectStatus `json:"status" enum:"em_andamento,encerrado"`
	CreatedAt   string        `json:"created_at" format:"date-time"`
	UpdatedAt   string        `json:"updated_at" format:"date-time"`
}

// ProjectStats is the per-status task rollup for one project.
type ProjectStats struct {
	ProjectID   int64 `json:"project_id"`
	Total       int   `json:"total"`
	Aberta      int   `json:"aberta"`
	EmAndamento int   `json:"em_andamento"`
	Concluida   int   `json:"concluida"`
	NaoEntregue int   `json:"nao_entregue"`
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status" enum:"aberta,em_andamento,concluida,nao_entregue"`
	Deadline    *string    `json:"deadline,omitempty" format:"date"`
	AssigneeID  *int64     `json:"assignee_id,omitempty"`
	CreatorID   int64      `json:"creator_id"`
	Importance  Importance `json:"importance" enum:"baixa,media,alta"`
	Notes       *string    `json:"notes,omitempty"`
	ProjectID   *int64     `json:"project_id,omitempty"`
	CompletedAt *string    `json:"completed_at,omitempty" format:"date-time"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

// TaskUpdate is one comment/status-change record. Attachments hang off the
// update, never off the task directly.
type TaskUpdate struct {
	ID           int64            `json:"id"`
	TaskID       int64            `json:"task_id"`
	AuthorID     int64            `json:"author_id"`
	Comment      string           `json:"comment"`
	StatusBefore TaskStatus       `json:"status_before"`
	StatusAfter  TaskStatus       `json:"status_after"`
	CreatedAt    string           `json:"created_at" format:"date-time"`
	Attachments  []TaskAttachment `json:"attachments,omitempty"`
}

type TaskAttachment struct {
	ID          int64  `json:"id"`
	UpdateID    int64  `json:"update_id"`
	TaskID      int64  `json:"task_id"`
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	StorageKey  string `json:"storage_key"`
	CreatedAt   string `json:"created_at" format:"date-time"`
}

// TaskChangeLog is the field-level audit trail, one row per changed field.
type TaskChangeLog struct {
	ID        int64   `json:"id"`
	TaskID    int64   `json:"task_id"`
	AuthorID  int64   `json:"author_id"`
	Field     string  `json:"field"`
	OldValue  *string `json:"old_value,omitempty"`
	NewValue  *string `json:"new_value,omitempty"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type AssistantMessage struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Role      string `json:"role" enum:"user,assistant"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// TeamMemberStats is one row of the team analytics rollup.
type TeamMemberStats struct {
	Member      UserProfile `json:"member"`
	Total       int         `json:"total"`
	Aberta      int         `json:"aberta"`
	EmAndamento int         `json:"em_andamento"`
	Concluida   int         `json:"concluida"`
	NaoEntregue int         `json:"nao_entregue"`
	Overdue     int         `json:"overdue"`
}
