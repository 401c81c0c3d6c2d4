package server

import (
	"rhflow/internal/domain"
	"rhflow/internal/engine"
)

// Request payloads

type CreateProfileRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty" format:"email"`
	Role         string  `json:"role,omitempty" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	Position     *string `json:"position,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	ManagerID    *int64  `json:"manager_id,omitempty"`
}

type CreateUserRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty" format:"email"`
	Role         string  `json:"role" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	Position     *string `json:"position,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	ManagerID    *int64  `json:"manager_id,omitempty"`
}

type UpdateUserRequest struct {
	Name         *string `json:"name,omitempty"`
	Email        *string `json:"email,omitempty" format:"email"`
	Role         *string `json:"role,omitempty" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	Position     *string `json:"position,omitempty"`
	DepartmentID *int64  `json:"department_id,omitempty"`
	ManagerID    *int64  `json:"manager_id,omitempty"`
}

type DepartmentRequest struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	ManagerID *int64  `json:"manager_id,omitempty"`
	Phone     *string `json:"phone,omitempty"`
}

type PositionRequest struct {
	Name   string `json:"name"`
	Role   string `json:"role" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	Active *bool  `json:"active,omitempty"`
}

type ProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	StartDate   *string `json:"start_date,omitempty" format:"date"`
	EndDate     *string `json:"end_date,omitempty" format:"date"`
	Status      string  `json:"status,omitempty" enum:"em_andamento,encerrado"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date"`
	AssigneeID  *int64  `json:"assignee_id,omitempty"`
	Importance  string  `json:"importance,omitempty" enum:"baixa,media,alta"`
	Notes       *string `json:"notes,omitempty"`
	ProjectID   *int64  `json:"project_id,omitempty"`
}

type UpdateTaskRequest struct {
	Status      *string `json:"status,omitempty" enum:"aberta,em_andamento,concluida,nao_entregue"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	AssigneeID  *int64  `json:"assignee_id,omitempty"`
	Deadline    *string `json:"deadline,omitempty" format:"date"`
	Importance  *string `json:"importance,omitempty" enum:"baixa,media,alta"`
	Notes       *string `json:"notes,omitempty"`
	Comment     string  `json:"comment,omitempty"`
}

type ChatMessageRequest struct {
	Role    string `json:"role" enum:"user,assistant"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages []ChatMessageRequest `json:"messages"`
}

// Conversion helpers

func (r UpdateTaskRequest) options(id int64) engine.TaskUpdateOptions {
	opts := engine.TaskUpdateOptions{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		AssigneeID:  r.AssigneeID,
		Deadline:    r.Deadline,
		Notes:       r.Notes,
		Comment:     r.Comment,
	}
	if r.Status != nil {
		s := domain.TaskStatus(*r.Status)
		opts.Status = &s
	}
	if r.Importance != nil {
		i := domain.Importance(*r.Importance)
		opts.Importance = &i
	}
	return opts
}

func (r UpdateUserRequest) options(id int64) engine.UserUpdateOptions {
	opts := engine.UserUpdateOptions{
		ID:           id,
		Email:        r.Email,
		Name:         r.Name,
		Position:     r.Position,
		DepartmentID: r.DepartmentID,
		ManagerID:    r.ManagerID,
	}
	if r.Role != nil {
		role := domain.Role(*r.Role)
		opts.Role = &role
	}
	return opts
}
