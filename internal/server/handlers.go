package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"rhflow/internal/assistant"
	"rhflow/internal/domain"
	"rhflow/internal/engine"
	"rhflow/internal/repo"
)

func currentActor(ctx context.Context, eng engine.Engine) (domain.UserProfile, error) {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return domain.UserProfile{}, newAPIError(http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
	}
	actor, err := eng.CurrentUser(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.UserProfile{}, newAPIError(http.StatusNotFound, "not_found", "Profile not found", nil)
		}
		return domain.UserProfile{}, handleError(err)
	}
	return actor, nil
}

type healthOutput struct {
	Body struct {
		Status string `json:"status" example:"ok"`
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*healthOutput, error) {
		out := &healthOutput{}
		out.Body.Status = "ok"
		return out, nil
	})
}

type profileOutput struct {
	Body domain.UserProfile
}

type profileListOutput struct {
	Body []domain.UserProfile
}

func registerMe(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the caller's profile",
	}, func(ctx context.Context, _ *struct{}) (*profileOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		return &profileOutput{Body: actor}, nil
	})
}

func registerProfiles(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-profile",
		Method:        http.MethodPost,
		Path:          "/profiles",
		Summary:       "Create the caller's profile",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateProfileRequest
	}) (*profileOutput, error) {
		principal, ok := PrincipalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
		}
		email := input.Body.Email
		if email == "" {
			email = principal.Email
		}
		p, err := eng.CreateProfile(ctx, engine.ProfileCreateOptions{
			ExternalID:   principal.Subject,
			Email:        email,
			Name:         input.Body.Name,
			Role:         domain.Role(input.Body.Role),
			Position:     input.Body.Position,
			DepartmentID: input.Body.DepartmentID,
			ManagerID:    input.Body.ManagerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &profileOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-profiles",
		Method:      http.MethodGet,
		Path:        "/profiles",
		Summary:     "List all profiles",
	}, func(ctx context.Context, _ *struct{}) (*profileListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		profiles, err := eng.ListProfiles(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &profileListOutput{Body: profiles}, nil
	})
}

func registerUsers(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-list-users",
		Method:      http.MethodGet,
		Path:        "/admin/users",
		Summary:     "List user profiles (admin)",
	}, func(ctx context.Context, _ *struct{}) (*profileListOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		if !actor.Role.Admin() {
			return nil, handleError(engine.ForbiddenError{})
		}
		profiles, err := eng.ListProfiles(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &profileListOutput{Body: profiles}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "admin-create-user",
		Method:        http.MethodPost,
		Path:          "/admin/users",
		Summary:       "Create a user profile (admin)",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest
	}) (*profileOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		p, err := eng.CreateUser(ctx, actor, engine.UserCreateOptions{
			Email:        input.Body.Email,
			Name:         input.Body.Name,
			Role:         domain.Role(input.Body.Role),
			Position:     input.Body.Position,
			DepartmentID: input.Body.DepartmentID,
			ManagerID:    input.Body.ManagerID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &profileOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-update-user",
		Method:      http.MethodPut,
		Path:        "/admin/users/{id}",
		Summary:     "Update a user profile (admin)",
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateUserRequest
	}) (*profileOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		p, err := eng.UpdateUser(ctx, actor, input.Body.options(input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &profileOutput{Body: p}, nil
	})
}

type departmentOutput struct {
	Body domain.Department
}

type departmentListOutput struct {
	Body []domain.Department
}

func registerDepartments(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-departments",
		Method:      http.MethodGet,
		Path:        "/departments",
		Summary:     "List departments",
	}, func(ctx context.Context, _ *struct{}) (*departmentListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		deps, err := eng.ListDepartments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentListOutput{Body: deps}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-department",
		Method:        http.MethodPost,
		Path:          "/departments",
		Summary:       "Create a department",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body DepartmentRequest
	}) (*departmentOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		d, err := eng.CreateDepartment(ctx, actor, engine.DepartmentOptions{
			Code:      input.Body.Code,
			Name:      input.Body.Name,
			ManagerID: input.Body.ManagerID,
			Phone:     input.Body.Phone,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-department",
		Method:      http.MethodPut,
		Path:        "/departments/{id}",
		Summary:     "Update a department",
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body DepartmentRequest
	}) (*departmentOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		d, err := eng.UpdateDepartment(ctx, actor, input.ID, engine.DepartmentOptions{
			Code:      input.Body.Code,
			Name:      input.Body.Name,
			ManagerID: input.Body.ManagerID,
			Phone:     input.Body.Phone,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &departmentOutput{Body: d}, nil
	})
}

type positionOutput struct {
	Body domain.Position
}

type positionListOutput struct {
	Body []domain.Position
}

func registerPositions(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-positions",
		Method:      http.MethodGet,
		Path:        "/positions",
		Summary:     "List all positions",
	}, func(ctx context.Context, _ *struct{}) (*positionListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		positions, err := eng.ListPositions(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &positionListOutput{Body: positions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-positions-by-role",
		Method:      http.MethodGet,
		Path:        "/positions/role/{role}",
		Summary:     "List active positions for a role",
	}, func(ctx context.Context, input *struct {
		Role string `path:"role" enum:"c-level,gerencia,coordenacao,supervisao,analista,assistente,auxiliar,estagiario"`
	}) (*positionListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		role := domain.ParseRole(input.Role)
		if role == domain.RoleUnknown {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "Invalid role", nil)
		}
		positions, err := eng.ListPositionsByRole(ctx, role)
		if err != nil {
			return nil, handleError(err)
		}
		return &positionListOutput{Body: positions}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-position",
		Method:        http.MethodPost,
		Path:          "/positions",
		Summary:       "Create a position",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body PositionRequest
	}) (*positionOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		active := true
		if input.Body.Active != nil {
			active = *input.Body.Active
		}
		p, err := eng.CreatePosition(ctx, actor, engine.PositionOptions{
			Name:   input.Body.Name,
			Role:   domain.Role(input.Body.Role),
			Active: active,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &positionOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-position",
		Method:      http.MethodPut,
		Path:        "/positions/{id}",
		Summary:     "Update a position",
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body PositionRequest
	}) (*positionOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		active := true
		if input.Body.Active != nil {
			active = *input.Body.Active
		}
		p, err := eng.UpdatePosition(ctx, actor, input.ID, engine.PositionOptions{
			Name:   input.Body.Name,
			Role:   domain.Role(input.Body.Role),
			Active: active,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &positionOutput{Body: p}, nil
	})
}

type projectOutput struct {
	Body domain.Project
}

type projectListOutput struct {
	Body []domain.Project
}

type projectWithStatsListOutput struct {
	Body []engine.ProjectWithStats
}

type projectStatsOutput struct {
	Body domain.ProjectStats
}

func registerProjects(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects with task rollups",
	}, func(ctx context.Context, _ *struct{}) (*projectWithStatsListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		projects, err := eng.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectWithStatsListOutput{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-active-projects",
		Method:      http.MethodGet,
		Path:        "/projects/active",
		Summary:     "List projects still in progress",
	}, func(ctx context.Context, _ *struct{}) (*projectListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		projects, err := eng.ListActiveProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectListOutput{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-my-projects",
		Method:      http.MethodGet,
		Path:        "/projects/mine",
		Summary:     "List projects the caller participates in",
	}, func(ctx context.Context, _ *struct{}) (*projectListOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		projects, err := eng.ListProjectsForUser(ctx, actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectListOutput{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create a project",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body ProjectRequest
	}) (*projectOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		p, err := eng.CreateProject(ctx, actor, engine.ProjectOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Status:      domain.ProjectStatus(input.Body.Status),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get a project",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*projectOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		p, err := eng.Repo.GetProject(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-project",
		Method:      http.MethodPut,
		Path:        "/projects/{id}",
		Summary:     "Update a project",
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body ProjectRequest
	}) (*projectOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		p, err := eng.UpdateProject(ctx, actor, input.ID, engine.ProjectOptions{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			StartDate:   input.Body.StartDate,
			EndDate:     input.Body.EndDate,
			Status:      domain.ProjectStatus(input.Body.Status),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &projectOutput{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-stats",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/stats",
		Summary:     "Get a project's task rollup",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*projectStatsOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		stats, err := eng.ProjectStats(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &projectStatsOutput{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-project-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{id}/tasks",
		Summary:     "List a project's tasks",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*taskListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		tasks, err := eng.ListProjectTasks(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskListOutput{Body: tasks}, nil
	})
}

type taskOutput struct {
	Body domain.Task
}

type taskListOutput struct {
	Body []domain.Task
}

type taskUpdateListOutput struct {
	Body []domain.TaskUpdate
}

type changeLogOutput struct {
	Body []domain.TaskChangeLog
}

func registerTasks(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks visible to the caller",
	}, func(ctx context.Context, input *struct {
		ProjectID int64  `query:"project_id"`
		Status    string `query:"status" enum:"aberta,em_andamento,concluida,nao_entregue,"`
	}) (*taskListOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		var projectID *int64
		if input.ProjectID != 0 {
			projectID = &input.ProjectID
		}
		tasks, err := eng.ListTasks(ctx, actor, engine.TaskListOptions{
			ProjectID: projectID,
			Status:    input.Status,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskListOutput{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a task",
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest
	}) (*taskOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		t, err := eng.CreateTask(ctx, actor, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Deadline:    input.Body.Deadline,
			AssigneeID:  input.Body.AssigneeID,
			Importance:  domain.Importance(input.Body.Importance),
			Notes:       input.Body.Notes,
			ProjectID:   input.Body.ProjectID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*taskOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		t, err := eng.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPut,
		Path:        "/tasks/{id}",
		Summary:     "Update a task",
	}, func(ctx context.Context, input *struct {
		ID   int64 `path:"id"`
		Body UpdateTaskRequest
	}) (*taskOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		t, err := eng.UpdateTask(ctx, actor, input.Body.options(input.ID))
		if err != nil {
			return nil, handleError(err)
		}
		return &taskOutput{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-updates",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/updates",
		Summary:     "List a task's comment thread",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*taskUpdateListOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		updates, err := eng.TaskUpdates(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &taskUpdateListOutput{Body: updates}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-changelog",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/changelog",
		Summary:     "List a task's field change history",
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*changeLogOutput, error) {
		if _, err := currentActor(ctx, eng); err != nil {
			return nil, err
		}
		log, err := eng.TaskChangeLog(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &changeLogOutput{Body: log}, nil
	})
}

type teamStatsOutput struct {
	Body []domain.TeamMemberStats
}

func registerAnalytics(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "team-analytics",
		Method:      http.MethodGet,
		Path:        "/analytics/team",
		Summary:     "Per-report task rollups for the caller's direct reports",
	}, func(ctx context.Context, _ *struct{}) (*teamStatsOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		stats, err := eng.TeamStats(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &teamStatsOutput{Body: stats}, nil
	})
}

type assistantMessagesOutput struct {
	Body []domain.AssistantMessage
}

type chatOutput struct {
	Body engine.ChatResult
}

type overdueCheckOutput struct {
	Body engine.OverdueCheckResult
}

func registerAssistant(api huma.API, eng engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "assistant-messages",
		Method:      http.MethodGet,
		Path:        "/assistant/messages",
		Summary:     "Get the caller's assistant thread",
	}, func(ctx context.Context, _ *struct{}) (*assistantMessagesOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		messages, err := eng.AssistantHistory(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &assistantMessagesOutput{Body: messages}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assistant-chat",
		Method:      http.MethodPost,
		Path:        "/assistant/chat",
		Summary:     "Chat with the assistant",
	}, func(ctx context.Context, input *struct {
		Body ChatRequest
	}) (*chatOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		history := make([]assistant.Message, 0, len(input.Body.Messages))
		for _, m := range input.Body.Messages {
			history = append(history, assistant.Message{Role: m.Role, Content: m.Content})
		}
		res, err := eng.AssistantChat(ctx, actor, history)
		if err != nil {
			return nil, handleError(err)
		}
		return &chatOutput{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assistant-check-overdue",
		Method:      http.MethodPost,
		Path:        "/assistant/check-overdue",
		Summary:     "Post the daily overdue digest if due",
	}, func(ctx context.Context, _ *struct{}) (*overdueCheckOutput, error) {
		actor, err := currentActor(ctx, eng)
		if err != nil {
			return nil, err
		}
		res, err := eng.CheckOverdueTasks(ctx, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &overdueCheckOutput{Body: res}, nil
	})
}
