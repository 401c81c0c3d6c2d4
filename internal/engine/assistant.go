package engine

import (
	"context"
	"errors"

	"rhflow/internal/assistant"
	"rhflow/internal/domain"
	"rhflow/internal/repo"
)

// AssistantHistory returns the user's chat thread, oldest first.
func (e Engine) AssistantHistory(ctx context.Context, actor domain.UserProfile) ([]domain.AssistantMessage, error) {
	return e.Repo.ListAssistantMessages(ctx, actor.ID)
}

// ChatResult is the assistant reply; Failed marks a canned provider-failure
// message rather than a completion.
type ChatResult struct {
	Message string `json:"message"`
	Failed  bool   `json:"failed,omitempty"`
}

// AssistantChat builds the context prompt from the caller's tasks and
// projects, calls the completion provider and persists both sides of the
// exchange. Provider failures are classified into a user-facing reply and do
// not persist anything.
func (e Engine) AssistantChat(ctx context.Context, actor domain.UserProfile, history []assistant.Message) (ChatResult, error) {
	if len(history) == 0 {
		return ChatResult{}, ValidationError{Message: "Messages array is required"}
	}
	if e.Chat == nil || !e.Chat.Configured() {
		return ChatResult{Message: assistant.MsgNotConfigured, Failed: true}, nil
	}

	tasks, err := e.Repo.ListTasksForUser(ctx, actor.ID)
	if err != nil {
		return ChatResult{}, err
	}
	projects, err := e.Repo.ListProjectsForUser(ctx, actor.ID)
	if err != nil {
		return ChatResult{}, err
	}
	departmentName := ""
	if actor.DepartmentID != nil {
		if dep, err := e.Repo.GetDepartment(ctx, *actor.DepartmentID); err == nil {
			departmentName = dep.Name
		} else if !errors.Is(err, repo.ErrNotFound) {
			return ChatResult{}, err
		}
	}

	system := assistant.BuildSystemPrompt(actor, departmentName, tasks, projects, e.now())
	reply, err := e.Chat.Complete(ctx, system, history)
	if err != nil {
		return ChatResult{Message: assistant.ClassifyError(err), Failed: true}, nil
	}

	now := e.nowRFC3339()
	last := history[len(history)-1]
	if last.Role == "user" {
		if _, err := e.Repo.InsertAssistantMessage(ctx, domain.AssistantMessage{
			UserID: actor.ID, Role: "user", Content: last.Content, CreatedAt: now,
		}); err != nil {
			return ChatResult{}, err
		}
	}
	if reply != "" {
		if _, err := e.Repo.InsertAssistantMessage(ctx, domain.AssistantMessage{
			UserID: actor.ID, Role: "assistant", Content: reply, CreatedAt: now,
		}); err != nil {
			return ChatResult{}, err
		}
	}
	return ChatResult{Message: reply}, nil
}

// OverdueCheckResult reports whether the daily digest was posted.
type OverdueCheckResult struct {
	AlertSent    bool   `json:"alert_sent"`
	Reason       string `json:"reason,omitempty"`
	OverdueCount int    `json:"overdue_count,omitempty"`
	Message      string `json:"message,omitempty"`
}

// CheckOverdueTasks posts at most one overdue digest per user per day.
func (e Engine) CheckOverdueTasks(ctx context.Context, actor domain.UserProfile) (OverdueCheckResult, error) {
	today := e.today()
	sent, err := e.Repo.HasOverdueAlertToday(ctx, actor.ID, assistant.OverdueMarker, today)
	if err != nil {
		return OverdueCheckResult{}, err
	}
	if sent {
		return OverdueCheckResult{AlertSent: false, Reason: "already_sent_today"}, nil
	}

	overdue, err := e.Repo.ListOverdueTasksForUser(ctx, actor.ID, today)
	if err != nil {
		return OverdueCheckResult{}, err
	}
	if len(overdue) == 0 {
		return OverdueCheckResult{AlertSent: false, Reason: "no_overdue_tasks"}, nil
	}

	projectNames := map[int64]string{}
	for _, t := range overdue {
		if t.ProjectID == nil {
			continue
		}
		if _, ok := projectNames[*t.ProjectID]; ok {
			continue
		}
		if p, err := e.Repo.GetProject(ctx, *t.ProjectID); err == nil {
			projectNames[*t.ProjectID] = p.Name
		}
	}

	message := assistant.BuildOverdueAlert(actor.Name, overdue, projectNames, e.now())
	if _, err := e.Repo.InsertAssistantMessage(ctx, domain.AssistantMessage{
		UserID: actor.ID, Role: "assistant", Content: message, CreatedAt: e.nowRFC3339(),
	}); err != nil {
		return OverdueCheckResult{}, err
	}
	return OverdueCheckResult{AlertSent: true, OverdueCount: len(overdue), Message: message}, nil
}
