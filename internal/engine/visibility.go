package engine

import (
	"strings"

	"rhflow/internal/domain"
	"rhflow/internal/repo"
)

// Scope is everything the visibility rules depend on: the caller's role and
// identity plus the shallow team lookups resolved before filtering (direct
// reports for coordenacao/supervisao, same-manager peers for the operational
// tier). The resolver itself never touches the database.
type Scope struct {
	Role         domain.Role
	UserID       int64
	DepartmentID *int64
	// Reports are the ids of profiles managed by the caller.
	Reports []int64
	// Peers are the ids of profiles sharing the caller's manager, caller
	// included.
	Peers []int64
}

// Resolve maps a scope to the task-list predicate. Pure: same scope, same
// filter. The fragments reference the listing query aliases t (tasks),
// a (assignee profile) and c (creator profile).
func Resolve(s Scope) repo.TaskFilter {
	switch s.Role {
	case domain.RoleCLevel:
		return repo.TaskFilter{}

	case domain.RoleGerencia:
		var dept any
		if s.DepartmentID != nil {
			dept = *s.DepartmentID
		}
		return repo.TaskFilter{
			Where: `(a.department_id = ? OR c.department_id = ? OR t.assignee_id = ? OR t.creator_id = ?)`,
			Args:  []any{dept, dept, s.UserID, s.UserID},
		}

	case domain.RoleCoordenacao, domain.RoleSupervisao:
		team := append(append([]int64{}, s.Reports...), s.UserID)
		ph := placeholders(len(team))
		args := make([]any, 0, len(team)*2)
		for _, id := range team {
			args = append(args, id)
		}
		for _, id := range team {
			args = append(args, id)
		}
		return repo.TaskFilter{
			Where: `(t.assignee_id IN (` + ph + `) OR t.creator_id IN (` + ph + `))`,
			Args:  args,
		}

	case domain.RoleAnalista, domain.RoleAssistente, domain.RoleAuxiliar:
		team := appendUnique(s.Peers, s.UserID)
		ph := placeholders(len(team))
		args := []any{s.UserID, s.UserID}
		for _, id := range team {
			args = append(args, id)
		}
		return repo.TaskFilter{
			Where: `(t.assignee_id = ? OR t.creator_id = ? OR (t.assignee_id IN (` + ph + `) AND t.status = 'aberta'))`,
			Args:  args,
		}

	case domain.RoleEstagiario, domain.RoleUnknown:
		return selfOnly(s.UserID)
	}
	return selfOnly(s.UserID)
}

func selfOnly(userID int64) repo.TaskFilter {
	return repo.TaskFilter{
		Where: `(t.assignee_id = ? OR t.creator_id = ?)`,
		Args:  []any{userID, userID},
	}
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return "?" + strings.Repeat(",?", n-1)
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(append([]int64{}, ids...), id)
}
