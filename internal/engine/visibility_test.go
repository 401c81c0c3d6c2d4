package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"rhflow/internal/domain"
)

func int64p(v int64) *int64 { return &v }

func TestResolveVisibility(t *testing.T) {
	cases := []struct {
		name     string
		scope    Scope
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "c-level sees everything",
			scope:   Scope{Role: domain.RoleCLevel, UserID: 1},
			wantSQL: "",
		},
		{
			name:     "gerencia scoped to department and own tasks",
			scope:    Scope{Role: domain.RoleGerencia, UserID: 2, DepartmentID: int64p(7)},
			wantSQL:  "(a.department_id = ? OR c.department_id = ? OR t.assignee_id = ? OR t.creator_id = ?)",
			wantArgs: []any{int64(7), int64(7), int64(2), int64(2)},
		},
		{
			name:     "gerencia without department still sees own tasks",
			scope:    Scope{Role: domain.RoleGerencia, UserID: 2},
			wantSQL:  "(a.department_id = ? OR c.department_id = ? OR t.assignee_id = ? OR t.creator_id = ?)",
			wantArgs: []any{nil, nil, int64(2), int64(2)},
		},
		{
			name:     "coordenacao sees reports and self",
			scope:    Scope{Role: domain.RoleCoordenacao, UserID: 3, Reports: []int64{10, 11}},
			wantSQL:  "(t.assignee_id IN (?,?,?) OR t.creator_id IN (?,?,?))",
			wantArgs: []any{int64(10), int64(11), int64(3), int64(10), int64(11), int64(3)},
		},
		{
			name:     "supervisao without reports falls back to self",
			scope:    Scope{Role: domain.RoleSupervisao, UserID: 4},
			wantSQL:  "(t.assignee_id IN (?) OR t.creator_id IN (?))",
			wantArgs: []any{int64(4), int64(4)},
		},
		{
			name:     "analista sees own plus peers' open tasks",
			scope:    Scope{Role: domain.RoleAnalista, UserID: 5, Peers: []int64{6, 7}},
			wantSQL:  "(t.assignee_id = ? OR t.creator_id = ? OR (t.assignee_id IN (?,?,?) AND t.status = 'aberta'))",
			wantArgs: []any{int64(5), int64(5), int64(6), int64(7), int64(5)},
		},
		{
			name:     "analista peer list deduplicates self",
			scope:    Scope{Role: domain.RoleAssistente, UserID: 5, Peers: []int64{5, 6}},
			wantSQL:  "(t.assignee_id = ? OR t.creator_id = ? OR (t.assignee_id IN (?,?) AND t.status = 'aberta'))",
			wantArgs: []any{int64(5), int64(5), int64(5), int64(6)},
		},
		{
			name:     "auxiliar without manager sees only self",
			scope:    Scope{Role: domain.RoleAuxiliar, UserID: 8},
			wantSQL:  "(t.assignee_id = ? OR t.creator_id = ? OR (t.assignee_id IN (?) AND t.status = 'aberta'))",
			wantArgs: []any{int64(8), int64(8), int64(8)},
		},
		{
			name:     "estagiario restricted to own tasks",
			scope:    Scope{Role: domain.RoleEstagiario, UserID: 9},
			wantSQL:  "(t.assignee_id = ? OR t.creator_id = ?)",
			wantArgs: []any{int64(9), int64(9)},
		},
		{
			name:     "unknown role treated like estagiario",
			scope:    Scope{Role: domain.Role("visitante"), UserID: 10},
			wantSQL:  "(t.assignee_id = ? OR t.creator_id = ?)",
			wantArgs: []any{int64(10), int64(10)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filter := Resolve(tc.scope)
			assert.Equal(t, tc.wantSQL, filter.Where)
			assert.Equal(t, tc.wantArgs, filter.Args)
		})
	}
}
