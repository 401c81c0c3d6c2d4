package domain

// Role is one of the eight organizational levels. The wire strings match the
// values stored in user_profiles.role.
type Role string

const (
	RoleUnknown     Role = ""
	RoleCLevel      Role = "c-level"
	RoleGerencia    Role = "gerencia"
	RoleCoordenacao Role = "coordenacao"
	RoleSupervisao  Role = "supervisao"
	RoleAnalista    Role = "analista"
	RoleAssistente  Role = "assistente"
	RoleAuxiliar    Role = "auxiliar"
	RoleEstagiario  Role = "estagiario"
)

// Roles lists every recognized role, highest level first.
var Roles = []Role{
	RoleCLevel,
	RoleGerencia,
	RoleCoordenacao,
	RoleSupervisao,
	RoleAnalista,
	RoleAssistente,
	RoleAuxiliar,
	RoleEstagiario,
}

// ParseRole maps a stored string to a Role. Unrecognized strings come back as
// RoleUnknown so visibility falls through to the least-privileged branch
// instead of failing.
func ParseRole(s string) Role {
	for _, r := range Roles {
		if string(r) == s {
			return r
		}
	}
	return RoleUnknown
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the eight recognized roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleUnknown
}

// Admin reports whether r may perform admin mutations (user management,
// departments, positions, projects).
func (r Role) Admin() bool {
	return r == RoleCLevel || r == RoleGerencia
}

type TaskStatus string

const (
	StatusAberta      TaskStatus = "aberta"
	StatusEmAndamento TaskStatus = "em_andamento"
	StatusConcluida   TaskStatus = "concluida"
	StatusNaoEntregue TaskStatus = "nao_entregue"
)

func ParseTaskStatus(s string) (TaskStatus, bool) {
	switch TaskStatus(s) {
	case StatusAberta, StatusEmAndamento, StatusConcluida, StatusNaoEntregue:
		return TaskStatus(s), true
	}
	return "", false
}

type Importance string

const (
	ImportanceBaixa Importance = "baixa"
	ImportanceMedia Importance = "media"
	ImportanceAlta  Importance = "alta"
)

func ParseImportance(s string) (Importance, bool) {
	switch Importance(s) {
	case ImportanceBaixa, ImportanceMedia, ImportanceAlta:
		return Importance(s), true
	}
	return "", false
}

type ProjectStatus string

const (
	ProjectEmAndamento ProjectStatus = "em_andamento"
	ProjectEncerrado   ProjectStatus = "encerrado"
)

func ParseProjectStatus(s string) (ProjectStatus, bool) {
	switch ProjectStatus(s) {
	case ProjectEmAndamento, ProjectEncerrado:
		return ProjectStatus(s), true
	}
	return "", false
}
