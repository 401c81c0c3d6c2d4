package assistant

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"rhflow/internal/domain"
)

// OverdueMarker is the text the daily digest is recognized by, so at most one
// digest lands in a user's thread per day. With a single overdue task the body
// goes singular and only the uppercase header carries the phrase; the dedup
// query still matches because SQLite's LIKE is case-insensitive for ASCII.
const OverdueMarker = "tarefas atrasadas"

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDateBR(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("02/01/2006")
	}
	return s
}

func daysBetween(from, to time.Time) int {
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}

// BuildSystemPrompt assembles the assistant context from the caller's profile,
// tasks and projects.
func BuildSystemPrompt(profile domain.UserProfile, departmentName string, tasks []domain.Task, projects []domain.Project, now time.Time) string {
	if departmentName == "" {
		departmentName = "Não especificado"
	}
	position := profile.Role.String()
	if profile.Position != nil && *profile.Position != "" {
		position = *profile.Position
	}

	var taskLines []string
	var concluida, emAndamento, aberta, naoEntregue, overdue, nearDeadline int
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusConcluida:
			concluida++
		case domain.StatusEmAndamento:
			emAndamento++
		case domain.StatusAberta:
			aberta++
		case domain.StatusNaoEntregue:
			naoEntregue++
		}
		line := fmt.Sprintf("- [%s] %s (Importância: %s)", t.Status, t.Title, t.Importance)
		if t.Deadline != nil {
			line += " - Prazo: " + formatDateBR(*t.Deadline)
			if due, ok := parseDate(*t.Deadline); ok {
				days := daysBetween(now, due)
				if due.Before(now) {
					overdue++
					line += " (ATRASADO)"
				} else if days <= 2 {
					nearDeadline++
					line += " (URGENTE)"
				}
			}
		}
		taskLines = append(taskLines, line)
	}

	var projectLines []string
	for _, p := range projects {
		start, end := "", ""
		if p.StartDate != nil {
			start = formatDateBR(*p.StartDate)
		}
		if p.EndDate != nil {
			end = formatDateBR(*p.EndDate)
		}
		projectLines = append(projectLines, fmt.Sprintf("- %s (%s - %s)", p.Name, start, end))
	}

	return fmt.Sprintf(`Você é RHProdutivoFlow, um assistente virtual inteligente especializado em acompanhar tarefas, projetos, sprints e usuários.

IDENTIDADE:
- Nome: RHProdutivoFlow
- Objetivo: Aumentar a produtividade, alertar sobre prazos, organizar prioridades e orientar o usuário
- Personalidade: Amigável, profissional, motivador e proativo

COMPORTAMENTO:
✓ Organize informações (listas, checklists, prioridades)
✓ Classifique urgência das tarefas
✓ Avise quando uma tarefa está perto do prazo ou atrasada
✓ Sugira a próxima melhor ação do usuário
✓ Busque reduzir o estresse e dar clareza
✓ Responda com objetividade e simplicidade
✓ Nunca deixe o usuário sem uma próxima ação recomendada

CLASSIFICAÇÃO DE TAREFAS:
- Importância: Alta, Média, Baixa
- Status: Aberta, Em andamento, Não entregue, Concluída
- Deadline: com data ou sem data

MENSAGENS DE ALERTA:
- "⚠️ Essa tarefa está perto do prazo."
- "⏰ Urgente: prazo expira hoje."
- "🟡 Recomendo fazer essa antes das outras."
- "🟢 Essa pode ser deixada para depois."
- "⏰ Urgente: Essa tarefa já está com prazo vencido."

INFORMAÇÕES DO USUÁRIO:
Nome: %s
Cargo: %s
Departamento: %s

TAREFAS ATUAIS (%d tarefas):
%s

PROJETOS ATIVOS (%d projetos):
%s

ESTATÍSTICAS:
- Total de tarefas: %d
- Concluídas: %d
- Em andamento: %d
- Abertas: %d
- Não entregues: %d
- Atrasadas: %d
- Próximas do prazo (48h): %d

INSTRUÇÕES:
1. Sempre analise o contexto das tarefas antes de responder
2. Identifique tarefas urgentes, atrasadas ou próximas do prazo
3. Sugira prioridades baseadas em importância, urgência e prazos
4. Forneça uma visão clara do que precisa ser feito
5. Seja motivador e ajude a reduzir o estresse
6. Use emojis para destacar urgências e prioridades
7. Sempre termine com uma próxima ação recomendada

Responda de forma clara, objetiva e motivadora. Ajude o usuário a conquistar seus objetivos!`,
		profile.Name, position, departmentName,
		len(tasks), strings.Join(taskLines, "\n"),
		len(projects), strings.Join(projectLines, "\n"),
		len(tasks), concluida, emAndamento, aberta, naoEntregue, overdue, nearDeadline)
}

// BuildOverdueAlert renders the daily overdue digest. projectNames maps
// project id to name for the tasks that have one.
func BuildOverdueAlert(userName string, overdue []domain.Task, projectNames map[int64]string, now time.Time) string {
	var lines []string
	for _, t := range overdue {
		days := 0
		if t.Deadline != nil {
			if due, ok := parseDate(*t.Deadline); ok {
				days = daysBetween(due, now)
			}
		}
		unit := "dias"
		if days == 1 {
			unit = "dia"
		}
		deadline := ""
		if t.Deadline != nil {
			deadline = formatDateBR(*t.Deadline)
		}
		line := fmt.Sprintf("• %s - Prazo: %s (%d %s atrasada)", t.Title, deadline, days, unit)
		if t.ProjectID != nil {
			if name, ok := projectNames[*t.ProjectID]; ok {
				line += " - Projeto: " + name
			}
		}
		lines = append(lines, line)
	}

	countNoun := "tarefas atrasadas"
	countVerb := "precisam"
	if len(overdue) == 1 {
		countNoun = "tarefa atrasada"
		countVerb = "precisa"
	}
	recommendations := "- Foque em concluir essas tarefas o mais rápido possível\n- Atualize o progresso de cada uma\n- Se necessário, solicite suporte da sua equipe"
	if len(overdue) > 3 {
		recommendations = "- Priorize as tarefas mais antigas primeiro\n- Considere renegociar prazos se necessário\n- Atualize o status de cada tarefa para manter a transparência"
	}

	return fmt.Sprintf(`⚠️ **ALERTA DE TAREFAS ATRASADAS** ⚠️

Olá, %s!

Identifiquei que você tem %d %s que %s da sua atenção:

%s

🎯 **Recomendações:**
%s

Como posso ajudar você a organizar essas tarefas?`,
		userName, len(overdue), countNoun, countVerb, strings.Join(lines, "\n"), recommendations)
}

// Provider failure replies shown to the user instead of the completion.
const (
	MsgNotConfigured = "Desculpe, o assistente não está configurado corretamente. Por favor, entre em contato com o administrador."
	MsgGenericError  = "Desculpe, não consegui processar sua solicitação no momento. Por favor, tente novamente."
	MsgAuthError     = "Erro de autenticação com a API do OpenAI. Por favor, verifique a configuração da chave."
	MsgRateLimited   = "Limite de requisições atingido. Por favor, tente novamente em alguns instantes."
	MsgQuotaExceeded = "Cota da API do OpenAI excedida. Por favor, entre em contato com o administrador."
)

// ClassifyError maps a provider failure to its user-facing reply.
func ClassifyError(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == 401:
			return MsgAuthError
		case apiErr.Status == 429:
			return MsgRateLimited
		case apiErr.Code == "insufficient_quota":
			return MsgQuotaExceeded
		}
	}
	return MsgGenericError
}
