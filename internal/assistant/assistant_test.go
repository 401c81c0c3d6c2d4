package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rhflow/internal/domain"
)

func strp(s string) *string { return &s }
func i64p(v int64) *int64   { return &v }

func TestBuildSystemPrompt(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	profile := domain.UserProfile{Name: "Ana", Role: domain.RoleAnalista}
	tasks := []domain.Task{
		{Title: "Folha de pagamento", Status: domain.StatusAberta, Importance: domain.ImportanceAlta, Deadline: strp("2024-03-08")},
		{Title: "Onboarding", Status: domain.StatusEmAndamento, Importance: domain.ImportanceMedia, Deadline: strp("2024-03-11")},
		{Title: "Arquivo morto", Status: domain.StatusConcluida, Importance: domain.ImportanceBaixa},
	}
	projects := []domain.Project{
		{Name: "Admissões Q1", StartDate: strp("2024-01-01"), EndDate: strp("2024-03-31")},
	}

	prompt := BuildSystemPrompt(profile, "Recursos Humanos", tasks, projects, now)

	assert.Contains(t, prompt, "Nome: Ana")
	assert.Contains(t, prompt, "Cargo: analista")
	assert.Contains(t, prompt, "Departamento: Recursos Humanos")
	assert.Contains(t, prompt, "TAREFAS ATUAIS (3 tarefas)")
	assert.Contains(t, prompt, "Prazo: 08/03/2024 (ATRASADO)")
	assert.Contains(t, prompt, "(URGENTE)")
	assert.Contains(t, prompt, "- Admissões Q1 (01/01/2024 - 31/03/2024)")
	assert.Contains(t, prompt, "- Atrasadas: 1")
	assert.Contains(t, prompt, "- Próximas do prazo (48h): 1")
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	profile := domain.UserProfile{Name: "Caio", Role: domain.RoleEstagiario, Position: strp("Estagiário de DP")}

	prompt := BuildSystemPrompt(profile, "", nil, nil, now)

	assert.Contains(t, prompt, "Departamento: Não especificado")
	assert.Contains(t, prompt, "Cargo: Estagiário de DP")
	assert.Contains(t, prompt, "TAREFAS ATUAIS (0 tarefas)")
}

func TestBuildOverdueAlert(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	overdue := []domain.Task{
		{Title: "Ponto", Deadline: strp("2024-03-09"), ProjectID: i64p(3)},
	}
	names := map[int64]string{3: "Fechamento"}

	msg := BuildOverdueAlert("Ana", overdue, names, now)

	// singular digests carry the marker only in the uppercase header; the
	// dedup LIKE is ASCII case-insensitive, so match the same way here
	assert.Contains(t, strings.ToLower(msg), OverdueMarker)
	assert.Contains(t, msg, "**ALERTA DE TAREFAS ATRASADAS**")
	assert.Contains(t, msg, "Olá, Ana!")
	assert.Contains(t, msg, "1 tarefa atrasada que precisa")
	assert.Contains(t, msg, "• Ponto - Prazo: 09/03/2024 (2 dias atrasada) - Projeto: Fechamento")
	assert.Contains(t, msg, "Foque em concluir essas tarefas")
}

func TestBuildOverdueAlertManyTasks(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	var overdue []domain.Task
	for _, title := range []string{"a", "b", "c", "d"} {
		overdue = append(overdue, domain.Task{Title: title, Deadline: strp("2024-03-05")})
	}

	msg := BuildOverdueAlert("Ana", overdue, nil, now)

	assert.Contains(t, msg, "4 tarefas atrasadas que precisam")
	assert.Contains(t, msg, "Priorize as tarefas mais antigas primeiro")
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"auth", &APIError{Status: 401}, MsgAuthError},
		{"rate limit", &APIError{Status: 429}, MsgRateLimited},
		{"quota", &APIError{Status: 400, Code: "insufficient_quota"}, MsgQuotaExceeded},
		{"other api error", &APIError{Status: 500}, MsgGenericError},
		{"plain error", errors.New("boom"), MsgGenericError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyError(tc.err))
		})
	}
}

func TestClientComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "oi"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "gpt-4o-mini")
	reply, err := c.Complete(context.Background(), "system prompt", []Message{{Role: "user", Content: "olá"}})
	require.NoError(t, err)
	assert.Equal(t, "oi", reply)

	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content, "system prompt"))
}

func TestClientCompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "slow down", "type": "rate_limit", "code": "rate_limit_exceeded"},
		})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL, "")
	_, err := c.Complete(context.Background(), "s", []Message{{Role: "user", Content: "x"}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 429, apiErr.Status)
	assert.Equal(t, "rate_limit_exceeded", apiErr.Code)
}

func TestClientNotConfigured(t *testing.T) {
	assert.False(t, NewClient("", "", "").Configured())
	assert.True(t, NewClient("k", "", "").Configured())
}
