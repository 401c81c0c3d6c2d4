package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"rhflow/internal/assistant"
	"rhflow/internal/config"
	"rhflow/internal/db"
	"rhflow/internal/engine"
	"rhflow/internal/migrate"
	"rhflow/internal/server"
	"rhflow/internal/storage"
	rhflowsdk "rhflow/sdk/go"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := storage.NewDir(dir + "/attachments")
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	eng := engine.New(conn, config.Default(dir), store, assistant.NewClient("", "", ""))
	eng.Now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }

	handler, err := server.New(server.Config{
		Engine:   eng,
		BasePath: "/api",
		Auth:     server.AuthConfig{JWTSecret: testSecret},
	})
	if err != nil {
		t.Fatalf("server: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server, subject string) *rhflowsdk.Client {
	t.Helper()
	token, err := server.IssueToken(testSecret, subject, subject+"@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return rhflowsdk.New(srv.URL+"/api", token)
}

func TestHealthNoAuth(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", res.StatusCode)
	}
}

func TestMissingTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	res, err := http.Get(srv.URL + "/api/me")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestInvalidTokenRejected(t *testing.T) {
	srv := newTestServer(t)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", res.StatusCode)
	}
}

func TestProfileOnboarding(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newClient(t, srv, "ext-1")

	// no profile yet
	if _, err := client.Me(ctx); err == nil {
		t.Fatalf("expected 404 before onboarding")
	}

	created, err := client.CreateProfile(ctx, "Ana", "ana@example.com", "analista")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	// first user is promoted
	if created.Role != "c-level" {
		t.Fatalf("first profile role = %s, want c-level", created.Role)
	}

	me, err := client.Me(ctx)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if me.ExternalID != "ext-1" || me.Name != "Ana" {
		t.Fatalf("unexpected profile: %+v", me)
	}
}

func TestTaskFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newClient(t, srv, "ext-1")
	if _, err := client.CreateProfile(ctx, "Ana", "ana@example.com", "c-level"); err != nil {
		t.Fatal(err)
	}

	task, err := client.CreateTask(ctx, map[string]any{"title": "Revisar ponto", "importance": "alta"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != "aberta" || task.Importance != "alta" {
		t.Fatalf("unexpected task: %+v", task)
	}

	// starting without an assignee is rejected
	if _, err := client.UpdateTask(ctx, task.ID, map[string]any{"status": "em_andamento"}); err == nil {
		t.Fatalf("expected 400 starting unassigned task")
	}

	me, _ := client.Me(ctx)
	task, err = client.UpdateTask(ctx, task.ID, map[string]any{
		"status":      "em_andamento",
		"assignee_id": me.ID,
		"comment":     "começando",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.Status != "em_andamento" {
		t.Fatalf("status = %s", task.Status)
	}

	updates, err := client.TaskUpdates(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 || updates[0].Comment != "começando" {
		t.Fatalf("updates: %+v", updates)
	}
	if updates[0].StatusBefore != "aberta" || updates[0].StatusAfter != "em_andamento" {
		t.Fatalf("transition: %+v", updates[0])
	}

	log, err := client.TaskChangeLog(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	// creation + status + assignee_id
	if len(log) != 3 {
		t.Fatalf("change log rows = %d, want 3", len(log))
	}

	tasks, err := client.ListTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("tasks = %d", len(tasks))
	}
}

func TestAttachmentsOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newClient(t, srv, "ext-1")
	if _, err := client.CreateProfile(ctx, "Ana", "ana@example.com", "c-level"); err != nil {
		t.Fatal(err)
	}
	task, err := client.CreateTask(ctx, map[string]any{"title": "com anexos"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.UpdateTask(ctx, task.ID, map[string]any{"comment": "segue arquivo"}); err != nil {
		t.Fatal(err)
	}
	updates, err := client.TaskUpdates(ctx, task.ID)
	if err != nil || len(updates) != 1 {
		t.Fatalf("updates: %v (%d)", err, len(updates))
	}

	results, err := client.UploadAttachments(ctx, task.ID, updates[0].ID, map[string][]byte{
		"doc.txt": []byte("conteudo do documento"),
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(results) != 1 || results[0].Error != "" || results[0].Attachment == nil {
		t.Fatalf("results: %+v", results)
	}

	data, err := client.DownloadAttachment(ctx, results[0].Attachment.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "conteudo do documento" {
		t.Fatalf("round trip mismatch: %q", data)
	}

	// attachments ride along on the update listing
	updates, err = client.TaskUpdates(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates[0].Attachments) != 1 || updates[0].Attachments[0].Filename != "doc.txt" {
		t.Fatalf("attachments: %+v", updates[0].Attachments)
	}
}

func TestAdminGateOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	boss := newClient(t, srv, "ext-1")
	if _, err := boss.CreateProfile(ctx, "Ana", "ana@example.com", "c-level"); err != nil {
		t.Fatal(err)
	}
	intern := newClient(t, srv, "ext-2")
	if _, err := intern.CreateProfile(ctx, "Caio", "caio@example.com", "estagiario"); err != nil {
		t.Fatal(err)
	}

	body := `{"code":"RH","name":"Recursos Humanos"}`
	if status := doJSON(t, srv.URL+"/api/departments", intern.BearerToken, body); status != http.StatusForbidden {
		t.Fatalf("intern create department status = %d, want 403", status)
	}
	if status := doJSON(t, srv.URL+"/api/departments", boss.BearerToken, body); status != http.StatusCreated {
		t.Fatalf("boss create department status = %d, want 201", status)
	}
}

func TestListTasksProjectFilter(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newClient(t, srv, "ext-1")
	if _, err := client.CreateProfile(ctx, "Ana", "ana@example.com", "c-level"); err != nil {
		t.Fatal(err)
	}
	if status := doJSON(t, srv.URL+"/api/projects", client.BearerToken, `{"name":"Fechamento"}`); status != http.StatusCreated {
		t.Fatalf("create project status = %d", status)
	}
	if _, err := client.CreateTask(ctx, map[string]any{"title": "no projeto", "project_id": 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := client.CreateTask(ctx, map[string]any{"title": "avulsa"}); err != nil {
		t.Fatal(err)
	}

	var tasks []rhflowsdk.Task
	if status := getJSON(t, srv.URL+"/api/tasks?project_id=1", client.BearerToken, &tasks); status != http.StatusOK {
		t.Fatalf("filtered list status = %d", status)
	}
	if len(tasks) != 1 || tasks[0].Title != "no projeto" {
		t.Fatalf("filtered tasks: %+v", tasks)
	}

	if status := getJSON(t, srv.URL+"/api/tasks", client.BearerToken, &tasks); status != http.StatusOK {
		t.Fatalf("unfiltered list status = %d", status)
	}
	if len(tasks) != 2 {
		t.Fatalf("unfiltered tasks = %d, want 2", len(tasks))
	}
}

func TestPositionsByRoleEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	client := newClient(t, srv, "ext-1")
	if _, err := client.CreateProfile(ctx, "Ana", "ana@example.com", "c-level"); err != nil {
		t.Fatal(err)
	}
	if status := doJSON(t, srv.URL+"/api/positions", client.BearerToken, `{"name":"Analista Pleno","role":"analista"}`); status != http.StatusCreated {
		t.Fatalf("create position status = %d", status)
	}

	var positions []map[string]any
	if status := getJSON(t, srv.URL+"/api/positions/role/analista", client.BearerToken, &positions); status != http.StatusOK {
		t.Fatalf("by-role status = %d", status)
	}
	if len(positions) != 1 || positions[0]["name"] != "Analista Pleno" {
		t.Fatalf("positions: %+v", positions)
	}

	if status := getJSON(t, srv.URL+"/api/positions/role/diretor", client.BearerToken, nil); status != http.StatusBadRequest {
		t.Fatalf("unknown role status = %d, want 400", status)
	}
}

func getJSON(t *testing.T, url, token string, out any) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil && res.StatusCode == http.StatusOK {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res.StatusCode
}

func doJSON(t *testing.T, url, token, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	return res.StatusCode
}
