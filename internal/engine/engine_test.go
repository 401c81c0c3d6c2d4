package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"rhflow/internal/config"
	"rhflow/internal/db"
	"rhflow/internal/domain"
	"rhflow/internal/engine"
	"rhflow/internal/migrate"
	"rhflow/internal/storage"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
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
	eng := engine.New(conn, config.Default(dir), store, nil)
	eng.Now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return &testEnv{Engine: eng, Ctx: context.Background()}
}

func (env *testEnv) seedUser(t *testing.T, externalID, name string, role domain.Role) domain.UserProfile {
	t.Helper()
	p, err := env.Engine.CreateProfile(env.Ctx, engine.ProfileCreateOptions{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
		Name:       name,
		Role:       role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", externalID, err)
	}
	return p
}

func TestFirstProfileBecomesCLevel(t *testing.T) {
	env := newTestEnv(t)
	first := env.seedUser(t, "ext-1", "Ana", domain.RoleAnalista)
	if first.Role != domain.RoleCLevel {
		t.Fatalf("first profile role = %s, want c-level", first.Role)
	}
	second := env.seedUser(t, "ext-2", "Bruno", domain.RoleAnalista)
	if second.Role != domain.RoleAnalista {
		t.Fatalf("second profile role = %s, want analista", second.Role)
	}
}

func TestProfileInvalidRoleRejected(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	_, err := env.Engine.CreateProfile(env.Ctx, engine.ProfileCreateOptions{
		ExternalID: "ext-2", Name: "Bruno", Role: "diretor",
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestStartTaskRequiresAssignee(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	task, err := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "Revisar folha"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	started := domain.StatusEmAndamento
	_, err = env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: task.ID, Status: &started})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(ve.Message, "sem responsável") {
		t.Fatalf("unexpected message: %s", ve.Message)
	}

	// supplying the assignee in the same call satisfies the guard
	updated, err := env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{
		ID: task.ID, Status: &started, AssigneeID: &boss.ID,
	})
	if err != nil {
		t.Fatalf("start with assignee: %v", err)
	}
	if updated.Status != domain.StatusEmAndamento {
		t.Fatalf("status = %s", updated.Status)
	}
}

func TestUpdateTaskChangeLogAndComment(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	task, err := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "Treinamento"})
	if err != nil {
		t.Fatal(err)
	}

	title := "Treinamento NR-35"
	importance := domain.ImportanceAlta
	done := domain.StatusConcluida
	task, err = env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{
		ID:         task.ID,
		Title:      &title,
		Importance: &importance,
		Status:     &done,
		AssigneeID: &boss.ID,
		Comment:    "finalizado",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.CompletedAt == nil {
		t.Fatalf("expected completed_at to be set")
	}

	log, err := env.Engine.TaskChangeLog(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	// creation row + status, title, importance, assignee_id
	if len(log) != 5 {
		t.Fatalf("change log rows = %d, want 5", len(log))
	}
	fields := map[string]bool{}
	for _, entry := range log {
		fields[entry.Field] = true
	}
	for _, f := range []string{"created", "status", "title", "importance", "assignee_id"} {
		if !fields[f] {
			t.Fatalf("missing change log field %s", f)
		}
	}

	updates, err := env.Engine.TaskUpdates(env.Ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].StatusBefore != domain.StatusAberta || updates[0].StatusAfter != domain.StatusConcluida {
		t.Fatalf("transition = %s -> %s", updates[0].StatusBefore, updates[0].StatusAfter)
	}
}

func TestCompletedAtRestampedNeverCleared(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	task, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "Relatório"})

	done := domain.StatusConcluida
	task, err := env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: task.ID, Status: &done})
	if err != nil {
		t.Fatal(err)
	}
	firstStamp := *task.CompletedAt

	env.Engine.Now = func() time.Time { return time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC) }
	notes := "revisado"
	task, err = env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: task.ID, Notes: &notes})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil {
		t.Fatalf("completed_at cleared")
	}
	if *task.CompletedAt == firstStamp {
		t.Fatalf("completed_at not re-stamped while concluida")
	}

	// reopening does not clear the stamp
	open := domain.StatusAberta
	task, err = env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: task.ID, Status: &open})
	if err != nil {
		t.Fatal(err)
	}
	if task.CompletedAt == nil {
		t.Fatalf("completed_at cleared on reopen")
	}
}

func TestOverdueSweepOnList(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)

	past := "2024-03-08"
	today := "2024-03-10"
	overdue, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "atrasada", Deadline: &past})
	dueToday, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "hoje", Deadline: &today})
	noDeadline, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "sem prazo"})

	done := domain.StatusConcluida
	finished, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "feita", Deadline: &past, AssigneeID: &boss.ID})
	if _, err := env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: finished.ID, Status: &done}); err != nil {
		t.Fatal(err)
	}

	tasks, err := env.Engine.ListTasks(env.Ctx, boss, engine.TaskListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	byID := map[int64]domain.Task{}
	for _, task := range tasks {
		byID[task.ID] = task
	}
	if byID[overdue.ID].Status != domain.StatusNaoEntregue {
		t.Fatalf("overdue task status = %s, want nao_entregue", byID[overdue.ID].Status)
	}
	if byID[dueToday.ID].Status != domain.StatusAberta {
		t.Fatalf("due-today task swept early: %s", byID[dueToday.ID].Status)
	}
	if byID[noDeadline.ID].Status != domain.StatusAberta {
		t.Fatalf("no-deadline task swept: %s", byID[noDeadline.ID].Status)
	}
	if byID[finished.ID].Status != domain.StatusConcluida {
		t.Fatalf("concluida task swept: %s", byID[finished.ID].Status)
	}

	// a second sweep changes nothing
	again, err := env.Engine.ListTasks(env.Ctx, boss, engine.TaskListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range again {
		if task.Status != byID[task.ID].Status {
			t.Fatalf("task %d status changed on second sweep: %s -> %s", task.ID, byID[task.ID].Status, task.Status)
		}
	}
}

func TestVisibilityByRole(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	intern := env.seedUser(t, "ext-2", "Caio", domain.RoleEstagiario)

	mine, _ := env.Engine.CreateTask(env.Ctx, intern, engine.TaskCreateOptions{Title: "minha"})
	env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "da chefia"})

	all, err := env.Engine.ListTasks(env.Ctx, boss, engine.TaskListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("c-level sees %d tasks, want 2", len(all))
	}

	visible, err := env.Engine.ListTasks(env.Ctx, intern, engine.TaskListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ID != mine.ID {
		t.Fatalf("estagiario should see only own task, got %d", len(visible))
	}
}

func TestPositionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)

	p, err := env.Engine.CreatePosition(env.Ctx, boss, engine.PositionOptions{
		Name: "Analista de RH", Role: domain.RoleAnalista, Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.Code != "CRG0001" {
		t.Fatalf("code = %s, want CRG0001", p.Code)
	}

	_, err = env.Engine.CreatePosition(env.Ctx, boss, engine.PositionOptions{
		Name: "Analista de RH", Role: domain.RoleAnalista, Active: true,
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) || !strings.Contains(ve.Message, "Já existe um cargo") {
		t.Fatalf("expected duplicate-name error, got %v", err)
	}

	// same name under a different role is fine
	if _, err := env.Engine.CreatePosition(env.Ctx, boss, engine.PositionOptions{
		Name: "Analista de RH", Role: domain.RoleSupervisao, Active: true,
	}); err != nil {
		t.Fatalf("same name different role: %v", err)
	}

	deactivated, err := env.Engine.UpdatePosition(env.Ctx, boss, p.ID, engine.PositionOptions{
		Name: "Analista de RH", Role: domain.RoleAnalista, Active: false,
	})
	if err != nil {
		t.Fatal(err)
	}
	if deactivated.InactivatedAt == nil {
		t.Fatalf("expected inactivated_at stamp")
	}
	stamp := *deactivated.InactivatedAt

	reactivated, err := env.Engine.UpdatePosition(env.Ctx, boss, p.ID, engine.PositionOptions{
		Name: "Analista de RH", Role: domain.RoleAnalista, Active: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reactivated.InactivatedAt == nil || *reactivated.InactivatedAt != stamp {
		t.Fatalf("inactivated_at should survive reactivation")
	}
}

func TestAdminGate(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	intern := env.seedUser(t, "ext-2", "Caio", domain.RoleEstagiario)

	_, err := env.Engine.CreateDepartment(env.Ctx, intern, engine.DepartmentOptions{Code: "RH", Name: "Recursos Humanos"})
	var fe engine.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err.Error() != "Access denied" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAdminUserExternalIDs(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)

	u1, err := env.Engine.CreateUser(env.Ctx, boss, engine.UserCreateOptions{Name: "Bruno", Role: domain.RoleAnalista})
	if err != nil {
		t.Fatal(err)
	}
	if u1.ExternalID != "USR0001" {
		t.Fatalf("external id = %s, want USR0001", u1.ExternalID)
	}
	u2, err := env.Engine.CreateUser(env.Ctx, boss, engine.UserCreateOptions{Name: "Clara", Role: domain.RoleAssistente})
	if err != nil {
		t.Fatal(err)
	}
	if u2.ExternalID != "USR0002" {
		t.Fatalf("external id = %s, want USR0002", u2.ExternalID)
	}
}

func TestAttachFiles(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	task, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "com anexo", AssigneeID: &boss.ID})

	started := domain.StatusEmAndamento
	if _, err := env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{
		ID: task.ID, Status: &started, Comment: "iniciando",
	}); err != nil {
		t.Fatal(err)
	}
	updates, err := env.Engine.TaskUpdates(env.Ctx, task.ID)
	if err != nil || len(updates) != 1 {
		t.Fatalf("updates: %v (%d)", err, len(updates))
	}
	updateID := updates[0].ID

	big := make([]byte, engine.MaxAttachmentSize+1)
	results, err := env.Engine.AttachFiles(env.Ctx, boss, task.ID, updateID, []engine.FileUpload{
		{Filename: "ok.txt", ContentType: "text/plain", Data: []byte("conteudo")},
		{Filename: "grande.bin", ContentType: "application/octet-stream", Data: big},
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Error != "" || results[0].Saved == nil {
		t.Fatalf("small file should succeed: %+v", results[0])
	}
	if !strings.Contains(results[1].Error, "10MB") {
		t.Fatalf("oversized file error = %q", results[1].Error)
	}

	// round trip through the store
	a, data, err := env.Engine.OpenAttachment(env.Ctx, results[0].Saved.ID)
	if err != nil {
		t.Fatalf("open attachment: %v", err)
	}
	if a.Filename != "ok.txt" || string(data) != "conteudo" {
		t.Fatalf("round trip mismatch: %s %q", a.Filename, data)
	}
}

func TestAttachFilesWrongUpdate(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	t1, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "t1"})
	t2, _ := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "t2"})

	if _, err := env.Engine.UpdateTask(env.Ctx, boss, engine.TaskUpdateOptions{ID: t2.ID, Comment: "nota"}); err != nil {
		t.Fatal(err)
	}
	updates, _ := env.Engine.TaskUpdates(env.Ctx, t2.ID)
	if len(updates) != 1 {
		t.Fatalf("updates = %d", len(updates))
	}

	_, err := env.Engine.AttachFiles(env.Ctx, boss, t1.ID, updates[0].ID, []engine.FileUpload{
		{Filename: "x.txt", Data: []byte("x")},
	})
	var ve engine.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTeamStats(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	coord, err := env.Engine.CreateUser(env.Ctx, boss, engine.UserCreateOptions{Name: "Dani", Role: domain.RoleCoordenacao})
	if err != nil {
		t.Fatal(err)
	}
	report, err := env.Engine.CreateUser(env.Ctx, boss, engine.UserCreateOptions{
		Name: "Caio", Role: domain.RoleAnalista, ManagerID: &coord.ID,
	})
	if err != nil {
		t.Fatal(err)
	}

	env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "a", AssigneeID: &report.ID})
	past := "2024-03-01"
	env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{Title: "b", AssigneeID: &report.ID, Deadline: &past})

	stats, err := env.Engine.TeamStats(env.Ctx, coord)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats rows = %d, want 1", len(stats))
	}
	if stats[0].Member.ID != report.ID || stats[0].Total != 2 {
		t.Fatalf("unexpected rollup: %+v", stats[0])
	}
	if stats[0].Overdue != 1 {
		t.Fatalf("overdue = %d, want 1", stats[0].Overdue)
	}

	// swept tasks stay in the overdue rollup
	if _, err := env.Engine.ListTasks(env.Ctx, boss, engine.TaskListOptions{}); err != nil {
		t.Fatal(err)
	}
	stats, err = env.Engine.TeamStats(env.Ctx, coord)
	if err != nil {
		t.Fatal(err)
	}
	if stats[0].NaoEntregue != 1 || stats[0].Overdue != 1 {
		t.Fatalf("post-sweep rollup: %+v", stats[0])
	}
}

func TestOverdueDigestIncludesCreatedTasks(t *testing.T) {
	env := newTestEnv(t)
	boss := env.seedUser(t, "ext-1", "Ana", domain.RoleCLevel)
	other := env.seedUser(t, "ext-2", "Bruno", domain.RoleAnalista)

	// overdue, created by boss but assigned to someone else
	past := "2024-03-08"
	if _, err := env.Engine.CreateTask(env.Ctx, boss, engine.TaskCreateOptions{
		Title: "delegada", Deadline: &past, AssigneeID: &other.ID,
	}); err != nil {
		t.Fatal(err)
	}

	res, err := env.Engine.CheckOverdueTasks(env.Ctx, boss)
	if err != nil {
		t.Fatal(err)
	}
	if !res.AlertSent || res.OverdueCount != 1 {
		t.Fatalf("digest: %+v", res)
	}
	if !strings.Contains(res.Message, "delegada") {
		t.Fatalf("digest message: %s", res.Message)
	}

	// singular digest still dedups: the marker only appears uppercased
	res, err = env.Engine.CheckOverdueTasks(env.Ctx, boss)
	if err != nil {
		t.Fatal(err)
	}
	if res.AlertSent || res.Reason != "already_sent_today" {
		t.Fatalf("second digest: %+v", res)
	}
}
