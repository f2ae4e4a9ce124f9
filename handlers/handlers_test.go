package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collabspace/events"
	"collabspace/models"
	"collabspace/repositories"
	"collabspace/services"
	"collabspace/utils"

	"golang.org/x/crypto/bcrypt"
)

type testServer struct {
	*httptest.Server
	t      *testing.T
	users  *services.UserService
	events *events.EventManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repositories.NewMemoryStore()
	em := events.NewEventManager()
	users := services.NewUserService(store.Users, em, bcrypt.MinCost)
	teams := services.NewTeamService(store.Teams, store.Projects, users, em)
	projects := services.NewProjectService(store.Projects, store.Teams, users, em)
	tokens, err := utils.NewTokenManager("handler-test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	notifications := services.NewNotificationService(repositories.NewMemoryNotificationRepo())
	notifications.Register(em)
	watcher := services.NewVisibilityWatcher(teams, projects, time.Hour)
	watcher.Register(em)

	srv := httptest.NewServer(NewRouter(Services{
		Auth:          services.NewAuthService(users, tokens),
		Users:         users,
		Teams:         teams,
		Projects:      projects,
		Tasks:         services.NewTaskService(store.Projects, projects, em),
		Dashboard:     services.NewDashboardService(projects),
		Notifications: notifications,
		Watcher:       watcher,
	}, "*"))
	t.Cleanup(func() {
		srv.Close()
		em.Wait()
	})
	return &testServer{Server: srv, t: t, users: users, events: em}
}

// do sends body as JSON and decodes the response into out when it is non-nil.
func (s *testServer) do(method, path, token string, body, out interface{}) int {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		s.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("%s %s: decode response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (s *testServer) register(first, last string) (string, *models.User) {
	s.t.Helper()
	var res struct {
		Token string       `json:"token"`
		User  *models.User `json:"user"`
	}
	status := s.do(http.MethodPost, "/api/auth/register", "", models.NewUser{
		Email: strings.ToLower(first) + "@example.com", FirstName: first, LastName: last, Password: "secret1",
	}, &res)
	if status != http.StatusCreated {
		s.t.Fatalf("register %s: status %d", first, status)
	}
	return res.Token, res.User
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]string
	if status := s.do(http.MethodGet, "/health", "", nil, &body); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token, alice := s.register("Alice", "Martin")

	var me models.User
	if status := s.do(http.MethodGet, "/api/auth/me", token, nil, &me); status != http.StatusOK || me.ID != alice.ID {
		t.Fatalf("me = %d %+v", status, me)
	}

	var res struct {
		Token string `json:"token"`
	}
	if status := s.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "alice@example.com", "password": "secret1"}, &res); status != http.StatusOK || res.Token == "" {
		t.Fatalf("signin = %d", status)
	}

	var errBody map[string]string
	status := s.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "alice@example.com", "password": "nope"}, &errBody)
	if status != http.StatusUnauthorized || !strings.Contains(errBody["error"], "Login et mot de passe invalides") {
		t.Errorf("bad signin = %d %v", status, errBody)
	}

	if status := s.do(http.MethodPost, "/api/auth/register", "", models.NewUser{Email: "alice@example.com"}, nil); status != http.StatusConflict {
		t.Errorf("duplicate register = %d, want 409", status)
	}
	if status := s.do(http.MethodGet, "/api/teams", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", status)
	}
	if status := s.do(http.MethodGet, "/api/teams", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", status)
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)
	req, _ := http.NewRequest(http.MethodOptions, s.URL+"/api/teams", nil)
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %q", resp.StatusCode, resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestTeamProjectTaskFlow(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register("Alice", "Martin")
	bobToken, bob := s.register("Bob", "Durand")
	carolToken, _ := s.register("Carol", "Petit")

	var team models.Team
	if status := s.do(http.MethodPost, "/api/teams", aliceToken, map[string]string{"name": "Core"}, &team); status != http.StatusCreated {
		t.Fatalf("create team = %d", status)
	}

	if status := s.do(http.MethodPost, "/api/projects", aliceToken, models.NewProject{Name: "Orphan"}, nil); status != http.StatusUnprocessableEntity {
		t.Errorf("project without team = %d, want 422", status)
	}

	var project models.Project
	if status := s.do(http.MethodPost, "/api/projects", aliceToken, models.NewProject{Name: "Website", TeamID: team.ID}, &project); status != http.StatusCreated {
		t.Fatalf("create project = %d", status)
	}
	if project.AssignedTeamName != "Core" || project.Status != models.ProjectPending {
		t.Errorf("project = %+v", project)
	}

	newTask := models.NewTask{Title: "Landing", DueDate: "2030-01-15", AssignedMembers: []string{bob.ID}}
	if status := s.do(http.MethodPost, "/api/projects/"+project.ID+"/tasks", aliceToken, newTask, nil); status != http.StatusPreconditionFailed {
		t.Errorf("task on empty team = %d, want 412", status)
	}

	if status := s.do(http.MethodPost, "/api/teams/"+team.ID+"/members", bobToken, models.MemberRef{UserID: bob.ID}, nil); status != http.StatusNotFound {
		t.Errorf("outsider add member = %d, want 404", status)
	}
	if status := s.do(http.MethodPost, "/api/teams/"+team.ID+"/members", aliceToken, models.MemberRef{Name: "Bob Durand"}, &team); status != http.StatusOK {
		t.Fatalf("add member = %d", status)
	}
	if status := s.do(http.MethodPost, "/api/teams/"+team.ID+"/members", aliceToken, models.MemberRef{UserID: bob.ID}, nil); status != http.StatusConflict {
		t.Errorf("add member twice = %d, want 409", status)
	}

	if status := s.do(http.MethodPost, "/api/projects/"+project.ID+"/tasks", aliceToken, models.NewTask{Title: "No due", AssignedMembers: []string{bob.ID}}, nil); status != http.StatusBadRequest {
		t.Errorf("task without due date = %d, want 400", status)
	}
	var task models.Task
	if status := s.do(http.MethodPost, "/api/projects/"+project.ID+"/tasks", aliceToken, newTask, &task); status != http.StatusCreated {
		t.Fatalf("add task = %d", status)
	}

	if status := s.do(http.MethodPut, "/api/tasks/"+task.ID+"/status", bobToken, map[string]string{"status": "done"}, &task); status != http.StatusOK || task.CompletedAt == nil {
		t.Fatalf("set status = %d %+v", status, task)
	}
	if status := s.do(http.MethodGet, "/api/projects/"+project.ID, bobToken, nil, &project); status != http.StatusOK {
		t.Fatal(status)
	}
	if project.Progress != 100 || project.Status != models.ProjectCompleted {
		t.Errorf("progress %d status %q", project.Progress, project.Status)
	}

	if status := s.do(http.MethodGet, "/api/projects/"+project.ID, carolToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("invisible project = %d, want 404", status)
	}
	if status := s.do(http.MethodDelete, "/api/teams/"+team.ID, bobToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("member deletes team = %d, want 403", status)
	}

	var stats models.DashboardStats
	if status := s.do(http.MethodGet, "/api/dashboard", bobToken, nil, &stats); status != http.StatusOK || stats.TotalProjects != 1 || stats.TaskCompletionRate != 100 {
		t.Errorf("dashboard = %d %+v", status, stats)
	}

	var preview map[string]int
	if status := s.do(http.MethodGet, "/api/teams/"+team.ID+"/cascade", aliceToken, nil, &preview); status != http.StatusOK || preview["projects"] != 1 {
		t.Errorf("cascade preview = %d %v", status, preview)
	}
	var deleted map[string]int
	if status := s.do(http.MethodDelete, "/api/teams/"+team.ID, aliceToken, nil, &deleted); status != http.StatusOK || deleted["deletedProjects"] != 1 {
		t.Errorf("delete team = %d %v", status, deleted)
	}
	if status := s.do(http.MethodGet, "/api/projects/"+project.ID, aliceToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("project after cascade = %d, want 404", status)
	}
}

func TestUserPermissions(t *testing.T) {
	s := newTestServer(t)
	aliceToken, alice := s.register("Alice", "Martin")
	_, bob := s.register("Bob", "Durand")

	if status := s.do(http.MethodPut, "/api/users/"+bob.ID, aliceToken, map[string]string{"firstName": "X"}, nil); status != http.StatusForbidden {
		t.Errorf("edit other user = %d, want 403", status)
	}
	if status := s.do(http.MethodPut, "/api/users/"+alice.ID, aliceToken, map[string]string{"role": "Admin"}, nil); status != http.StatusForbidden {
		t.Errorf("self promotion = %d, want 403", status)
	}
	var updated models.User
	if status := s.do(http.MethodPut, "/api/users/"+alice.ID, aliceToken, map[string]string{"firstName": "Alicia"}, &updated); status != http.StatusOK || updated.FirstName != "Alicia" {
		t.Errorf("self edit = %d %+v", status, updated)
	}
	if status := s.do(http.MethodDelete, "/api/users/"+bob.ID, aliceToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("member delete = %d, want 403", status)
	}

	if _, err := s.users.SeedDefaults(context.Background()); err != nil {
		t.Fatal(err)
	}
	var admin struct {
		Token string `json:"token"`
	}
	s.do(http.MethodPost, "/api/auth/signin", "", map[string]string{"email": "admin@collabspace.com", "password": "admin123"}, &admin)
	if admin.Token != "" {
		t.Fatal("seeding must not touch a non-empty directory")
	}

	var users []models.User
	if status := s.do(http.MethodGet, "/api/users", aliceToken, nil, &users); status != http.StatusOK || len(users) != 2 {
		t.Errorf("list users = %d, %d users", status, len(users))
	}
	raw := map[string]interface{}{}
	s.do(http.MethodGet, "/api/users/"+bob.ID, aliceToken, nil, &raw)
	if _, leaked := raw["password"]; leaked {
		t.Error("password hash exposed in user payload")
	}
}

func TestNotificationsEndpoints(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register("Alice", "Martin")
	bobToken, bob := s.register("Bob", "Durand")

	var team models.Team
	s.do(http.MethodPost, "/api/teams", aliceToken, map[string]string{"name": "Core"}, &team)
	s.do(http.MethodPost, "/api/teams/"+team.ID+"/members", aliceToken, models.MemberRef{UserID: bob.ID}, nil)
	s.events.Wait()

	var list []models.Notification
	if status := s.do(http.MethodGet, "/api/notifications", bobToken, nil, &list); status != http.StatusOK || len(list) != 1 {
		t.Fatalf("notifications = %d %+v", status, list)
	}
	n := list[0]

	if status := s.do(http.MethodPut, "/api/notifications/"+n.ID+"/read", bobToken, nil, nil); status != http.StatusBadRequest {
		t.Errorf("missing createdAt = %d, want 400", status)
	}
	query := "?createdAt=" + n.CreatedAt.Format(time.RFC3339Nano)
	if status := s.do(http.MethodPut, "/api/notifications/"+n.ID+"/read"+query, bobToken, nil, nil); status != http.StatusNoContent {
		t.Errorf("mark read = %d", status)
	}
	if status := s.do(http.MethodDelete, "/api/notifications/"+n.ID+query, aliceToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("delete someone else's notification = %d, want 404", status)
	}
	if status := s.do(http.MethodDelete, "/api/notifications/"+n.ID+query, bobToken, nil, nil); status != http.StatusNoContent {
		t.Errorf("delete = %d", status)
	}
}

func TestVisibilityStream(t *testing.T) {
	s := newTestServer(t)
	aliceToken, _ := s.register("Alice", "Martin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.URL+"/api/visibility/stream", nil)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if data, ok := strings.CutPrefix(scanner.Text(), "data: "); ok {
				lines <- data
			}
		}
	}()
	next := func() models.VisibilitySnapshot {
		t.Helper()
		select {
		case data, ok := <-lines:
			if !ok {
				t.Fatal("stream ended")
			}
			var snap models.VisibilitySnapshot
			if err := json.Unmarshal([]byte(data), &snap); err != nil {
				t.Fatal(err)
			}
			return snap
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for event")
		}
		return models.VisibilitySnapshot{}
	}

	if snap := next(); len(snap.Teams) != 0 {
		t.Fatalf("initial teams = %+v", snap.Teams)
	}
	s.do(http.MethodPost, "/api/teams", aliceToken, map[string]string{"name": "Core"}, nil)
	snap := next()
	for len(snap.Teams) == 0 {
		snap = next()
	}
	if snap.Teams[0].Name != "Core" {
		t.Errorf("streamed teams = %+v", snap.Teams)
	}
}
