package repositories

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"collabspace/models"
)

// storeSuite is run against every driver so they agree on semantics.
func storeSuite(t *testing.T, newStore func(t *testing.T) *Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s *Store)
	}{
		{"users", testUsers},
		{"team versioning", testTeamVersioning},
		{"team relations round trip", testTeamRelations},
		{"projects with tasks", testProjectsWithTasks},
		{"delete projects by team", testDeleteProjectsByTeam},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

var epoch = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return epoch.Add(time.Duration(minutes) * time.Minute) }

func testUsers(t *testing.T, s *Store) {
	ctx := context.Background()
	alice := &models.User{ID: "u1", Email: "alice@example.com", FirstName: "Alice", LastName: "Martin",
		Password: "hash", Role: models.RoleAdmin, Status: models.UserActive, CreatedAt: at(0), UpdatedAt: at(0)}
	bob := &models.User{ID: "u2", Email: "bob@example.com", FirstName: "Bob", LastName: "Dupont",
		Password: "hash", Role: models.RoleMember, Status: models.UserInactive, CreatedAt: at(1), UpdatedAt: at(1)}

	for _, u := range []*models.User{alice, bob} {
		if err := s.Users.InsertUser(ctx, u); err != nil {
			t.Fatalf("InsertUser(%s): %v", u.ID, err)
		}
	}

	dup := *bob
	dup.ID = "u3"
	dup.Email = alice.Email
	if err := s.Users.InsertUser(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate email insert: got %v, want ErrDuplicate", err)
	}

	got, err := s.Users.FindUserByEmail(ctx, "bob@example.com")
	if err != nil || got.ID != "u2" || got.Status != models.UserInactive {
		t.Fatalf("FindUserByEmail = %+v, %v", got, err)
	}
	if _, err := s.Users.FindUserByID(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindUserByID(missing) = %v, want ErrNotFound", err)
	}

	bob.Email = alice.Email
	if err := s.Users.UpdateUser(ctx, bob); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("update to taken email: got %v, want ErrDuplicate", err)
	}
	bob.Email = "robert@example.com"
	bob.FirstName = "Robert"
	if err := s.Users.UpdateUser(ctx, bob); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	got, _ = s.Users.FindUserByID(ctx, "u2")
	if got.FirstName != "Robert" || got.Email != "robert@example.com" {
		t.Fatalf("update not persisted: %+v", got)
	}

	ghost := *alice
	ghost.ID = "ghost"
	ghost.Email = "ghost@example.com"
	if err := s.Users.UpdateUser(ctx, &ghost); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing user: got %v, want ErrNotFound", err)
	}

	users, err := s.Users.ListUsers(ctx)
	if err != nil || len(users) != 2 || users[0].ID != "u1" {
		t.Fatalf("ListUsers = %v, %v", users, err)
	}
	if n, _ := s.Users.CountUsers(ctx); n != 2 {
		t.Fatalf("CountUsers = %d, want 2", n)
	}

	if ok, err := s.Users.DeleteUser(ctx, "u1"); !ok || err != nil {
		t.Fatalf("DeleteUser = %v, %v", ok, err)
	}
	if ok, _ := s.Users.DeleteUser(ctx, "u1"); ok {
		t.Fatal("second delete should report false")
	}
}

func newTeam(id, owner string, minute int) *models.Team {
	return &models.Team{
		ID: id, Name: "Team " + id, OwnerID: owner,
		Members:       []models.Member{},
		AssignedUsers: []string{owner},
		Visibility:    models.TeamPrivate,
		CreatedAt:     at(minute),
	}
}

func testTeamVersioning(t *testing.T, s *Store) {
	ctx := context.Background()
	if err := s.Teams.InsertTeam(ctx, newTeam("t1", "u1", 0)); err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}

	first, _ := s.Teams.FindTeamByID(ctx, "t1")
	second, _ := s.Teams.FindTeamByID(ctx, "t1")

	first.Name = "Platform"
	if err := s.Teams.UpdateTeam(ctx, first); err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	if first.Version != 1 {
		t.Fatalf("version after update = %d, want 1", first.Version)
	}

	second.Name = "Lost update"
	if err := s.Teams.UpdateTeam(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale update: got %v, want ErrConflict", err)
	}

	stored, _ := s.Teams.FindTeamByID(ctx, "t1")
	if stored.Name != "Platform" {
		t.Fatalf("stale writer overwrote the record: %q", stored.Name)
	}

	missing := newTeam("nope", "u1", 0)
	if err := s.Teams.UpdateTeam(ctx, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update missing team: got %v, want ErrNotFound", err)
	}
	if err := s.Teams.DeleteTeam(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete missing team: got %v, want ErrNotFound", err)
	}
}

func testTeamRelations(t *testing.T, s *Store) {
	ctx := context.Background()
	team := newTeam("t1", "u1", 0)
	team.Members = []models.Member{{UserID: "u3", Name: "Carla"}, {UserID: "u2", Name: "Bob"}}
	team.AssignedUsers = []string{"u1", "u4"}
	if err := s.Teams.InsertTeam(ctx, team); err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}
	if err := s.Teams.InsertTeam(ctx, newTeam("t2", "u2", 1)); err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}

	got, err := s.Teams.FindTeamByID(ctx, "t1")
	if err != nil {
		t.Fatalf("FindTeamByID: %v", err)
	}
	if fmt.Sprint(got.Members) != fmt.Sprint(team.Members) {
		t.Errorf("members = %v, want %v in insertion order", got.Members, team.Members)
	}
	if fmt.Sprint(got.AssignedUsers) != "[u1 u4]" {
		t.Errorf("assigned users = %v", got.AssignedUsers)
	}

	got.RemoveMember("u3")
	if err := s.Teams.UpdateTeam(ctx, got); err != nil {
		t.Fatalf("UpdateTeam: %v", err)
	}
	teams, err := s.Teams.ListTeams(ctx)
	if err != nil || len(teams) != 2 {
		t.Fatalf("ListTeams = %v, %v", teams, err)
	}
	if teams[0].ID != "t1" || len(teams[0].Members) != 1 || teams[0].Members[0].UserID != "u2" {
		t.Errorf("after removal team t1 = %+v", teams[0])
	}
	if len(teams[1].Members) != 0 {
		t.Errorf("team t2 should have no members: %+v", teams[1].Members)
	}
}

func newProject(id, team string, minute int) *models.Project {
	return &models.Project{
		ID: id, Name: "Project " + id, OwnerID: "u1", AssignedTeam: team,
		AssignedUsers: []string{"u1"},
		Status:        models.ProjectPending,
		Tasks:         []models.Task{},
		CreatedAt:     at(minute),
	}
}

func testProjectsWithTasks(t *testing.T, s *Store) {
	ctx := context.Background()
	p := newProject("p1", "t1", 0)
	if err := s.Projects.InsertProject(ctx, p); err != nil {
		t.Fatalf("InsertProject: %v", err)
	}

	done := at(30)
	p.Tasks = append(p.Tasks,
		models.Task{ID: "k1", Title: "Write", Status: models.TaskDone, Priority: models.PriorityHigh,
			AssignedMembers: []string{"u2"}, DueDate: "2024-02-01", CreatedAt: at(10), CompletedAt: &done},
		models.Task{ID: "k2", Title: "Review", Status: models.TaskTodo, Priority: models.PriorityLow,
			AssignedMembers: []string{"u2", "u3"}, DueDate: "2024-02-02", CreatedAt: at(11)},
	)
	p.Progress = 50
	p.Status = models.ProjectActive
	if err := s.Projects.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject: %v", err)
	}

	got, err := s.Projects.FindProjectByTaskID(ctx, "k2")
	if err != nil {
		t.Fatalf("FindProjectByTaskID: %v", err)
	}
	if got.ID != "p1" || len(got.Tasks) != 2 || got.Progress != 50 || got.Status != models.ProjectActive {
		t.Fatalf("project = %+v", got)
	}
	if got.Tasks[0].ID != "k1" || got.Tasks[0].CompletedAt == nil || !got.Tasks[0].CompletedAt.Equal(done) {
		t.Errorf("first task = %+v", got.Tasks[0])
	}
	if got.Tasks[1].CompletedAt != nil || fmt.Sprint(got.Tasks[1].AssignedMembers) != "[u2 u3]" {
		t.Errorf("second task = %+v", got.Tasks[1])
	}

	stale := got.Clone()
	stale.Version = 0
	if err := s.Projects.UpdateProject(ctx, stale); !errors.Is(err, ErrConflict) {
		t.Fatalf("stale project update: got %v, want ErrConflict", err)
	}

	if _, err := s.Projects.FindProjectByTaskID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindProjectByTaskID(missing) = %v", err)
	}

	if err := s.Projects.DeleteProject(ctx, "p1"); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}
	if _, err := s.Projects.FindProjectByTaskID(ctx, "k1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("tasks must go with their project, got %v", err)
	}
	if err := s.Projects.DeleteProject(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteProject = %v", err)
	}
}

func testDeleteProjectsByTeam(t *testing.T, s *Store) {
	ctx := context.Background()
	for i, p := range []*models.Project{
		newProject("p1", "t1", 0),
		newProject("p2", "t2", 1),
		newProject("p3", "t1", 2),
	} {
		if err := s.Projects.InsertProject(ctx, p); err != nil {
			t.Fatalf("InsertProject #%d: %v", i, err)
		}
	}

	if n, _ := s.Projects.CountProjectsByTeam(ctx, "t1"); n != 2 {
		t.Fatalf("CountProjectsByTeam = %d, want 2", n)
	}
	removed, err := s.Projects.DeleteProjectsByTeam(ctx, "t1")
	if err != nil || removed != 2 {
		t.Fatalf("DeleteProjectsByTeam = %d, %v", removed, err)
	}

	left, _ := s.Projects.ListProjects(ctx)
	if len(left) != 1 || left[0].ID != "p2" {
		t.Fatalf("remaining projects = %+v", left)
	}
}

func notificationSuite(t *testing.T, repo NotificationRepository) {
	ctx := context.Background()
	older := &models.Notification{ID: "8e0c5a52-7b3f-4c55-9d36-0a8a2e3b0a01", UserID: "u1", Message: "first", CreatedAt: at(0)}
	newer := &models.Notification{ID: "8e0c5a52-7b3f-4c55-9d36-0a8a2e3b0a02", UserID: "u1", Message: "second", CreatedAt: at(5)}
	other := &models.Notification{ID: "8e0c5a52-7b3f-4c55-9d36-0a8a2e3b0a03", UserID: "u2", Message: "elsewhere", CreatedAt: at(1)}
	for _, n := range []*models.Notification{older, newer, other} {
		if err := repo.InsertNotification(ctx, n); err != nil {
			t.Fatalf("InsertNotification: %v", err)
		}
	}

	list, err := repo.ListNotifications(ctx, "u1")
	if err != nil || len(list) != 2 || list[0].Message != "second" {
		t.Fatalf("ListNotifications = %+v, %v", list, err)
	}

	if err := repo.MarkNotificationRead(ctx, "u1", older.ID, older.CreatedAt); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if err := repo.MarkNotificationRead(ctx, "u2", older.ID, older.CreatedAt); !errors.Is(err, ErrNotFound) {
		t.Fatalf("marking another user's notification: got %v, want ErrNotFound", err)
	}
	list, _ = repo.ListNotifications(ctx, "u1")
	if !list[1].IsRead || list[0].IsRead {
		t.Fatalf("read flags = %+v", list)
	}

	if err := repo.DeleteNotification(ctx, "u1", newer.ID, newer.CreatedAt); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}
	list, _ = repo.ListNotifications(ctx, "u1")
	if len(list) != 1 || list[0].ID != older.ID {
		t.Fatalf("after delete = %+v", list)
	}
}
