package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"collabspace/events"
	"collabspace/models"
	"collabspace/repositories"

	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	ctx      context.Context
	store    *repositories.Store
	events   *events.EventManager
	users    *UserService
	teams    *TeamService
	projects *ProjectService
	tasks    *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repositories.NewMemoryStore()
	em := events.NewEventManager()
	users := NewUserService(store.Users, em, bcrypt.MinCost)
	projects := NewProjectService(store.Projects, store.Teams, users, em)
	f := &fixture{
		ctx:      context.Background(),
		store:    store,
		events:   em,
		users:    users,
		teams:    NewTeamService(store.Teams, store.Projects, users, em),
		projects: projects,
		tasks:    NewTaskService(store.Projects, projects, em),
	}
	t.Cleanup(em.Wait)
	return f
}

func (f *fixture) user(t *testing.T, first, last string) *models.User {
	t.Helper()
	u, err := f.users.Create(f.ctx, models.NewUser{
		Email:     strings.ToLower(first + "." + last + "@example.com"),
		FirstName: first,
		LastName:  last,
		Password:  "secret1",
	})
	if err != nil {
		t.Fatalf("create user %s %s: %v", first, last, err)
	}
	return u
}

func (f *fixture) team(t *testing.T, owner *models.User, name string, members ...*models.User) *models.Team {
	t.Helper()
	team, err := f.teams.Create(f.ctx, owner.ID, name, "", models.TeamPrivate)
	if err != nil {
		t.Fatalf("create team %s: %v", name, err)
	}
	for _, m := range members {
		if team, err = f.teams.AddMember(f.ctx, owner.ID, team.ID, models.MemberRef{UserID: m.ID}); err != nil {
			t.Fatalf("add %s to %s: %v", m.ID, name, err)
		}
	}
	return team
}

func (f *fixture) project(t *testing.T, owner *models.User, team *models.Team, name string) *models.Project {
	t.Helper()
	p, err := f.projects.Create(f.ctx, owner.ID, models.NewProject{Name: name, TeamID: team.ID})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return p
}

func (f *fixture) task(t *testing.T, actor *models.User, projectID, title string, assignees ...*models.User) *models.Task {
	t.Helper()
	ids := make([]string, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.ID)
	}
	task, err := f.tasks.AddTask(f.ctx, actor.ID, projectID, models.NewTask{
		Title: title, DueDate: "2030-01-15", AssignedMembers: ids,
	})
	if err != nil {
		t.Fatalf("add task %s: %v", title, err)
	}
	return task
}

func (f *fixture) stored(t *testing.T, projectID string) *models.Project {
	t.Helper()
	p, err := f.store.Projects.FindProjectByID(f.ctx, projectID)
	if err != nil {
		t.Fatalf("load project %s: %v", projectID, err)
	}
	return p
}

func wantErr(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("got error %v, want %v", err, kind)
	}
}
