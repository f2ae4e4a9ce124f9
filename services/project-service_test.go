package services

import (
	"testing"

	"collabspace/models"
)

func TestCreateProjectRequiresTeam(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	carol := f.user(t, "carol", "petit")
	other := f.team(t, carol, "Ops")

	for _, teamID := range []string{"", "  ", "missing", other.ID} {
		_, err := f.projects.Create(f.ctx, alice.ID, models.NewProject{Name: "X", TeamID: teamID})
		wantErr(t, err, ErrTeamRequired)
	}
	projects, _ := f.store.Projects.ListProjects(f.ctx)
	if len(projects) != 0 {
		t.Errorf("%d projects stored after rejected creates", len(projects))
	}
}

func TestCreateProjectDefaults(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	team := f.team(t, alice, "Core")

	p, err := f.projects.Create(f.ctx, alice.ID, models.NewProject{Name: "Website", DueDate: "2030-06-01", TeamID: team.ID})
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.ProjectPending || p.Progress != 0 || len(p.Tasks) != 0 {
		t.Errorf("got status %q progress %d tasks %d", p.Status, p.Progress, len(p.Tasks))
	}
	if p.AssignedTeam != team.ID || p.AssignedTeamName != "Core" {
		t.Errorf("team = %q (%q)", p.AssignedTeam, p.AssignedTeamName)
	}
	if len(p.AssignedUsers) != 1 || p.AssignedUsers[0] != alice.ID {
		t.Errorf("assignedUsers = %v", p.AssignedUsers)
	}

	_, err = f.projects.Create(f.ctx, alice.ID, models.NewProject{Name: " ", TeamID: team.ID})
	wantErr(t, err, ErrValidation)
	_, err = f.projects.Create(f.ctx, alice.ID, models.NewProject{Name: "Late", DueDate: "01/06/2030", TeamID: team.ID})
	wantErr(t, err, ErrValidation)
}

func TestProjectTeamNameIsResolvedOnRead(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	team := f.team(t, alice, "Core")
	p := f.project(t, alice, team, "Website")

	name := "Platform"
	if _, err := f.teams.Update(f.ctx, alice.ID, team.ID, models.TeamPatch{Name: &name}); err != nil {
		t.Fatal(err)
	}
	got, err := f.projects.Get(f.ctx, alice.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTeamName != "Platform" {
		t.Errorf("assignedTeamName = %q, want the current team name", got.AssignedTeamName)
	}

	if err := f.store.Teams.DeleteTeam(f.ctx, team.ID); err != nil {
		t.Fatal(err)
	}
	got, err = f.projects.Get(f.ctx, alice.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedTeamName != models.NoTeamName {
		t.Errorf("assignedTeamName = %q for a dangling team", got.AssignedTeamName)
	}
}

func TestProjectVisibilityThroughTeam(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	bob := f.user(t, "bob", "durand")
	carol := f.user(t, "carol", "petit")
	team := f.team(t, alice, "Core")
	p := f.project(t, alice, team, "Website")

	_, err := f.projects.Get(f.ctx, bob.ID, p.ID)
	wantErr(t, err, ErrNotFound)

	if _, err := f.teams.AddMember(f.ctx, alice.ID, team.ID, models.MemberRef{UserID: bob.ID}); err != nil {
		t.Fatal(err)
	}
	list, err := f.projects.ListVisibleTo(f.ctx, bob.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != p.ID {
		t.Errorf("bob sees %+v", list)
	}
	list, _ = f.projects.ListVisibleTo(f.ctx, carol.ID)
	if len(list) != 0 {
		t.Errorf("carol sees %d projects", len(list))
	}

	err = f.projects.Delete(f.ctx, bob.ID, p.ID)
	wantErr(t, err, ErrForbidden)
	if err := f.projects.Delete(f.ctx, alice.ID, p.ID); err != nil {
		t.Fatal(err)
	}
	_, err = f.projects.Get(f.ctx, alice.ID, p.ID)
	wantErr(t, err, ErrNotFound)
}

func TestAssignableMembers(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	bob := f.user(t, "bob", "durand")
	team := f.team(t, alice, "Core", bob)
	p := f.project(t, alice, team, "Website")

	members, err := f.projects.AssignableMembers(f.ctx, alice.ID, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0].UserID != bob.ID {
		t.Errorf("members = %+v", members)
	}
}
