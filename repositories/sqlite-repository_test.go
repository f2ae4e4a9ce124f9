package repositories

import (
	"context"
	"path/filepath"
	"testing"

	"collabspace/models"
)

func newSQLiteTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "collabspace.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storeSuite(t, newSQLiteTestStore)
}

func TestSQLiteReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collabspace.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	team := newTeam("t1", "u1", 0)
	if err := s.Teams.InsertTeam(ctx, team); err != nil {
		t.Fatalf("InsertTeam: %v", err)
	}
	s.Close(ctx)

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close(ctx)
	if _, err := s.Teams.FindTeamByID(ctx, "t1"); err != nil {
		t.Fatalf("team lost across reopen: %v", err)
	}
}

func TestSQLiteFindTeamLoadsOnlyItsOwnChildren(t *testing.T) {
	s := newSQLiteTestStore(t)
	ctx := context.Background()

	a := newTeam("t1", "u1", 0)
	a.Members = []models.Member{{UserID: "u2", Name: "Bob"}, {UserID: "u3", Name: "Carol"}}
	a.AssignedUsers = []string{"u1", "u4"}
	b := newTeam("t2", "u5", 1)
	b.Members = []models.Member{{UserID: "u6", Name: "Dan"}}
	for _, team := range []*models.Team{a, b} {
		if err := s.Teams.InsertTeam(ctx, team); err != nil {
			t.Fatalf("InsertTeam %s: %v", team.ID, err)
		}
	}

	got, err := s.Teams.FindTeamByID(ctx, "t1")
	if err != nil {
		t.Fatalf("FindTeamByID: %v", err)
	}
	if len(got.Members) != 2 || got.Members[0].UserID != "u2" || got.Members[1].UserID != "u3" {
		t.Errorf("members = %+v", got.Members)
	}
	if len(got.AssignedUsers) != 2 || got.AssignedUsers[0] != "u1" || got.AssignedUsers[1] != "u4" {
		t.Errorf("assignedUsers = %v", got.AssignedUsers)
	}

	got, err = s.Teams.FindTeamByID(ctx, "t2")
	if err != nil {
		t.Fatalf("FindTeamByID: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].Name != "Dan" || len(got.AssignedUsers) != 1 {
		t.Errorf("team t2 = %+v", got)
	}
}
