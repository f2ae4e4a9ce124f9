package services

import (
	"context"
	"testing"
	"time"

	"collabspace/models"
	"collabspace/repositories"
)

func receive(t *testing.T, ch <-chan models.VisibilitySnapshot) models.VisibilitySnapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return models.VisibilitySnapshot{}
}

func TestWatcherPushesChanges(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	w := NewVisibilityWatcher(f.teams, f.projects, time.Hour)
	w.Register(f.events)

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	ch, err := w.Subscribe(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap := receive(t, ch); len(snap.Teams) != 0 || len(snap.Projects) != 0 {
		t.Fatalf("initial snapshot = %+v", snap)
	}

	f.team(t, alice, "Core")
	snap := receive(t, ch)
	for len(snap.Teams) == 0 {
		snap = receive(t, ch)
	}
	if snap.Teams[0].Name != "Core" {
		t.Errorf("teams = %+v", snap.Teams)
	}
}

type hookedTeams struct {
	repositories.TeamRepository
	afterList func()
}

func (h *hookedTeams) ListTeams(ctx context.Context) ([]models.Team, error) {
	teams, err := h.TeamRepository.ListTeams(ctx)
	if hook := h.afterList; hook != nil {
		h.afterList = nil
		hook()
	}
	return teams, err
}

func TestWatcherKeepsChangeDuringFirstSnapshot(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	f.events.Wait()

	repo := &hookedTeams{TeamRepository: f.store.Teams}
	teams := NewTeamService(repo, f.store.Projects, f.users, f.events)
	projects := NewProjectService(f.store.Projects, repo, f.users, f.events)
	w := NewVisibilityWatcher(teams, projects, time.Hour)
	w.Register(f.events)

	// The first snapshot has already read the team list when the team is
	// created, so only the event-driven refresh can report it.
	repo.afterList = func() {
		f.team(t, alice, "Core")
		f.events.Wait()
	}

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	ch, err := w.Subscribe(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	if snap := receive(t, ch); len(snap.Teams) != 1 || snap.Teams[0].Name != "Core" {
		t.Errorf("teams = %+v", snap.Teams)
	}
}

func TestWatcherRefreshSeesOutOfBandWrites(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	f.events.Wait()
	w := NewVisibilityWatcher(f.teams, f.projects, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(f.ctx)
	defer cancel()
	ch, err := w.Subscribe(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)

	// Written straight to the store, so no event is published.
	team := &models.Team{ID: "t-ext", Name: "External", OwnerID: alice.ID, AssignedUsers: []string{alice.ID}, Visibility: models.TeamPrivate}
	if err := f.store.Teams.InsertTeam(f.ctx, team); err != nil {
		t.Fatal(err)
	}

	w.Start()
	defer w.Stop()
	if snap := receive(t, ch); len(snap.Teams) != 1 || snap.Teams[0].ID != "t-ext" {
		t.Errorf("teams = %+v", snap.Teams)
	}
}

func TestWatcherClosesOnCancel(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	w := NewVisibilityWatcher(f.teams, f.projects, time.Hour)

	ctx, cancel := context.WithCancel(f.ctx)
	ch, err := w.Subscribe(ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("unexpected snapshot after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := w.Subscribers(); n != 0 {
		t.Errorf("%d subscribers left", n)
	}
}

func TestWatcherCloseAll(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "martin")
	w := NewVisibilityWatcher(f.teams, f.projects, time.Hour)

	ch, err := w.Subscribe(f.ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}
	receive(t, ch)
	w.CloseAll()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after CloseAll")
	}
	if n := w.Subscribers(); n != 0 {
		t.Errorf("%d subscribers left", n)
	}
}
