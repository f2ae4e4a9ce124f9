package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"collabspace/events"
	"collabspace/logging"
	"collabspace/models"
	"collabspace/repositories"

	"github.com/google/uuid"
)

type TeamService struct {
	teams    repositories.TeamRepository
	projects repositories.ProjectRepository
	users    *UserService
	events   *events.EventManager
	now      func() time.Time
}

func NewTeamService(teams repositories.TeamRepository, projects repositories.ProjectRepository, users *UserService, em *events.EventManager) *TeamService {
	return &TeamService{
		teams:    teams,
		projects: projects,
		users:    users,
		events:   em,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *TeamService) Create(ctx context.Context, ownerID, name, description string, visibility models.TeamVisibility) (*models.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("team name is required")
	}
	if visibility == "" {
		visibility = models.TeamPrivate
	}
	if !visibility.Valid() {
		return nil, validationf("unknown visibility %q", visibility)
	}
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		return nil, err
	}

	team := &models.Team{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(description),
		OwnerID:       ownerID,
		Members:       []models.Member{},
		AssignedUsers: []string{ownerID},
		Visibility:    visibility,
		CreatedAt:     s.now(),
		Projects:      0,
	}
	if err := s.teams.InsertTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	logging.Logger.Infof("Event ID: TEAM_CREATED, Description: Team %s (%s) created by %s", team.ID, team.Name, ownerID)
	s.events.Publish(events.Event{Type: events.TeamCreated, ActorID: ownerID, Data: events.TeamPayload{Team: *team}})
	return team, nil
}

// Get returns the team if userID may see it. Invisible teams read as missing.
func (s *TeamService) Get(ctx context.Context, userID, teamID string) (*models.Team, error) {
	team, err := s.loadVisible(ctx, userID, teamID)
	if err != nil {
		return nil, err
	}
	decorated := []models.Team{*team}
	if err := s.decorate(ctx, decorated); err != nil {
		return nil, err
	}
	return &decorated[0], nil
}

func (s *TeamService) ListVisibleTo(ctx context.Context, userID string) ([]models.Team, error) {
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	visible, _ := ResolveVisibility(userID, teams, nil)
	if err := s.decorate(ctx, visible); err != nil {
		return nil, err
	}
	return visible, nil
}

// decorate fills the read-only projections: member display names from the
// user directory and the number of projects assigned to each team.
func (s *TeamService) decorate(ctx context.Context, teams []models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	counts := make(map[string]int)
	for _, p := range projects {
		counts[p.AssignedTeam]++
	}

	for i := range teams {
		for j, m := range teams[i].Members {
			if name, ok := names[m.UserID]; ok {
				teams[i].Members[j].Name = name
			}
		}
		teams[i].Projects = counts[teams[i].ID]
	}
	return nil
}

func (s *TeamService) loadVisible(ctx context.Context, userID, teamID string) (*models.Team, error) {
	team, err := s.teams.FindTeamByID(ctx, teamID)
	if err != nil {
		return nil, storageErr(err, "team")
	}
	if !CanSeeTeam(userID, team) {
		return nil, notFoundf("team not found")
	}
	return team, nil
}

func (s *TeamService) loadOwned(ctx context.Context, actorID, teamID string) (*models.Team, error) {
	team, err := s.loadVisible(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}
	if team.OwnerID != actorID {
		return nil, forbiddenf("only the team owner can change team %s", team.Name)
	}
	return team, nil
}

func (s *TeamService) Update(ctx context.Context, actorID, teamID string, patch models.TeamPatch) (*models.Team, error) {
	team, err := s.loadOwned(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		if team.Name = strings.TrimSpace(*patch.Name); team.Name == "" {
			return nil, validationf("team name is required")
		}
	}
	if patch.Description != nil {
		team.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Visibility != nil {
		if !patch.Visibility.Valid() {
			return nil, validationf("unknown visibility %q", *patch.Visibility)
		}
		team.Visibility = *patch.Visibility
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, storageErr(err, "team")
	}
	s.events.Publish(events.Event{Type: events.TeamUpdated, ActorID: actorID, Data: events.TeamPayload{Team: *team}})
	return s.Get(ctx, actorID, teamID)
}

// AddMember adds a user to the team's member relation. The user may be named
// by id or by display name; the name must resolve to exactly one active user.
func (s *TeamService) AddMember(ctx context.Context, actorID, teamID string, ref models.MemberRef) (*models.Team, error) {
	team, err := s.loadOwned(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}

	var user *models.User
	if ref.UserID != "" {
		user, err = s.users.FindByID(ctx, ref.UserID)
	} else {
		user, err = s.users.FindByDisplayName(ctx, ref.Name)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, validationf("%s is not an active user", user.DisplayName())
	}
	if team.HasMember(user.ID) {
		return nil, fmt.Errorf("%w: %s is already a member of team %s", ErrAlreadyMember, user.DisplayName(), team.Name)
	}

	member := models.Member{UserID: user.ID, Name: user.DisplayName()}
	team.Members = append(team.Members, member)
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, storageErr(err, "team")
	}

	logging.Logger.Infof("Event ID: TEAM_MEMBER_ADDED, Description: User %s added to team %s", user.ID, team.ID)
	s.events.Publish(events.Event{Type: events.MemberAdded, ActorID: actorID, Data: events.MemberPayload{Team: *team, Member: member}})
	return s.Get(ctx, actorID, teamID)
}

func (s *TeamService) RemoveMember(ctx context.Context, actorID, teamID, userID string) (*models.Team, error) {
	team, err := s.loadOwned(ctx, actorID, teamID)
	if err != nil {
		return nil, err
	}
	var removed models.Member
	for _, m := range team.Members {
		if m.UserID == userID {
			removed = m
		}
	}
	if !team.RemoveMember(userID) {
		return nil, notFoundf("user %s is not a member of team %s", userID, team.Name)
	}
	if err := s.teams.UpdateTeam(ctx, team); err != nil {
		return nil, storageErr(err, "team")
	}

	logging.Logger.Infof("Event ID: TEAM_MEMBER_REMOVED, Description: User %s removed from team %s", userID, team.ID)
	s.events.Publish(events.Event{Type: events.MemberRemoved, ActorID: actorID, Data: events.MemberPayload{Team: *team, Member: removed}})
	return s.Get(ctx, actorID, teamID)
}

// CascadePreview counts the projects Delete would remove.
func (s *TeamService) CascadePreview(ctx context.Context, userID, teamID string) (int, error) {
	if _, err := s.loadVisible(ctx, userID, teamID); err != nil {
		return 0, err
	}
	n, err := s.projects.CountProjectsByTeam(ctx, teamID)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return n, nil
}

// Delete removes the team and, irreversibly, every project assigned to it.
// Projects go first: if the team delete then fails, repeating the call
// finishes the job instead of leaving orphaned projects.
func (s *TeamService) Delete(ctx context.Context, actorID, teamID string) (int, error) {
	team, err := s.loadOwned(ctx, actorID, teamID)
	if err != nil {
		return 0, err
	}

	removed, err := s.projects.DeleteProjectsByTeam(ctx, teamID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete projects of team %s: %w", team.Name, err)
	}
	if err := s.teams.DeleteTeam(ctx, teamID); err != nil {
		return removed, storageErr(err, "team")
	}
	// Sweep again for projects created while the first pass ran.
	late, err := s.projects.DeleteProjectsByTeam(ctx, teamID)
	if err != nil {
		logging.Logger.Errorf("Event ID: TEAM_CASCADE_SWEEP_FAILED, Description: Team %s: %v", teamID, err)
	}
	removed += late

	logging.Logger.Infof("Event ID: TEAM_DELETED, Description: Team %s deleted by %s, %d project(s) removed", teamID, actorID, removed)
	team.Projects = 0
	s.events.Publish(events.Event{Type: events.TeamDeleted, ActorID: actorID, Data: events.TeamPayload{Team: *team, RemovedProjects: removed}})
	return removed, nil
}
