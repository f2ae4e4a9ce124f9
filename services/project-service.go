package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"collabspace/events"
	"collabspace/logging"
	"collabspace/models"
	"collabspace/repositories"

	"github.com/google/uuid"
)

type ProjectService struct {
	projects repositories.ProjectRepository
	teams    repositories.TeamRepository
	users    *UserService
	events   *events.EventManager
	now      func() time.Time
}

func NewProjectService(projects repositories.ProjectRepository, teams repositories.TeamRepository, users *UserService, em *events.EventManager) *ProjectService {
	return &ProjectService{
		projects: projects,
		teams:    teams,
		users:    users,
		events:   em,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func validDate(value string) bool {
	_, err := time.Parse(models.DateLayout, value)
	return err == nil
}

// Create makes a project assigned to teamID. The team must exist and be
// visible to the owner; there is no project without a team.
func (s *ProjectService) Create(ctx context.Context, ownerID string, data models.NewProject) (*models.Project, error) {
	teamID := strings.TrimSpace(data.TeamID)
	if teamID == "" {
		return nil, fmt.Errorf("%w: a project must be assigned to a team", ErrTeamRequired)
	}
	team, err := s.teams.FindTeamByID(ctx, teamID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && !CanSeeTeam(ownerID, team)) {
		return nil, fmt.Errorf("%w: team %s does not exist", ErrTeamRequired, teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load team: %w", err)
	}

	name := strings.TrimSpace(data.Name)
	if name == "" {
		return nil, validationf("project name is required")
	}
	dueDate := strings.TrimSpace(data.DueDate)
	if dueDate != "" && !validDate(dueDate) {
		return nil, validationf("due date must use the YYYY-MM-DD format")
	}
	if _, err := s.users.FindByID(ctx, ownerID); err != nil {
		return nil, err
	}

	project := &models.Project{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   strings.TrimSpace(data.Description),
		DueDate:       dueDate,
		OwnerID:       ownerID,
		AssignedTeam:  team.ID,
		AssignedUsers: []string{ownerID},
		Tasks:         []models.Task{},
		CreatedAt:     s.now(),
	}
	RecomputeProgress(project)
	if err := s.projects.InsertProject(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	// A team delete may have swept its projects between the check above and
	// the insert. If the team is gone now, take the project back out.
	if _, err := s.teams.FindTeamByID(ctx, team.ID); errors.Is(err, repositories.ErrNotFound) {
		if err := s.projects.DeleteProject(ctx, project.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			logging.Logger.Errorf("Event ID: PROJECT_ORPHAN_CLEANUP_FAILED, Description: Project %s: %v", project.ID, err)
		}
		return nil, fmt.Errorf("%w: team %s was deleted", ErrTeamRequired, team.ID)
	}

	logging.Logger.Infof("Event ID: PROJECT_CREATED, Description: Project %s (%s) created by %s for team %s", project.ID, project.Name, ownerID, team.ID)
	s.events.Publish(events.Event{Type: events.ProjectCreated, ActorID: ownerID, Data: events.ProjectPayload{Project: *project}})

	project.AssignedTeamName = team.Name
	return project, nil
}

func (s *ProjectService) Get(ctx context.Context, userID, projectID string) (*models.Project, error) {
	project, team, err := s.loadVisible(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	var teams []models.Team
	if team != nil {
		teams = append(teams, *team)
	}
	decorated := []models.Project{*project}
	if err := s.decorate(ctx, decorated, teams); err != nil {
		return nil, err
	}
	return &decorated[0], nil
}

// loadVisible returns the project and its team, if the team still exists.
func (s *ProjectService) loadVisible(ctx context.Context, userID, projectID string) (*models.Project, *models.Team, error) {
	project, err := s.projects.FindProjectByID(ctx, projectID)
	if err != nil {
		return nil, nil, storageErr(err, "project")
	}
	return s.checkVisible(ctx, userID, project)
}

func (s *ProjectService) checkVisible(ctx context.Context, userID string, project *models.Project) (*models.Project, *models.Team, error) {
	team, err := s.teams.FindTeamByID(ctx, project.AssignedTeam)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load team: %w", err)
	}
	visibleTeams := map[string]bool{}
	if team != nil && CanSeeTeam(userID, team) {
		visibleTeams[team.ID] = true
	}
	if !CanSeeProject(userID, project, visibleTeams) {
		return nil, nil, notFoundf("project not found")
	}
	return project, team, nil
}

func (s *ProjectService) ListVisibleTo(ctx context.Context, userID string) ([]models.Project, error) {
	_, projects, err := s.Resolve(ctx, userID)
	return projects, err
}

// Resolve loads everything and applies the visibility rules for userID,
// teams first. Projects come back decorated.
func (s *ProjectService) Resolve(ctx context.Context, userID string) ([]models.Team, []models.Project, error) {
	teams, err := s.teams.ListTeams(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list teams: %w", err)
	}
	projects, err := s.projects.ListProjects(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list projects: %w", err)
	}
	visibleTeams, visibleProjects := ResolveVisibility(userID, teams, projects)
	if err := s.decorate(ctx, visibleProjects, teams); err != nil {
		return nil, nil, err
	}
	return visibleTeams, visibleProjects, nil
}

// decorate resolves the team name and task assignee names at read time.
func (s *ProjectService) decorate(ctx context.Context, projects []models.Project, teams []models.Team) error {
	if len(projects) == 0 {
		return nil
	}
	teamNames := make(map[string]string, len(teams))
	for _, t := range teams {
		teamNames[t.ID] = t.Name
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return err
	}
	userNames := make(map[string]string, len(users))
	for i := range users {
		userNames[users[i].ID] = users[i].DisplayName()
	}

	for i := range projects {
		p := &projects[i]
		if name, ok := teamNames[p.AssignedTeam]; ok {
			p.AssignedTeamName = name
		} else {
			p.AssignedTeamName = models.NoTeamName
		}
		for j := range p.Tasks {
			names := make([]string, 0, len(p.Tasks[j].AssignedMembers))
			for _, id := range p.Tasks[j].AssignedMembers {
				if name, ok := userNames[id]; ok {
					names = append(names, name)
				} else {
					names = append(names, id)
				}
			}
			p.Tasks[j].AssignedMemberNames = names
		}
	}
	return nil
}

func (s *ProjectService) Delete(ctx context.Context, actorID, projectID string) error {
	project, _, err := s.loadVisible(ctx, actorID, projectID)
	if err != nil {
		return err
	}
	if project.OwnerID != actorID {
		return forbiddenf("only the project owner can delete project %s", project.Name)
	}
	if err := s.projects.DeleteProject(ctx, projectID); err != nil {
		return storageErr(err, "project")
	}

	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: Project %s deleted by %s with %d task(s)", projectID, actorID, len(project.Tasks))
	s.events.Publish(events.Event{Type: events.ProjectDeleted, ActorID: actorID, Data: events.ProjectPayload{Project: *project}})
	return nil
}

// AssignableMembers is the live member list of the project's team, the only
// users a task in this project can be assigned to.
func (s *ProjectService) AssignableMembers(ctx context.Context, userID, projectID string) ([]models.Member, error) {
	_, team, err := s.loadVisible(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if team == nil {
		return []models.Member{}, nil
	}
	return team.Members, nil
}
