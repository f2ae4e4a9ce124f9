package services

import (
	"slices"

	"collabspace/models"
)

// CanSeeTeam reports whether userID owns the team, is assigned to it or is
// one of its members.
func CanSeeTeam(userID string, team *models.Team) bool {
	return team.OwnerID == userID ||
		slices.Contains(team.AssignedUsers, userID) ||
		team.HasMember(userID)
}

// CanSeeProject needs the ids of the teams userID can see, so team
// visibility has to be resolved first.
func CanSeeProject(userID string, project *models.Project, visibleTeamIDs map[string]bool) bool {
	return project.OwnerID == userID ||
		slices.Contains(project.AssignedUsers, userID) ||
		(project.AssignedTeam != "" && visibleTeamIDs[project.AssignedTeam])
}

// ResolveVisibility filters teams then projects down to what userID may see.
// Input order is preserved.
func ResolveVisibility(userID string, teams []models.Team, projects []models.Project) ([]models.Team, []models.Project) {
	visibleTeams := make([]models.Team, 0, len(teams))
	teamIDs := make(map[string]bool, len(teams))
	for i := range teams {
		if CanSeeTeam(userID, &teams[i]) {
			visibleTeams = append(visibleTeams, teams[i])
			teamIDs[teams[i].ID] = true
		}
	}

	visibleProjects := make([]models.Project, 0, len(projects))
	for i := range projects {
		if CanSeeProject(userID, &projects[i], teamIDs) {
			visibleProjects = append(visibleProjects, projects[i])
		}
	}
	return visibleTeams, visibleProjects
}
