package services

import (
	"context"
	"math"

	"collabspace/models"
)

type DashboardService struct {
	projects *ProjectService
}

func NewDashboardService(projects *ProjectService) *DashboardService {
	return &DashboardService{projects: projects}
}

func (s *DashboardService) Stats(ctx context.Context, userID string) (*models.DashboardStats, error) {
	teams, projects, err := s.projects.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return ComputeStats(teams, projects), nil
}

func percent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(whole)))
}

// ComputeStats aggregates what a user can see into dashboard figures.
func ComputeStats(teams []models.Team, projects []models.Project) *models.DashboardStats {
	stats := &models.DashboardStats{
		TotalProjects: len(projects),
		TotalTeams:    len(teams),
		TasksByStatus: map[models.TaskStatus]int{
			models.TaskTodo: 0, models.TaskInProgress: 0, models.TaskDone: 0,
		},
		TasksByPriority: map[models.TaskPriority]int{
			models.PriorityLow: 0, models.PriorityMedium: 0, models.PriorityHigh: 0,
		},
	}

	progressSum := 0
	for _, p := range projects {
		switch p.Status {
		case models.ProjectActive:
			stats.ActiveProjects++
		case models.ProjectCompleted:
			stats.CompletedProjects++
		}
		progressSum += p.Progress
		for _, t := range p.Tasks {
			stats.TotalTasks++
			stats.TasksByStatus[t.Status]++
			stats.TasksByPriority[t.Priority]++
		}
	}
	for _, t := range teams {
		stats.TotalTeamMembers += len(t.Members)
	}

	stats.CompletionRate = percent(stats.CompletedProjects, stats.TotalProjects)
	if stats.TotalProjects > 0 {
		stats.AverageProgress = int(math.Round(float64(progressSum) / float64(stats.TotalProjects)))
	}
	stats.TaskCompletionRate = percent(stats.TasksByStatus[models.TaskDone], stats.TotalTasks)
	return stats
}
