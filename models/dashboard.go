package models

import "time"

type DashboardStats struct {
	TotalProjects      int                  `json:"totalProjects"`
	ActiveProjects     int                  `json:"activeProjects"`
	CompletedProjects  int                  `json:"completedProjects"`
	CompletionRate     int                  `json:"completionRate"`
	AverageProgress    int                  `json:"averageProgress"`
	TotalTeams         int                  `json:"totalTeams"`
	TotalTeamMembers   int                  `json:"totalTeamMembers"`
	TotalTasks         int                  `json:"totalTasks"`
	TaskCompletionRate int                  `json:"taskCompletionRate"`
	TasksByStatus      map[TaskStatus]int   `json:"tasksByStatus"`
	TasksByPriority    map[TaskPriority]int `json:"tasksByPriority"`
}

// VisibilitySnapshot is what one user can see at a point in time.
type VisibilitySnapshot struct {
	Teams      []Team    `json:"teams"`
	Projects   []Project `json:"projects"`
	ResolvedAt time.Time `json:"resolvedAt"`
}
