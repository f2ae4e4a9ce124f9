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

// TaskService manages tasks embedded in projects. Every change rewrites the
// owning project record and recomputes its progress.
type TaskService struct {
	projects       repositories.ProjectRepository
	projectService *ProjectService
	events         *events.EventManager
	now            func() time.Time
}

func NewTaskService(projects repositories.ProjectRepository, projectService *ProjectService, em *events.EventManager) *TaskService {
	return &TaskService{
		projects:       projects,
		projectService: projectService,
		events:         em,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *TaskService) AddTask(ctx context.Context, userID, projectID string, data models.NewTask) (*models.Task, error) {
	project, team, err := s.projectService.loadVisible(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if team == nil || len(team.Members) == 0 {
		return nil, fmt.Errorf("%w: the project's team has no members to assign the task to", ErrPreconditionFailed)
	}

	if len(data.AssignedMembers) == 0 {
		return nil, validationf("at least one team member must be assigned")
	}
	title := strings.TrimSpace(data.Title)
	if title == "" {
		return nil, validationf("task title is required")
	}
	dueDate := strings.TrimSpace(data.DueDate)
	if dueDate == "" {
		return nil, validationf("task due date is required")
	}
	if !validDate(dueDate) {
		return nil, validationf("due date must use the YYYY-MM-DD format")
	}

	assigned := make([]string, 0, len(data.AssignedMembers))
	seen := make(map[string]bool, len(data.AssignedMembers))
	for _, id := range data.AssignedMembers {
		if seen[id] {
			continue
		}
		if !team.HasMember(id) {
			return nil, validationf("user %s is not a member of team %s", id, team.Name)
		}
		seen[id] = true
		assigned = append(assigned, id)
	}

	priority := data.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		return nil, validationf("unknown priority %q", priority)
	}
	status := data.Status
	if status == "" {
		status = models.TaskTodo
	}
	if !status.Valid() {
		return nil, validationf("unknown task status %q", status)
	}

	now := s.now()
	task := models.Task{
		ID:              uuid.NewString(),
		Title:           title,
		Description:     strings.TrimSpace(data.Description),
		Status:          status,
		Priority:        priority,
		AssignedMembers: assigned,
		DueDate:         dueDate,
		CreatedAt:       now,
	}
	if status == models.TaskDone {
		task.CompletedAt = &now
	}

	project.Tasks = append(project.Tasks, task)
	RecomputeProgress(project)
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, storageErr(err, "project")
	}

	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s added to project %s, progress now %d%%", task.ID, project.ID, project.Progress)
	s.events.Publish(events.Event{Type: events.TaskCreated, ActorID: userID, Data: events.TaskPayload{
		ProjectID: project.ID, ProjectName: project.Name, Task: task.Clone(),
	}})
	return &task, nil
}

func (s *TaskService) loadTask(ctx context.Context, userID, taskID string) (*models.Project, int, error) {
	project, err := s.projects.FindProjectByTaskID(ctx, taskID)
	if err != nil {
		return nil, -1, storageErr(err, "task")
	}
	if _, _, err := s.projectService.checkVisible(ctx, userID, project); err != nil {
		return nil, -1, notFoundf("task not found")
	}
	return project, project.TaskIndex(taskID), nil
}

// SetStatus moves a task to status. Entering done stamps completedAt,
// leaving done clears it.
func (s *TaskService) SetStatus(ctx context.Context, userID, taskID string, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, validationf("unknown task status %q", status)
	}
	project, i, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	task := &project.Tasks[i]
	switch {
	case status == models.TaskDone && task.Status != models.TaskDone:
		now := s.now()
		task.CompletedAt = &now
	case status != models.TaskDone:
		task.CompletedAt = nil
	}
	task.Status = status

	RecomputeProgress(project)
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return nil, storageErr(err, "project")
	}

	updated := task.Clone()
	logging.Logger.Infof("Event ID: TASK_STATUS_CHANGED, Description: Task %s set to %s, project %s progress %d%%", taskID, status, project.ID, project.Progress)
	s.events.Publish(events.Event{Type: events.TaskUpdated, ActorID: userID, Data: events.TaskPayload{
		ProjectID: project.ID, ProjectName: project.Name, Task: updated,
	}})
	return &updated, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID string) error {
	project, i, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return err
	}

	removed := project.Tasks[i]
	project.Tasks = append(project.Tasks[:i:i], project.Tasks[i+1:]...)
	RecomputeProgress(project)
	if err := s.projects.UpdateProject(ctx, project); err != nil {
		return storageErr(err, "project")
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s removed from project %s", taskID, project.ID)
	s.events.Publish(events.Event{Type: events.TaskDeleted, ActorID: userID, Data: events.TaskPayload{
		ProjectID: project.ID, ProjectName: project.Name, Task: removed,
	}})
	return nil
}
