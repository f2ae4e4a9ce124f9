package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"collabspace/events"
	"collabspace/logging"
	"collabspace/models"
	"collabspace/repositories"

	"github.com/google/uuid"
)

type NotificationService struct {
	repo repositories.NotificationRepository
	now  func() time.Time
}

func NewNotificationService(repo repositories.NotificationRepository) *NotificationService {
	return &NotificationService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Register subscribes the inbox to the events that concern other users.
func (s *NotificationService) Register(em *events.EventManager) {
	em.Subscribe(events.MemberAdded, s.onMemberAdded)
	em.Subscribe(events.TeamDeleted, s.onTeamDeleted)
	em.Subscribe(events.TaskCreated, s.onTaskCreated)
}

func (s *NotificationService) onMemberAdded(e events.Event) {
	p, ok := e.Data.(events.MemberPayload)
	if !ok || p.Member.UserID == e.ActorID {
		return
	}
	s.notify(p.Member.UserID, fmt.Sprintf("You were added to team %s", p.Team.Name))
}

func (s *NotificationService) onTeamDeleted(e events.Event) {
	p, ok := e.Data.(events.TeamPayload)
	if !ok {
		return
	}
	message := fmt.Sprintf("Team %s was deleted, %d project(s) removed", p.Team.Name, p.RemovedProjects)
	recipients := append([]string{p.Team.OwnerID}, p.Team.AssignedUsers...)
	recipients = append(recipients, p.Team.MemberIDs()...)
	seen := map[string]bool{e.ActorID: true}
	for _, id := range recipients {
		if !seen[id] {
			seen[id] = true
			s.notify(id, message)
		}
	}
}

func (s *NotificationService) onTaskCreated(e events.Event) {
	p, ok := e.Data.(events.TaskPayload)
	if !ok {
		return
	}
	for _, id := range p.Task.AssignedMembers {
		if id != e.ActorID {
			s.notify(id, fmt.Sprintf("You were assigned to task %q in project %s", p.Task.Title, p.ProjectName))
		}
	}
}

func (s *NotificationService) notify(userID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.Create(ctx, userID, message); err != nil {
		logging.Logger.Errorf("Event ID: NOTIFICATION_FAILED, Description: could not notify %s: %v", userID, err)
	}
}

func (s *NotificationService) Create(ctx context.Context, userID, message string) (*models.Notification, error) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: s.now(),
	}
	if err := s.repo.InsertNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}
	return n, nil
}

func (s *NotificationService) List(ctx context.Context, userID string) ([]models.Notification, error) {
	list, err := s.repo.ListNotifications(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	if list == nil {
		list = []models.Notification{}
	}
	return list, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string, createdAt time.Time) error {
	err := s.repo.MarkNotificationRead(ctx, userID, id, createdAt)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFoundf("notification not found")
	}
	return err
}

func (s *NotificationService) Delete(ctx context.Context, userID, id string, createdAt time.Time) error {
	err := s.repo.DeleteNotification(ctx, userID, id, createdAt)
	if errors.Is(err, repositories.ErrNotFound) {
		return notFoundf("notification not found")
	}
	return err
}
