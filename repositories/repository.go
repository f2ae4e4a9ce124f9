// Package repositories holds per-record storage for users, teams, projects
// and notifications, with memory, SQLite, MongoDB and Cassandra drivers.
package repositories

import (
	"context"
	"errors"
	"time"

	"collabspace/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict means the stored version moved on since the record was read.
	ErrConflict = errors.New("record was modified concurrently")
)

type UserRepository interface {
	InsertUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) (bool, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int, error)
}

// TeamRepository updates are optimistic: UpdateTeam succeeds only when the
// stored version equals team.Version, and bumps it on success.
type TeamRepository interface {
	InsertTeam(ctx context.Context, team *models.Team) error
	FindTeamByID(ctx context.Context, id string) (*models.Team, error)
	UpdateTeam(ctx context.Context, team *models.Team) error
	DeleteTeam(ctx context.Context, id string) error
	ListTeams(ctx context.Context) ([]models.Team, error)
}

// ProjectRepository stores projects with their tasks embedded.
type ProjectRepository interface {
	InsertProject(ctx context.Context, project *models.Project) error
	FindProjectByID(ctx context.Context, id string) (*models.Project, error)
	FindProjectByTaskID(ctx context.Context, taskID string) (*models.Project, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	DeleteProject(ctx context.Context, id string) error
	DeleteProjectsByTeam(ctx context.Context, teamID string) (int, error)
	CountProjectsByTeam(ctx context.Context, teamID string) (int, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
}

type NotificationRepository interface {
	InsertNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string, createdAt time.Time) error
	DeleteNotification(ctx context.Context, userID, id string, createdAt time.Time) error
	Close()
}

// Store bundles the repositories of one storage driver.
type Store struct {
	Users    UserRepository
	Teams    TeamRepository
	Projects ProjectRepository
	closer   func(context.Context) error
}

func (s *Store) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}
