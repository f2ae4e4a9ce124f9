package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"collabspace/models"
)

// MemoryRepository keeps every record in process memory. Records are copied
// on the way in and out so callers never share state with the store.
type MemoryRepository struct {
	mu       sync.RWMutex
	users    map[string]models.User
	teams    map[string]*models.Team
	projects map[string]*models.Project
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:    make(map[string]models.User),
		teams:    make(map[string]*models.Team),
		projects: make(map[string]*models.Project),
	}
}

func NewMemoryStore() *Store {
	repo := NewMemoryRepository()
	return &Store{Users: repo, Teams: repo, Projects: repo}
}

func (r *MemoryRepository) InsertUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; ok {
		return ErrDuplicate
	}
	if r.emailTaken(user.Email, "") {
		return ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) FindUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (r *MemoryRepository) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) UpdateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return ErrDuplicate
	}
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryRepository) DeleteUser(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return byCreation(users[i].CreatedAt, users[i].ID, users[j].CreatedAt, users[j].ID) })
	return users, nil
}

func (r *MemoryRepository) CountUsers(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *MemoryRepository) InsertTeam(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[team.ID]; ok {
		return ErrDuplicate
	}
	r.teams[team.ID] = team.Clone()
	return nil
}

func (r *MemoryRepository) FindTeamByID(_ context.Context, id string) (*models.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) UpdateTeam(_ context.Context, team *models.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.teams[team.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != team.Version {
		return ErrConflict
	}
	team.Version++
	r.teams[team.ID] = team.Clone()
	return nil
}

func (r *MemoryRepository) DeleteTeam(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.teams[id]; !ok {
		return ErrNotFound
	}
	delete(r.teams, id)
	return nil
}

func (r *MemoryRepository) ListTeams(_ context.Context) ([]models.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	teams := make([]models.Team, 0, len(r.teams))
	for _, t := range r.teams {
		teams = append(teams, *t.Clone())
	}
	sort.Slice(teams, func(i, j int) bool { return byCreation(teams[i].CreatedAt, teams[i].ID, teams[j].CreatedAt, teams[j].ID) })
	return teams, nil
}

func (r *MemoryRepository) InsertProject(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[project.ID]; ok {
		return ErrDuplicate
	}
	r.projects[project.ID] = project.Clone()
	return nil
}

func (r *MemoryRepository) FindProjectByID(_ context.Context, id string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p.Clone(), nil
}

func (r *MemoryRepository) FindProjectByTaskID(_ context.Context, taskID string) (*models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.projects {
		if p.TaskIndex(taskID) >= 0 {
			return p.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) UpdateProject(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.projects[project.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != project.Version {
		return ErrConflict
	}
	project.Version++
	r.projects[project.ID] = project.Clone()
	return nil
}

func (r *MemoryRepository) DeleteProject(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

func (r *MemoryRepository) DeleteProjectsByTeam(_ context.Context, teamID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.projects {
		if p.AssignedTeam == teamID {
			delete(r.projects, id)
			removed++
		}
	}
	return removed, nil
}

func (r *MemoryRepository) CountProjectsByTeam(_ context.Context, teamID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, p := range r.projects {
		if p.AssignedTeam == teamID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) ListProjects(_ context.Context) ([]models.Project, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	projects := make([]models.Project, 0, len(r.projects))
	for _, p := range r.projects {
		projects = append(projects, *p.Clone())
	}
	sort.Slice(projects, func(i, j int) bool {
		return byCreation(projects[i].CreatedAt, projects[i].ID, projects[j].CreatedAt, projects[j].ID)
	})
	return projects, nil
}

// byCreation orders records by creation time, then id, matching the database drivers.
func byCreation(at1 time.Time, id1 string, at2 time.Time, id2 string) bool {
	if !at1.Equal(at2) {
		return at1.Before(at2)
	}
	return id1 < id2
}

// MemoryNotificationRepo is the in-process notification inbox.
type MemoryNotificationRepo struct {
	mu    sync.RWMutex
	inbox map[string][]models.Notification
}

func NewMemoryNotificationRepo() *MemoryNotificationRepo {
	return &MemoryNotificationRepo{inbox: make(map[string][]models.Notification)}
}

func (r *MemoryNotificationRepo) InsertNotification(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inbox[n.UserID] = append(r.inbox[n.UserID], *n)
	return nil
}

// ListNotifications returns the newest first, like the Cassandra clustering order.
func (r *MemoryNotificationRepo) ListNotifications(_ context.Context, userID string) ([]models.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := append([]models.Notification(nil), r.inbox[userID]...)
	sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

func (r *MemoryNotificationRepo) MarkNotificationRead(_ context.Context, userID, id string, createdAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(userID, id, createdAt)
	if i < 0 {
		return ErrNotFound
	}
	r.inbox[userID][i].IsRead = true
	return nil
}

func (r *MemoryNotificationRepo) DeleteNotification(_ context.Context, userID, id string, createdAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(userID, id, createdAt)
	if i < 0 {
		return ErrNotFound
	}
	list := r.inbox[userID]
	r.inbox[userID] = append(list[:i:i], list[i+1:]...)
	return nil
}

func (r *MemoryNotificationRepo) find(userID, id string, createdAt time.Time) int {
	for i, n := range r.inbox[userID] {
		if n.ID == id && n.CreatedAt.Equal(createdAt) {
			return i
		}
	}
	return -1
}

func (r *MemoryNotificationRepo) Close() {}
