package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"collabspace/events"
	"collabspace/logging"
	"collabspace/models"
	"collabspace/repositories"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

type UserService struct {
	users      repositories.UserRepository
	events     *events.EventManager
	bcryptCost int
	now        func() time.Time
}

func NewUserService(users repositories.UserRepository, em *events.EventManager, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = 12
	}
	return &UserService{
		users:      users,
		events:     em,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create registers a user. Email presence, format and uniqueness are checked
// before any other field, so a taken address is reported as DuplicateEmail
// even when the rest of the form is incomplete.
func (s *UserService) Create(ctx context.Context, data models.NewUser) (*models.User, error) {
	email := normalizeEmail(data.Email)
	if email == "" {
		return nil, validationf("email is required")
	}
	if !emailPattern.MatchString(email) {
		return nil, validationf("invalid email format")
	}
	switch _, err := s.users.FindUserByEmail(ctx, email); {
	case err == nil:
		return nil, fmt.Errorf("%w: a user with email %s already exists", ErrDuplicateEmail, email)
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	firstName := strings.TrimSpace(data.FirstName)
	lastName := strings.TrimSpace(data.LastName)
	if firstName == "" || lastName == "" || data.Password == "" {
		return nil, validationf("first name, last name and password are required")
	}
	if len(data.Password) < minPasswordLength {
		return nil, validationf("password must be at least %d characters", minPasswordLength)
	}

	role := data.Role
	if role == "" {
		role = models.RoleMember
	}
	if !role.Valid() {
		return nil, validationf("unknown role %q", role)
	}
	status := data.Status
	if status == "" {
		status = models.UserActive
	}
	if !status.Valid() {
		return nil, validationf("unknown status %q", status)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(data.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &models.User{
		ID:        uuid.NewString(),
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		Password:  string(hash),
		Role:      role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.InsertUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a user with email %s already exists", ErrDuplicateEmail, email)
		}
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	logging.Logger.Infof("Event ID: USER_CREATED, Description: User %s registered with role %s", user.ID, user.Role)
	s.events.Publish(events.Event{Type: events.UserCreated, ActorID: user.ID, Data: events.UserPayload{User: *user}})
	return user, nil
}

func (s *UserService) FindByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "user")
	}
	return user, nil
}

func (s *UserService) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, storageErr(err, "user")
	}
	return user, nil
}

// FindByDisplayName resolves a "First Last" name to exactly one user.
func (s *UserService) FindByDisplayName(ctx context.Context, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationf("member name is required")
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var match *models.User
	for i := range users {
		if !strings.EqualFold(users[i].DisplayName(), name) {
			continue
		}
		if match != nil {
			return nil, validationf("more than one user is named %q, add the member by id", name)
		}
		match = &users[i]
	}
	if match == nil {
		return nil, notFoundf("no user named %q", name)
	}
	return match, nil
}

func (s *UserService) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if err != nil {
		return nil, storageErr(err, "user")
	}

	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		if !emailPattern.MatchString(email) {
			return nil, validationf("invalid email format")
		}
		if email != user.Email {
			switch other, err := s.users.FindUserByEmail(ctx, email); {
			case err == nil && other.ID != user.ID:
				return nil, fmt.Errorf("%w: a user with email %s already exists", ErrDuplicateEmail, email)
			case err != nil && !errors.Is(err, repositories.ErrNotFound):
				return nil, fmt.Errorf("failed to check email: %w", err)
			}
		}
		user.Email = email
	}
	if patch.FirstName != nil {
		if user.FirstName = strings.TrimSpace(*patch.FirstName); user.FirstName == "" {
			return nil, validationf("first name cannot be empty")
		}
	}
	if patch.LastName != nil {
		if user.LastName = strings.TrimSpace(*patch.LastName); user.LastName == "" {
			return nil, validationf("last name cannot be empty")
		}
	}
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, validationf("unknown role %q", *patch.Role)
		}
		user.Role = *patch.Role
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, validationf("unknown status %q", *patch.Status)
		}
		user.Status = *patch.Status
	}
	if patch.Password != nil {
		if len(*patch.Password) < minPasswordLength {
			return nil, validationf("password must be at least %d characters", minPasswordLength)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hash)
	}
	user.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, fmt.Errorf("%w: a user with email %s already exists", ErrDuplicateEmail, user.Email)
		}
		return nil, storageErr(err, "user")
	}

	s.events.Publish(events.Event{Type: events.UserUpdated, ActorID: user.ID, Data: events.UserPayload{User: *user}})
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id string) (bool, error) {
	user, err := s.users.FindUserByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load user: %w", err)
	}
	deleted, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	if deleted {
		logging.Logger.Infof("Event ID: USER_DELETED, Description: User %s deleted", id)
		s.events.Publish(events.Event{Type: events.UserDeleted, ActorID: id, Data: events.UserPayload{User: *user}})
	}
	return deleted, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) ListActive(ctx context.Context) ([]models.User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]models.User, 0, len(users))
	for _, u := range users {
		if u.IsActive() {
			active = append(active, u)
		}
	}
	return active, nil
}

var defaultUsers = []models.NewUser{
	{Email: "admin@collabspace.com", FirstName: "Admin", LastName: "CollabSpace", Password: "admin123", Role: models.RoleAdmin},
	{Email: "john.doe@example.com", FirstName: "John", LastName: "Doe", Password: "password123", Role: models.RoleMember},
	{Email: "jane.smith@example.com", FirstName: "Jane", LastName: "Smith", Password: "password123", Role: models.RoleMember},
}

// SeedDefaults fills an empty directory with the demo accounts and returns
// how many were inserted. A non-empty directory is left alone.
func (s *UserService) SeedDefaults(ctx context.Context) (int, error) {
	n, err := s.users.CountUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	for i, data := range defaultUsers {
		if _, err := s.Create(ctx, data); err != nil {
			return i, fmt.Errorf("failed to seed %s: %w", data.Email, err)
		}
	}
	logging.Logger.Infof("Event ID: USERS_SEEDED, Description: Inserted %d default users", len(defaultUsers))
	return len(defaultUsers), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(user *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) == nil
}
