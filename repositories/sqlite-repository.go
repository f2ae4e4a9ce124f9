package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"collabspace/logging"
	"collabspace/models"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores records in an embedded SQLite database. Team
// membership lives in its own (team_id, user_id) relation table and tasks in
// a child table that cascades with its project.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*Store, error) {
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		Users:    repo,
		Teams:    repo,
		Projects: repo,
		closer:   func(context.Context) error { return repo.db.Close() },
	}, nil
}

func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logging.Logger.Infof("Event ID: DB_CONNECTED, Description: SQLite database opened at %s", path)
	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			password TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			visibility TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS team_assigned_users (
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (team_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			due_date TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			assigned_team TEXT NOT NULL,
			assigned_users TEXT NOT NULL DEFAULT '[]',
			status TEXT NOT NULL,
			progress INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			version INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS projects_assigned_team ON projects(assigned_team)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			priority TEXT NOT NULL,
			assigned_members TEXT NOT NULL DEFAULT '[]',
			due_date TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			completed_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS tasks_project ON tasks(project_id)`,
	}

	for _, m := range migrations {
		if _, err := r.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func translateSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return ErrDuplicate
	}
	return err
}

func nanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, first_name, last_name, password, role, status, created_at, updated_at`

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.Password, &u.Role, &u.Status, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = fromNanos(created)
	u.UpdatedAt = fromNanos(updated)
	return &u, nil
}

func (r *SQLiteRepository) InsertUser(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.Password, u.Role, u.Status, nanos(u.CreatedAt), nanos(u.UpdatedAt))
	return translateSQLiteErr(err)
}

func (r *SQLiteRepository) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	return u, translateSQLiteErr(err)
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	return u, translateSQLiteErr(err)
}

func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *models.User) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET email = ?, first_name = ?, last_name = ?, password = ?, role = ?, status = ?, updated_at = ? WHERE id = ?`,
		u.Email, u.FirstName, u.LastName, u.Password, u.Role, u.Status, nanos(u.UpdatedAt), u.ID)
	if err != nil {
		return translateSQLiteErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

func (r *SQLiteRepository) InsertTeam(ctx context.Context, t *models.Team) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO teams (id, name, description, owner_id, visibility, created_at, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Description, t.OwnerID, t.Visibility, nanos(t.CreatedAt), t.Version)
		if err != nil {
			return translateSQLiteErr(err)
		}
		return writeTeamRelations(ctx, tx, t)
	})
}

func writeTeamRelations(ctx context.Context, tx *sql.Tx, t *models.Team) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = ?`, t.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM team_assigned_users WHERE team_id = ?`, t.ID); err != nil {
		return err
	}
	for i, m := range t.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_members (team_id, user_id, name, position) VALUES (?, ?, ?, ?)`,
			t.ID, m.UserID, m.Name, i); err != nil {
			return translateSQLiteErr(err)
		}
	}
	for i, id := range t.AssignedUsers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_assigned_users (team_id, user_id, position) VALUES (?, ?, ?)`,
			t.ID, id, i); err != nil {
			return translateSQLiteErr(err)
		}
	}
	return nil
}

func (r *SQLiteRepository) FindTeamByID(ctx context.Context, id string) (*models.Team, error) {
	teams, err := r.loadTeams(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return nil, ErrNotFound
	}
	return &teams[0], nil
}

func (r *SQLiteRepository) ListTeams(ctx context.Context) ([]models.Team, error) {
	return r.loadTeams(ctx, "")
}

func (r *SQLiteRepository) loadTeams(ctx context.Context, where string, args ...any) ([]models.Team, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, owner_id, visibility, created_at, version FROM teams `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	var teams []models.Team
	index := make(map[string]int)
	for rows.Next() {
		var t models.Team
		var created int64
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.OwnerID, &t.Visibility, &created, &t.Version); err != nil {
			rows.Close()
			return nil, err
		}
		t.CreatedAt = fromNanos(created)
		t.Members = []models.Member{}
		t.AssignedUsers = []string{}
		index[t.ID] = len(teams)
		teams = append(teams, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(teams) == 0 {
		return teams, nil
	}

	memberQuery := `SELECT team_id, user_id, name FROM team_members ORDER BY team_id, position`
	assignedQuery := `SELECT team_id, user_id FROM team_assigned_users ORDER BY team_id, position`
	var childArgs []any
	if len(teams) == 1 {
		memberQuery = `SELECT team_id, user_id, name FROM team_members WHERE team_id = ? ORDER BY position`
		assignedQuery = `SELECT team_id, user_id FROM team_assigned_users WHERE team_id = ? ORDER BY position`
		childArgs = []any{teams[0].ID}
	}

	members, err := r.db.QueryContext(ctx, memberQuery, childArgs...)
	if err != nil {
		return nil, err
	}
	for members.Next() {
		var teamID string
		var m models.Member
		if err := members.Scan(&teamID, &m.UserID, &m.Name); err != nil {
			members.Close()
			return nil, err
		}
		if i, ok := index[teamID]; ok {
			teams[i].Members = append(teams[i].Members, m)
		}
	}
	members.Close()
	if err := members.Err(); err != nil {
		return nil, err
	}

	assigned, err := r.db.QueryContext(ctx, assignedQuery, childArgs...)
	if err != nil {
		return nil, err
	}
	defer assigned.Close()
	for assigned.Next() {
		var teamID, userID string
		if err := assigned.Scan(&teamID, &userID); err != nil {
			return nil, err
		}
		if i, ok := index[teamID]; ok {
			teams[i].AssignedUsers = append(teams[i].AssignedUsers, userID)
		}
	}
	return teams, assigned.Err()
}

func (r *SQLiteRepository) UpdateTeam(ctx context.Context, t *models.Team) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE teams SET name = ?, description = ?, owner_id = ?, visibility = ?, version = version + 1 WHERE id = ? AND version = ?`,
			t.Name, t.Description, t.OwnerID, t.Visibility, t.ID, t.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrConflict(ctx, tx, "teams", t.ID)
		}
		return writeTeamRelations(ctx, tx, t)
	})
	if err == nil {
		t.Version++
	}
	return err
}

func missingOrConflict(ctx context.Context, tx *sql.Tx, table, id string) error {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (r *SQLiteRepository) DeleteTeam(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) InsertProject(ctx context.Context, p *models.Project) error {
	assigned, err := json.Marshal(nonNil(p.AssignedUsers))
	if err != nil {
		return err
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name, description, due_date, owner_id, assigned_team, assigned_users, status, progress, created_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, p.Description, p.DueDate, p.OwnerID, p.AssignedTeam, string(assigned), p.Status, p.Progress, nanos(p.CreatedAt), p.Version)
		if err != nil {
			return translateSQLiteErr(err)
		}
		return writeTasks(ctx, tx, p)
	})
}

func writeTasks(ctx context.Context, tx *sql.Tx, p *models.Project) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE project_id = ?`, p.ID); err != nil {
		return err
	}
	for i, task := range p.Tasks {
		members, err := json.Marshal(nonNil(task.AssignedMembers))
		if err != nil {
			return err
		}
		var completed sql.NullInt64
		if task.CompletedAt != nil {
			completed = sql.NullInt64{Int64: nanos(*task.CompletedAt), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (id, project_id, position, title, description, status, priority, assigned_members, due_date, created_at, completed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			task.ID, p.ID, i, task.Title, task.Description, task.Status, task.Priority, string(members), task.DueDate, nanos(task.CreatedAt), completed); err != nil {
			return translateSQLiteErr(err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *SQLiteRepository) FindProjectByID(ctx context.Context, id string) (*models.Project, error) {
	projects, err := r.loadProjects(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, ErrNotFound
	}
	return &projects[0], nil
}

func (r *SQLiteRepository) FindProjectByTaskID(ctx context.Context, taskID string) (*models.Project, error) {
	var projectID string
	err := r.db.QueryRowContext(ctx, `SELECT project_id FROM tasks WHERE id = ?`, taskID).Scan(&projectID)
	if err != nil {
		return nil, translateSQLiteErr(err)
	}
	return r.FindProjectByID(ctx, projectID)
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]models.Project, error) {
	return r.loadProjects(ctx, "")
}

func (r *SQLiteRepository) loadProjects(ctx context.Context, where string, args ...any) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, due_date, owner_id, assigned_team, assigned_users, status, progress, created_at, version
		 FROM projects `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	var projects []models.Project
	index := make(map[string]int)
	for rows.Next() {
		var p models.Project
		var assigned string
		var created int64
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.DueDate, &p.OwnerID, &p.AssignedTeam, &assigned,
			&p.Status, &p.Progress, &created, &p.Version); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(assigned), &p.AssignedUsers); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode assigned users of project %s: %w", p.ID, err)
		}
		p.CreatedAt = fromNanos(created)
		p.Tasks = []models.Task{}
		index[p.ID] = len(projects)
		projects = append(projects, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return projects, nil
	}

	taskQuery := `SELECT id, project_id, title, description, status, priority, assigned_members, due_date, created_at, completed_at
		FROM tasks ORDER BY project_id, position`
	var taskArgs []any
	if len(projects) == 1 {
		taskQuery = `SELECT id, project_id, title, description, status, priority, assigned_members, due_date, created_at, completed_at
		FROM tasks WHERE project_id = ? ORDER BY position`
		taskArgs = []any{projects[0].ID}
	}
	tasks, err := r.db.QueryContext(ctx, taskQuery, taskArgs...)
	if err != nil {
		return nil, err
	}
	defer tasks.Close()
	for tasks.Next() {
		var t models.Task
		var projectID, members string
		var created int64
		var completed sql.NullInt64
		if err := tasks.Scan(&t.ID, &projectID, &t.Title, &t.Description, &t.Status, &t.Priority, &members,
			&t.DueDate, &created, &completed); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(members), &t.AssignedMembers); err != nil {
			return nil, fmt.Errorf("decode members of task %s: %w", t.ID, err)
		}
		t.CreatedAt = fromNanos(created)
		if completed.Valid {
			at := fromNanos(completed.Int64)
			t.CompletedAt = &at
		}
		if i, ok := index[projectID]; ok {
			projects[i].Tasks = append(projects[i].Tasks, t)
		}
	}
	return projects, tasks.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *models.Project) error {
	assigned, err := json.Marshal(nonNil(p.AssignedUsers))
	if err != nil {
		return err
	}
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE projects SET name = ?, description = ?, due_date = ?, owner_id = ?, assigned_team = ?, assigned_users = ?,
			 status = ?, progress = ?, version = version + 1 WHERE id = ? AND version = ?`,
			p.Name, p.Description, p.DueDate, p.OwnerID, p.AssignedTeam, string(assigned), p.Status, p.Progress, p.ID, p.Version)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return missingOrConflict(ctx, tx, "projects", p.ID)
		}
		return writeTasks(ctx, tx, p)
	})
	if err == nil {
		p.Version++
	}
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE assigned_team = ?`, teamID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *SQLiteRepository) CountProjectsByTeam(ctx context.Context, teamID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE assigned_team = ?`, teamID).Scan(&n)
	return n, err
}

func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
