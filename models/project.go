package models

import "time"

type ProjectStatus string

const (
	ProjectPending   ProjectStatus = "En attente"
	ProjectActive    ProjectStatus = "En cours"
	ProjectCompleted ProjectStatus = "Terminé"
)

// NoTeamName is shown in place of a team name that no longer resolves.
const NoTeamName = "Aucune équipe"

// DateLayout is the calendar date format used for due dates.
const DateLayout = "2006-01-02"

type Project struct {
	ID               string        `bson:"_id" json:"id"`
	Name             string        `bson:"name" json:"name"`
	Description      string        `bson:"description" json:"description"`
	DueDate          string        `bson:"dueDate" json:"dueDate"`
	OwnerID          string        `bson:"ownerId" json:"ownerId"`
	AssignedTeam     string        `bson:"assignedTeam" json:"assignedTeam"`
	AssignedTeamName string        `bson:"-" json:"assignedTeamName"`
	AssignedUsers    []string      `bson:"assignedUsers" json:"assignedUsers"`
	Status           ProjectStatus `bson:"status" json:"status"`
	Progress         int           `bson:"progress" json:"progress"`
	Tasks            []Task        `bson:"tasks" json:"tasks"`
	CreatedAt        time.Time     `bson:"createdAt" json:"createdAt"`
	Version          int64         `bson:"version" json:"-"`
}

func (p *Project) TaskIndex(taskID string) int {
	for i := range p.Tasks {
		if p.Tasks[i].ID == taskID {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (p *Project) Clone() *Project {
	c := *p
	c.AssignedUsers = append([]string(nil), p.AssignedUsers...)
	c.Tasks = make([]Task, len(p.Tasks))
	for i, t := range p.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return &c
}

type NewProject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DueDate     string `json:"dueDate"`
	TeamID      string `json:"assignedTeam"`
}
