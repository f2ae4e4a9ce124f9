package models

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskDone:
		return true
	}
	return false
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Task struct {
	ID                  string       `bson:"_id" json:"id"`
	Title               string       `bson:"title" json:"title"`
	Description         string       `bson:"description" json:"description"`
	Status              TaskStatus   `bson:"status" json:"status"`
	Priority            TaskPriority `bson:"priority" json:"priority"`
	AssignedMembers     []string     `bson:"assignedMembers" json:"assignedMembers"`
	AssignedMemberNames []string     `bson:"-" json:"assignedMemberNames,omitempty"`
	DueDate             string       `bson:"dueDate" json:"dueDate"`
	CreatedAt           time.Time    `bson:"createdAt" json:"createdAt"`
	CompletedAt         *time.Time   `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

func (t Task) Clone() Task {
	c := t
	c.AssignedMembers = append([]string(nil), t.AssignedMembers...)
	c.AssignedMemberNames = append([]string(nil), t.AssignedMemberNames...)
	if t.CompletedAt != nil {
		at := *t.CompletedAt
		c.CompletedAt = &at
	}
	return c
}

type NewTask struct {
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Status          TaskStatus   `json:"status,omitempty"`
	Priority        TaskPriority `json:"priority,omitempty"`
	AssignedMembers []string     `json:"assignedMembers"`
	DueDate         string       `json:"dueDate"`
}
