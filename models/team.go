package models

import "time"

type TeamVisibility string

const (
	TeamPrivate TeamVisibility = "private"
	TeamPublic  TeamVisibility = "public"
)

func (v TeamVisibility) Valid() bool {
	return v == TeamPrivate || v == TeamPublic
}

// Member is one row of the team membership relation. Name is a display
// projection of the user and is never compared for identity.
type Member struct {
	UserID string `bson:"userId" json:"userId"`
	Name   string `bson:"name" json:"name"`
}

type Team struct {
	ID            string         `bson:"_id" json:"id"`
	Name          string         `bson:"name" json:"name"`
	Description   string         `bson:"description" json:"description"`
	OwnerID       string         `bson:"ownerId" json:"ownerId"`
	Members       []Member       `bson:"members" json:"members"`
	AssignedUsers []string       `bson:"assignedUsers" json:"assignedUsers"`
	Visibility    TeamVisibility `bson:"visibility" json:"visibility"`
	CreatedAt     time.Time      `bson:"createdAt" json:"createdAt"`
	Projects      int            `bson:"-" json:"projects"`
	Version       int64          `bson:"version" json:"-"`
}

func (t *Team) HasMember(userID string) bool {
	return t.memberIndex(userID) >= 0
}

func (t *Team) memberIndex(userID string) int {
	for i, m := range t.Members {
		if m.UserID == userID {
			return i
		}
	}
	return -1
}

// RemoveMember drops userID from the member relation and reports whether it was present.
func (t *Team) RemoveMember(userID string) bool {
	i := t.memberIndex(userID)
	if i < 0 {
		return false
	}
	t.Members = append(t.Members[:i:i], t.Members[i+1:]...)
	return true
}

func (t *Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

type TeamPatch struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Visibility  *TeamVisibility `json:"visibility,omitempty"`
}

// MemberRef names a user to add to a team, by id or by display name.
type MemberRef struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (t *Team) Clone() *Team {
	c := *t
	c.Members = append([]Member(nil), t.Members...)
	c.AssignedUsers = append([]string(nil), t.AssignedUsers...)
	return &c
}
