// Package service defines the backend-agnostic interface for board and task operations.
package service

import "time"

// Role is a user's role on a board.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// ParseRole normalizes a backend role. Share roles such as "editor" or
// "viewer" collapse to RoleMember.
func ParseRole(s string) Role {
	if Role(normalizeToken(s)) == RoleOwner {
		return RoleOwner
	}
	return RoleMember
}

// Board represents a board the current user can see.
type Board struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	MemberIDs   []string
	Role        Role // role of the current user; empty when unknown
	CreatedAt   time.Time
	JoinedAt    time.Time
}

// Task represents a single task on a board.
type Task struct {
	ID          string
	BoardID     string
	Title       string
	Description string
	Status      Status
	RawStatus   string // status as sent by the backend, shown when Status is unknown
	AssigneeID  string // empty when unassigned
	Due         *time.Time
	CreatedAt   time.Time
	CreatedBy   string
}

// Member is a (board, user) association.
type Member struct {
	UserID   string
	Role     Role
	JoinedAt time.Time
}

// AccessCode is a short code that lets another user join a board.
type AccessCode struct {
	Code      string
	BoardID   string
	ExpiresAt time.Time
}

// BoardUpdate holds the editable board fields. Nil fields are left unchanged.
type BoardUpdate struct {
	Name        *string
	Description *string
}

// TaskInput holds the fields for a new task.
type TaskInput struct {
	Title       string
	Description string
	Status      Status // defaults to StatusNotStarted
	AssigneeID  string
	Due         *time.Time
}

// TaskUpdate holds the editable task fields. Nil fields are left unchanged.
// A non-nil AssigneeID pointing at "" unassigns the task.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *Status
	AssigneeID  *string
	Due         *time.Time
}

// Empty reports whether the update changes nothing.
func (u TaskUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Status == nil && u.AssigneeID == nil && u.Due == nil
}
