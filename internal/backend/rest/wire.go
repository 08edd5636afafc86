package rest

import (
	"strings"
	"time"

	"taskbin/internal/service"
)

// The backend has used several spellings for the same fields across
// revisions. Wire types accept all of them; normalize picks the first
// non-empty one.

type wireBoard struct {
	ID          string   `json:"id"`
	BoardID     string   `json:"board_id"`
	Name        string   `json:"name"`
	BoardName   string   `json:"board_name"`
	Description string   `json:"description"`
	OwnerID     string   `json:"owner_id"`
	OwnerIDAlt  string   `json:"ownerId"`
	MemberIDs   []string `json:"member_ids"`
	Members     []string `json:"members"`
	Role        string   `json:"role"`
	CreatedAt   string   `json:"created_at"`
	CreatedAlt  string   `json:"createdAt"`
	JoinedAt    string   `json:"joined_at"`
	JoinedAlt   string   `json:"joinedAt"`
}

func (w wireBoard) normalize() service.Board {
	b := service.Board{
		ID:          first(w.ID, w.BoardID),
		Name:        first(w.Name, w.BoardName),
		Description: w.Description,
		OwnerID:     first(w.OwnerID, w.OwnerIDAlt),
		MemberIDs:   w.MemberIDs,
		CreatedAt:   parseTime(first(w.CreatedAt, w.CreatedAlt)),
		JoinedAt:    parseTime(first(w.JoinedAt, w.JoinedAlt)),
	}
	if b.MemberIDs == nil {
		b.MemberIDs = w.Members
	}
	if w.Role != "" {
		b.Role = service.ParseRole(w.Role)
	}
	return b
}

type wireTask struct {
	ID          string `json:"id"`
	TaskID      string `json:"task_id"`
	BoardID     string `json:"board_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	AssignedTo  string `json:"assigned_to"`
	Assignee    string `json:"assignee"`
	FinishBy    string `json:"finish_by"`
	Due         string `json:"due"`
	CreatedAt   string `json:"created_at"`
	CreatedAlt  string `json:"createdAt"`
	CreatedBy   string `json:"created_by"`
}

func (w wireTask) normalize(boardID string) service.Task {
	t := service.Task{
		ID:          first(w.TaskID, w.ID),
		BoardID:     first(w.BoardID, boardID),
		Title:       w.Title,
		Description: w.Description,
		Status:      service.ParseStatus(w.Status),
		RawStatus:   w.Status,
		AssigneeID:  first(w.AssignedTo, w.Assignee),
		CreatedAt:   parseTime(first(w.CreatedAt, w.CreatedAlt)),
		CreatedBy:   w.CreatedBy,
	}
	if due := parseTime(first(w.FinishBy, w.Due)); !due.IsZero() {
		t.Due = &due
	}
	return t
}

type wireMember struct {
	UserID    string `json:"user_id"`
	UserIDAlt string `json:"userId"`
	Role      string `json:"role"`
	JoinedAt  string `json:"joined_at"`
	JoinedAlt string `json:"joinedAt"`
}

func (w wireMember) normalize() service.Member {
	return service.Member{
		UserID:   first(w.UserID, w.UserIDAlt),
		Role:     service.ParseRole(w.Role),
		JoinedAt: parseTime(first(w.JoinedAt, w.JoinedAlt)),
	}
}

// timeLayouts are tried in order. The backend writes Python isoformat
// timestamps, with or without an offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// parseTime returns the zero time for empty or unparseable input.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// formatTime renders a timestamp the way the backend stores it.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
