package service

import "strings"

// Status is the canonical task status.
type Status string

const (
	StatusNotStarted Status = "not-started"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusUnknown    Status = "unknown"
)

// Statuses lists the groupable statuses in board order.
var Statuses = []Status{StatusNotStarted, StatusInProgress, StatusCompleted}

// statusAliases maps normalized backend spellings to canonical statuses.
var statusAliases = map[string]Status{
	"not_started": StatusNotStarted,
	"todo":        StatusNotStarted,
	"to_do":       StatusNotStarted,
	"open":        StatusNotStarted,
	"needsaction": StatusNotStarted,
	"in_progress": StatusInProgress,
	"inprogress":  StatusInProgress,
	"doing":       StatusInProgress,
	"started":     StatusInProgress,
	"completed":   StatusCompleted,
	"complete":    StatusCompleted,
	"done":        StatusCompleted,
}

// ParseStatus maps any known spelling to a canonical status. Case, hyphens,
// underscores and spaces are ignored. Anything else is StatusUnknown.
func ParseStatus(s string) Status {
	if st, ok := statusAliases[normalizeToken(s)]; ok {
		return st
	}
	return StatusUnknown
}

// Valid reports whether s is one of the three groupable statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Wire returns the value the REST backend stores for s.
func (s Status) Wire() string {
	switch s {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "done"
	default:
		return "todo"
	}
}

// Label returns a human-readable column label.
func (s Status) Label() string {
	switch s {
	case StatusNotStarted:
		return "Not started"
	case StatusInProgress:
		return "In progress"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// Next cycles through the groupable statuses. Unknown advances to not-started.
func (s Status) Next() Status {
	switch s {
	case StatusNotStarted:
		return StatusInProgress
	case StatusInProgress:
		return StatusCompleted
	default:
		return StatusNotStarted
	}
}

// Groups partitions tasks by status.
type Groups struct {
	ByStatus map[Status][]Task
	Unknown  []Task // display-only, never grouped
}

// Count returns the number of tasks in a status group.
func (g Groups) Count(s Status) int {
	return len(g.ByStatus[s])
}

// GroupByStatus partitions tasks into the three status groups, preserving
// input order within each group.
func GroupByStatus(tasks []Task) Groups {
	g := Groups{ByStatus: make(map[Status][]Task, len(Statuses))}
	for _, s := range Statuses {
		g.ByStatus[s] = nil
	}
	for _, t := range tasks {
		if !t.Status.Valid() {
			g.Unknown = append(g.Unknown, t)
			continue
		}
		g.ByStatus[t.Status] = append(g.ByStatus[t.Status], t)
	}
	return g
}

func normalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}
