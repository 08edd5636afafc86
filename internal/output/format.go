// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskbin/internal/auth"
	"taskbin/internal/service"
)

const (
	// GroupSeparator is the separator line around group headers.
	GroupSeparator = "------------"

	// DueLayout is how due dates are printed.
	DueLayout = "2006-01-02"
)

// Numbered is a task with its display number on the board.
type Numbered struct {
	Num  int
	Task service.Task
}

// NumberTasks assigns display numbers in board order: not started, in
// progress, completed, then unknown statuses.
func NumberTasks(g service.Groups) []Numbered {
	var out []Numbered
	n := 1
	for _, s := range service.Statuses {
		for _, t := range g.ByStatus[s] {
			out = append(out, Numbered{Num: n, Task: t})
			n++
		}
	}
	for _, t := range g.Unknown {
		out = append(out, Numbered{Num: n, Task: t})
		n++
	}
	return out
}

// FormatBoardLine formats a board for the boards command.
// Format: "{N:>4}  {NAME}[ [owner]]\n"
func FormatBoardLine(w io.Writer, num int, b service.Board) {
	name := normalizeTitle(b.Name)
	if b.Role == service.RoleOwner {
		name += " [owner]"
	}
	fmt.Fprintf(w, "%4d  %s\n", num, name)
}

// FormatBoardHeader prints the board name, its description and id.
func FormatBoardHeader(w io.Writer, b service.Board) {
	fmt.Fprintf(w, "%s  (%s)\n", normalizeTitle(b.Name), b.ID)
	if d := strings.TrimSpace(b.Description); d != "" {
		fmt.Fprintln(w, singleLine(d))
	}
}

// FormatGroupHeader formats a status group header.
func FormatGroupHeader(w io.Writer, label string, count int) {
	fmt.Fprintln(w, GroupSeparator)
	fmt.Fprintf(w, "%s (%d)\n", label, count)
	fmt.Fprintln(w, GroupSeparator)
}

// FormatTask formats a task line.
// Format: "{N:>4}  {TITLE}[ @{ASSIGNEE}][ (due {DATE})]\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %s\n", num, TaskSummary(task))
}

// TaskSummary is the one-line form of a task used by the CLI and the TUI.
func TaskSummary(task service.Task) string {
	var b strings.Builder
	b.WriteString(normalizeTitle(task.Title))
	if !task.Status.Valid() && task.RawStatus != "" {
		fmt.Fprintf(&b, " [%s]", task.RawStatus)
	}
	if task.AssigneeID != "" {
		b.WriteString(" @" + task.AssigneeID)
	}
	if task.Due != nil {
		b.WriteString(" (due " + task.Due.Local().Format(DueLayout) + ")")
	}
	return b.String()
}

// FormatBoard prints a board grouped by status with display numbers.
// Empty groups are printed with a zero count so columns stay stable.
func FormatBoard(w io.Writer, b service.Board, g service.Groups) {
	FormatBoardHeader(w, b)
	numbered := NumberTasks(g)
	i := 0
	for _, s := range service.Statuses {
		FormatGroupHeader(w, s.Label(), g.Count(s))
		for range g.ByStatus[s] {
			FormatTask(w, numbered[i].Num, numbered[i].Task)
			i++
		}
	}
	if len(g.Unknown) > 0 {
		FormatGroupHeader(w, service.StatusUnknown.Label(), len(g.Unknown))
		for ; i < len(numbered); i++ {
			FormatTask(w, numbered[i].Num, numbered[i].Task)
		}
	}
}

// FormatMember formats a member line.
// Format: "{ROLE:<6}  {USER}[  joined {DATE}]\n"
func FormatMember(w io.Writer, m service.Member) {
	line := fmt.Sprintf("%-6s  %s", m.Role, m.UserID)
	if !m.JoinedAt.IsZero() {
		line += "  joined " + m.JoinedAt.Local().Format(DueLayout)
	}
	fmt.Fprintln(w, line)
}

// FormatAccessCode prints a code and when it expires.
func FormatAccessCode(w io.Writer, code service.AccessCode, now time.Time) {
	if code.ExpiresAt.IsZero() {
		fmt.Fprintln(w, code.Code)
		return
	}
	left := code.ExpiresAt.Sub(now).Round(time.Minute)
	if left < 0 {
		left = 0
	}
	fmt.Fprintf(w, "%s  (expires in %s)\n", code.Code, left)
}

// FormatUserTask formats a task for mytasks, prefixed by its status.
// Format: "{N:>4}  {STATUS:<11}  {SUMMARY}\n"
func FormatUserTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %-11s  %s\n", num, task.Status.Label(), TaskSummary(task))
}

// FormatIdentity prints the decoded identity for whoami.
func FormatIdentity(w io.Writer, id auth.Identity) {
	fmt.Fprintf(w, "user_id: %s\n", id.UserID)
	if id.Email != "" {
		fmt.Fprintf(w, "email:   %s\n", id.Email)
	}
	if id.Name != "" {
		fmt.Fprintf(w, "name:    %s\n", id.Name)
	}
}

// normalizeTitle normalizes a title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = singleLine(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
