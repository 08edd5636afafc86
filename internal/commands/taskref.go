package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// TaskRef identifies a task on a board, either by the display number shown
// by the board command or by its id.
type TaskRef struct {
	Num int    // 1-based display number, 0 when ID is set
	ID  string // task id
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// String returns the reference as the user typed it.
func (r TaskRef) String() string {
	if r.ID != "" {
		return r.ID
	}
	return strconv.Itoa(r.Num)
}

// ParseTaskRef parses the task reference at the front of args and returns
// the remaining args.
//
// Parsing rules:
// 1. No args, or an empty first arg → ErrTaskRefRequired
// 2. All digits → display number
// 3. A leading '#' is stripped and the rest taken as an id
// 4. Any other token without whitespace → id
func ParseTaskRef(args []string) (TaskRef, []string, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return TaskRef{}, args, ErrTaskRefRequired
	}
	first, rest := strings.TrimSpace(args[0]), args[1:]

	if isAllDigits(first) {
		num, err := strconv.Atoi(first)
		if err != nil {
			return TaskRef{}, rest, fmt.Errorf("invalid task reference: %s", first)
		}
		return TaskRef{Num: num}, rest, nil
	}

	id := strings.TrimPrefix(first, "#")
	if id == "" || strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return TaskRef{}, rest, fmt.Errorf("invalid task reference: %s", first)
	}
	return TaskRef{ID: id}, rest, nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
