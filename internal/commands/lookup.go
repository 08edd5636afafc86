package commands

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"taskbin/internal/output"
	"taskbin/internal/service"
)

// resolveBoard finds one of the user's boards by id, by the number shown
// by the boards command, or by name (case-insensitive, trimmed).
func resolveBoard(ctx context.Context, sess *Session, ref string) (service.Board, error) {
	const op = "resolve board"
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return service.Board{}, service.InputError(op, "board required")
	}

	boards, err := sess.Gateway.ListBoards(ctx, sess.User.UserID)
	if err != nil {
		return service.Board{}, err
	}

	for _, b := range boards {
		if b.ID == ref {
			return b, nil
		}
	}
	if isAllDigits(ref) {
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(boards) {
			return boards[n-1], nil
		}
	}

	var matches []service.Board
	for _, b := range boards {
		if strings.EqualFold(strings.TrimSpace(b.Name), ref) {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return service.Board{}, service.StatusError(op, http.StatusNotFound, "board not found: "+ref)
	case 1:
		return matches[0], nil
	default:
		return service.Board{}, service.InputError(op, "ambiguous board name: "+ref)
	}
}

// resolveTask finds a task on a board by display number or id. The board's
// tasks are fetched once and numbered the way the board command prints them.
func resolveTask(ctx context.Context, sess *Session, boardID string, ref TaskRef) (service.Task, error) {
	const op = "resolve task"
	tasks, err := sess.Gateway.ListTasks(ctx, boardID)
	if err != nil {
		return service.Task{}, err
	}

	if ref.ID != "" {
		for _, t := range tasks {
			if t.ID == ref.ID {
				return t, nil
			}
		}
		return service.Task{}, service.StatusError(op, http.StatusNotFound, "task not found: "+ref.ID)
	}

	numbered := output.NumberTasks(service.GroupByStatus(tasks))
	if ref.Num < 1 || ref.Num > len(numbered) {
		return service.Task{}, service.InputError(op, fmt.Sprintf("task number out of range: %d", ref.Num))
	}
	return numbered[ref.Num-1].Task, nil
}

// boardAndTask resolves "<board> <ref> ..." and returns the remaining args.
func boardAndTask(ctx context.Context, sess *Session, args []string) (service.Board, service.Task, []string, error) {
	if len(args) == 0 {
		return service.Board{}, service.Task{}, nil, service.InputError("resolve board", "board required")
	}
	ref, rest, err := ParseTaskRef(args[1:])
	if err != nil {
		return service.Board{}, service.Task{}, nil, service.InputError("resolve task", err.Error())
	}
	board, err := resolveBoard(ctx, sess, args[0])
	if err != nil {
		return service.Board{}, service.Task{}, nil, err
	}
	task, err := resolveTask(ctx, sess, board.ID, ref)
	if err != nil {
		return service.Board{}, service.Task{}, nil, err
	}
	return board, task, rest, nil
}
