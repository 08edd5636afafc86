// Package service defines the backend-agnostic interface for board and task operations.
package service

import "context"

// Service defines the remote data gateway.
// All backend calls go through this interface; it holds no board state.
// Every method rejects empty required identifiers with a KindInput error
// before any I/O, and surfaces backend failures as *Error.
type Service interface {
	// ListBoards returns the boards userID owns or is a member of.
	ListBoards(ctx context.Context, userID string) ([]Board, error)

	// GetBoard returns a single board's metadata.
	GetBoard(ctx context.Context, boardID string) (Board, error)

	// CreateBoard creates a board owned by userID.
	CreateBoard(ctx context.Context, userID, name, description string) (Board, error)

	// EditBoard changes a board's name or description.
	EditBoard(ctx context.Context, userID, boardID string, update BoardUpdate) error

	// DeleteBoard deletes a board. Only the owner may delete.
	DeleteBoard(ctx context.Context, userID, boardID string) error

	// ListTasks returns all tasks on a board in backend order.
	ListTasks(ctx context.Context, boardID string) ([]Task, error)

	// ListUserTasks returns the tasks assigned to userID across boards.
	ListUserTasks(ctx context.Context, userID string) ([]Task, error)

	// GetTask returns a single task.
	GetTask(ctx context.Context, taskID string) (Task, error)

	// CreateTask creates a task on a board and returns it with its new id.
	CreateTask(ctx context.Context, userID, boardID string, input TaskInput) (Task, error)

	// EditTask changes a task's editable fields.
	EditTask(ctx context.Context, userID, taskID string, update TaskUpdate) error

	// UpdateTaskStatus changes only a task's status.
	UpdateTaskStatus(ctx context.Context, userID, boardID, taskID string, status Status) error

	// DeleteTask deletes a task from a board.
	DeleteTask(ctx context.Context, userID, boardID, taskID string) error

	// ListMembers returns a board's members.
	ListMembers(ctx context.Context, boardID string) ([]Member, error)

	// GenerateAccessCode returns a join code for a board.
	GenerateAccessCode(ctx context.Context, userID, boardID string) (AccessCode, error)

	// JoinBoard exchanges an access code for membership and returns the board id.
	JoinBoard(ctx context.Context, userID, code string) (string, error)

	// LeaveBoard removes userID from a board. Owners cannot leave.
	LeaveBoard(ctx context.Context, userID, boardID string) error

	// ShareBoard adds targetUserID to a board with the given role.
	ShareBoard(ctx context.Context, userID, boardID, targetUserID string, role Role) error

	// UnshareBoard removes targetUserID from a board.
	UnshareBoard(ctx context.Context, userID, boardID, targetUserID string) error
}
