// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"taskbin/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu      sync.RWMutex
	boards  []service.Board
	tasks   []service.Task
	members map[string][]service.Member // boardID -> members, owner first
	codes   map[string]string           // code -> boardID
	seq     int
	calls   []string

	// Error injection for testing
	ListBoardsErr    error
	GetBoardErr      error
	CreateBoardErr   error
	EditBoardErr     error
	DeleteBoardErr   error
	ListTasksErr     error
	ListUserTasksErr error
	GetTaskErr       error
	CreateTaskErr    error
	EditTaskErr      error
	UpdateStatusErr  error
	DeleteTaskErr    error
	ListMembersErr   error
	CodeErr          error
	JoinErr          error
	LeaveErr         error
	ShareErr         error
	UnshareErr       error
}

var _ service.Service = (*FakeService)(nil)

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		members: make(map[string][]service.Member),
		codes:   make(map[string]string),
	}
}

// AddBoard adds a board owned by ownerID.
func (f *FakeService) AddBoard(id, name, ownerID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boards = append(f.boards, service.Board{ID: id, Name: name, OwnerID: ownerID})
	f.members[id] = append(f.members[id], service.Member{UserID: ownerID, Role: service.RoleOwner})
}

// AddMember adds userID to a board as a member.
func (f *FakeService) AddMember(boardID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[boardID] = append(f.members[boardID], service.Member{UserID: userID, Role: service.RoleMember})
}

// AddTask adds a task to a board.
func (f *FakeService) AddTask(boardID, taskID, title string, status service.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, service.Task{
		ID:        taskID,
		BoardID:   boardID,
		Title:     title,
		Status:    status,
		RawStatus: status.Wire(),
	})
}

// SetAssignee assigns a stored task.
func (f *FakeService) SetAssignee(taskID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.taskIndex(taskID); i >= 0 {
		f.tasks[i].AssigneeID = userID
	}
}

// AddCode registers an access code for a board.
func (f *FakeService) AddCode(code, boardID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = boardID
}

// StoredTask returns a task as stored, for assertions.
func (f *FakeService) StoredTask(id string) (service.Task, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i := f.taskIndex(id); i >= 0 {
		return f.tasks[i], true
	}
	return service.Task{}, false
}

// StoredBoard returns a board as stored, for assertions.
func (f *FakeService) StoredBoard(id string) (service.Board, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if i := f.boardIndex(id); i >= 0 {
		return f.boards[i], true
	}
	return service.Board{}, false
}

// Calls returns the names of the methods called so far.
func (f *FakeService) Calls() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.calls...)
}

func (f *FakeService) record(op string) {
	f.calls = append(f.calls, op)
}

func (f *FakeService) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s%d", prefix, f.seq)
}

func (f *FakeService) boardIndex(id string) int {
	for i, b := range f.boards {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeService) taskIndex(id string) int {
	for i, t := range f.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (f *FakeService) role(boardID, userID string) service.Role {
	for _, m := range f.members[boardID] {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

func (f *FakeService) withMembers(b service.Board, userID string) service.Board {
	for _, m := range f.members[b.ID] {
		b.MemberIDs = append(b.MemberIDs, m.UserID)
	}
	b.Role = f.role(b.ID, userID)
	return b
}

func notFound(op, what string) error {
	return service.StatusError(op, http.StatusNotFound, what+" not found")
}

func forbidden(op, msg string) error {
	return service.StatusError(op, http.StatusForbidden, msg)
}

// ListBoards implements service.Service.
func (f *FakeService) ListBoards(ctx context.Context, userID string) ([]service.Board, error) {
	const op = "list boards"
	if err := service.Require(op, "user_id", userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListBoards")
	if f.ListBoardsErr != nil {
		return nil, f.ListBoardsErr
	}
	var result []service.Board
	for _, b := range f.boards {
		if f.role(b.ID, userID) != "" {
			result = append(result, f.withMembers(b, userID))
		}
	}
	return result, nil
}

// GetBoard implements service.Service.
func (f *FakeService) GetBoard(ctx context.Context, boardID string) (service.Board, error) {
	const op = "get board"
	if err := service.Require(op, "board_id", boardID); err != nil {
		return service.Board{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetBoard")
	if f.GetBoardErr != nil {
		return service.Board{}, f.GetBoardErr
	}
	i := f.boardIndex(boardID)
	if i < 0 {
		return service.Board{}, notFound(op, "board")
	}
	return f.withMembers(f.boards[i], ""), nil
}

// CreateBoard implements service.Service.
func (f *FakeService) CreateBoard(ctx context.Context, userID, name, description string) (service.Board, error) {
	const op = "create board"
	if err := service.Require(op, "user_id", userID, "name", name); err != nil {
		return service.Board{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateBoard")
	if f.CreateBoardErr != nil {
		return service.Board{}, f.CreateBoardErr
	}
	b := service.Board{
		ID:          f.nextID("board-"),
		Name:        name,
		Description: description,
		OwnerID:     userID,
		Role:        service.RoleOwner,
		CreatedAt:   time.Now(),
	}
	f.boards = append(f.boards, b)
	f.members[b.ID] = []service.Member{{UserID: userID, Role: service.RoleOwner}}
	b.MemberIDs = []string{userID}
	return b, nil
}

// EditBoard implements service.Service.
func (f *FakeService) EditBoard(ctx context.Context, userID, boardID string, update service.BoardUpdate) error {
	const op = "edit board"
	if err := service.Require(op, "user_id", userID, "board_id", boardID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EditBoard")
	if f.EditBoardErr != nil {
		return f.EditBoardErr
	}
	i := f.boardIndex(boardID)
	if i < 0 {
		return notFound(op, "board")
	}
	if f.boards[i].OwnerID != userID {
		return forbidden(op, "only the owner can edit the board")
	}
	if update.Name != nil {
		f.boards[i].Name = *update.Name
	}
	if update.Description != nil {
		f.boards[i].Description = *update.Description
	}
	return nil
}

// DeleteBoard implements service.Service.
func (f *FakeService) DeleteBoard(ctx context.Context, userID, boardID string) error {
	const op = "delete board"
	if err := service.Require(op, "user_id", userID, "board_id", boardID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteBoard")
	if f.DeleteBoardErr != nil {
		return f.DeleteBoardErr
	}
	i := f.boardIndex(boardID)
	if i < 0 {
		return notFound(op, "board")
	}
	if f.boards[i].OwnerID != userID {
		return forbidden(op, "only the owner can delete the board")
	}
	f.boards = append(f.boards[:i], f.boards[i+1:]...)
	delete(f.members, boardID)
	kept := f.tasks[:0]
	for _, t := range f.tasks {
		if t.BoardID != boardID {
			kept = append(kept, t)
		}
	}
	f.tasks = kept
	return nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, boardID string) ([]service.Task, error) {
	const op = "list tasks"
	if err := service.Require(op, "board_id", boardID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	if f.boardIndex(boardID) < 0 {
		return nil, notFound(op, "board")
	}
	var result []service.Task
	for _, t := range f.tasks {
		if t.BoardID == boardID {
			result = append(result, t)
		}
	}
	return result, nil
}

// ListUserTasks implements service.Service.
func (f *FakeService) ListUserTasks(ctx context.Context, userID string) ([]service.Task, error) {
	const op = "list user tasks"
	if err := service.Require(op, "user_id", userID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListUserTasks")
	if f.ListUserTasksErr != nil {
		return nil, f.ListUserTasksErr
	}
	var result []service.Task
	for _, t := range f.tasks {
		if t.AssigneeID == userID {
			result = append(result, t)
		}
	}
	return result, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, taskID string) (service.Task, error) {
	const op = "get task"
	if err := service.Require(op, "task_id", taskID); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetTask")
	if f.GetTaskErr != nil {
		return service.Task{}, f.GetTaskErr
	}
	i := f.taskIndex(taskID)
	if i < 0 {
		return service.Task{}, notFound(op, "task")
	}
	return f.tasks[i], nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, userID, boardID string, input service.TaskInput) (service.Task, error) {
	const op = "create task"
	if err := service.Require(op, "user_id", userID, "board_id", boardID, "title", strings.TrimSpace(input.Title)); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	if f.boardIndex(boardID) < 0 {
		return service.Task{}, notFound(op, "board")
	}
	if f.role(boardID, userID) == "" {
		return service.Task{}, forbidden(op, "not a member of this board")
	}
	status := input.Status
	if !status.Valid() {
		status = service.StatusNotStarted
	}
	t := service.Task{
		ID:          f.nextID("task-"),
		BoardID:     boardID,
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		RawStatus:   status.Wire(),
		AssigneeID:  input.AssigneeID,
		Due:         input.Due,
		CreatedAt:   time.Now(),
		CreatedBy:   userID,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// EditTask implements service.Service.
func (f *FakeService) EditTask(ctx context.Context, userID, taskID string, update service.TaskUpdate) error {
	const op = "edit task"
	if err := service.Require(op, "user_id", userID, "task_id", taskID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("EditTask")
	if f.EditTaskErr != nil {
		return f.EditTaskErr
	}
	i := f.taskIndex(taskID)
	if i < 0 {
		return notFound(op, "task")
	}
	t := &f.tasks[i]
	if update.Title != nil {
		t.Title = *update.Title
	}
	if update.Description != nil {
		t.Description = *update.Description
	}
	if update.Status != nil {
		t.Status = *update.Status
		t.RawStatus = update.Status.Wire()
	}
	if update.AssigneeID != nil {
		t.AssigneeID = *update.AssigneeID
	}
	if update.Due != nil {
		due := *update.Due
		t.Due = &due
	}
	return nil
}

// UpdateTaskStatus implements service.Service.
func (f *FakeService) UpdateTaskStatus(ctx context.Context, userID, boardID, taskID string, status service.Status) error {
	const op = "update task status"
	if err := service.Require(op, "user_id", userID, "board_id", boardID, "task_id", taskID); err != nil {
		return err
	}
	if !status.Valid() {
		return service.InputError(op, "invalid status")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTaskStatus")
	if f.UpdateStatusErr != nil {
		return f.UpdateStatusErr
	}
	i := f.taskIndex(taskID)
	if i < 0 || f.tasks[i].BoardID != boardID {
		return notFound(op, "task")
	}
	f.tasks[i].Status = status
	f.tasks[i].RawStatus = status.Wire()
	return nil
}

// DeleteTask implements service.Service.
func (f *FakeService) DeleteTask(ctx context.Context, userID, boardID, taskID string) error {
	const op = "delete task"
	if err := service.Require(op, "user_id", userID, "board_id", boardID, "task_id", taskID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteTask")
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	i := f.taskIndex(taskID)
	if i < 0 || f.tasks[i].BoardID != boardID {
		return notFound(op, "task")
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	return nil
}

// ListMembers implements service.Service.
func (f *FakeService) ListMembers(ctx context.Context, boardID string) ([]service.Member, error) {
	const op = "list members"
	if err := service.Require(op, "board_id", boardID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListMembers")
	if f.ListMembersErr != nil {
		return nil, f.ListMembersErr
	}
	if f.boardIndex(boardID) < 0 {
		return nil, notFound(op, "board")
	}
	return append([]service.Member(nil), f.members[boardID]...), nil
}

// GenerateAccessCode implements service.Service.
func (f *FakeService) GenerateAccessCode(ctx context.Context, userID, boardID string) (service.AccessCode, error) {
	const op = "generate access code"
	if err := service.Require(op, "user_id", userID, "board_id", boardID); err != nil {
		return service.AccessCode{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GenerateAccessCode")
	if f.CodeErr != nil {
		return service.AccessCode{}, f.CodeErr
	}
	if f.boardIndex(boardID) < 0 {
		return service.AccessCode{}, notFound(op, "board")
	}
	for code, b := range f.codes {
		if b == boardID {
			return service.AccessCode{Code: code, BoardID: boardID}, nil
		}
	}
	code := fmt.Sprintf("ABC%03d", len(f.codes)+1)
	f.codes[code] = boardID
	return service.AccessCode{Code: code, BoardID: boardID}, nil
}

// JoinBoard implements service.Service.
func (f *FakeService) JoinBoard(ctx context.Context, userID, code string) (string, error) {
	const op = "join board"
	if err := service.Require(op, "user_id", userID, "access_code", code); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("JoinBoard")
	if f.JoinErr != nil {
		return "", f.JoinErr
	}
	boardID, ok := f.codes[code]
	if !ok {
		return "", notFound(op, "access code")
	}
	if f.role(boardID, userID) != "" {
		return "", service.StatusError(op, http.StatusBadRequest, "User already a member of this board")
	}
	f.members[boardID] = append(f.members[boardID], service.Member{UserID: userID, Role: service.RoleMember})
	return boardID, nil
}

// LeaveBoard implements service.Service.
func (f *FakeService) LeaveBoard(ctx context.Context, userID, boardID string) error {
	const op = "leave board"
	if err := service.Require(op, "user_id", userID, "board_id", boardID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("LeaveBoard")
	if f.LeaveErr != nil {
		return f.LeaveErr
	}
	switch f.role(boardID, userID) {
	case "":
		return notFound(op, "membership")
	case service.RoleOwner:
		return forbidden(op, "owner cannot leave the board")
	}
	f.removeMember(boardID, userID)
	return nil
}

// ShareBoard implements service.Service.
func (f *FakeService) ShareBoard(ctx context.Context, userID, boardID, targetUserID string, role service.Role) error {
	const op = "share board"
	if err := service.Require(op, "user_id", userID, "board_id", boardID, "target_user_id", targetUserID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ShareBoard")
	if f.ShareErr != nil {
		return f.ShareErr
	}
	if f.boardIndex(boardID) < 0 {
		return notFound(op, "board")
	}
	if f.role(boardID, userID) != service.RoleOwner {
		return forbidden(op, "only the owner can share the board")
	}
	if f.role(boardID, targetUserID) == "" {
		f.members[boardID] = append(f.members[boardID], service.Member{UserID: targetUserID, Role: service.RoleMember})
	}
	return nil
}

// UnshareBoard implements service.Service.
func (f *FakeService) UnshareBoard(ctx context.Context, userID, boardID, targetUserID string) error {
	const op = "unshare board"
	if err := service.Require(op, "user_id", userID, "board_id", boardID, "target_user_id", targetUserID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UnshareBoard")
	if f.UnshareErr != nil {
		return f.UnshareErr
	}
	if f.role(boardID, userID) != service.RoleOwner {
		return forbidden(op, "only the owner can unshare the board")
	}
	switch f.role(boardID, targetUserID) {
	case "":
		return notFound(op, "membership")
	case service.RoleOwner:
		return forbidden(op, "cannot remove the board owner")
	}
	f.removeMember(boardID, targetUserID)
	return nil
}

func (f *FakeService) removeMember(boardID, userID string) {
	ms := f.members[boardID]
	for i, m := range ms {
		if m.UserID == userID {
			f.members[boardID] = append(ms[:i], ms[i+1:]...)
			return
		}
	}
}
