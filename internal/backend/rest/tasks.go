package rest

import (
	"context"
	"net/http"
	"time"

	"taskbin/internal/service"
)

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context, boardID string) ([]service.Task, error) {
	const op = "list tasks"
	if err := service.Require(op, "board id", boardID); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("boards", boardID, "tasks"), nil)
	if err != nil {
		return nil, err
	}
	return decodeTasks(op, data, boardID)
}

// ListUserTasks implements service.Service.
func (c *Client) ListUserTasks(ctx context.Context, userID string) ([]service.Task, error) {
	const op = "list user tasks"
	if err := service.Require(op, "user id", userID); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("users", userID, "tasks"), nil)
	if err != nil {
		return nil, err
	}
	return decodeTasks(op, data, "")
}

// GetTask implements service.Service.
func (c *Client) GetTask(ctx context.Context, taskID string) (service.Task, error) {
	const op = "get task"
	if err := service.Require(op, "task id", taskID); err != nil {
		return service.Task{}, err
	}
	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("tasks", taskID), nil)
	if err != nil {
		return service.Task{}, err
	}
	tasks, err := decodeTasks(op, data, "")
	if err != nil {
		return service.Task{}, err
	}
	if len(tasks) == 0 && !hasList(data, "tasks") {
		return service.Task{}, decodeError(op, "response has no tasks")
	}
	for _, t := range tasks {
		if t.ID == taskID {
			return t, nil
		}
	}
	return service.Task{}, service.StatusError(op, http.StatusNotFound, "Task not found")
}

// decodeTasks accepts {"tasks": [...]} or a bare array. Tasks without an id
// make the whole response malformed.
func decodeTasks(op string, data []byte, boardID string) ([]service.Task, error) {
	var wt []wireTask
	if isArray(data) {
		if err := decode(op, data, &wt); err != nil {
			return nil, err
		}
	} else {
		var env struct {
			Tasks []wireTask `json:"tasks"`
		}
		if err := decode(op, data, &env); err != nil {
			return nil, err
		}
		wt = env.Tasks
	}

	tasks := make([]service.Task, 0, len(wt))
	for _, w := range wt {
		t := w.normalize(boardID)
		if t.ID == "" {
			return nil, decodeError(op, "task without id")
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// CreateTask implements service.Service. The backend answers with the new
// id only; the returned task is built from the input.
func (c *Client) CreateTask(ctx context.Context, userID, boardID string, input service.TaskInput) (service.Task, error) {
	const op = "create task"
	if err := service.Require(op, "user id", userID, "board id", boardID, "title", input.Title); err != nil {
		return service.Task{}, err
	}
	status := input.Status
	if !status.Valid() {
		status = service.StatusNotStarted
	}

	body := map[string]any{
		"user_id":     userID,
		"board_id":    boardID,
		"title":       input.Title,
		"description": input.Description,
		"status":      status.Wire(),
		"finish_by":   nil,
		"assigned_to": nil,
	}
	if input.Due != nil {
		body["finish_by"] = formatTime(*input.Due)
	}
	if input.AssigneeID != "" {
		body["assigned_to"] = input.AssigneeID
	}

	data, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", "task", "create"), body)
	if err != nil {
		return service.Task{}, err
	}
	var resp struct {
		TaskID  string `json:"task_id"`
		ID      string `json:"id"`
		BoardID string `json:"board_id"`
	}
	if err := decode(op, data, &resp); err != nil {
		return service.Task{}, err
	}
	id := first(resp.TaskID, resp.ID)
	if id == "" {
		return service.Task{}, decodeError(op, "response has no task id")
	}

	return service.Task{
		ID:          id,
		BoardID:     first(resp.BoardID, boardID),
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		RawStatus:   status.Wire(),
		AssigneeID:  input.AssigneeID,
		Due:         input.Due,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   userID,
	}, nil
}

// EditTask implements service.Service.
func (c *Client) EditTask(ctx context.Context, userID, taskID string, update service.TaskUpdate) error {
	const op = "edit task"
	if err := service.Require(op, "user id", userID, "task id", taskID); err != nil {
		return err
	}
	if update.Empty() {
		return service.InputError(op, "no fields to update")
	}
	if update.Title != nil && *update.Title == "" {
		return service.InputError(op, "missing title")
	}
	if update.Status != nil && !update.Status.Valid() {
		return service.InputError(op, "invalid status")
	}

	body := map[string]any{"user_id": userID}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	if update.Status != nil {
		body["status"] = update.Status.Wire()
	}
	if update.Due != nil {
		body["finish_by"] = formatTime(*update.Due)
	}
	if update.AssigneeID != nil {
		if *update.AssigneeID == "" {
			body["assigned_to"] = nil
		} else {
			body["assigned_to"] = *update.AssigneeID
		}
	}

	_, err := c.do(ctx, op, http.MethodPatch, c.endpoint("boards", "tasks", taskID), body)
	return err
}

// UpdateTaskStatus implements service.Service.
func (c *Client) UpdateTaskStatus(ctx context.Context, userID, boardID, taskID string, status service.Status) error {
	const op = "update task status"
	if err := service.Require(op, "user id", userID, "board id", boardID, "task id", taskID); err != nil {
		return err
	}
	if !status.Valid() {
		return service.InputError(op, "invalid status")
	}
	body := map[string]any{
		"user_id":  userID,
		"board_id": boardID,
		"task_id":  taskID,
		"status":   status.Wire(),
	}
	_, err := c.do(ctx, op, http.MethodPatch, c.endpoint("boards", boardID, "tasks", taskID), body)
	return err
}

// DeleteTask implements service.Service.
func (c *Client) DeleteTask(ctx context.Context, userID, boardID, taskID string) error {
	const op = "delete task"
	if err := service.Require(op, "user id", userID, "board id", boardID, "task id", taskID); err != nil {
		return err
	}
	body := map[string]any{"user_id": userID}
	_, err := c.do(ctx, op, http.MethodDelete, c.endpoint("boards", boardID, "tasks", taskID), body)
	return err
}
