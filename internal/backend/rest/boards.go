package rest

import (
	"context"
	"net/http"

	"taskbin/internal/service"
)

// ListBoards implements service.Service.
func (c *Client) ListBoards(ctx context.Context, userID string) ([]service.Board, error) {
	const op = "list boards"
	if err := service.Require(op, "user id", userID); err != nil {
		return nil, err
	}

	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("users", userID, "boards"), nil)
	if err != nil {
		return nil, err
	}
	wb, err := decodeBoards(op, data)
	if err != nil {
		return nil, err
	}

	boards := make([]service.Board, 0, len(wb))
	for _, w := range wb {
		b := w.normalize()
		if b.ID == "" {
			return nil, decodeError(op, "board without id")
		}
		boards = append(boards, b)
	}
	return boards, nil
}

// GetBoard implements service.Service.
func (c *Client) GetBoard(ctx context.Context, boardID string) (service.Board, error) {
	const op = "get board"
	if err := service.Require(op, "board id", boardID); err != nil {
		return service.Board{}, err
	}

	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("boards", boardID), nil)
	if err != nil {
		return service.Board{}, err
	}
	wb, err := decodeBoards(op, data)
	if err != nil {
		return service.Board{}, err
	}
	// The backend answers a missing board with an empty list.
	if len(wb) == 0 && !hasList(data, "boards") {
		return service.Board{}, decodeError(op, "response has no boards")
	}
	for _, w := range wb {
		if b := w.normalize(); b.ID == boardID {
			return b, nil
		}
	}
	return service.Board{}, service.StatusError(op, http.StatusNotFound, "Board not found")
}

func decodeBoards(op string, data []byte) ([]wireBoard, error) {
	var wb []wireBoard
	if isArray(data) {
		if err := decode(op, data, &wb); err != nil {
			return nil, err
		}
		return wb, nil
	}
	var env struct {
		Boards []wireBoard `json:"boards"`
	}
	if err := decode(op, data, &env); err != nil {
		return nil, err
	}
	return env.Boards, nil
}

// CreateBoard implements service.Service.
func (c *Client) CreateBoard(ctx context.Context, userID, name, description string) (service.Board, error) {
	const op = "create board"
	if err := service.Require(op, "user id", userID, "name", name); err != nil {
		return service.Board{}, err
	}

	body := map[string]any{
		"user_id":     userID,
		"name":        name,
		"description": description,
	}
	data, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", "create"), body)
	if err != nil {
		return service.Board{}, err
	}

	// The board may come back bare or wrapped in {"board": {...}}.
	var env struct {
		Board *wireBoard `json:"board"`
	}
	if err := decode(op, data, &env); err != nil {
		return service.Board{}, err
	}
	var w wireBoard
	if env.Board != nil {
		w = *env.Board
	} else if err := decode(op, data, &w); err != nil {
		return service.Board{}, err
	}

	b := w.normalize()
	if b.ID == "" {
		return service.Board{}, decodeError(op, "response has no board id")
	}
	if b.Name == "" {
		b.Name = name
	}
	if b.OwnerID == "" {
		b.OwnerID = userID
	}
	if len(b.MemberIDs) == 0 {
		b.MemberIDs = []string{userID}
	}
	b.Role = service.RoleOwner
	return b, nil
}

// EditBoard implements service.Service.
func (c *Client) EditBoard(ctx context.Context, userID, boardID string, update service.BoardUpdate) error {
	const op = "edit board"
	if err := service.Require(op, "user id", userID, "board id", boardID); err != nil {
		return err
	}
	if update.Name == nil && update.Description == nil {
		return service.InputError(op, "no fields to update")
	}
	if update.Name != nil && *update.Name == "" {
		return service.InputError(op, "missing name")
	}

	body := map[string]any{"user_id": userID}
	if update.Name != nil {
		body["board_name"] = *update.Name
	}
	if update.Description != nil {
		body["description"] = *update.Description
	}
	_, err := c.do(ctx, op, http.MethodPatch, c.endpoint("boards", boardID), body)
	return err
}

// DeleteBoard implements service.Service.
func (c *Client) DeleteBoard(ctx context.Context, userID, boardID string) error {
	const op = "delete board"
	if err := service.Require(op, "user id", userID, "board id", boardID); err != nil {
		return err
	}
	body := map[string]any{"user_id": userID, "board_id": boardID}
	_, err := c.do(ctx, op, http.MethodDelete, c.endpoint("boards", boardID), body)
	return err
}
