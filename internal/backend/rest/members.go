package rest

import (
	"context"
	"net/http"
	"strings"

	"taskbin/internal/service"
)

// ListMembers implements service.Service.
func (c *Client) ListMembers(ctx context.Context, boardID string) ([]service.Member, error) {
	const op = "list members"
	if err := service.Require(op, "board id", boardID); err != nil {
		return nil, err
	}
	data, err := c.do(ctx, op, http.MethodGet, c.endpoint("boards", boardID, "members"), nil)
	if err != nil {
		return nil, err
	}

	var wm []wireMember
	if isArray(data) {
		err = decode(op, data, &wm)
	} else {
		var env struct {
			Members []wireMember `json:"members"`
		}
		err = decode(op, data, &env)
		wm = env.Members
	}
	if err != nil {
		return nil, err
	}

	members := make([]service.Member, 0, len(wm))
	for _, w := range wm {
		m := w.normalize()
		if m.UserID == "" {
			return nil, decodeError(op, "member without user id")
		}
		members = append(members, m)
	}
	return members, nil
}

// GenerateAccessCode implements service.Service.
func (c *Client) GenerateAccessCode(ctx context.Context, userID, boardID string) (service.AccessCode, error) {
	const op = "generate access code"
	if err := service.Require(op, "user id", userID, "board id", boardID); err != nil {
		return service.AccessCode{}, err
	}
	body := map[string]any{"user_id": userID}
	data, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", boardID, "code"), body)
	if err != nil {
		return service.AccessCode{}, err
	}

	var resp struct {
		AccessCode string `json:"access_code"`
		Code       string `json:"code"`
		ExpiresAt  string `json:"expires_at"`
	}
	if err := decode(op, data, &resp); err != nil {
		return service.AccessCode{}, err
	}
	code := first(resp.AccessCode, resp.Code)
	if code == "" {
		return service.AccessCode{}, decodeError(op, "response has no access code")
	}
	return service.AccessCode{
		Code:      code,
		BoardID:   boardID,
		ExpiresAt: parseTime(resp.ExpiresAt),
	}, nil
}

// JoinBoard implements service.Service.
func (c *Client) JoinBoard(ctx context.Context, userID, code string) (string, error) {
	const op = "join board"
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := service.Require(op, "user id", userID, "access code", code); err != nil {
		return "", err
	}
	body := map[string]any{"user_id": userID, "access_code": code}
	data, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", "join"), body)
	if err != nil {
		return "", err
	}
	var resp struct {
		BoardID string `json:"board_id"`
	}
	if err := decode(op, data, &resp); err != nil {
		return "", err
	}
	if resp.BoardID == "" {
		return "", decodeError(op, "response has no board id")
	}
	return resp.BoardID, nil
}

// LeaveBoard implements service.Service.
func (c *Client) LeaveBoard(ctx context.Context, userID, boardID string) error {
	const op = "leave board"
	if err := service.Require(op, "user id", userID, "board id", boardID); err != nil {
		return err
	}
	body := map[string]any{"user_id": userID, "board_id": boardID}
	_, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", boardID, "leave"), body)
	return err
}

// ShareBoard implements service.Service.
func (c *Client) ShareBoard(ctx context.Context, userID, boardID, targetUserID string, role service.Role) error {
	const op = "share board"
	if err := service.Require(op, "user id", userID, "board id", boardID, "target user id", targetUserID); err != nil {
		return err
	}
	if role == "" {
		role = service.RoleMember
	}
	body := map[string]any{
		"user_id":            userID,
		"board_id":           boardID,
		"share_with_user_id": targetUserID,
		"role":               string(role),
	}
	_, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", boardID, "share"), body)
	return err
}

// UnshareBoard implements service.Service.
func (c *Client) UnshareBoard(ctx context.Context, userID, boardID, targetUserID string) error {
	const op = "unshare board"
	if err := service.Require(op, "user id", userID, "board id", boardID, "target user id", targetUserID); err != nil {
		return err
	}
	body := map[string]any{
		"user_id":        userID,
		"board_id":       boardID,
		"remove_user_id": targetUserID,
	}
	_, err := c.do(ctx, op, http.MethodPost, c.endpoint("boards", boardID, "unshare"), body)
	return err
}
