package mockserver

import (
	"database/sql"
	"io"
	"math/rand"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxBodyBytes = 1 << 20

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func messageBody(msg string) map[string]string {
	return map[string]string{"message": msg}
}

// bind decodes the JSON request body into out. An empty body leaves out untouched.
func bind(c echo.Context, out any) error {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return sonic.ConfigStd.Unmarshal(data, out)
}

func (s *Server) internalError(c echo.Context, err error) error {
	s.log.WithError(err).WithField("path", c.Path()).Error("mock request failed")
	return c.JSON(http.StatusInternalServerError, errorBody(err.Error()))
}

// actingAs checks that the user named by the request is the token's user.
func actingAs(c echo.Context, userID string) bool {
	tokenUser, _ := c.Get(userKey).(string)
	return tokenUser != "" && tokenUser == userID
}

func forbiddenActor(c echo.Context) error {
	return c.JSON(http.StatusForbidden, errorBody("user_id does not match token"))
}

func nullable(ns sql.NullString) any {
	if !ns.Valid {
		return nil
	}
	return ns.String
}

func (s *Server) listBoards(c echo.Context) error {
	userID := c.Param("user_id")
	if !actingAs(c, userID) {
		return forbiddenActor(c)
	}
	rows, err := s.db.boardsForUser(c.Request().Context(), userID)
	if err != nil {
		return s.internalError(c, err)
	}
	boards := make([]map[string]any, 0, len(rows))
	for _, r := range rows {
		boards = append(boards, map[string]any{
			"id":          r.ID,
			"name":        r.Name,
			"description": r.Description,
			"owner_id":    r.OwnerID,
			"createdAt":   r.CreatedAt,
			"role":        r.Role,
			"joinedAt":    nullable(r.JoinedAt),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"boards": boards})
}

func (s *Server) getBoard(c echo.Context) error {
	b, ok, err := s.db.board(c.Request().Context(), c.Param("board_id"))
	if err != nil {
		return s.internalError(c, err)
	}
	boards := []map[string]any{}
	if ok {
		boards = append(boards, map[string]any{
			"id":          b.ID,
			"name":        b.Name,
			"description": b.Description,
			"owner_id":    b.OwnerID,
			"created_at":  b.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"boards": boards})
}

func (s *Server) createBoard(c echo.Context) error {
	var req struct {
		UserID      string `json:"user_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || req.Name == "" {
		return c.String(http.StatusBadRequest, "Missing user_id or name")
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	b := boardRow{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		OwnerID:     req.UserID,
		CreatedAt:   stamp(s.now()),
	}
	if err := s.db.createBoard(c.Request().Context(), b); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"id":          b.ID,
		"name":        b.Name,
		"description": b.Description,
		"owner_id":    b.OwnerID,
	})
}

func (s *Server) editBoard(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID      string  `json:"user_id"`
		Name        *string `json:"board_name"`
		Description *string `json:"description"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing user_id in body"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	b, ok, err := s.db.board(ctx, boardID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Board metadata not found"))
	}
	if b.OwnerID != req.UserID {
		return c.JSON(http.StatusForbidden, errorBody("Only the owner can edit the board"))
	}
	if req.Name == nil && req.Description == nil {
		return c.JSON(http.StatusBadRequest, errorBody("No fields to update"))
	}
	if err := s.db.updateBoard(ctx, boardID, req.Name, req.Description); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("Board "+boardID+" updated successfully"))
}

func (s *Server) deleteBoard(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, board_id"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	b, ok, err := s.db.board(ctx, boardID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Board not found"))
	}
	if b.OwnerID != req.UserID {
		return c.JSON(http.StatusForbidden, errorBody("Only the owner can delete this board"))
	}
	if err := s.db.deleteBoard(ctx, boardID); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("Board "+boardID+" and all memberships to board deleted successfully"))
}

func taskJSON(t taskRow) map[string]any {
	return map[string]any{
		"task_id":     t.ID,
		"board_id":    t.BoardID,
		"title":       t.Title,
		"description": t.Description,
		"created_at":  t.CreatedAt,
		"finish_by":   nullable(t.FinishBy),
		"created_by":  t.CreatedBy,
		"assigned_to": nullable(t.AssignedTo),
		"status":      t.Status,
	}
}

func tasksJSON(rows []taskRow) map[string]any {
	tasks := make([]map[string]any, 0, len(rows))
	for _, t := range rows {
		tasks = append(tasks, taskJSON(t))
	}
	return map[string]any{"tasks": tasks}
}

func (s *Server) listBoardTasks(c echo.Context) error {
	rows, err := s.db.boardTasks(c.Request().Context(), c.Param("board_id"), c.QueryParam("status"))
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, tasksJSON(rows))
}

func (s *Server) listUserTasks(c echo.Context) error {
	userID := c.Param("user_id")
	if !actingAs(c, userID) {
		return forbiddenActor(c)
	}
	rows, err := s.db.userTasks(c.Request().Context(), userID)
	if err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, tasksJSON(rows))
}

func (s *Server) getTask(c echo.Context) error {
	t, ok, err := s.db.task(c.Request().Context(), c.Param("task_id"))
	if err != nil {
		return s.internalError(c, err)
	}
	tasks := []map[string]any{}
	if ok {
		m := taskJSON(t)
		m["id"] = t.ID
		delete(m, "task_id")
		tasks = append(tasks, m)
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) createTask(c echo.Context) error {
	var req struct {
		UserID      string  `json:"user_id"`
		BoardID     string  `json:"board_id"`
		Title       string  `json:"title"`
		Description string  `json:"description"`
		FinishBy    *string `json:"finish_by"`
		AssignedTo  *string `json:"assigned_to"`
		Status      string  `json:"status"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || req.BoardID == "" || req.Title == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, board_id, title"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}
	if req.Status == "" {
		req.Status = "todo"
	}

	ctx := c.Request().Context()
	if _, ok, err := s.db.board(ctx, req.BoardID); err != nil {
		return s.internalError(c, err)
	} else if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Board not found"))
	}
	role, err := s.db.role(ctx, req.BoardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("User is not a member of this board"))
	}

	t := taskRow{
		ID:          uuid.NewString(),
		BoardID:     req.BoardID,
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		CreatedBy:   req.UserID,
		CreatedAt:   stamp(s.now()),
	}
	if req.FinishBy != nil && *req.FinishBy != "" {
		t.FinishBy.String, t.FinishBy.Valid = *req.FinishBy, true
	}
	if req.AssignedTo != nil && *req.AssignedTo != "" {
		t.AssignedTo.String, t.AssignedTo.Valid = *req.AssignedTo, true
	}
	if err := s.db.createTask(ctx, t); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"message":  "Task created successfully",
		"task_id":  t.ID,
		"board_id": t.BoardID,
	})
}

func (s *Server) editTask(c echo.Context) error {
	taskID := c.Param("task_id")
	body := map[string]any{}
	if err := bind(c, &body); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	userID, _ := body["user_id"].(string)
	if userID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required field: user_id"))
	}
	if !actingAs(c, userID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	t, ok, err := s.db.task(ctx, taskID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Task metadata not found"))
	}
	role, err := s.db.role(ctx, t.BoardID, userID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("User is not a member of this board"))
	}

	fields := map[string]any{}
	for _, col := range []string{"title", "description", "status", "finish_by"} {
		if v, ok := body[col].(string); ok {
			fields[col] = v
		}
	}
	if v, present := body["assigned_to"]; present {
		if str, ok := v.(string); ok && str != "" {
			fields["assigned_to"] = str
		} else {
			fields["assigned_to"] = nil
		}
	}
	if len(fields) == 0 {
		return c.JSON(http.StatusBadRequest, errorBody("No fields to update"))
	}
	if title, ok := fields["title"].(string); ok && title == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Title cannot be empty"))
	}
	if err := s.db.updateTask(ctx, taskID, fields); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("Task updated successfully"))
}

func (s *Server) updateTaskStatus(c echo.Context) error {
	boardID, taskID := c.Param("board_id"), c.Param("task_id")
	var req struct {
		UserID string `json:"user_id"`
		Status string `json:"status"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || req.Status == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("User is not a member of this board"))
	}
	t, ok, err := s.db.task(ctx, taskID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok || t.BoardID != boardID {
		return c.JSON(http.StatusNotFound, errorBody("Task not found"))
	}
	if err := s.db.updateTask(ctx, taskID, map[string]any{"status": req.Status}); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": "Task status updated",
		"task_id": taskID,
		"status":  req.Status,
	})
}

func (s *Server) deleteTask(c echo.Context) error {
	boardID, taskID := c.Param("board_id"), c.Param("task_id")
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required field in body: user_id"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	if _, ok, err := s.db.board(ctx, boardID); err != nil {
		return s.internalError(c, err)
	} else if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Board not found"))
	}
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("User is not authorized to delete tasks on this board"))
	}
	t, ok, err := s.db.task(ctx, taskID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok || t.BoardID != boardID {
		return c.JSON(http.StatusNotFound, errorBody("Task not found"))
	}
	if err := s.db.deleteTask(ctx, taskID); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("Task deleted successfully"))
}

func (s *Server) listMembers(c echo.Context) error {
	rows, err := s.db.members(c.Request().Context(), c.Param("board_id"))
	if err != nil {
		return s.internalError(c, err)
	}
	members := make([]map[string]any, 0, len(rows))
	for _, m := range rows {
		members = append(members, map[string]any{
			"user_id":   m.UserID,
			"role":      m.Role,
			"joined_at": nullable(m.JoinedAt),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"members": members})
}

// newAccessCode returns three uppercase letters and three digits, shuffled.
func newAccessCode(rng *rand.Rand) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const digits = "0123456789"
	code := make([]byte, 0, 6)
	for i := 0; i < 3; i++ {
		code = append(code, letters[rng.Intn(len(letters))])
	}
	for i := 0; i < 3; i++ {
		code = append(code, digits[rng.Intn(len(digits))])
	}
	rng.Shuffle(len(code), func(i, j int) { code[i], code[j] = code[j], code[i] })
	return string(code)
}

func (s *Server) generateCode(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing board_id (in route) or user_id (in body)"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("Not authorized: user is not a member/owner"))
	}

	now := s.now()
	code, expires, ok, err := s.db.activeCode(ctx, boardID, now)
	if err != nil {
		return s.internalError(c, err)
	}
	if ok {
		return c.JSON(http.StatusOK, map[string]any{
			"message":     "Existing access code reused",
			"access_code": code,
			"expires_at":  expires,
		})
	}

	rng := rand.New(rand.NewSource(now.UnixNano()))
	for {
		code = newAccessCode(rng)
		taken, err := s.db.codeExists(ctx, code)
		if err != nil {
			return s.internalError(c, err)
		}
		if !taken {
			break
		}
	}
	expiresAt := now.Add(CodeTTL)
	if err := s.db.saveCode(ctx, boardID, code, expiresAt); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":     "New access code created",
		"access_code": code,
		"expires_at":  stamp(expiresAt),
	})
}

func (s *Server) joinBoard(c echo.Context) error {
	var req struct {
		UserID     string `json:"user_id"`
		AccessCode string `json:"access_code"`
		BoardID    string `json:"board_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || (req.AccessCode == "" && req.BoardID == "") {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, access_code"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	boardID := req.BoardID
	if req.AccessCode != "" {
		resolved, ok, err := s.db.codeBoard(ctx, req.AccessCode, s.now())
		if err != nil {
			return s.internalError(c, err)
		}
		if !ok {
			return c.JSON(http.StatusNotFound, errorBody("Access code not found or expired"))
		}
		boardID = resolved
	}

	b, ok, err := s.db.board(ctx, boardID)
	if err != nil {
		return s.internalError(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, errorBody("Board not found"))
	}
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role != "" {
		return c.JSON(http.StatusBadRequest, errorBody("User is already a member of this board"))
	}
	if err := s.db.putMember(ctx, boardID, req.UserID, "member", s.now()); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"board_id": boardID,
		"user_id":  req.UserID,
		"owner_id": b.OwnerID,
	})
}

func (s *Server) leaveBoard(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, board_id"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	switch role {
	case "":
		return c.JSON(http.StatusNotFound, errorBody("User is not a member of this board"))
	case "owner":
		return c.JSON(http.StatusForbidden, errorBody("Owner cannot leave the board"))
	}
	if err := s.db.removeMember(ctx, boardID, req.UserID); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("User "+req.UserID+" left board "+boardID+" successfully"))
}

func (s *Server) shareBoard(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID string `json:"user_id"`
		Target string `json:"share_with_user_id"`
		Role   string `json:"role"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || req.Target == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, board_id, share_with_user_id"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}
	if req.Role == "" || req.Role == "owner" {
		req.Role = "editor"
	}

	ctx := c.Request().Context()
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("Invoking user is not a member of this board"))
	}
	existing, err := s.db.role(ctx, boardID, req.Target)
	if err != nil {
		return s.internalError(c, err)
	}
	if existing == "owner" {
		return c.JSON(http.StatusBadRequest, errorBody("Cannot change the owner's role"))
	}
	if err := s.db.putMember(ctx, boardID, req.Target, req.Role, s.now()); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message":  "Board shared successfully",
		"board_id": boardID,
		"user_id":  req.Target,
		"role":     req.Role,
	})
}

func (s *Server) unshareBoard(c echo.Context) error {
	boardID := c.Param("board_id")
	var req struct {
		UserID string `json:"user_id"`
		Target string `json:"remove_user_id"`
	}
	if err := bind(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}
	if req.UserID == "" || req.Target == "" {
		return c.JSON(http.StatusBadRequest, errorBody("Missing required fields: user_id, board_id, remove_user_id"))
	}
	if !actingAs(c, req.UserID) {
		return forbiddenActor(c)
	}

	ctx := c.Request().Context()
	role, err := s.db.role(ctx, boardID, req.UserID)
	if err != nil {
		return s.internalError(c, err)
	}
	if role == "" {
		return c.JSON(http.StatusForbidden, errorBody("Invoking user is not a member of this board"))
	}
	target, err := s.db.role(ctx, boardID, req.Target)
	if err != nil {
		return s.internalError(c, err)
	}
	if target == "" {
		return c.JSON(http.StatusNotFound, errorBody("User "+req.Target+" is not a member of board "+boardID))
	}
	if target == "owner" {
		return c.JSON(http.StatusForbidden, errorBody("Cannot remove the owner"))
	}
	if err := s.db.removeMember(ctx, boardID, req.Target); err != nil {
		return s.internalError(c, err)
	}
	return c.JSON(http.StatusOK, messageBody("User "+req.Target+" removed from board "+boardID))
}
