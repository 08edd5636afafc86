package mockserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// db is the sqlite-backed state of the mock backend.
type db struct {
	sql *sql.DB
}

type boardRow struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   string
}

type userBoardRow struct {
	boardRow
	Role     string
	JoinedAt sql.NullString
}

type memberRow struct {
	UserID   string
	Role     string
	JoinedAt sql.NullString
}

type taskRow struct {
	ID          string
	BoardID     string
	Title       string
	Description string
	Status      string
	FinishBy    sql.NullString
	AssignedTo  sql.NullString
	CreatedBy   string
	CreatedAt   string
}

func openDB(ctx context.Context, path string) (*db, error) {
	memory := path == "" || path == ":memory:"
	// modernc.org/sqlite driver name is "sqlite".
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	if memory {
		// Every connection to :memory: is a separate database.
		conn.SetMaxOpenConns(1)
		if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	d := &db{sql: conn}
	if err := d.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// filePragmas are applied by the driver to every pooled connection.
var filePragmas = []string{
	"foreign_keys(1)",
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn returns the data source name for path. File databases carry their
// pragmas in the DSN so each new connection gets them.
func dsn(path string) string {
	if path == "" || path == ":memory:" {
		return ":memory:"
	}
	q := make([]string, len(filePragmas))
	for i, p := range filePragmas {
		q[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(q, "&")
}

func (d *db) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS members (
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			joined_at TEXT,
			PRIMARY KEY(board_id, user_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_members_user ON members(user_id);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			finish_by TEXT,
			assigned_to TEXT,
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_board ON tasks(board_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assigned_to);`,
		`CREATE TABLE IF NOT EXISTS access_codes (
			code TEXT PRIMARY KEY,
			board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
			expires_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_access_codes_board ON access_codes(board_id);`,
	}
	for _, st := range stmts {
		if _, err := d.sql.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (d *db) close() error {
	return d.sql.Close()
}

// stampLayout is fixed width so stored timestamps compare as strings.
const stampLayout = "2006-01-02T15:04:05.000000Z07:00"

func stamp(t time.Time) string {
	return t.UTC().Format(stampLayout)
}

// createBoard inserts a board and its owner membership.
func (d *db) createBoard(ctx context.Context, b boardRow) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO boards(id, name, description, owner_id, created_at) VALUES(?, ?, ?, ?, ?)`,
		b.ID, b.Name, b.Description, b.OwnerID, b.CreatedAt); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO members(board_id, user_id, role, joined_at) VALUES(?, ?, 'owner', NULL)`,
		b.ID, b.OwnerID); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *db) board(ctx context.Context, id string) (boardRow, bool, error) {
	var b boardRow
	err := d.sql.QueryRowContext(ctx,
		`SELECT id, name, description, owner_id, created_at FROM boards WHERE id = ?`, id).
		Scan(&b.ID, &b.Name, &b.Description, &b.OwnerID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return boardRow{}, false, nil
	}
	if err != nil {
		return boardRow{}, false, err
	}
	return b, true, nil
}

func (d *db) boardsForUser(ctx context.Context, userID string) ([]userBoardRow, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT b.id, b.name, b.description, b.owner_id, b.created_at, m.role, m.joined_at
		FROM members m JOIN boards b ON b.id = m.board_id
		WHERE m.user_id = ?
		ORDER BY b.created_at, b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []userBoardRow
	for rows.Next() {
		var r userBoardRow
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.OwnerID, &r.CreatedAt, &r.Role, &r.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *db) updateBoard(ctx context.Context, id string, name, description *string) error {
	var sets []string
	var args []any
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *name)
	}
	if description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *description)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := d.sql.ExecContext(ctx, `UPDATE boards SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

// deleteBoard removes a board with its tasks, members and access codes.
func (d *db) deleteBoard(ctx context.Context, id string) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range []string{
		`DELETE FROM tasks WHERE board_id = ?`,
		`DELETE FROM members WHERE board_id = ?`,
		`DELETE FROM access_codes WHERE board_id = ?`,
		`DELETE FROM boards WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, st, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// role returns the user's role on a board, or "" if they are not a member.
func (d *db) role(ctx context.Context, boardID, userID string) (string, error) {
	var role string
	err := d.sql.QueryRowContext(ctx,
		`SELECT role FROM members WHERE board_id = ? AND user_id = ?`, boardID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return role, err
}

func (d *db) members(ctx context.Context, boardID string) ([]memberRow, error) {
	rows, err := d.sql.QueryContext(ctx, `
		SELECT user_id, role, joined_at FROM members
		WHERE board_id = ?
		ORDER BY CASE role WHEN 'owner' THEN 0 ELSE 1 END, joined_at, user_id`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []memberRow
	for rows.Next() {
		var m memberRow
		if err := rows.Scan(&m.UserID, &m.Role, &m.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// putMember adds or replaces a membership.
func (d *db) putMember(ctx context.Context, boardID, userID, role string, joined time.Time) error {
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO members(board_id, user_id, role, joined_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(board_id, user_id) DO UPDATE SET role = excluded.role`,
		boardID, userID, role, stamp(joined))
	return err
}

func (d *db) removeMember(ctx context.Context, boardID, userID string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM members WHERE board_id = ? AND user_id = ?`, boardID, userID)
	return err
}

const taskColumns = `id, board_id, title, description, status, finish_by, assigned_to, created_by, created_at`

func scanTasks(rows *sql.Rows) ([]taskRow, error) {
	defer rows.Close()
	var out []taskRow
	for rows.Next() {
		var t taskRow
		if err := rows.Scan(&t.ID, &t.BoardID, &t.Title, &t.Description, &t.Status,
			&t.FinishBy, &t.AssignedTo, &t.CreatedBy, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (d *db) boardTasks(ctx context.Context, boardID, status string) ([]taskRow, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE board_id = ?`
	args := []any{boardID}
	if status != "" {
		q += ` AND status = ?`
		args = append(args, status)
	}
	rows, err := d.sql.QueryContext(ctx, q+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (d *db) userTasks(ctx context.Context, userID string) ([]taskRow, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assigned_to = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	return scanTasks(rows)
}

func (d *db) task(ctx context.Context, id string) (taskRow, bool, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	if err != nil {
		return taskRow{}, false, err
	}
	tasks, err := scanTasks(rows)
	if err != nil || len(tasks) == 0 {
		return taskRow{}, false, err
	}
	return tasks[0], true, nil
}

func (d *db) createTask(ctx context.Context, t taskRow) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.BoardID, t.Title, t.Description, t.Status, t.FinishBy, t.AssignedTo, t.CreatedBy, t.CreatedAt)
	return err
}

// taskFields are the columns updateTask may change.
var taskFields = map[string]bool{
	"title":       true,
	"description": true,
	"status":      true,
	"finish_by":   true,
	"assigned_to": true,
}

func (d *db) updateTask(ctx context.Context, id string, fields map[string]any) error {
	var sets []string
	var args []any
	for _, col := range []string{"title", "description", "status", "finish_by", "assigned_to"} {
		v, ok := fields[col]
		if !ok || !taskFields[col] {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	_, err := d.sql.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	return err
}

func (d *db) deleteTask(ctx context.Context, id string) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	return err
}

// activeCode returns the board's unexpired access code, if any.
func (d *db) activeCode(ctx context.Context, boardID string, now time.Time) (string, string, bool, error) {
	var code, expires string
	err := d.sql.QueryRowContext(ctx, `
		SELECT code, expires_at FROM access_codes
		WHERE board_id = ? AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`, boardID, stamp(now)).Scan(&code, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return code, expires, true, nil
}

func (d *db) codeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM access_codes WHERE code = ?`, code).Scan(&n)
	return n > 0, err
}

// saveCode replaces the board's access code.
func (d *db) saveCode(ctx context.Context, boardID, code string, expires time.Time) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM access_codes WHERE board_id = ?`, boardID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO access_codes(code, board_id, expires_at) VALUES(?, ?, ?)`,
		code, boardID, stamp(expires)); err != nil {
		return err
	}
	return tx.Commit()
}

// codeBoard resolves an unexpired access code to its board.
func (d *db) codeBoard(ctx context.Context, code string, now time.Time) (string, bool, error) {
	var boardID string
	err := d.sql.QueryRowContext(ctx,
		`SELECT board_id FROM access_codes WHERE code = ? AND expires_at > ?`, code, stamp(now)).Scan(&boardID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return boardID, err == nil, err
}
