package commands_test

import (
	"bytes"
	"context"
	"flag"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"taskbin/internal/auth"
	"taskbin/internal/backend/googletasks"
	"taskbin/internal/backend/rest"
	"taskbin/internal/commands"
	"taskbin/internal/config"
	"taskbin/internal/exitcode"
	"taskbin/internal/mockserver"
	"taskbin/internal/push"
	"taskbin/internal/service"
	"taskbin/internal/testutil"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// newFake returns alice's view of two boards: Groceries, which she owns,
// and Work, which bob shared with her.
func newFake() *testutil.FakeService {
	svc := testutil.NewFakeService()
	svc.AddBoard("b1", "Groceries", "alice")
	svc.AddBoard("b2", "Work", "bob")
	svc.AddMember("b2", "alice")
	svc.AddTask("b1", "t1", "Milk", service.StatusNotStarted)
	svc.AddTask("b1", "t2", "Eggs", service.StatusInProgress)
	svc.AddTask("b1", "t3", "Bread", service.StatusCompleted)
	return svc
}

func newSession(svc service.Service) *commands.Session {
	return &commands.Session{
		Gateway: svc,
		User:    auth.Identity{UserID: "alice", Email: "alice@example.com"},
		Now:     func() time.Time { return fixedNow },
	}
}

// runCommand is a helper to run a command against a gateway.
func runCommand(t *testing.T, cmd commands.Command, svc service.Service, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()
	return runSession(t, cmd, newSession(svc), args, quiet)
}

func runSession(t *testing.T, cmd commands.Command, sess *commands.Session, args []string, quiet bool) (stdout, stderr string, code int) {
	t.Helper()

	var outBuf, errBuf bytes.Buffer
	cfg := &config.Config{
		Dir:      t.TempDir(),
		Quiet:    quiet,
		Settings: config.DefaultSettings(),
	}

	code = cmd.Run(context.Background(), cfg, sess, args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

// parseFlags registers cmd's flags and parses args, returning the positionals.
func parseFlags(t *testing.T, cmd commands.Command, args ...string) []string {
	t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs.Args()
}

func count(calls []string, op string) int {
	n := 0
	for _, c := range calls {
		if c == op {
			n++
		}
	}
	return n
}

func TestVersionCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.VersionCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskbin 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

func TestVersionCommand_Verbose(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		mock    bool
		backend string
	}{
		{"unconfigured", "", false, "backend: not configured\n"},
		{"rest", "https://api.example.com/prod", false, "backend: https://api.example.com/prod\n"},
		{"mock wins", "https://api.example.com/prod", true, "backend: mock (in-process)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &commands.VersionCmd{}
			parseFlags(t, cmd, "--verbose")
			cfg := newConfig(t, false)
			cfg.Settings.APIBaseURL = tt.base
			cfg.Settings.UseMock = tt.mock

			stdout, _, code := runWithConfig(cfg, cmd, nil)
			if code != exitcode.Success {
				t.Fatalf("expected success, got %d", code)
			}
			if !strings.HasPrefix(stdout, "taskbin 0.1.0\ngo:      go") {
				t.Errorf("unexpected header %q", stdout)
			}
			if !strings.Contains(stdout, tt.backend) {
				t.Errorf("output %q missing %q", stdout, tt.backend)
			}
			if !strings.HasSuffix(stdout, "config:  "+cfg.Dir+"\n") {
				t.Errorf("output %q missing config dir", stdout)
			}
		})
	}
}

func TestHelpCommand(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.HelpCmd{}, nil, nil, false)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	for _, want := range []string{"Usage:", "taskbin board <board>", "taskbin watch <board>", "--quiet"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help missing %q", want)
		}
	}
}

func TestRegistry_AllCommandsRegistered(t *testing.T) {
	names := []string{
		"boards", "board", "tasks", "mkboard", "createboard", "editboard", "rmboard",
		"mytasks", "add", "create", "edit", "status", "mv", "done", "rm",
		"members", "code", "join", "leave", "share", "unshare", "watch", "ui",
		"import", "serve-mock", "login", "logout", "whoami", "help", "version",
	}
	for _, name := range names {
		if _, ok := commands.DefaultRegistry.Find(name); !ok {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := commands.NewRegistry()
	if err := r.Register(&commands.VersionCmd{}); err != nil {
		t.Fatal(err)
	}
	err := r.Register(&commands.VersionCmd{})
	if err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected duplicate error, got %v", err)
	}
}

func TestRegistry_AliasAndSuggest(t *testing.T) {
	r := commands.NewRegistry()
	for _, c := range []commands.Command{&commands.BoardCmd{}, &commands.StatusCmd{}, &commands.ShareCmd{}} {
		if err := r.Register(c); err != nil {
			t.Fatal(err)
		}
	}

	cmd, ok := r.Find("tasks")
	if !ok || cmd.Name() != "board" {
		t.Errorf("alias lookup failed: %v %v", cmd, ok)
	}
	if got := len(r.All()); got != 3 {
		t.Errorf("expected 3 commands, got %d", got)
	}
	if got := strings.Join(r.Suggest("s"), ","); got != "share,status" {
		t.Errorf("Suggest(s) = %q", got)
	}
	if got := strings.Join(r.Suggest("m"), ","); got != "mv" {
		t.Errorf("Suggest(m) = %q", got)
	}
	if got := r.Suggest(""); got != nil {
		t.Errorf("Suggest(\"\") = %v", got)
	}

	if err := r.Register(&commands.DoneCmd{}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&aliasClash{}); err == nil || !strings.Contains(err.Error(), "alias already registered: done") {
		t.Errorf("expected alias clash, got %v", err)
	}
}

// aliasClash claims an alias that is another command's name.
type aliasClash struct{ commands.VersionCmd }

func (aliasClash) Name() string      { return "finish" }
func (aliasClash) Aliases() []string { return []string{"done"} }

func TestBoardsCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.BoardsCmd{}, newFake(), nil, false)

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	want := "   1  Groceries [owner]\n   2  Work\n"
	if stdout != want {
		t.Errorf("got %q, want %q", stdout, want)
	}
}

func TestBoardsCommand_Empty(t *testing.T) {
	tests := []struct {
		name  string
		quiet bool
		want  string
	}{
		{"normal", false, "no boards found\n"},
		{"quiet", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, code := runCommand(t, &commands.BoardsCmd{}, testutil.NewFakeService(), nil, tt.quiet)
			if code != exitcode.Success {
				t.Errorf("expected success, got %d", code)
			}
			if stdout != tt.want {
				t.Errorf("got %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestBoardsCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "backend",
			err:      service.StatusError("list boards", http.StatusInternalServerError, "boom"),
			wantCode: exitcode.BackendError,
			wantErr:  "error: backend error: list boards: 500 boom\n",
		},
		{
			name:     "unauthorized",
			err:      service.StatusError("list boards", http.StatusUnauthorized, "token expired"),
			wantCode: exitcode.AuthError,
			wantErr:  "error: auth error: list boards: 401 token expired\n",
		},
		{
			name:     "bad request",
			err:      service.StatusError("list boards", http.StatusBadRequest, "bad user"),
			wantCode: exitcode.UserError,
			wantErr:  "error: bad user\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFake()
			svc.ListBoardsErr = tt.err
			_, stderr, code := runCommand(t, &commands.BoardsCmd{}, svc, nil, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, code)
			}
			if stderr != tt.wantErr {
				t.Errorf("got %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestBoardCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.BoardCmd{}, newFake(), []string{"Groceries"}, false)

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	testutil.GoldenString(t, "board", stdout)
}

func TestBoardCommand_Refs(t *testing.T) {
	svc := newFake()
	svc.AddBoard("b3", "home", "alice")
	svc.AddBoard("b4", "Home ", "alice")

	tests := []struct {
		name     string
		ref      []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{name: "by number", ref: []string{"2"}, wantCode: exitcode.Success, wantOut: "Work"},
		{name: "by id", ref: []string{"b1"}, wantCode: exitcode.Success, wantOut: "Groceries"},
		{name: "by name ignoring case", ref: []string{"WORK"}, wantCode: exitcode.Success, wantOut: "Work"},
		{name: "by name", ref: []string{"Groceries"}, wantCode: exitcode.Success, wantOut: "Milk"},
		{name: "unknown", ref: []string{"nope"}, wantCode: exitcode.UserError, wantErr: "error: board not found: nope\n"},
		{name: "ambiguous", ref: []string{"home"}, wantCode: exitcode.UserError, wantErr: "error: ambiguous board name: home\n"},
		{name: "missing", ref: nil, wantCode: exitcode.UserError, wantErr: "error: board required\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, code := runCommand(t, &commands.BoardCmd{}, svc, tt.ref, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d (%s)", tt.wantCode, code, stderr)
			}
			if tt.wantOut != "" && !strings.Contains(stdout, tt.wantOut) {
				t.Errorf("stdout %q missing %q", stdout, tt.wantOut)
			}
			if tt.wantErr != "" && stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestAddCommand(t *testing.T) {
	svc := newFake()
	cmd := &commands.AddCmd{}
	cmd.SetOptions("  two litres  ", "in progress", "bob", "2025-03-10")

	stdout, stderr, code := runCommand(t, cmd, svc, []string{"Groceries", "Orange", "juice"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("got %q, want ok", stdout)
	}

	tasks, _ := svc.ListTasks(context.Background(), "b1")
	got := tasks[len(tasks)-1]
	if got.Title != "Orange juice" || got.Description != "two litres" {
		t.Errorf("unexpected task %+v", got)
	}
	if got.Status != service.StatusInProgress || got.AssigneeID != "bob" {
		t.Errorf("unexpected status/assignee %+v", got)
	}
	if got.Due == nil || got.Due.Format(time.DateOnly) != "2025-03-10" {
		t.Errorf("unexpected due %v", got.Due)
	}
}

func TestAddCommand_DefaultsAndQuiet(t *testing.T) {
	svc := newFake()
	stdout, _, code := runCommand(t, &commands.AddCmd{}, svc, []string{"1", "Butter"}, true)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if stdout != "" {
		t.Errorf("expected no output when quiet, got %q", stdout)
	}
	tasks, _ := svc.ListTasks(context.Background(), "b1")
	if got := tasks[len(tasks)-1]; got.Title != "Butter" || got.Status != service.StatusNotStarted {
		t.Errorf("unexpected task %+v", got)
	}
}

func TestAddCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		due     string
		args    []string
		wantErr string
	}{
		{name: "no board", wantErr: "error: board required\n"},
		{name: "no title", args: []string{"Groceries", "  "}, wantErr: "error: title required\n"},
		{name: "bad status", status: "blocked", args: []string{"Groceries", "x"},
			wantErr: "error: invalid status: blocked (use not-started, in-progress or completed)\n"},
		{name: "bad due", due: "tomorrow", args: []string{"Groceries", "x"},
			wantErr: "error: invalid due date: tomorrow (use YYYY-MM-DD)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFake()
			cmd := &commands.AddCmd{}
			cmd.SetOptions("", tt.status, "", tt.due)
			_, stderr, code := runCommand(t, cmd, svc, tt.args, false)
			if code != exitcode.UserError {
				t.Errorf("expected user error, got %d", code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
			if n := count(svc.Calls(), "CreateTask"); n != 0 {
				t.Errorf("expected no CreateTask call, got %d", n)
			}
		})
	}
}

func TestAddCommand_NotMember(t *testing.T) {
	svc := newFake()
	svc.CreateTaskErr = service.StatusError("create task", http.StatusForbidden, "not a member of this board")
	_, stderr, code := runCommand(t, &commands.AddCmd{}, svc, []string{"Work", "x"}, false)
	if code != exitcode.AuthError {
		t.Errorf("expected auth error, got %d", code)
	}
	if !strings.HasPrefix(stderr, "error: auth error: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestStatusCommand(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		taskID     string
		wantStatus service.Status
		wantCalls  int
	}{
		{"by number", []string{"Groceries", "1", "completed"}, "t1", service.StatusCompleted, 1},
		{"alias", []string{"Groceries", "1", "in_progress"}, "t1", service.StatusInProgress, 1},
		{"by id", []string{"Groceries", "#t3", "not", "started"}, "t3", service.StatusNotStarted, 1},
		{"next", []string{"Groceries", "2", "next"}, "t2", service.StatusCompleted, 1},
		{"next wraps", []string{"Groceries", "3", "NEXT"}, "t3", service.StatusNotStarted, 1},
		{"unchanged", []string{"Groceries", "3", "completed"}, "t3", service.StatusCompleted, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFake()
			stdout, stderr, code := runCommand(t, &commands.StatusCmd{}, svc, tt.args, false)
			if code != exitcode.Success {
				t.Fatalf("expected success, got %d (%s)", code, stderr)
			}
			if stdout != "ok\n" {
				t.Errorf("got %q, want ok", stdout)
			}
			got, _ := svc.StoredTask(tt.taskID)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if n := count(svc.Calls(), "UpdateTaskStatus"); n != tt.wantCalls {
				t.Errorf("UpdateTaskStatus calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestStatusCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"too few args", []string{"Groceries", "1"}, exitcode.UserError,
			"error: usage: taskbin status <board> <ref> <not-started|in-progress|completed|next>\n"},
		{"bad status", []string{"Groceries", "1", "later"}, exitcode.UserError,
			"error: invalid status: later (use not-started, in-progress or completed)\n"},
		{"out of range", []string{"Groceries", "9", "completed"}, exitcode.UserError,
			"error: task number out of range: 9\n"},
		{"unknown id", []string{"Groceries", "#nope", "completed"}, exitcode.UserError,
			"error: task not found: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCommand(t, &commands.StatusCmd{}, newFake(), tt.args, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestDoneCommand(t *testing.T) {
	svc := newFake()
	_, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"1", "2"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if got, _ := svc.StoredTask("t2"); got.Status != service.StatusCompleted {
		t.Errorf("expected t2 completed, got %s", got.Status)
	}
}

func TestDoneCommand_BackendError(t *testing.T) {
	svc := newFake()
	svc.UpdateStatusErr = service.StatusError("update task status", http.StatusBadGateway, "")
	_, stderr, code := runCommand(t, &commands.DoneCmd{}, svc, []string{"Groceries", "1"}, false)
	if code != exitcode.BackendError {
		t.Errorf("expected backend error, got %d", code)
	}
	if stderr != "error: backend error: update task status: 502 Bad Gateway\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestRmCommand(t *testing.T) {
	svc := newFake()
	stdout, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"Groceries", "2"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("got %q, want ok", stdout)
	}
	if _, ok := svc.StoredTask("t2"); ok {
		t.Error("expected t2 deleted")
	}
}

func TestRmCommand_AlreadyGone(t *testing.T) {
	svc := newFake()
	svc.DeleteTaskErr = service.StatusError("delete task", http.StatusNotFound, "task not found")
	_, stderr, code := runCommand(t, &commands.RmCmd{}, svc, []string{"Groceries", "#t1"}, false)
	if code != exitcode.Success {
		t.Errorf("expected success for a task already deleted, got %d (%s)", code, stderr)
	}
}

func TestRmCommand_RefRequired(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.RmCmd{}, newFake(), []string{"Groceries"}, false)
	if code != exitcode.UserError {
		t.Errorf("expected user error, got %d", code)
	}
	if stderr != "error: task reference required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestEditCommand(t *testing.T) {
	svc := newFake()
	cmd := &commands.EditCmd{}
	args := parseFlags(t, cmd, "--title", "Oat milk", "--desc", "", "--assign", "bob", "Groceries", "1")

	_, stderr, code := runCommand(t, cmd, svc, args, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	got, _ := svc.StoredTask("t1")
	if got.Title != "Oat milk" || got.Description != "" || got.AssigneeID != "bob" {
		t.Errorf("unexpected task %+v", got)
	}
	if got.Status != service.StatusNotStarted {
		t.Errorf("status changed unexpectedly: %s", got.Status)
	}
}

func TestEditCommand_Unassign(t *testing.T) {
	svc := newFake()
	svc.SetAssignee("t2", "bob")
	cmd := &commands.EditCmd{}
	args := parseFlags(t, cmd, "--unassign", "Groceries", "#t2")

	if _, stderr, code := runCommand(t, cmd, svc, args, false); code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if got, _ := svc.StoredTask("t2"); got.AssigneeID != "" {
		t.Errorf("expected unassigned, got %q", got.AssigneeID)
	}
}

func TestEditCommand_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		wantErr string
	}{
		{"nothing", nil, "error: nothing to change\n"},
		{"empty title", []string{"--title", " "}, "error: title required\n"},
		{"assign and unassign", []string{"--assign", "bob", "--unassign"}, "error: cannot use both --assign and --unassign\n"},
		{"bad due", []string{"--due", "soon"}, "error: invalid due date: soon (use YYYY-MM-DD)\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFake()
			cmd := &commands.EditCmd{}
			args := parseFlags(t, cmd, append(tt.flags, "Groceries", "1")...)
			_, stderr, code := runCommand(t, cmd, svc, args, false)
			if code != exitcode.UserError {
				t.Errorf("expected user error, got %d", code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
			if n := count(svc.Calls(), "EditTask"); n != 0 {
				t.Errorf("expected no EditTask call, got %d", n)
			}
		})
	}
}

func TestEditBoardCommand(t *testing.T) {
	svc := newFake()
	cmd := &commands.EditBoardCmd{}
	args := parseFlags(t, cmd, "--desc", "weekly shop", "Groceries")

	if _, stderr, code := runCommand(t, cmd, svc, args, false); code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	got, _ := svc.StoredBoard("b1")
	if got.Name != "Groceries" || got.Description != "weekly shop" {
		t.Errorf("unexpected board %+v", got)
	}
}

func TestEditBoardCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"nothing", []string{"Groceries"}, exitcode.UserError, "error: nothing to change (use --name or --desc)\n"},
		{"empty name", []string{"--name", "", "Groceries"}, exitcode.UserError, "error: board name required\n"},
		{"not owner", []string{"--name", "Mine", "Work"}, exitcode.AuthError,
			"error: auth error: edit board: 403 only the owner can edit the board\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &commands.EditBoardCmd{}
			args := parseFlags(t, cmd, tt.args...)
			_, stderr, code := runCommand(t, cmd, newFake(), args, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestMkBoardCommand(t *testing.T) {
	svc := newFake()
	cmd := &commands.MkBoardCmd{}
	cmd.SetDescription("things to fix")

	// The id is printed even when quiet so scripts can capture it.
	stdout, stderr, code := runCommand(t, cmd, svc, []string{"House", "repairs"}, true)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	id := strings.TrimSpace(stdout)
	got, ok := svc.StoredBoard(id)
	if !ok {
		t.Fatalf("board %q not stored", id)
	}
	if got.Name != "House repairs" || got.Description != "things to fix" || got.OwnerID != "alice" {
		t.Errorf("unexpected board %+v", got)
	}
}

func TestMkBoardCommand_NameRequired(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.MkBoardCmd{}, newFake(), []string{" "}, false)
	if code != exitcode.UserError || stderr != "error: board name required\n" {
		t.Errorf("got %d %q", code, stderr)
	}
}

func TestRmBoardCommand(t *testing.T) {
	tests := []struct {
		name      string
		ref       string
		force     bool
		wantCode  int
		wantErr   string
		wantGone  string
		wantCalls int
	}{
		{name: "member", ref: "Work", wantCode: exitcode.UserError,
			wantErr: "error: only the owner can delete a board (use leave)\n"},
		{name: "open tasks", ref: "Groceries", wantCode: exitcode.UserError,
			wantErr: "error: board has open tasks (use --force)\n"},
		{name: "force", ref: "Groceries", force: true, wantCode: exitcode.Success, wantGone: "b1", wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFake()
			cmd := &commands.RmBoardCmd{}
			cmd.SetForce(tt.force)
			_, stderr, code := runCommand(t, cmd, svc, []string{tt.ref}, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d (%s)", tt.wantCode, code, stderr)
			}
			if tt.wantErr != "" && stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
			if tt.wantGone != "" {
				if _, ok := svc.StoredBoard(tt.wantGone); ok {
					t.Errorf("expected board %s deleted", tt.wantGone)
				}
			}
			if n := count(svc.Calls(), "DeleteBoard"); n != tt.wantCalls {
				t.Errorf("DeleteBoard calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestRmBoardCommand_AllCompleted(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.AddBoard("b1", "Done", "alice")
	svc.AddTask("b1", "t1", "Shipped", service.StatusCompleted)

	if _, stderr, code := runCommand(t, &commands.RmBoardCmd{}, svc, []string{"Done"}, false); code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if _, ok := svc.StoredBoard("b1"); ok {
		t.Error("expected board deleted")
	}
}

func TestMyTasksCommand(t *testing.T) {
	svc := newFake()
	svc.AddTask("b2", "t4", "Report", service.StatusInProgress)
	svc.SetAssignee("t1", "alice")
	svc.SetAssignee("t3", "alice")
	svc.SetAssignee("t4", "alice")
	svc.SetAssignee("t2", "bob")

	stdout, stderr, code := runCommand(t, &commands.MyTasksCmd{}, svc, nil, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	for _, want := range []string{"Groceries (1)", "Work (1)", "Milk", "Report"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
	for _, unwanted := range []string{"Bread", "Eggs"} {
		if strings.Contains(stdout, unwanted) {
			t.Errorf("output should not contain %q:\n%s", unwanted, stdout)
		}
	}
	if strings.Index(stdout, "Groceries") > strings.Index(stdout, "Work") {
		t.Errorf("boards out of order:\n%s", stdout)
	}
}

func TestMyTasksCommand_All(t *testing.T) {
	svc := newFake()
	svc.SetAssignee("t1", "alice")
	svc.SetAssignee("t3", "alice")

	cmd := &commands.MyTasksCmd{}
	args := parseFlags(t, cmd, "--all")
	stdout, _, code := runCommand(t, cmd, svc, args, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if !strings.Contains(stdout, "Groceries (2)") || !strings.Contains(stdout, "Bread") {
		t.Errorf("expected completed tasks with --all:\n%s", stdout)
	}
}

func TestMyTasksCommand_None(t *testing.T) {
	stdout, _, code := runCommand(t, &commands.MyTasksCmd{}, newFake(), nil, false)
	if code != exitcode.Success || stdout != "no tasks found\n" {
		t.Errorf("got %d %q", code, stdout)
	}
}

func TestMembersCommand(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.MembersCmd{}, newFake(), []string{"Work"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if want := "owner   bob\nmember  alice\n"; stdout != want {
		t.Errorf("got %q, want %q", stdout, want)
	}
}

func TestCodeCommand(t *testing.T) {
	svc := newFake()
	stdout, stderr, code := runCommand(t, &commands.CodeCmd{}, svc, []string{"Groceries"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if stdout != "ABC001\n" {
		t.Errorf("got %q", stdout)
	}

	// The same board keeps its code.
	stdout, _, _ = runCommand(t, &commands.CodeCmd{}, svc, []string{"1"}, false)
	if stdout != "ABC001\n" {
		t.Errorf("second call got %q", stdout)
	}
}

func TestJoinCommand(t *testing.T) {
	svc := newFake()
	svc.AddBoard("b3", "Book club", "carol")
	svc.AddCode("XYZ123", "b3")

	if _, stderr, code := runCommand(t, &commands.JoinCmd{}, svc, []string{" xyz123 "}, false); code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	stdout, _, _ := runCommand(t, &commands.BoardsCmd{}, svc, nil, false)
	if !strings.Contains(stdout, "Book club") {
		t.Errorf("joined board not listed:\n%s", stdout)
	}
}

func TestJoinCommand_Errors(t *testing.T) {
	svc := newFake()
	svc.AddCode("ABC999", "b2")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing", nil, "error: access code required\n"},
		{"unknown", []string{"NOPE00"}, "error: access code not found\n"},
		{"already member", []string{"ABC999"}, "error: User already a member of this board\n"},
	}
	before, _, _ := runCommand(t, &commands.BoardsCmd{}, svc, nil, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, code := runCommand(t, &commands.JoinCmd{}, svc, tt.args, false)
			if code != exitcode.UserError {
				t.Errorf("expected user error, got %d", code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
			if after, _, _ := runCommand(t, &commands.BoardsCmd{}, svc, nil, false); after != before {
				t.Errorf("boards changed after failed join: %q, was %q", after, before)
			}
		})
	}
}

func TestLeaveCommand(t *testing.T) {
	svc := newFake()
	if _, stderr, code := runCommand(t, &commands.LeaveCmd{}, svc, []string{"Work"}, false); code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	stdout, _, _ := runCommand(t, &commands.BoardsCmd{}, svc, nil, false)
	if stdout != "   1  Groceries [owner]\n" {
		t.Errorf("unexpected boards after leave %q", stdout)
	}

	_, _, code := runCommand(t, &commands.LeaveCmd{}, svc, []string{"Groceries"}, false)
	if code != exitcode.AuthError {
		t.Errorf("expected owner leave to be refused, got %d", code)
	}
}

func TestShareAndUnshare(t *testing.T) {
	svc := newFake()
	share := &commands.ShareCmd{}
	args := parseFlags(t, share, "Groceries", "carol")
	if _, stderr, code := runCommand(t, share, svc, args, false); code != exitcode.Success {
		t.Fatalf("share: expected success, got %d (%s)", code, stderr)
	}
	stdout, _, _ := runCommand(t, &commands.MembersCmd{}, svc, []string{"Groceries"}, false)
	if stdout != "owner   alice\nmember  carol\n" {
		t.Errorf("members after share %q", stdout)
	}

	if _, stderr, code := runCommand(t, &commands.UnshareCmd{}, svc, []string{"Groceries", "carol"}, false); code != exitcode.Success {
		t.Fatalf("unshare: expected success, got %d (%s)", code, stderr)
	}
	stdout, _, _ = runCommand(t, &commands.MembersCmd{}, svc, []string{"Groceries"}, false)
	if stdout != "owner   alice\n" {
		t.Errorf("members after unshare %q", stdout)
	}
}

func TestShareCommand_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{"missing user", []string{"Groceries"}, exitcode.UserError, "error: board and user id required\n"},
		{"owner role", []string{"--role", "owner", "Groceries", "carol"}, exitcode.UserError, "error: cannot share a board as owner\n"},
		{"not owner", []string{"Work", "carol"}, exitcode.AuthError,
			"error: auth error: share board: 403 only the owner can share the board\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &commands.ShareCmd{}
			args := parseFlags(t, cmd, tt.args...)
			_, stderr, code := runCommand(t, cmd, newFake(), args, false)
			if code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, code)
			}
			if stderr != tt.wantErr {
				t.Errorf("stderr = %q, want %q", stderr, tt.wantErr)
			}
		})
	}
}

type fakeSource struct {
	list  googletasks.List
	tasks []service.TaskInput

	gotCompleted bool
}

func (s *fakeSource) ResolveList(ctx context.Context, name string) (googletasks.List, error) {
	if name != "" && name != s.list.Title {
		return googletasks.List{}, service.StatusError("resolve list", http.StatusNotFound, "list not found: "+name)
	}
	return s.list, nil
}

func (s *fakeSource) Tasks(ctx context.Context, listID string, includeCompleted bool) ([]service.TaskInput, error) {
	s.gotCompleted = includeCompleted
	return s.tasks, nil
}

func TestImportCommand(t *testing.T) {
	svc := newFake()
	src := &fakeSource{
		list: googletasks.List{ID: "l1", Title: "Shopping", IsDefault: true},
		tasks: []service.TaskInput{
			{Title: "Apples", Status: service.StatusNotStarted},
			{Title: "Pears", Description: "ripe", Status: service.StatusCompleted},
		},
	}
	cmd := &commands.ImportCmd{}
	cmd.SetSource(src)
	cmd.SetList("Shopping", true)

	stdout, stderr, code := runCommand(t, cmd, svc, []string{"Groceries"}, false)
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (%s)", code, stderr)
	}
	if stdout != "imported 2 tasks from Shopping\n" {
		t.Errorf("got %q", stdout)
	}
	if !src.gotCompleted {
		t.Error("expected completed tasks to be requested")
	}
	tasks, _ := svc.ListTasks(context.Background(), "b1")
	if len(tasks) != 5 {
		t.Fatalf("expected 5 tasks, got %d", len(tasks))
	}
	if last := tasks[4]; last.Title != "Pears" || last.Description != "ripe" || last.Status != service.StatusCompleted {
		t.Errorf("unexpected imported task %+v", last)
	}
}

func TestImportCommand_PartialFailure(t *testing.T) {
	svc := newFake()
	cmd := &commands.ImportCmd{}
	cmd.SetSource(&fakeSource{
		list:  googletasks.List{ID: "l1", Title: "Shopping"},
		tasks: []service.TaskInput{{Title: "Apples"}, {Title: " "}, {Title: "Pears"}},
	})

	_, stderr, code := runCommand(t, cmd, svc, []string{"Groceries"}, false)
	if code != exitcode.UserError {
		t.Errorf("expected user error, got %d", code)
	}
	if want := "error: imported 1 of 3 tasks\nerror: missing title\n"; stderr != want {
		t.Errorf("stderr = %q, want %q", stderr, want)
	}
	if n := count(svc.Calls(), "CreateTask"); n != 1 {
		t.Errorf("expected import to stop at the failure, got %d CreateTask calls", n)
	}
}

func TestImportCommand_UnknownList(t *testing.T) {
	cmd := &commands.ImportCmd{}
	cmd.SetSource(&fakeSource{list: googletasks.List{ID: "l1", Title: "Shopping"}})
	cmd.SetList("Chores", false)

	_, stderr, code := runCommand(t, cmd, newFake(), []string{"Groceries"}, false)
	if code != exitcode.UserError || stderr != "error: list not found: Chores\n" {
		t.Errorf("got %d %q", code, stderr)
	}
}

func TestWatchCommand_RequiresPush(t *testing.T) {
	_, stderr, code := runCommand(t, &commands.WatchCmd{}, newFake(), []string{"Groceries"}, false)
	if code != exitcode.UserError {
		t.Errorf("expected user error, got %d", code)
	}
	if stderr != "error: push_url not configured\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %q, have:\n%s", want, b.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatchCommand_FollowsPushEvents(t *testing.T) {
	const secret = "watch-secret"
	ctx := context.Background()

	srv, err := mockserver.New(ctx, mockserver.Options{Secret: secret})
	if err != nil {
		t.Fatalf("mockserver.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	dialer := push.Dialer{URL: "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"}

	token, err := auth.MintMock(secret, "alice@example.com", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	client, err := rest.New(rest.Options{BaseURL: ts.URL, Token: token})
	if err != nil {
		t.Fatal(err)
	}
	alice := auth.MockUserID("alice@example.com")

	board, err := client.CreateBoard(ctx, alice, "Launch", "")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}
	if _, err := client.CreateTask(ctx, alice, board.ID, service.TaskInput{Title: "Write notes"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}

	sess := &commands.Session{
		Gateway: client,
		User:    auth.Identity{UserID: alice, Email: "alice@example.com"},
		Push:    dialer,
	}
	cfg := &config.Config{Dir: t.TempDir(), Settings: config.DefaultSettings()}
	var out, errOut syncBuffer

	runCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	done := make(chan int, 1)
	go func() {
		done <- (&commands.WatchCmd{}).Run(runCtx, cfg, sess, []string{"Launch"}, &out, &errOut)
	}()

	waitFor(t, &out, "Write notes")

	if _, err := client.CreateTask(ctx, alice, board.ID, service.TaskInput{Title: "Book venue"}); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if err := push.Notify(ctx, dialer, board.ID, "bob", push.KindTaskUpdated); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	waitFor(t, &out, "Book venue")

	if err := push.Notify(ctx, dialer, board.ID, "bob", push.KindBoardDeleted); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	select {
	case code := <-done:
		if code != exitcode.Success {
			t.Errorf("expected success, got %d (%s)", code, errOut.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after the board was deleted")
	}
	if !strings.HasSuffix(out.String(), "board deleted\n") {
		t.Errorf("expected final line %q, got:\n%s", "board deleted", out.String())
	}
}
