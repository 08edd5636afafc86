package tui

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"

	"taskbin/internal/auth"
	"taskbin/internal/push"
	"taskbin/internal/service"
	"taskbin/internal/testutil"
)

var alice = auth.Identity{UserID: "alice", Email: "alice@example.com", Name: "Alice"}

func newFake() *testutil.FakeService {
	fake := testutil.NewFakeService()
	fake.AddBoard("b1", "Groceries", "alice")
	fake.AddBoard("b2", "Work", "bob")
	fake.AddMember("b2", "alice")
	fake.AddTask("b1", "t1", "Milk", service.StatusNotStarted)
	fake.AddTask("b1", "t2", "Eggs", service.StatusInProgress)
	fake.AddTask("b1", "t3", "Bread", service.StatusCompleted)
	return fake
}

func newModel(t *testing.T, fake *testutil.FakeService, board string) Model {
	t.Helper()
	m := New(context.Background(), Options{
		Gateway:   fake,
		User:      alice,
		Board:     board,
		NoticeTTL: time.Millisecond,
		Now:       func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	m.width, m.height = 120, 40
	return run(t, m, m.Init())
}

// run executes cmd and feeds every resulting message back into the model
// until no work is left. Notice expiry is not delivered so notices can be
// asserted on.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("model did not settle")
		}
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, noticeDoneMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			next, cmd := m.Update(msg)
			m = next.(Model)
			queue = append(queue, cmd)
		}
	}
	return m
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(keyMsg(k))
		m = run(t, next.(Model), cmd)
	}
	return m
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

func TestBoardList(t *testing.T) {
	m := newModel(t, newFake(), "")
	view := m.View()
	for _, want := range []string{"Boards", "alice@example.com", "Groceries", "Work", "owner", "member"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got=%q", want, view)
		}
	}
	if m.screen != screenBoards {
		t.Fatalf("expected board list screen")
	}
}

func TestBoardList_Empty(t *testing.T) {
	m := newModel(t, testutil.NewFakeService(), "")
	if !strings.Contains(m.View(), "No boards yet") {
		t.Fatalf("expected empty hint, got=%q", m.View())
	}
}

func TestOpenBoard_ShowsColumns(t *testing.T) {
	m := newModel(t, newFake(), "")
	m = press(t, m, "enter")
	if m.screen != screenBoard {
		t.Fatalf("expected board screen")
	}
	view := m.View()
	for _, want := range []string{"Groceries", "Not started (1)", "In progress (1)", "Completed (1)", "Milk", "Eggs", "Bread"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got=%q", want, view)
		}
	}
}

func TestOptionsBoard_OpensAfterLoad(t *testing.T) {
	m := newModel(t, newFake(), "work")
	if m.screen != screenBoard {
		t.Fatalf("expected board screen")
	}
	if b, _ := m.store.Board(); b.ID != "b2" {
		t.Fatalf("expected b2 open, got %q", b.ID)
	}
}

func TestOptionsBoard_Unknown(t *testing.T) {
	m := newModel(t, newFake(), "nope")
	if m.screen != screenBoards {
		t.Fatalf("expected board list screen")
	}
	if !strings.Contains(m.notice, "board not found: nope") {
		t.Fatalf("expected notice, got=%q", m.notice)
	}
}

func TestCreateTask_OptimisticThenConfirmed(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	m = press(t, m, "n", "Butter")

	next, cmd := m.Update(keyMsg("enter"))
	m = next.(Model)
	if m.store.Pending() != 1 {
		t.Fatalf("expected one pending create, got %d", m.store.Pending())
	}
	if !strings.Contains(m.View(), "Butter") {
		t.Fatalf("expected optimistic task in view, got=%q", m.View())
	}

	m = run(t, m, cmd)
	if m.store.Pending() != 0 {
		t.Fatalf("expected create confirmed, got %d pending", m.store.Pending())
	}
	found := false
	for _, task := range m.store.Tasks() {
		if task.Title == "Butter" {
			found = true
			if _, ok := fake.StoredTask(task.ID); !ok {
				t.Fatalf("expected server id, got %q", task.ID)
			}
		}
	}
	if !found {
		t.Fatalf("expected Butter after refetch")
	}
}

func TestCreateTask_RollbackOnError(t *testing.T) {
	fake := newFake()
	fake.CreateTaskErr = service.StatusError("create task", http.StatusInternalServerError, "boom")
	m := newModel(t, fake, "b1")
	m = press(t, m, "n", "Butter", "enter")

	if m.store.Pending() != 0 {
		t.Fatalf("expected rollback, got %d pending", m.store.Pending())
	}
	if strings.Contains(m.View(), "Butter") {
		t.Fatalf("expected task gone after rollback, got=%q", m.View())
	}
	if m.notice != "create task: boom" {
		t.Fatalf("expected error notice, got=%q", m.notice)
	}
}

func TestCreateTask_UsesSelectedColumn(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	m = press(t, m, "right", "n", "Ham", "enter")
	for _, task := range m.store.Tasks() {
		if task.Title == "Ham" && task.Status != service.StatusInProgress {
			t.Fatalf("expected in-progress, got %s", task.Status)
		}
	}
}

func TestCreateTask_EscCancels(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	m = press(t, m, "n", "Ham", "esc")
	if count(fake.Calls(), "CreateTask") != 0 {
		t.Fatalf("expected no create, got %v", fake.Calls())
	}
	if m.inputKind != inputNone {
		t.Fatalf("expected input closed")
	}
}

func TestAdvanceStatus(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	m = press(t, m, "space")

	stored, _ := fake.StoredTask("t1")
	if stored.Status != service.StatusInProgress {
		t.Fatalf("expected in-progress on server, got %s", stored.Status)
	}
	if got, _ := m.store.Task("t1"); got.Status != service.StatusInProgress {
		t.Fatalf("expected in-progress locally, got %s", got.Status)
	}
}

func TestAdvanceStatus_RollbackOnError(t *testing.T) {
	fake := newFake()
	fake.UpdateStatusErr = service.StatusError("update task status", http.StatusForbidden, "Not a member")
	m := newModel(t, fake, "b1")
	m = press(t, m, "space")

	if got, _ := m.store.Task("t1"); got.Status != service.StatusNotStarted {
		t.Fatalf("expected rollback to not-started, got %s", got.Status)
	}
	if !strings.Contains(m.notice, "Not a member") {
		t.Fatalf("expected error notice, got=%q", m.notice)
	}
}

func TestEditTask(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	m = press(t, m, "e")
	if m.input.Value() != "Milk" {
		t.Fatalf("expected prefilled title, got %q", m.input.Value())
	}
	m.input.SetValue("Oat milk")
	m = press(t, m, "enter")

	stored, _ := fake.StoredTask("t1")
	if stored.Title != "Oat milk" {
		t.Fatalf("expected renamed task, got %q", stored.Title)
	}
	if !strings.Contains(m.View(), "Oat milk") {
		t.Fatalf("expected refetched title, got=%q", m.View())
	}
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name    string
		answer  string
		gone    bool // deleted elsewhere first
		err     error
		deleted bool
		notice  string
	}{
		{"confirmed", "y", false, nil, true, ""},
		{"declined", "n", false, nil, false, ""},
		{"already gone", "y", true, nil, true, ""},
		{"failed", "y", false, service.StatusError("delete task", http.StatusInternalServerError, "boom"), false, "delete task: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFake()
			fake.DeleteTaskErr = tt.err
			m := newModel(t, fake, "b1")
			if tt.gone {
				if err := fake.DeleteTask(context.Background(), "alice", "b1", "t1"); err != nil {
					t.Fatal(err)
				}
			}
			m = press(t, m, "d")
			if !strings.Contains(m.View(), `Delete task "Milk"?`) {
				t.Fatalf("expected confirm prompt, got=%q", m.View())
			}
			m = press(t, m, tt.answer)

			_, visible := m.store.Task("t1")
			if visible == tt.deleted {
				t.Fatalf("expected deleted=%v, visible=%v", tt.deleted, visible)
			}
			if m.notice != tt.notice {
				t.Fatalf("expected notice %q, got %q", tt.notice, m.notice)
			}
		})
	}
}

func TestAccessCode(t *testing.T) {
	m := newModel(t, newFake(), "b1")
	m = press(t, m, "c")
	if m.notice != "Access code: ABC001" {
		t.Fatalf("expected code notice, got=%q", m.notice)
	}
}

func TestMembersPane(t *testing.T) {
	m := newModel(t, newFake(), "b2")
	m = press(t, m, "m")
	view := m.View()
	for _, want := range []string{"Members (2)", "bob (owner)", "alice *"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q, got=%q", want, view)
		}
	}
}

func TestDetailPane_RendersDescription(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	desc := "Get the **organic** one"
	if err := fake.EditTask(context.Background(), "alice", "t1", service.TaskUpdate{Description: &desc}); err != nil {
		t.Fatal(err)
	}
	m = press(t, m, "r", "enter")
	view := xansi.Strip(m.View())
	if !strings.Contains(view, "organic") || strings.Contains(view, "**organic**") {
		t.Fatalf("expected rendered description, got=%q", view)
	}
	if !strings.Contains(view, "Not started") {
		t.Fatalf("expected status line, got=%q", view)
	}
}

func TestBackReturnsToBoards(t *testing.T) {
	m := newModel(t, newFake(), "b1")
	m = press(t, m, "esc")
	if m.screen != screenBoards {
		t.Fatalf("expected board list screen")
	}
	if id, _ := m.store.Current(); id != "" {
		t.Fatalf("expected no open board, got %q", id)
	}
}

func TestStaleResultsAreDropped(t *testing.T) {
	m := newModel(t, newFake(), "b1")
	_, old := m.store.Current()
	m = press(t, m, "esc", "down", "enter")

	next, _ := m.Update(tasksLoadedMsg{epoch: old, tasks: []service.Task{{ID: "x", BoardID: "b1", Title: "Stale", Status: service.StatusNotStarted}}})
	m = next.(Model)
	if _, ok := m.store.Task("x"); ok {
		t.Fatalf("expected stale result to be dropped")
	}
	if strings.Contains(m.View(), "Stale") {
		t.Fatalf("stale task rendered: %q", m.View())
	}
}

func TestStalePushIsDropped(t *testing.T) {
	fake := newFake()
	fake.AddTask("b2", "t9", "Report", service.StatusInProgress)
	m := newModel(t, fake, "b1")
	_, old := m.store.Current()
	m = press(t, m, "esc", "down", "enter")
	if id, _ := m.store.Current(); id != "b2" {
		t.Fatalf("expected b2 open, got %q", id)
	}
	m.listener = closedListener(t)
	before := count(fake.Calls(), "ListTasks")
	tasks := m.store.Tasks()

	next, cmd := m.Update(pushMsg{epoch: old, event: push.Event{Kind: push.KindTaskUpdated, BoardID: "b1", UserID: "bob"}})
	m = run(t, next.(Model), cmd)

	if got := count(fake.Calls(), "ListTasks") - before; got != 0 {
		t.Fatalf("expected no refetch for the old board, got %d", got)
	}
	after := m.store.Tasks()
	if len(after) != len(tasks) || len(after) != 1 || after[0].ID != "t9" {
		t.Fatalf("expected b2 tasks unchanged, got %+v", after)
	}
	if m.listener == nil {
		t.Fatalf("expected current listener to be kept")
	}
}

func TestBoardLoadDecodeError_StaysOnBoard(t *testing.T) {
	m := newModel(t, newFake(), "b1")
	_, e := m.store.Current()

	err := &service.Error{Kind: service.KindDecode, Op: "get board", Err: errors.New("response has no boards")}
	next, cmd := m.Update(boardLoadedMsg{epoch: e, err: err})
	m = run(t, next.(Model), cmd)

	if m.screen != screenBoard || m.blocking != "" {
		t.Fatalf("expected to stay on the board without a blocking notice")
	}
	if !strings.Contains(m.notice, "response has no boards") {
		t.Fatalf("expected decode notice, got=%q", m.notice)
	}
}

func TestTaskRefetchesCoalesce(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	before := count(fake.Calls(), "ListTasks")

	first := m.refetchTasks()
	if first == nil {
		t.Fatalf("expected first refetch to start")
	}
	for i := 0; i < 5; i++ {
		if m.refetchTasks() != nil {
			t.Fatalf("expected refetch %d to be queued", i)
		}
	}
	m = run(t, m, first)

	if got := count(fake.Calls(), "ListTasks") - before; got != 2 {
		t.Fatalf("expected 2 fetches, got %d", got)
	}
	if m.tasks.Busy() {
		t.Fatalf("expected gate idle")
	}
}

func closedListener(t *testing.T) *push.Listener {
	t.Helper()
	l, err := push.NewListener("http://127.0.0.1:1", "b1", "alice", nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = l.Close()
	return l
}

func TestPushTaskUpdated_Refetches(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	_, e := m.store.Current()
	m.listener = closedListener(t)
	before := count(fake.Calls(), "ListTasks")

	next, cmd := m.Update(pushMsg{epoch: e, event: push.Event{Kind: push.KindTaskUpdated, BoardID: "b1", UserID: "bob"}})
	m = run(t, next.(Model), cmd)

	if count(fake.Calls(), "ListTasks") != before+1 {
		t.Fatalf("expected one refetch, calls=%v", fake.Calls())
	}
	if m.listener != nil {
		t.Fatalf("expected closed listener to be dropped")
	}
}

func TestPushMemberJoined_RefetchesMembers(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b1")
	_, e := m.store.Current()
	m.listener = closedListener(t)
	before := count(fake.Calls(), "ListMembers")

	next, cmd := m.Update(pushMsg{epoch: e, event: push.Event{Kind: push.KindMemberJoined, BoardID: "b1"}})
	run(t, next.(Model), cmd)

	if count(fake.Calls(), "ListMembers") != before+1 {
		t.Fatalf("expected one member refetch, calls=%v", fake.Calls())
	}
}

func TestPushBoardDeleted_Blocks(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "b2")
	_, e := m.store.Current()
	m.listener = closedListener(t)

	next, cmd := m.Update(pushMsg{epoch: e, event: push.Event{Kind: push.KindBoardDeleted, BoardID: "b2", UserID: "bob"}})
	m = run(t, next.(Model), cmd)
	if !strings.Contains(m.View(), "This board was deleted.") {
		t.Fatalf("expected blocking notice, got=%q", m.View())
	}

	m = press(t, m, "x")
	if m.screen != screenBoards || m.blocking != "" {
		t.Fatalf("expected return to board list")
	}
}

func TestJoinBoard(t *testing.T) {
	fake := newFake()
	fake.AddBoard("b3", "Book club", "carol")
	fake.AddCode("XYZ123", "b3")
	m := newModel(t, fake, "")
	m = press(t, m, "J", "xyz123", "enter")

	if m.screen != screenBoard {
		t.Fatalf("expected joined board to open")
	}
	if b, _ := m.store.Board(); b.Name != "Book club" {
		t.Fatalf("expected Book club, got %q", b.Name)
	}
}

func TestJoinBoard_InvalidCode(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "")
	before := append([]service.Board(nil), m.boards...)

	m = press(t, m, "J", "NOPE00", "enter")

	if m.screen != screenBoards {
		t.Fatalf("expected to stay on the board list")
	}
	if !strings.HasPrefix(m.notice, "join board:") || !strings.Contains(m.notice, "not found") {
		t.Fatalf("expected join failure notice, got=%q", m.notice)
	}
	if len(m.boards) != len(before) {
		t.Fatalf("expected %d boards, got %d", len(before), len(m.boards))
	}
	for i := range before {
		if m.boards[i].ID != before[i].ID {
			t.Fatalf("boards changed: %+v", m.boards)
		}
	}
}

func TestCreateBoard(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "")
	m = press(t, m, "n", "Garden", "enter")
	if b, _ := m.store.Board(); b.Name != "Garden" {
		t.Fatalf("expected new board open, got %q", b.Name)
	}
}

func TestDeleteBoard(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "")
	m = press(t, m, "d", "y")
	if _, ok := fake.StoredBoard("b1"); ok {
		t.Fatalf("expected board deleted")
	}
	if strings.Contains(m.View(), "Groceries") {
		t.Fatalf("expected board removed from list, got=%q", m.View())
	}
}

func TestDeleteBoard_OwnerOnly(t *testing.T) {
	fake := newFake()
	m := newModel(t, fake, "")
	m = press(t, m, "down", "d")
	if m.notice != "only the owner can delete a board" {
		t.Fatalf("expected owner notice, got=%q", m.notice)
	}
	if m.confirm != "" {
		t.Fatalf("expected no confirm prompt")
	}
}

func TestLoadBoardsError(t *testing.T) {
	fake := newFake()
	fake.ListBoardsErr = service.StatusError("list boards", http.StatusInternalServerError, "down")
	m := newModel(t, fake, "")
	if m.notice != "load boards: down" {
		t.Fatalf("expected error notice, got=%q", m.notice)
	}
}
