package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"taskbin/internal/push"
	"taskbin/internal/service"
	"taskbin/internal/store"
)

// Results of gateway calls. Everything tied to an open board carries the
// epoch it was started under; Update drops it when the epoch is stale.

type boardsLoadedMsg struct {
	boards []service.Board
	err    error
}

type boardCreatedMsg struct {
	board service.Board
	err   error
}

type boardDeletedMsg struct {
	boardID string
	err     error
}

type joinedMsg struct {
	boardID string
	err     error
}

type boardLoadedMsg struct {
	epoch store.Epoch
	board service.Board
	err   error
}

type tasksLoadedMsg struct {
	epoch store.Epoch
	tasks []service.Task
	err   error
}

type membersLoadedMsg struct {
	epoch   store.Epoch
	members []service.Member
	err     error
}

type taskCreatedMsg struct {
	epoch  store.Epoch
	tempID string
	task   service.Task
	err    error
}

type taskDeletedMsg struct {
	epoch  store.Epoch
	taskID string
	err    error
}

type taskStatusMsg struct {
	epoch  store.Epoch
	taskID string
	prev   service.Status
	err    error
}

type taskEditedMsg struct {
	epoch  store.Epoch
	taskID string
	err    error
}

type codeMsg struct {
	epoch store.Epoch
	code  service.AccessCode
	err   error
}

type listenMsg struct {
	epoch    store.Epoch
	listener *push.Listener
	err      error
}

type pushMsg struct {
	epoch store.Epoch
	event push.Event
}

type pushClosedMsg struct {
	epoch store.Epoch
	err   error
}

type noticeDoneMsg struct{ seq int }

func (m Model) call() (context.Context, context.CancelFunc) {
	return context.WithTimeout(m.ctx, callTimeout)
}

const callTimeout = 30 * time.Second

func (m Model) loadBoards() tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		boards, err := gw.ListBoards(ctx, user)
		return boardsLoadedMsg{boards: boards, err: err}
	}
}

func (m Model) createBoard(name string) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		b, err := gw.CreateBoard(ctx, user, name, "")
		return boardCreatedMsg{board: b, err: err}
	}
}

func (m Model) deleteBoard(boardID string) tea.Cmd {
	gw, user, dialer := m.opts.Gateway, m.opts.User.UserID, m.opts.Push
	log := m.log
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		if err := gw.DeleteBoard(ctx, user, boardID); err != nil {
			return boardDeletedMsg{boardID: boardID, err: err}
		}
		if err := push.Notify(ctx, dialer, boardID, user, push.KindBoardDeleted); err != nil {
			log.WithError(err).Warn("push notify failed")
		}
		return boardDeletedMsg{boardID: boardID}
	}
}

func (m Model) joinBoard(code string) tea.Cmd {
	gw, user, dialer := m.opts.Gateway, m.opts.User.UserID, m.opts.Push
	log := m.log
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		boardID, err := gw.JoinBoard(ctx, user, code)
		if err != nil {
			return joinedMsg{err: err}
		}
		if err := push.Notify(ctx, dialer, boardID, user, push.KindMemberJoined); err != nil {
			log.WithError(err).Warn("push notify failed")
		}
		return joinedMsg{boardID: boardID}
	}
}

func (m Model) fetchBoard(e store.Epoch, boardID string) tea.Cmd {
	gw := m.opts.Gateway
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		b, err := gw.GetBoard(ctx, boardID)
		return boardLoadedMsg{epoch: e, board: b, err: err}
	}
}

func (m Model) fetchTasks(e store.Epoch, boardID string) tea.Cmd {
	gw := m.opts.Gateway
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		tasks, err := gw.ListTasks(ctx, boardID)
		return tasksLoadedMsg{epoch: e, tasks: tasks, err: err}
	}
}

func (m Model) fetchMembers(e store.Epoch, boardID string) tea.Cmd {
	gw := m.opts.Gateway
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		members, err := gw.ListMembers(ctx, boardID)
		return membersLoadedMsg{epoch: e, members: members, err: err}
	}
}

func (m Model) createTask(e store.Epoch, boardID, tempID string, in service.TaskInput) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		t, err := gw.CreateTask(ctx, user, boardID, in)
		return taskCreatedMsg{epoch: e, tempID: tempID, task: t, err: err}
	}
}

func (m Model) deleteTask(e store.Epoch, boardID, taskID string) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		err := gw.DeleteTask(ctx, user, boardID, taskID)
		return taskDeletedMsg{epoch: e, taskID: taskID, err: err}
	}
}

func (m Model) updateStatus(e store.Epoch, boardID, taskID string, status, prev service.Status) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		err := gw.UpdateTaskStatus(ctx, user, boardID, taskID, status)
		return taskStatusMsg{epoch: e, taskID: taskID, prev: prev, err: err}
	}
}

func (m Model) editTask(e store.Epoch, taskID string, update service.TaskUpdate) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		err := gw.EditTask(ctx, user, taskID, update)
		return taskEditedMsg{epoch: e, taskID: taskID, err: err}
	}
}

func (m Model) generateCode(e store.Epoch, boardID string) tea.Cmd {
	gw, user := m.opts.Gateway, m.opts.User.UserID
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		code, err := gw.GenerateAccessCode(ctx, user, boardID)
		return codeMsg{epoch: e, code: code, err: err}
	}
}

// connect opens the push listener for the board.
func (m Model) connect(e store.Epoch, boardID string) tea.Cmd {
	dialer, user := m.opts.Push, m.opts.User.UserID
	return func() tea.Msg {
		l, err := dialer.Listen(m.ctx, boardID, user)
		return listenMsg{epoch: e, listener: l, err: err}
	}
}

// waitForEvent delivers the listener's next event.
func waitForEvent(e store.Epoch, l *push.Listener) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-l.Events()
		if !ok {
			return pushClosedMsg{epoch: e, err: l.Err()}
		}
		return pushMsg{epoch: e, event: ev}
	}
}

// broadcast tells the board's other viewers about a change. Errors are
// logged only.
func (m Model) broadcast(kind push.Kind) tea.Cmd {
	l := m.listener
	if l == nil || l.State() != push.StateConnected {
		return nil
	}
	log := m.log
	return func() tea.Msg {
		ctx, cancel := m.call()
		defer cancel()
		if err := l.Broadcast(ctx, kind); err != nil {
			log.WithError(err).Warn("push broadcast failed")
		}
		return nil
	}
}

func clearNoticeAfter(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return noticeDoneMsg{seq: seq} })
}
