package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"taskbin/internal/output"
	"taskbin/internal/push"
	"taskbin/internal/service"
	"taskbin/internal/store"
)

// refetchTasks starts a task refetch unless one is running, in which case
// a single follow-up is queued.
func (m Model) refetchTasks() tea.Cmd {
	boardID, e := m.store.Current()
	if boardID == "" || !m.tasks.Request() {
		return nil
	}
	return m.fetchTasks(e, boardID)
}

func (m Model) refetchMembers() tea.Cmd {
	boardID, e := m.store.Current()
	if boardID == "" || !m.members.Request() {
		return nil
	}
	return m.fetchMembers(e, boardID)
}

// afterWrite announces a confirmed change and refetches.
func (m Model) afterWrite() tea.Cmd {
	return tea.Batch(m.broadcast(push.KindTaskUpdated), m.refetchTasks())
}

// updateBoard handles results for the open board. Results from an earlier
// visit are dropped.
func (m Model) updateBoard(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tasksLoadedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		var cmds []tea.Cmd
		if msg.err != nil {
			var cmd tea.Cmd
			m, cmd = m.fail("refresh tasks", msg.err)
			cmds = append(cmds, cmd)
		} else {
			m.store.SetTasks(msg.epoch, msg.tasks)
			m.row = clamp(m.row, len(m.column(m.col)))
		}
		if m.tasks.Done() {
			boardID, _ := m.store.Current()
			cmds = append(cmds, m.fetchTasks(msg.epoch, boardID))
		}
		return m, tea.Batch(cmds...)

	case membersLoadedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		var cmds []tea.Cmd
		if msg.err != nil {
			var cmd tea.Cmd
			m, cmd = m.fail("refresh members", msg.err)
			cmds = append(cmds, cmd)
		} else {
			m.store.SetMembers(msg.epoch, msg.members)
		}
		if m.members.Done() {
			boardID, _ := m.store.Current()
			cmds = append(cmds, m.fetchMembers(msg.epoch, boardID))
		}
		return m, tea.Batch(cmds...)

	case boardLoadedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil {
			if service.IsNotFound(msg.err) {
				return m.boardGone("This board no longer exists.")
			}
			return m.fail("refresh board", msg.err)
		}
		m.store.SetBoard(msg.epoch, msg.board)
		return m, nil

	case taskCreatedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil {
			m.store.RollbackCreate(msg.epoch, msg.tempID)
			return m.fail("create task", msg.err)
		}
		m.store.ConfirmCreate(msg.epoch, msg.tempID, msg.task)
		return m, m.afterWrite()

	case taskDeletedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil && !service.IsNotFound(msg.err) {
			m.store.RollbackDelete(msg.epoch, msg.taskID)
			return m.fail("delete task", msg.err)
		}
		m.store.ConfirmDelete(msg.epoch, msg.taskID)
		m.row = clamp(m.row, len(m.column(m.col)))
		return m, m.afterWrite()

	case taskStatusMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil {
			m.store.ApplyOptimisticStatus(msg.taskID, msg.prev)
			return m.fail("update status", msg.err)
		}
		return m, m.afterWrite()

	case taskEditedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil {
			return m.fail("edit task", msg.err)
		}
		return m, m.afterWrite()

	case codeMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		if msg.err != nil {
			return m.fail("access code", msg.err)
		}
		var b strings.Builder
		output.FormatAccessCode(&b, msg.code, m.opts.Now())
		return m.flash("Access code: "+strings.TrimSpace(b.String()), true)

	case listenMsg:
		if !m.store.Valid(msg.epoch) {
			if msg.listener != nil {
				_ = msg.listener.Close()
			}
			return m, nil
		}
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("push listener unavailable")
			return m.flash("live updates unavailable", false)
		}
		m.listener = msg.listener
		return m, waitForEvent(msg.epoch, msg.listener)

	case pushMsg:
		if !m.store.Valid(msg.epoch) || m.listener == nil {
			return m, nil
		}
		next := waitForEvent(msg.epoch, m.listener)
		switch msg.event.Kind {
		case push.KindTaskUpdated:
			return m, tea.Batch(next, m.refetchTasks())
		case push.KindMemberJoined:
			return m, tea.Batch(next, m.refetchMembers())
		case push.KindBoardDeleted:
			return m.boardGone("This board was deleted.")
		}
		return m, next

	case pushClosedMsg:
		if !m.store.Valid(msg.epoch) {
			return m, nil
		}
		m.listener = nil
		if msg.err != nil {
			m.log.WithError(msg.err).Warn("push listener closed")
			return m.flash("live updates disconnected", false)
		}
	}
	return m, nil
}

// boardGone blocks the board view until the user acknowledges.
func (m Model) boardGone(text string) (Model, tea.Cmd) {
	m.closeListener()
	m.blocking = text
	m.inputKind, m.confirm, m.onYes = inputNone, "", nil
	m.input.Blur()
	return m, nil
}

func (m Model) boardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m.leaveBoard()
	case key.Matches(msg, m.keys.Left):
		if m.col > 0 {
			m.col--
		}
		m.row = clamp(m.row, len(m.column(m.col)))
	case key.Matches(msg, m.keys.Right):
		if m.col < len(service.Statuses)-1 {
			m.col++
		}
		m.row = clamp(m.row, len(m.column(m.col)))
	case key.Matches(msg, m.keys.Up):
		if m.row > 0 {
			m.row--
		}
	case key.Matches(msg, m.keys.Down):
		if m.row < len(m.column(m.col))-1 {
			m.row++
		}
	case key.Matches(msg, m.keys.Open):
		m.showDetail = !m.showDetail
	case key.Matches(msg, m.keys.Members):
		m.showMembers = !m.showMembers
	case key.Matches(msg, m.keys.Reload):
		boardID, e := m.store.Current()
		return m, tea.Batch(m.refetchTasks(), m.refetchMembers(), m.fetchBoard(e, boardID))
	case key.Matches(msg, m.keys.New):
		return m.startInput(inputNewTask, "New task: ", ""), nil
	case key.Matches(msg, m.keys.Code):
		boardID, e := m.store.Current()
		return m, m.generateCode(e, boardID)
	case key.Matches(msg, m.keys.Edit):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if store.IsTemp(t.ID) {
			return m.flash("task is still being saved", false)
		}
		m = m.startInput(inputEditTask, "Title: ", t.Title)
		m.editing = t.ID
		return m, nil
	case key.Matches(msg, m.keys.Delete):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if store.IsTemp(t.ID) {
			return m.flash("task is still being saved", false)
		}
		prompt := fmt.Sprintf("Delete task %q? (y/n)", output.TaskSummary(t))
		return m.askConfirm(prompt, func(m Model) (tea.Model, tea.Cmd) {
			return m.removeTask(t.ID)
		}), nil
	case key.Matches(msg, m.keys.Advance):
		t, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if store.IsTemp(t.ID) {
			return m.flash("task is still being saved", false)
		}
		return m.advanceTask(t)
	}
	return m, nil
}

func (m Model) addTask(title string) (tea.Model, tea.Cmd) {
	boardID, e := m.store.Current()
	in := service.TaskInput{Title: title, Status: service.Statuses[m.col]}
	t, ok := m.store.ApplyOptimisticCreate(in, m.opts.User.UserID)
	if !ok {
		return m, nil
	}
	m.row = len(m.column(m.col)) - 1
	return m, m.createTask(e, boardID, t.ID, in)
}

func (m Model) renameTask(id, title string) (tea.Model, tea.Cmd) {
	_, e := m.store.Current()
	if t, ok := m.store.Task(id); !ok || t.Title == title {
		return m, nil
	}
	return m, m.editTask(e, id, service.TaskUpdate{Title: &title})
}

func (m Model) removeTask(id string) (tea.Model, tea.Cmd) {
	boardID, e := m.store.Current()
	if !m.store.ApplyOptimisticDelete(id) {
		return m, nil
	}
	m.row = clamp(m.row, len(m.column(m.col)))
	return m, m.deleteTask(e, boardID, id)
}

func (m Model) advanceTask(t service.Task) (tea.Model, tea.Cmd) {
	boardID, e := m.store.Current()
	next := t.Status.Next()
	prev, ok := m.store.ApplyOptimisticStatus(t.ID, next)
	if !ok {
		return m, nil
	}
	m.row = clamp(m.row, len(m.column(m.col)))
	return m, m.updateStatus(e, boardID, t.ID, next, prev)
}

// column returns the visible tasks with the i'th status.
func (m Model) column(i int) []service.Task {
	if i < 0 || i >= len(service.Statuses) {
		return nil
	}
	return m.store.Groups().ByStatus[service.Statuses[i]]
}

func (m Model) selectedTask() (service.Task, bool) {
	tasks := m.column(m.col)
	if m.row < 0 || m.row >= len(tasks) {
		return service.Task{}, false
	}
	return tasks[m.row], true
}

const membersWidth = 28

func (m Model) viewBoard() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sections []string
	board, _ := m.store.Board()
	header := titleStyle.Render(board.Name)
	if board.Description != "" {
		header += "  " + faintStyle.Render(truncate(board.Description, width-len(board.Name)-4))
	}
	if n := m.store.Pending(); n > 0 {
		header += "  " + pendingStyle.Render(fmt.Sprintf("saving %d…", n))
	}
	sections = append(sections, header, "")

	colsWidth := width
	if m.showMembers {
		colsWidth -= membersWidth
	}
	colWidth := colsWidth / len(service.Statuses)
	if colWidth < 12 {
		colWidth = 12
	}

	g := m.store.Groups()
	cols := make([]string, 0, len(service.Statuses)+1)
	for i, s := range service.Statuses {
		cols = append(cols, m.viewColumn(i, s, g.ByStatus[s], colWidth))
	}
	if m.showMembers {
		cols = append(cols, m.viewMembers())
	}
	sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, cols...))

	if len(g.Unknown) > 0 {
		lines := []string{"", headerStyle.Render(columnTitle(service.StatusUnknown, len(g.Unknown)))}
		for _, t := range g.Unknown {
			lines = append(lines, "  "+truncate(output.TaskSummary(t), width-2))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if m.showDetail {
		if t, ok := m.selectedTask(); ok {
			sections = append(sections, "", m.viewDetail(t, width))
		}
	}
	return strings.Join(sections, "\n")
}

func (m Model) viewColumn(i int, s service.Status, tasks []service.Task, width int) string {
	inner := width - 2
	lines := []string{headerStyle.Render(truncate(columnTitle(s, len(tasks)), inner))}
	if len(tasks) == 0 {
		lines = append(lines, faintStyle.Render("(none)"))
	}
	for j, t := range tasks {
		line := padRight(output.TaskSummary(t), inner)
		switch {
		case i == m.col && j == m.row:
			line = selectedStyle.Render(line)
		case store.IsTemp(t.ID):
			line = pendingStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return columnStyle.Width(width).Render(strings.Join(lines, "\n"))
}

func (m Model) viewMembers() string {
	members := m.store.Members()
	lines := []string{headerStyle.Render(fmt.Sprintf("Members (%d)", len(members)))}
	for _, mem := range members {
		line := mem.UserID
		if mem.Role == service.RoleOwner {
			line += " (owner)"
		}
		if mem.UserID == m.opts.User.UserID {
			line += " *"
		}
		lines = append(lines, truncate(line, membersWidth-2))
	}
	return lipgloss.NewStyle().Width(membersWidth).Render(strings.Join(lines, "\n"))
}

func (m Model) viewDetail(t service.Task, width int) string {
	lines := []string{titleStyle.Render(t.Title)}
	meta := []string{t.Status.Label()}
	if !t.Status.Valid() && t.RawStatus != "" {
		meta[0] = t.RawStatus
	}
	if t.AssigneeID != "" {
		meta = append(meta, "assigned to "+t.AssigneeID)
	}
	if t.Due != nil {
		meta = append(meta, "due "+t.Due.Format(output.DueLayout))
	}
	if t.CreatedBy != "" {
		meta = append(meta, "created by "+t.CreatedBy)
	}
	lines = append(lines, faintStyle.Render(strings.Join(meta, " · ")))
	if desc := renderMarkdown(t.Description, width-4); desc != "" {
		lines = append(lines, "", desc)
	}
	return strings.Join(lines, "\n")
}
