package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"taskbin/internal/service"
)

// updateBoards handles results for the board list screen.
func (m Model) updateBoards(msg tea.Msg) (Model, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case boardsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m, cmd := m.fail("load boards", msg.err)
			return m, cmd, true
		}
		m.boards = msg.boards
		m.boardCursor = clamp(m.boardCursor, len(m.boards))
		if ref := m.pendingOpen; ref != "" {
			m.pendingOpen = ""
			b, ok := findBoard(m.boards, ref)
			if !ok {
				m, cmd := m.flash("board not found: "+ref, false)
				return m, cmd, true
			}
			m, cmd := m.openBoard(b)
			return m, cmd, true
		}
		return m, nil, true

	case boardCreatedMsg:
		if msg.err != nil {
			m, cmd := m.fail("create board", msg.err)
			return m, cmd, true
		}
		m.pendingOpen = msg.board.ID
		m.loading = true
		return m, m.loadBoards(), true

	case boardDeletedMsg:
		if msg.err != nil {
			m, cmd := m.fail("delete board", msg.err)
			return m, cmd, true
		}
		for i, b := range m.boards {
			if b.ID == msg.boardID {
				m.boards = append(m.boards[:i:i], m.boards[i+1:]...)
				break
			}
		}
		m.boardCursor = clamp(m.boardCursor, len(m.boards))
		m, cmd := m.flash("board deleted", true)
		return m, cmd, true

	case joinedMsg:
		if msg.err != nil {
			m, cmd := m.fail("join board", msg.err)
			return m, cmd, true
		}
		m.pendingOpen = msg.boardID
		m.loading = true
		return m, m.loadBoards(), true
	}
	return m, nil, false
}

func (m Model) boardsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.boardCursor > 0 {
			m.boardCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.boardCursor < len(m.boards)-1 {
			m.boardCursor++
		}
	case key.Matches(msg, m.keys.Open):
		if b, ok := m.selectedBoard(); ok {
			return m.openBoard(b)
		}
	case key.Matches(msg, m.keys.New):
		return m.startInput(inputNewBoard, "Board name: ", ""), nil
	case key.Matches(msg, m.keys.Join):
		return m.startInput(inputJoin, "Access code: ", ""), nil
	case key.Matches(msg, m.keys.Delete):
		b, ok := m.selectedBoard()
		if !ok {
			return m, nil
		}
		if !m.owns(b) {
			return m.flash("only the owner can delete a board", false)
		}
		prompt := fmt.Sprintf("Delete board %q and all its tasks? (y/n)", b.Name)
		return m.askConfirm(prompt, func(m Model) (tea.Model, tea.Cmd) {
			return m, m.deleteBoard(b.ID)
		}), nil
	case key.Matches(msg, m.keys.Reload):
		m.loading = true
		return m, m.loadBoards()
	}
	return m, nil
}

func (m Model) selectedBoard() (service.Board, bool) {
	if m.boardCursor < 0 || m.boardCursor >= len(m.boards) {
		return service.Board{}, false
	}
	return m.boards[m.boardCursor], true
}

func (m Model) owns(b service.Board) bool {
	return b.Role == service.RoleOwner || (b.OwnerID != "" && b.OwnerID == m.opts.User.UserID)
}

// openBoard starts a new visit to b. Everything in flight for the previous
// board becomes stale.
func (m Model) openBoard(b service.Board) (Model, tea.Cmd) {
	m.closeListener()
	e := m.store.Open(b.ID)
	m.store.SetBoard(e, b)
	m.tasks.Reset()
	m.members.Reset()
	m.screen = screenBoard
	m.col, m.row = 0, 0
	m.showDetail = false
	for i := range m.boards {
		if m.boards[i].ID == b.ID {
			m.boardCursor = i
		}
	}

	cmds := []tea.Cmd{m.refetchTasks(), m.refetchMembers(), m.fetchBoard(e, b.ID)}
	if m.opts.Push.Enabled() {
		cmds = append(cmds, m.connect(e, b.ID))
	}
	return m, tea.Batch(cmds...)
}

// leaveBoard returns to the board list.
func (m Model) leaveBoard() (Model, tea.Cmd) {
	m.closeListener()
	m.store.Close()
	m.tasks.Reset()
	m.members.Reset()
	m.screen = screenBoards
	m.showDetail = false
	m.loading = true
	return m, m.loadBoards()
}

func (m *Model) closeListener() {
	if m.listener != nil {
		_ = m.listener.Close()
		m.listener = nil
	}
}

// findBoard matches ref against board ids, then names ignoring case.
func findBoard(boards []service.Board, ref string) (service.Board, bool) {
	for _, b := range boards {
		if b.ID == ref {
			return b, true
		}
	}
	for _, b := range boards {
		if strings.EqualFold(b.Name, ref) {
			return b, true
		}
	}
	return service.Board{}, false
}

func clamp(i, n int) int {
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (m Model) viewBoards() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Boards"))
	if who := m.opts.User.Email; who != "" {
		b.WriteString(faintStyle.Render("  " + who))
	}
	b.WriteString("\n\n")

	switch {
	case m.loading && len(m.boards) == 0:
		b.WriteString(faintStyle.Render("Loading…"))
		b.WriteString("\n")
	case len(m.boards) == 0:
		b.WriteString("No boards yet. Press n to create one or J to join with a code.\n")
	}

	width := m.width - 4
	if width < 20 {
		width = 76
	}
	for i, board := range m.boards {
		role := "member"
		if m.owns(board) {
			role = "owner"
		}
		line := padRight(board.Name, 30) + "  " + faintStyle.Render(role)
		line = truncate(line, width)
		if i == m.boardCursor {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}
