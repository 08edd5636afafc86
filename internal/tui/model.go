package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	log "github.com/sirupsen/logrus"

	"taskbin/internal/auth"
	"taskbin/internal/push"
	"taskbin/internal/service"
	"taskbin/internal/store"
)

// Options configures the interactive board client.
type Options struct {
	Gateway service.Service
	User    auth.Identity
	Push    push.Dialer
	Logger  *log.Logger
	Now     func() time.Time

	// Board, when set, is opened once the board list has loaded.
	Board string

	// NoticeTTL is how long transient notices stay visible.
	NoticeTTL time.Duration
}

const defaultNoticeTTL = 4 * time.Second

type screen int

const (
	screenBoards screen = iota
	screenBoard
)

type inputKind int

const (
	inputNone inputKind = iota
	inputNewBoard
	inputJoin
	inputNewTask
	inputEditTask
)

type keyMap struct {
	Up, Down, Left, Right key.Binding
	Open, Back, Quit      key.Binding
	New, Delete, Join     key.Binding
	Edit, Advance, Code   key.Binding
	Members, Reload       key.Binding
	Confirm, Cancel       key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:    key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		Open:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		Back:    key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		New:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Delete:  key.NewBinding(key.WithKeys("d", "x"), key.WithHelp("d", "delete")),
		Join:    key.NewBinding(key.WithKeys("J"), key.WithHelp("J", "join")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Advance: key.NewBinding(key.WithKeys(" ", "s"), key.WithHelp("space", "next status")),
		Code:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "access code")),
		Members: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "members")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Confirm: key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "confirm")),
		Cancel:  key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "cancel")),
	}
}

// Model is the bubbletea model for the board client. All state changes
// happen in Update; gateway calls run as commands and report back as
// messages tagged with the board epoch they were issued under.
type Model struct {
	ctx  context.Context
	opts Options
	log  *log.Entry
	keys keyMap

	width, height int
	screen        screen

	boards      []service.Board
	boardCursor int
	loading     bool
	pendingOpen string

	store    *store.Store
	tasks    *store.Gate
	members  *store.Gate
	listener *push.Listener
	col, row int

	showMembers bool
	showDetail  bool

	input     textinput.Model
	inputKind inputKind
	editing   string // task id being edited

	confirm  string // prompt awaiting y/n
	onYes    func(Model) (tea.Model, tea.Cmd)
	notice   string
	noticeOK bool
	seq      int
	blocking string // modal message; any key dismisses
}

// New returns a model showing the board list.
func New(ctx context.Context, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NoticeTTL <= 0 {
		opts.NoticeTTL = defaultNoticeTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	ti := textinput.New()
	ti.CharLimit = 200
	return Model{
		ctx:         ctx,
		opts:        opts,
		log:         logger.WithField("component", "tui"),
		keys:        defaultKeys(),
		loading:     true,
		pendingOpen: opts.Board,
		store:       store.New(),
		tasks:       &store.Gate{},
		members:     &store.Gate{},
		input:       ti,
	}
}

// Init loads the board list.
func (m Model) Init() tea.Cmd {
	return m.loadBoards()
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case noticeDoneMsg:
		if msg.seq == m.seq {
			m.notice = ""
		}
		return m, nil
	}

	if m2, cmd, handled := m.updateBoards(msg); handled {
		return m2, cmd
	}
	return m.updateBoard(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.shutdown()
		return m, tea.Quit
	}
	if m.blocking != "" {
		m.blocking = ""
		return m.leaveBoard()
	}
	if m.inputKind != inputNone {
		return m.handleInput(msg)
	}
	if m.confirm != "" {
		action := m.onYes
		yes := key.Matches(msg, m.keys.Confirm)
		m.confirm, m.onYes = "", nil
		if yes && action != nil {
			return action(m)
		}
		return m, nil
	}
	if key.Matches(msg, m.keys.Quit) {
		m.shutdown()
		return m, tea.Quit
	}
	if m.screen == screenBoard {
		return m.boardKey(msg)
	}
	return m.boardsKey(msg)
}

func (m Model) handleInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.inputKind, m.editing = inputNone, ""
		m.input.Blur()
		return m, nil
	case "enter":
		kind, value := m.inputKind, strings.TrimSpace(m.input.Value())
		m.inputKind = inputNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		return m.submit(kind, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startInput(kind inputKind, prompt, value string) Model {
	m.inputKind = kind
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
	return m
}

func (m Model) submit(kind inputKind, value string) (tea.Model, tea.Cmd) {
	switch kind {
	case inputNewBoard:
		return m, m.createBoard(value)
	case inputJoin:
		return m, m.joinBoard(strings.ToUpper(value))
	case inputNewTask:
		return m.addTask(value)
	case inputEditTask:
		id := m.editing
		m.editing = ""
		return m.renameTask(id, value)
	}
	return m, nil
}

func (m Model) askConfirm(prompt string, action func(Model) (tea.Model, tea.Cmd)) Model {
	m.confirm, m.onYes = prompt, action
	return m
}

// flash shows a transient notice.
func (m Model) flash(text string, ok bool) (Model, tea.Cmd) {
	m.seq++
	m.notice, m.noticeOK = text, ok
	return m, clearNoticeAfter(m.opts.NoticeTTL, m.seq)
}

func (m Model) fail(prefix string, err error) (Model, tea.Cmd) {
	m.log.WithError(err).Debug(prefix)
	return m.flash(prefix+": "+errorText(err), false)
}

func errorText(err error) string {
	var se *service.Error
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}

// shutdown releases the push listener.
func (m Model) shutdown() {
	if m.listener != nil {
		_ = m.listener.Close()
	}
}
