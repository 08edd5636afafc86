// Package store holds the locally cached view of the board being viewed and
// reconciles optimistic changes with refetched server state.
package store

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"taskbin/internal/service"
)

// TempIDPrefix marks tasks that exist only locally, awaiting server confirmation.
const TempIDPrefix = "pending-"

// Epoch identifies one visit to a board. Results fetched under an older
// epoch are discarded.
type Epoch uint64

// IsTemp reports whether id belongs to an unconfirmed optimistic create.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Store is the local cache for one board at a time. The server is the source
// of truth: every Set* call replaces state wholesale.
type Store struct {
	mu sync.RWMutex

	epoch   Epoch
	boardID string
	board   *service.Board
	tasks   []service.Task   // last refetch plus confirmed creates
	members []service.Member

	creates []service.Task          // optimistic creates, by temp id
	deletes map[string]service.Task // optimistic deletes awaiting confirmation

	newID func() string
}

// New returns an empty store with no board open.
func New() *Store {
	return &Store{
		deletes: make(map[string]service.Task),
		newID:   func() string { return TempIDPrefix + uuid.NewString() },
	}
}

// Open starts viewing boardID. All cached state is discarded and a new
// epoch is returned for tagging refetches.
func (s *Store) Open(boardID string) Epoch {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	s.boardID = boardID
	return s.epoch
}

// Close stops viewing the current board. In-flight results become stale.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *Store) reset() {
	s.epoch++
	s.boardID = ""
	s.board = nil
	s.tasks = nil
	s.members = nil
	s.creates = nil
	s.deletes = make(map[string]service.Task)
}

// Current returns the open board id and epoch.
func (s *Store) Current() (string, Epoch) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boardID, s.epoch
}

// Valid reports whether e is still the current epoch.
func (s *Store) Valid(e Epoch) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e == s.epoch && s.boardID != ""
}

// SetBoard replaces the board metadata. Returns false if e is stale.
func (s *Store) SetBoard(e Epoch, b service.Board) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch || b.ID != s.boardID {
		return false
	}
	if s.board != nil && len(b.MemberIDs) == 0 {
		b.MemberIDs = s.board.MemberIDs
	}
	s.board = &b
	return true
}

// SetTasks replaces the task list with a refetch result. Duplicates collapse
// to the last occurrence, tasks from other boards are dropped and every
// optimistic create is discarded. Tasks with a delete in flight stay hidden
// until the delete is confirmed or rolled back. Returns false if e is stale.
func (s *Store) SetTasks(e Epoch, tasks []service.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch || s.boardID == "" {
		return false
	}

	index := make(map[string]int, len(tasks))
	out := make([]service.Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" || IsTemp(t.ID) {
			continue
		}
		if t.BoardID == "" {
			t.BoardID = s.boardID
		} else if t.BoardID != s.boardID {
			continue
		}
		if i, ok := index[t.ID]; ok {
			out[i] = t
			continue
		}
		index[t.ID] = len(out)
		out = append(out, t)
	}

	s.tasks = out
	s.creates = nil
	return true
}

// SetMembers replaces the member list and the board's member ids.
// Returns false if e is stale.
func (s *Store) SetMembers(e Epoch, members []service.Member) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch || s.boardID == "" {
		return false
	}

	seen := make(map[string]bool, len(members))
	out := make([]service.Member, 0, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if m.UserID == "" || seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		out = append(out, m)
		ids = append(ids, m.UserID)
		if m.Role == service.RoleOwner && s.board != nil && s.board.OwnerID == "" {
			s.board.OwnerID = m.UserID
		}
	}
	s.members = out
	if s.board != nil {
		s.board.MemberIDs = ids
	}
	return true
}

// Board returns the board metadata, if fetched.
func (s *Store) Board() (service.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.board == nil {
		return service.Board{}, false
	}
	b := *s.board
	b.MemberIDs = append([]string(nil), s.board.MemberIDs...)
	return b, true
}

// Members returns a copy of the member list.
func (s *Store) Members() []service.Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]service.Member(nil), s.members...)
}

// Tasks returns the visible tasks: refetched tasks minus pending deletes,
// followed by pending creates.
func (s *Store) Tasks() []service.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.visible()
}

func (s *Store) visible() []service.Task {
	out := make([]service.Task, 0, len(s.tasks)+len(s.creates))
	for _, t := range s.tasks {
		if _, deleting := s.deletes[t.ID]; deleting {
			continue
		}
		out = append(out, t)
	}
	return append(out, s.creates...)
}

// Task looks up a visible task by id.
func (s *Store) Task(id string) (service.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.visible() {
		if t.ID == id {
			return t, true
		}
	}
	return service.Task{}, false
}

// Groups partitions the visible tasks by status.
func (s *Store) Groups() service.Groups {
	return service.GroupByStatus(s.Tasks())
}

// Pending returns the number of optimistic operations awaiting confirmation.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.creates) + len(s.deletes)
}

// ApplyOptimisticCreate inserts a local task under a temporary id and
// returns it. Returns false if no board is open.
func (s *Store) ApplyOptimisticCreate(input service.TaskInput, createdBy string) (service.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.boardID == "" {
		return service.Task{}, false
	}
	status := input.Status
	if !status.Valid() {
		status = service.StatusNotStarted
	}
	t := service.Task{
		ID:          s.newID(),
		BoardID:     s.boardID,
		Title:       input.Title,
		Description: input.Description,
		Status:      status,
		AssigneeID:  input.AssigneeID,
		Due:         input.Due,
		CreatedBy:   createdBy,
	}
	s.creates = append(s.creates, t)
	return t, true
}

// ConfirmCreate replaces the optimistic task tempID with the server's task.
// If a refetch already dropped the optimistic entry the server task is still
// recorded unless the refetch already contained it. Returns false if e is stale.
func (s *Store) ConfirmCreate(e Epoch, tempID string, task service.Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch || s.boardID == "" {
		return false
	}
	s.dropCreate(tempID)
	if task.ID == "" {
		return true
	}
	if task.BoardID == "" {
		task.BoardID = s.boardID
	}
	for i := range s.tasks {
		if s.tasks[i].ID == task.ID {
			return true
		}
	}
	s.tasks = append(s.tasks, task)
	return true
}

// RollbackCreate removes the optimistic task tempID. Returns false if e is stale.
func (s *Store) RollbackCreate(e Epoch, tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch {
		return false
	}
	s.dropCreate(tempID)
	return true
}

func (s *Store) dropCreate(tempID string) {
	for i := range s.creates {
		if s.creates[i].ID == tempID {
			s.creates = append(s.creates[:i], s.creates[i+1:]...)
			return
		}
	}
}

// ApplyOptimisticDelete hides task id until the delete is confirmed or
// rolled back. Returns false if the task is not visible, is itself still
// an unconfirmed create, or already has a delete in flight.
func (s *Store) ApplyOptimisticDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if IsTemp(id) {
		return false
	}
	if _, deleting := s.deletes[id]; deleting {
		return false
	}
	for _, t := range s.tasks {
		if t.ID == id {
			s.deletes[id] = t
			return true
		}
	}
	return false
}

// ConfirmDelete drops task id for good. Returns false if e is stale.
func (s *Store) ConfirmDelete(e Epoch, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch {
		return false
	}
	delete(s.deletes, id)
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			break
		}
	}
	return true
}

// RollbackDelete makes task id visible again after a failed delete. A task
// that a refetch has since removed stays removed. Returns false if e is stale.
func (s *Store) RollbackDelete(e Epoch, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e != s.epoch {
		return false
	}
	delete(s.deletes, id)
	return true
}

// ApplyOptimisticStatus sets a task's status locally and returns the
// previous status for rollback.
func (s *Store) ApplyOptimisticStatus(id string, status service.Status) (service.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			prev := s.tasks[i].Status
			s.tasks[i].Status = status
			s.tasks[i].RawStatus = status.Wire()
			return prev, true
		}
	}
	return "", false
}
