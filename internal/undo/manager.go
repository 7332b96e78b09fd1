package undo

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// EventKind identifies a change in the undo log
type EventKind int

const (
	// EventChanged is sent when a transaction is pushed onto the undo stack
	EventChanged EventKind = iota
	// EventUndo is sent after a transaction was undone
	EventUndo
	// EventRedo is sent after a transaction was redone
	EventRedo
	// EventReset is sent when both stacks were cleared
	EventReset
)

// String returns the string representation of the event kind
func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event describes a change in the undo log
type Event struct {
	Kind        EventKind
	Description string
}

// Manager holds the undo and redo stacks of one document and the currently
// open transaction. It is not safe for concurrent use.
type Manager struct {
	undoStack []*Transaction
	redoStack []*Transaction
	open      *Transaction

	limit     int
	blocks    int
	replaying bool

	listeners []func(Event)
	logger    *zap.Logger
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithLogger sets the logger used for debug tracing
func WithLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithLimit caps the number of transactions kept on the undo stack (0 = unlimited)
func WithLimit(limit int) ManagerOption {
	return func(m *Manager) {
		m.limit = limit
	}
}

// NewManager creates an empty undo manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin opens a new transaction. While the manager is disabled this is a no-op.
func (m *Manager) Begin(description string) error {
	if m.replaying {
		return ErrReplaying
	}
	if m.blocks > 0 {
		return nil
	}
	if m.open != nil {
		return fmt.Errorf("%w: %q", ErrNestedTransaction, m.open.description)
	}
	m.open = newTransaction(description)
	m.logger.Debug("begin transaction", zap.String("description", description))
	return nil
}

// Record appends an action to the open transaction. Actions recorded while the
// manager is disabled are dropped.
func (m *Manager) Record(a Action) error {
	if m.blocks > 0 {
		return nil
	}
	if m.replaying {
		return ErrReplaying
	}
	if m.open == nil {
		return ErrNoOpenTransaction
	}
	m.open.add(a)
	return nil
}

// CanRecord reports whether Record would accept an action right now
func (m *Manager) CanRecord() error {
	if m.blocks > 0 {
		return nil
	}
	if m.replaying {
		return ErrReplaying
	}
	if m.open == nil {
		return ErrNoOpenTransaction
	}
	return nil
}

// End closes the open transaction. A non-empty transaction is pushed onto the
// undo stack and clears the redo stack; an empty one is discarded. Returns
// whether a transaction was pushed.
func (m *Manager) End() (bool, error) {
	if m.open == nil {
		if m.blocks > 0 {
			return false, nil
		}
		return false, ErrNoOpenTransaction
	}

	t := m.open
	m.open = nil
	t.closed = true

	if len(t.actions) == 0 {
		m.logger.Debug("discarding empty transaction", zap.String("description", t.description))
		return false, nil
	}

	m.undoStack = append(m.undoStack, t)
	m.redoStack = nil
	m.trim()

	m.logger.Debug("end transaction",
		zap.String("description", t.description),
		zap.Int("actions", len(t.actions)),
		zap.Int("undo_stack", len(m.undoStack)))
	m.emit(Event{Kind: EventChanged, Description: t.description})
	return true, nil
}

// Cancel drops the open transaction without reverting its actions
func (m *Manager) Cancel() {
	if m.open != nil {
		m.logger.Debug("cancel transaction", zap.String("description", m.open.description))
	}
	m.open = nil
}

// Rollback reverts the actions of the open transaction and drops it
func (m *Manager) Rollback() error {
	t := m.open
	if t == nil {
		return nil
	}
	m.open = nil

	m.replaying = true
	defer func() { m.replaying = false }()

	m.logger.Debug("rollback transaction",
		zap.String("description", t.description),
		zap.Int("actions", len(t.actions)))
	return t.Undo()
}

// WithTransaction runs fn inside a transaction. The transaction is ended when fn
// succeeds and rolled back when it fails or panics.
func (m *Manager) WithTransaction(description string, fn func() error) (err error) {
	if m.blocks > 0 {
		return fn()
	}
	if err := m.Begin(description); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = m.Rollback()
			panic(p)
		}
	}()

	if err := fn(); err != nil {
		if rbErr := m.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	_, err = m.End()
	return err
}

// SetDescription renames the open transaction, or the top of the undo stack
// when no transaction is open
func (m *Manager) SetDescription(description string) {
	switch {
	case m.open != nil:
		m.open.description = description
	case len(m.undoStack) > 0:
		m.undoStack[len(m.undoStack)-1].description = description
	}
}

// Undo reverts the transaction at the top of the undo stack and moves it to the
// redo stack. Returns false without error when there is nothing to undo.
func (m *Manager) Undo() (bool, error) {
	if m.replaying {
		return false, ErrReplaying
	}
	if m.open != nil {
		return false, fmt.Errorf("%w: %q", ErrNestedTransaction, m.open.description)
	}
	if len(m.undoStack) == 0 {
		return false, nil
	}

	t := m.undoStack[len(m.undoStack)-1]
	m.replaying = true
	err := t.Undo()
	m.replaying = false
	if err != nil {
		return false, err
	}

	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	m.redoStack = append(m.redoStack, t)

	m.logger.Debug("undo", zap.String("description", t.description))
	m.emit(Event{Kind: EventUndo, Description: t.description})
	return true, nil
}

// Redo applies the transaction at the top of the redo stack again
func (m *Manager) Redo() (bool, error) {
	if m.replaying {
		return false, ErrReplaying
	}
	if m.open != nil {
		return false, fmt.Errorf("%w: %q", ErrNestedTransaction, m.open.description)
	}
	if len(m.redoStack) == 0 {
		return false, nil
	}

	t := m.redoStack[len(m.redoStack)-1]
	m.replaying = true
	err := t.Redo()
	m.replaying = false
	if err != nil {
		return false, err
	}

	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	m.undoStack = append(m.undoStack, t)

	m.logger.Debug("redo", zap.String("description", t.description))
	m.emit(Event{Kind: EventRedo, Description: t.description})
	return true, nil
}

// UndoDescription returns the description of the next transaction to undo
func (m *Manager) UndoDescription() string {
	if len(m.undoStack) == 0 {
		return ""
	}
	return m.undoStack[len(m.undoStack)-1].description
}

// RedoDescription returns the description of the next transaction to redo
func (m *Manager) RedoDescription() string {
	if len(m.redoStack) == 0 {
		return ""
	}
	return m.redoStack[len(m.redoStack)-1].description
}

// CanUndo reports whether the undo stack is non-empty
func (m *Manager) CanUndo() bool { return len(m.undoStack) > 0 }

// CanRedo reports whether the redo stack is non-empty
func (m *Manager) CanRedo() bool { return len(m.redoStack) > 0 }

// UndoStackSize returns the number of transactions that can be undone
func (m *Manager) UndoStackSize() int { return len(m.undoStack) }

// RedoStackSize returns the number of transactions that can be redone
func (m *Manager) RedoStackSize() int { return len(m.redoStack) }

// Recording reports whether a transaction is open
func (m *Manager) Recording() bool { return m.open != nil }

// Replaying reports whether an undo, redo or rollback is running
func (m *Manager) Replaying() bool { return m.replaying }

// Enabled reports whether actions are being recorded
func (m *Manager) Enabled() bool { return m.blocks == 0 }

// Disable stops recording. Calls nest; each must be matched by Enable.
func (m *Manager) Disable() { m.blocks++ }

// Enable undoes one Disable call
func (m *Manager) Enable() {
	if m.blocks > 0 {
		m.blocks--
	}
}

// Limit returns the undo stack limit (0 = unlimited)
func (m *Manager) Limit() int { return m.limit }

// SetLimit changes the undo stack limit, dropping the oldest transactions if needed
func (m *Manager) SetLimit(limit int) {
	m.limit = limit
	m.trim()
}

func (m *Manager) trim() {
	if m.limit <= 0 || len(m.undoStack) <= m.limit {
		return
	}
	excess := len(m.undoStack) - m.limit
	m.undoStack = append([]*Transaction(nil), m.undoStack[excess:]...)
}

// Reset clears both stacks and drops any open transaction
func (m *Manager) Reset() {
	m.undoStack = nil
	m.redoStack = nil
	m.open = nil
	m.emit(Event{Kind: EventReset})
}

// Subscribe registers fn to be called after every change to the stacks
func (m *Manager) Subscribe(fn func(Event)) {
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) emit(e Event) {
	for _, fn := range m.listeners {
		fn(e)
	}
}

// Dump writes both stacks, oldest first
func (m *Manager) Dump(w io.Writer) {
	fmt.Fprintln(w, "undo stack:")
	for _, t := range m.undoStack {
		t.Dump(w, 2)
	}
	fmt.Fprintln(w, "redo stack:")
	for _, t := range m.redoStack {
		t.Dump(w, 2)
	}
	if m.open != nil {
		fmt.Fprintln(w, "open:")
		m.open.Dump(w, 2)
	}
}
