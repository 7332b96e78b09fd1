// Package undo records reversible edits to a value graph and replays them.
// Edits are grouped into transactions which are kept on an undo stack and a
// redo stack, in the manner of a classic document editor.
package undo

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrNoOpenTransaction is returned when an action is recorded outside a transaction
	ErrNoOpenTransaction = errors.New("no open transaction")

	// ErrNestedTransaction is returned when a transaction is begun while another is open
	ErrNestedTransaction = errors.New("a transaction is already open")

	// ErrReplaying is returned when the log is modified while an undo or redo is running
	ErrReplaying = errors.New("undo or redo in progress")
)

// Action is a single reversible edit. The edit has already been applied when
// the action is recorded; Undo reverts it and Redo applies it again.
type Action interface {
	Undo() error
	Redo() error
	Description() string
}

// FuncAction adapts a pair of closures to the Action interface
type FuncAction struct {
	Desc   string
	UndoFn func() error
	RedoFn func() error
}

// Undo runs UndoFn
func (a *FuncAction) Undo() error {
	if a.UndoFn == nil {
		return nil
	}
	return a.UndoFn()
}

// Redo runs RedoFn
func (a *FuncAction) Redo() error {
	if a.RedoFn == nil {
		return nil
	}
	return a.RedoFn()
}

// Description returns the action description
func (a *FuncAction) Description() string {
	return a.Desc
}

// Transaction is an ordered group of actions forming one user operation
type Transaction struct {
	description string
	actions     []Action
	closed      bool
}

func newTransaction(description string) *Transaction {
	return &Transaction{description: description}
}

// Description returns the transaction description
func (t *Transaction) Description() string {
	return t.description
}

// Len returns the number of recorded actions
func (t *Transaction) Len() int {
	return len(t.actions)
}

// Closed reports whether the transaction was ended
func (t *Transaction) Closed() bool {
	return t.closed
}

// Actions returns a copy of the recorded actions in recording order
func (t *Transaction) Actions() []Action {
	result := make([]Action, len(t.actions))
	copy(result, t.actions)
	return result
}

func (t *Transaction) add(a Action) {
	t.actions = append(t.actions, a)
}

// Undo reverts the actions in reverse order. If an action fails, the actions
// already reverted are applied again so the graph is left as it was.
func (t *Transaction) Undo() error {
	for i := len(t.actions) - 1; i >= 0; i-- {
		if err := t.actions[i].Undo(); err != nil {
			for j := i + 1; j < len(t.actions); j++ {
				_ = t.actions[j].Redo()
			}
			return fmt.Errorf("undo %q: %w", t.actions[i].Description(), err)
		}
	}
	return nil
}

// Redo applies the actions again in recording order, restoring the graph on failure
func (t *Transaction) Redo() error {
	for i, a := range t.actions {
		if err := a.Redo(); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = t.actions[j].Undo()
			}
			return fmt.Errorf("redo %q: %w", a.Description(), err)
		}
	}
	return nil
}

// Dump writes a readable listing of the transaction
func (t *Transaction) Dump(w io.Writer, indent int) {
	pad := strings.Repeat(" ", indent)
	state := ""
	if !t.closed {
		state = "(open)"
	}
	fmt.Fprintf(w, "%sgroup%s {\n", pad, state)
	for _, a := range t.actions {
		if d, ok := a.(interface{ Dump(io.Writer, int) }); ok {
			d.Dump(w, indent+2)
			continue
		}
		fmt.Fprintf(w, "%s  action: %s\n", pad, a.Description())
	}
	fmt.Fprintf(w, "%s}: %s\n", pad, t.description)
}
