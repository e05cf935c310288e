package grid

import (
	"context"
	"fmt"
	"time"
)

// SaveFunc persists one cell and returns the value the server stored
type SaveFunc func(ctx context.Context, rowID, key string, value any) (any, error)

// OptimisticEdit is a locally applied change awaiting server confirmation
type OptimisticEdit struct {
	RowID     string    `json:"rowId"`
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Previous  any       `json:"previous"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"createdAt"`

	// prior is the edit this one replaced; restored when this save fails
	prior *OptimisticEdit
}

// SaveStatus is the result of a commit
type SaveStatus string

const (
	StatusSaved      SaveStatus = "saved"
	StatusNoOp       SaveStatus = "noop"
	StatusRolledBack SaveStatus = "rolled_back"
	StatusRejected   SaveStatus = "rejected"
)

// Outcome reports what a commit did. Value is what the cell displays
// afterwards.
type Outcome struct {
	Status SaveStatus
	Value  any
	Err    error
}

// SaveError describes a failed save that was rolled back
type SaveError struct {
	RowID     string
	Key       string
	Attempted any
	Restored  any
	Err       error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("save %s.%s: %v", e.RowID, e.Key, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

type draft struct {
	rowID string
	key   string
	value any
}

// BeginEdit puts a cell into editing state with its displayed value as draft
func (g *Grid) BeginEdit(rowID, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.checkEditableLocked(rowID, key); err != nil {
		return err
	}
	if g.editing != nil {
		if g.editing.rowID == rowID && g.editing.key == key {
			return nil
		}
		return ErrEditInProgress
	}
	g.editing = &draft{rowID: rowID, key: key, value: g.displayedLocked(rowID, key)}
	return nil
}

// SetDraft updates the value typed into the editing cell
func (g *Grid) SetDraft(value any) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing == nil {
		return ErrNotEditing
	}
	g.editing.value = value
	return nil
}

// CancelEdit leaves editing state without saving
func (g *Grid) CancelEdit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.editing = nil
}

// Editing reports the cell in editing state, if any
func (g *Grid) Editing() (rowID, key string, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.editing == nil {
		return "", "", false
	}
	return g.editing.rowID, g.editing.key, true
}

// CommitDraft leaves editing state and commits the draft value
func (g *Grid) CommitDraft(ctx context.Context, save SaveFunc) Outcome {
	g.mu.Lock()
	d := g.editing
	g.editing = nil
	g.mu.Unlock()
	if d == nil {
		return Outcome{Status: StatusRejected, Err: ErrNotEditing}
	}
	return g.Commit(ctx, d.rowID, d.key, d.value, save)
}

// Commit applies value optimistically, calls save and rolls back on failure.
// Committing the currently displayed value does not call save. Only one save
// per cell may be in flight.
func (g *Grid) Commit(ctx context.Context, rowID, key string, value any, save SaveFunc) Outcome {
	g.mu.Lock()
	if err := g.checkEditableLocked(rowID, key); err != nil {
		g.mu.Unlock()
		return Outcome{Status: StatusRejected, Err: err}
	}
	ck := cellKey{rowID, key}
	if _, busy := g.inFlight[ck]; busy {
		displayed := g.displayedLocked(rowID, key)
		g.mu.Unlock()
		return Outcome{Status: StatusRejected, Value: displayed, Err: ErrCellBusy}
	}
	displayed := g.displayedLocked(rowID, key)
	if g.equalLocked(key, displayed, value) {
		g.mu.Unlock()
		return Outcome{Status: StatusNoOp, Value: displayed}
	}

	edit := &OptimisticEdit{
		RowID:     rowID,
		Key:       key,
		Value:     value,
		Previous:  displayed,
		CreatedAt: g.now(),
		prior:     g.edits[ck],
	}
	g.edits[ck] = edit
	g.inFlight[ck] = struct{}{}
	g.mu.Unlock()

	saved, err := callSave(ctx, save, rowID, key, value)

	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, ck)

	if err != nil {
		if g.edits[ck] == edit {
			g.restorePriorLocked(ck, edit)
		}
		return Outcome{
			Status: StatusRolledBack,
			Value:  g.displayedLocked(rowID, key),
			Err: &SaveError{
				RowID:     rowID,
				Key:       key,
				Attempted: value,
				Restored:  edit.Previous,
				Err:       err,
			},
		}
	}

	edit.Confirmed = true
	edit.prior = nil
	// the server may normalise what it stores
	if saved != nil {
		edit.Value = saved
	}
	return Outcome{Status: StatusSaved, Value: g.displayedLocked(rowID, key)}
}

// restorePriorLocked drops a failed edit and puts back the edit it replaced,
// unless the server rows already carry that value.
func (g *Grid) restorePriorLocked(ck cellKey, failed *OptimisticEdit) {
	prior := failed.prior
	if prior == nil {
		delete(g.edits, ck)
		return
	}
	if r, ok := g.findRowLocked(ck.rowID); ok && g.equalLocked(ck.key, r[ck.key], prior.Value) {
		delete(g.edits, ck)
		return
	}
	g.edits[ck] = prior
}

func (g *Grid) equalLocked(key string, a, b any) bool {
	col, _ := FindColumn(g.columns, key)
	return col.Equal(a, b)
}

func callSave(ctx context.Context, save SaveFunc, rowID, key string, value any) (saved any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("save panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return save(ctx, rowID, key, value)
}

// PendingEdits lists edits still layered over the server rows
func (g *Grid) PendingEdits() []OptimisticEdit {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]OptimisticEdit, 0, len(g.edits))
	for _, e := range g.edits {
		cp := *e
		cp.prior = nil
		out = append(out, cp)
	}
	return out
}

func (g *Grid) checkEditableLocked(rowID, key string) error {
	col, ok := FindColumn(g.columns, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if !col.Editable {
		return fmt.Errorf("%w: %s", ErrNotEditable, key)
	}
	if _, ok := g.findRowLocked(rowID); !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	return nil
}

// reconcileLocked settles optimistic edits against freshly loaded rows:
//   - server already shows the edit: drop it
//   - row vanished: drop it
//   - confirmed edit and server still shows the old value: keep it, the read was stale
//   - confirmed edit and server shows something else: drop it, the newer server value wins
//   - unconfirmed edit: keep it until its save resolves
func (g *Grid) reconcileLocked() int {
	discarded := 0
	for ck, e := range g.edits {
		r, ok := g.findRowLocked(ck.rowID)
		if !ok {
			delete(g.edits, ck)
			discarded++
			continue
		}
		server := r[ck.key]
		switch {
		case g.equalLocked(ck.key, server, e.Value):
			delete(g.edits, ck)
			discarded++
		case !e.Confirmed:
		case g.equalLocked(ck.key, server, e.Previous):
		default:
			delete(g.edits, ck)
			discarded++
		}
	}
	return discarded
}
