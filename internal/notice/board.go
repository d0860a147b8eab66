// Package notice holds the transient status messages of a form: a success
// line, an error line, an inline validation line and a violations panel.
// Each clears itself after a fixed delay.
package notice

import (
	"sync"
	"time"
)

// Default delays before a message disappears.
const (
	MessageTTL    = 4 * time.Second
	ViolationsTTL = 10 * time.Second
)

// Kind selects a message slot.
type Kind string

const (
	KindOK     Kind = "ok"
	KindError  Kind = "error"
	KindInline Kind = "inline"
)

// Violation is one row of the violations panel.
type Violation struct {
	ProductoID int64  `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Type       string `json:"type,omitempty"`
	Actual     *int64 `json:"actual,omitempty"`
	Solicitado *int64 `json:"solicitado,omitempty"`
	Faltan     *int64 `json:"faltan,omitempty"`
	Resultante *int64 `json:"resultante,omitempty"`
	Minimo     *int64 `json:"minimo,omitempty"`
	Maximo     *int64 `json:"maximo,omitempty"`
}

// View is a point-in-time copy of the board.
type View struct {
	OK              string      `json:"ok,omitempty"`
	Error           string      `json:"error,omitempty"`
	Inline          string      `json:"inline,omitempty"`
	ViolationsTitle string      `json:"violations_title,omitempty"`
	Violations      []Violation `json:"violations,omitempty"`
}

// Timer is the part of *time.Timer the board needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it once wrapped.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Board is safe for concurrent use; clears fire on timer goroutines.
type Board struct {
	mu    sync.Mutex
	after AfterFunc
	view  View

	msgTimer  Timer
	msgGen    uint64
	violTimer Timer
	violGen   uint64
}

// NewBoard returns an empty board. A nil after uses real timers.
func NewBoard(after AfterFunc) *Board {
	if after == nil {
		after = realAfterFunc
	}
	return &Board{after: after}
}

// Show puts msg in the slot of kind, empties the other two message slots and
// schedules all three to clear after MessageTTL. A pending clear is replaced.
func (b *Board) Show(kind Kind, msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.view.OK, b.view.Error, b.view.Inline = "", "", ""
	switch kind {
	case KindOK:
		b.view.OK = msg
	case KindError:
		b.view.Error = msg
	case KindInline:
		b.view.Inline = msg
	}
	b.scheduleMessagesLocked()
}

// SetViolations fills the panel and schedules it to clear after ViolationsTTL.
func (b *Board) SetViolations(title string, items []Violation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.view.ViolationsTitle = title
	b.view.Violations = append([]Violation(nil), items...)

	if b.violTimer != nil {
		b.violTimer.Stop()
	}
	b.violGen++
	gen := b.violGen
	b.violTimer = b.after(ViolationsTTL, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.violGen == gen {
			b.clearViolationsLocked()
		}
	})
}

// ClearViolations empties the panel now.
func (b *Board) ClearViolations() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearViolationsLocked()
}

// Reset empties every slot and cancels pending clears.
func (b *Board) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.msgTimer != nil {
		b.msgTimer.Stop()
		b.msgTimer = nil
	}
	b.msgGen++
	b.view.OK, b.view.Error, b.view.Inline = "", "", ""
	b.clearViolationsLocked()
}

// View returns a copy of the current messages.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.view
	v.Violations = append([]Violation(nil), b.view.Violations...)
	return v
}

func (b *Board) scheduleMessagesLocked() {
	if b.msgTimer != nil {
		b.msgTimer.Stop()
	}
	b.msgGen++
	gen := b.msgGen
	b.msgTimer = b.after(MessageTTL, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		// a stale timer that lost the race with Stop must not wipe a newer message
		if b.msgGen == gen {
			b.view.OK, b.view.Error, b.view.Inline = "", "", ""
		}
	})
}

func (b *Board) clearViolationsLocked() {
	if b.violTimer != nil {
		b.violTimer.Stop()
		b.violTimer = nil
	}
	b.violGen++
	b.view.ViolationsTitle = ""
	b.view.Violations = nil
}
