package session

import (
	"sync"
	"time"

	"github.com/smallbiznis/console/internal/clock"
	ierr "github.com/smallbiznis/console/internal/errors"
)

// View names a console page.
type View string

const (
	ViewAdminPlans         View = "admin-plans"
	ViewMyModules          View = "my-modules"
	ViewChoosePlan         View = "choose-plan"
	ViewModuleNotAvailable View = "module-not-available"
	ViewInvoices           View = "invoices"
)

func (v View) Valid() bool {
	switch v {
	case ViewAdminPlans, ViewMyModules, ViewChoosePlan, ViewModuleNotAvailable, ViewInvoices:
		return true
	default:
		return false
	}
}

// Ticket identifies one load flow started for a view.
type Ticket struct {
	View View
	seq  uint64
}

// Tracker orders load flows per view: only the most recently begun flow
// of a view may commit its result.
type Tracker struct {
	mu     sync.Mutex
	seq    uint64
	latest map[View]uint64
}

func NewTracker() *Tracker {
	return &Tracker{latest: map[View]uint64{}}
}

func (t *Tracker) Begin(view View) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.latest[view] = t.seq
	return Ticket{View: view, seq: t.seq}
}

// Commit reports whether ticket is still the newest flow of its view.
func (t *Tracker) Commit(ticket Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest[ticket.View] == ticket.seq
}

// Notification is the single error banner of a view.
type Notification struct {
	View      View      `json:"view"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifications keeps at most one notification per view. A new failure
// replaces the previous one.
type Notifications struct {
	mu    sync.Mutex
	slots map[View]Notification
	clock clock.Clock
}

func NewNotifications(c clock.Clock) *Notifications {
	if c == nil {
		c = clock.System{}
	}
	return &Notifications{slots: map[View]Notification{}, clock: c}
}

func (n *Notifications) Set(view View, err error) Notification {
	note := Notification{
		View:      view,
		Type:      ierr.Code(err),
		Message:   ierr.DisplayMessage(err),
		CreatedAt: n.clock.Now().UTC(),
	}
	n.mu.Lock()
	n.slots[view] = note
	n.mu.Unlock()
	return note
}

func (n *Notifications) Clear(view View) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.slots[view]
	delete(n.slots, view)
	return ok
}

func (n *Notifications) Get(view View) (Notification, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	note, ok := n.slots[view]
	return note, ok
}

// For returns the notifications of view as a list of zero or one entries.
func (n *Notifications) For(view View) []Notification {
	if note, ok := n.Get(view); ok {
		return []Notification{note}
	}
	return []Notification{}
}
