// Package notify implements best-effort notification fan-out with per-user
// mailboxes. Enqueueing never blocks the request path; a background dispatch
// loop drains mailboxes to whatever connections are live at delivery time,
// leaving messages queued for users who are momentarily disconnected.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/WindOfMind/discussions-tcp-server/pkg/protocol"
)

// DefaultMaxMailbox bounds each user's pending queue so that a user who never
// reconnects cannot grow memory without limit. Overflow drops the oldest
// entry.
const DefaultMaxMailbox = 1024

// DefaultDispatchInterval is the dispatch loop's tick when no explicit
// interval is configured.
const DefaultDispatchInterval = 100 * time.Millisecond

// Type tags a notification variant.
type Type int

const (
	// TypeDiscussionUpdated signals that a discussion the user participates
	// in gained a comment or was created around them.
	TypeDiscussionUpdated Type = iota
)

// Notification is an immutable tagged value, queued by value.
type Notification struct {
	Type         Type
	DiscussionID string
}

// DiscussionUpdated builds the single currently defined variant.
func DiscussionUpdated(discussionID string) Notification {
	return Notification{Type: TypeDiscussionUpdated, DiscussionID: discussionID}
}

// formatters renders a notification into its wire line, keyed by tag.
var formatters = map[Type]func(Notification) string{
	TypeDiscussionUpdated: func(n Notification) string {
		return protocol.NewResponse().
			Add(protocol.PushDiscussionUpdated).
			Add(n.DiscussionID).
			String()
	},
}

// SendFunc pushes one formatted line to a connection. It may block on I/O,
// so the hub never calls it while holding its lock.
type SendFunc func(line string) error

// Metrics receives hub delivery statistics. Implemented by the server's
// Prometheus metrics; nil-safe via SetMetrics never being called.
type Metrics interface {
	RecordNotificationQueued()
	RecordNotificationDelivered()
	RecordNotificationDropped()
	RecordDispatchDuration(seconds float64)
	RecordFanout(recipients int)
}

// Hub owns the mailboxes and the live-connection table.
type Hub struct {
	mu         sync.Mutex
	mailboxes  map[string][]string        // display name -> pending lines, enqueue order
	conns      map[string]SendFunc        // clientID -> send handle
	users      map[string]map[string]bool // display name -> set of clientIDs
	wake       chan struct{}
	maxMailbox int
	metrics    Metrics
}

// NewHub creates a hub with the given per-user mailbox bound. A bound of 0
// falls back to DefaultMaxMailbox.
func NewHub(maxMailbox int) *Hub {
	if maxMailbox <= 0 {
		maxMailbox = DefaultMaxMailbox
	}
	return &Hub{
		mailboxes:  make(map[string][]string),
		conns:      make(map[string]SendFunc),
		users:      make(map[string]map[string]bool),
		wake:       make(chan struct{}, 1),
		maxMailbox: maxMailbox,
	}
}

// SetMetrics attaches delivery metrics to the hub.
func (h *Hub) SetMetrics(m Metrics) {
	h.metrics = m
}

// Notify formats the notification once per user and enqueues it onto each
// user's mailbox. Never blocks and never fails; a full mailbox drops its
// oldest entry.
func (h *Hub) Notify(users []string, n Notification) {
	format, ok := formatters[n.Type]
	if !ok {
		// The type set is closed; a missing formatter is a programming error.
		log.Printf("No formatter for notification type %d", n.Type)
		return
	}
	line := format(n)

	h.mu.Lock()
	for _, user := range users {
		box := append(h.mailboxes[user], line)
		if len(box) > h.maxMailbox {
			box = box[len(box)-h.maxMailbox:]
			if h.metrics != nil {
				h.metrics.RecordNotificationDropped()
			}
			log.Printf("Mailbox for %s full, dropped oldest notification", user)
		}
		h.mailboxes[user] = box
		if h.metrics != nil {
			h.metrics.RecordNotificationQueued()
		}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordFanout(len(users))
	}
	h.nudge()
}

// NotifyDiscussionUpdated is the convenience form the discussion store calls.
func (h *Hub) NotifyDiscussionUpdated(users []string, discussionID string) {
	h.Notify(users, DiscussionUpdated(discussionID))
}

// RegisterConnection makes clientID addressable for delivery. Called by the
// transport on connect.
func (h *Hub) RegisterConnection(clientID string, send SendFunc) {
	h.mu.Lock()
	h.conns[clientID] = send
	h.mu.Unlock()
}

// UnregisterConnection removes the send handle. Idempotent; called on any
// connection teardown path.
func (h *Hub) UnregisterConnection(clientID string) {
	h.mu.Lock()
	delete(h.conns, clientID)
	h.mu.Unlock()
}

// RegisterUser binds clientID under name for fan-out. A user may be bound
// from several connections at once; each live connection receives every
// drained message.
func (h *Hub) RegisterUser(clientID, name string) {
	h.mu.Lock()
	if h.users[name] == nil {
		h.users[name] = make(map[string]bool)
	}
	h.users[name][clientID] = true
	h.mu.Unlock()

	h.nudge()
}

// UnregisterUser unbinds one connection from name. Pending mailbox entries
// stay queued for the user's remaining or future connections.
func (h *Hub) UnregisterUser(name, clientID string) {
	h.mu.Lock()
	if set, ok := h.users[name]; ok {
		delete(set, clientID)
		if len(set) == 0 {
			delete(h.users, name)
		}
	}
	h.mu.Unlock()
}

// Run drives the dispatch loop until shutdown is closed. Delivery runs on
// its own schedule (tick or wake on enqueue) so a slow recipient never
// blocks the synchronous response path.
func (h *Hub) Run(interval time.Duration, shutdown <-chan struct{}) {
	if interval <= 0 {
		interval = DefaultDispatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-shutdown:
			return
		case <-ticker.C:
			h.dispatchPending()
		case <-h.wake:
			h.dispatchPending()
		}
	}
}

// delivery is one drained mailbox paired with the connections live at drain
// time.
type delivery struct {
	user    string
	lines   []string
	targets []SendFunc
}

// dispatchPending drains every mailbox whose user has at least one live
// connection and delivers the drained lines in enqueue order to every such
// connection. Mailboxes of disconnected users are left untouched. Sends
// happen after the lock is released; a failed send is logged and the line is
// dropped for that attempt.
func (h *Hub) dispatchPending() {
	start := time.Now()

	h.mu.Lock()
	var deliveries []delivery
	for user, box := range h.mailboxes {
		if len(box) == 0 {
			delete(h.mailboxes, user)
			continue
		}
		targets := h.liveTargetsLocked(user)
		if len(targets) == 0 {
			continue
		}
		deliveries = append(deliveries, delivery{user: user, lines: box, targets: targets})
		delete(h.mailboxes, user)
	}
	h.mu.Unlock()

	for _, d := range deliveries {
		for _, send := range d.targets {
			for _, line := range d.lines {
				if err := send(line); err != nil {
					log.Printf("Notification send failed for %s: %v", d.user, err)
					break
				}
				if h.metrics != nil {
					h.metrics.RecordNotificationDelivered()
				}
			}
		}
	}

	if h.metrics != nil && len(deliveries) > 0 {
		h.metrics.RecordDispatchDuration(time.Since(start).Seconds())
	}
}

func (h *Hub) liveTargetsLocked(user string) []SendFunc {
	var targets []SendFunc
	for clientID := range h.users[user] {
		if send, ok := h.conns[clientID]; ok {
			targets = append(targets, send)
		}
	}
	return targets
}

// nudge wakes the dispatch loop without waiting for the next tick.
func (h *Hub) nudge() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued notifications for a user.
func (h *Hub) Pending(user string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mailboxes[user])
}
