package flash

import (
	"context"
	"sync"
	"time"

	"aptitude-quiz/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// DefaultAutoDismiss is how long a message stays visible unless dismissed.
const DefaultAutoDismiss = 5 * time.Second

type EventKind string

const (
	EventShown     EventKind = "shown"
	EventDismissed EventKind = "dismissed"
)

// Message is one flash notification.
type Message struct {
	ID          string          `json:"id"`
	Text        string          `json:"text"`
	Severity    domain.Severity `json:"severity"`
	Icon        string          `json:"icon"`
	Dismissible bool            `json:"dismissible"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Event reports a change in the visible set of messages.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message Message   `json:"message"`
}

type entry struct {
	msg   Message
	timer clockwork.Timer
}

// Queue keeps the visible flash messages, auto-dismisses them and fans
// changes out to subscribers. It satisfies timer.NotificationSink.
type Queue struct {
	clock clockwork.Clock

	mu          sync.Mutex
	autoDismiss time.Duration
	messages    []entry
	subscribers map[chan Event]struct{}
}

type Option func(*Queue)

func WithClock(clock clockwork.Clock) Option {
	return func(q *Queue) { q.clock = clock }
}

// WithAutoDismiss sets the visibility window; zero disables auto-dismiss.
func WithAutoDismiss(d time.Duration) Option {
	return func(q *Queue) { q.autoDismiss = d }
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		clock:       clockwork.NewRealClock(),
		autoDismiss: DefaultAutoDismiss,
		subscribers: make(map[chan Event]struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Notify shows a dismissible message.
func (q *Queue) Notify(_ context.Context, text string, severity domain.Severity) error {
	q.Show(text, severity, true)
	return nil
}

// Show displays a message and returns its id. A visible message with the same
// text and severity is dismissed first.
func (q *Queue) Show(text string, severity domain.Severity, dismissible bool) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := 0; i < len(q.messages); {
		if q.messages[i].msg.Text == text && q.messages[i].msg.Severity == severity {
			q.removeLocked(i)
			continue
		}
		i++
	}

	msg := Message{
		ID:          "flash-" + uuid.NewString(),
		Text:        text,
		Severity:    severity,
		Icon:        Icon(severity),
		Dismissible: dismissible,
		CreatedAt:   q.clock.Now(),
	}
	e := entry{msg: msg}
	if q.autoDismiss > 0 {
		id := msg.ID
		e.timer = q.clock.AfterFunc(q.autoDismiss, func() { q.Dismiss(id) })
	}
	q.messages = append(q.messages, e)
	q.broadcastLocked(Event{Kind: EventShown, Message: msg})
	return msg.ID
}

func (q *Queue) Success(text string) string { return q.Show(text, domain.SeveritySuccess, true) }
func (q *Queue) Error(text string) string   { return q.Show(text, domain.SeverityDanger, true) }
func (q *Queue) Warning(text string) string { return q.Show(text, domain.SeverityWarning, true) }
func (q *Queue) Info(text string) string    { return q.Show(text, domain.SeverityInfo, true) }

// Dismiss removes a message; it reports whether the id was visible.
func (q *Queue) Dismiss(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.messages {
		if q.messages[i].msg.ID == id {
			q.removeLocked(i)
			return true
		}
	}
	return false
}

func (q *Queue) DismissAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.messages) > 0 {
		q.removeLocked(0)
	}
}

func (q *Queue) SetAutoDismiss(d time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.autoDismiss = d
}

func (q *Queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *Queue) HasMessages() bool {
	return q.Count() > 0
}

// Messages returns the visible messages, oldest first.
func (q *Queue) Messages() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Message, 0, len(q.messages))
	for _, e := range q.messages {
		out = append(out, e.msg)
	}
	return out
}

// Subscribe returns a channel of queue events. The caller must invoke the
// returned cancel function to avoid leaks.
func (q *Queue) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	q.mu.Lock()
	q.subscribers[ch] = struct{}{}
	q.mu.Unlock()

	cancel := func() {
		q.mu.Lock()
		if _, ok := q.subscribers[ch]; ok {
			delete(q.subscribers, ch)
			close(ch)
		}
		q.mu.Unlock()
	}
	return ch, cancel
}

func (q *Queue) removeLocked(i int) {
	e := q.messages[i]
	if e.timer != nil {
		e.timer.Stop()
	}
	q.messages = append(q.messages[:i], q.messages[i+1:]...)
	q.broadcastLocked(Event{Kind: EventDismissed, Message: e.msg})
}

func (q *Queue) broadcastLocked(ev Event) {
	for ch := range q.subscribers {
		select {
		case ch <- ev:
		default:
			// slow subscriber: drop its oldest event
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}

// Icon names the glyph clients show next to a message.
func Icon(severity domain.Severity) string {
	switch severity {
	case domain.SeveritySuccess:
		return "check-circle"
	case domain.SeverityDanger, domain.SeverityWarning:
		return "exclamation-triangle"
	default:
		return "info-circle"
	}
}
