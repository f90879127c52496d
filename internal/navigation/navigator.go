package navigation

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// IndicatorState is how a question marker is drawn.
type IndicatorState string

const (
	IndicatorNone     IndicatorState = ""
	IndicatorActive   IndicatorState = "active"
	IndicatorAnswered IndicatorState = "answered"
)

// Buttons reports which navigation controls are visible.
type Buttons struct {
	Prev   bool `json:"prev"`
	Next   bool `json:"next"`
	Submit bool `json:"submit"`
}

// Summary is shown on the submit section.
type Summary struct {
	Answered  int `json:"answered"`
	Remaining int `json:"remaining"`
}

// View is everything a client needs to redraw navigation.
type View struct {
	Current       int              `json:"current"`
	Total         int              `json:"total"`
	Progress      int              `json:"progress"`
	Indicators    []IndicatorState `json:"indicators"`
	Buttons       Buttons          `json:"buttons"`
	SubmitSection bool             `json:"submitSection"`
	Summary       Summary          `json:"summary"`
}

// Navigator walks through questions one at a time. Question numbers are 1-based.
type Navigator struct {
	mu            sync.Mutex
	total         int
	current       int
	answered      map[int]struct{}
	submitSection bool
}

func New(total int) *Navigator {
	if total < 0 {
		total = 0
	}
	current := 0
	if total > 0 {
		current = 1
	}
	return &Navigator{total: total, current: current, answered: make(map[int]struct{})}
}

func (n *Navigator) Current() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *Navigator) Total() int {
	return n.total
}

// Next moves forward; past the last question it opens the submit section and
// returns true.
func (n *Navigator) Next() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current < n.total {
		n.current++
		n.submitSection = false
		return false
	}
	n.submitSection = true
	return true
}

func (n *Navigator) Prev() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current > 1 {
		n.current--
	}
	n.submitSection = false
}

// GoTo jumps to question num; out-of-range numbers are ignored.
func (n *Navigator) GoTo(num int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if num < 1 || num > n.total {
		return false
	}
	n.current = num
	n.submitSection = false
	return true
}

func (n *Navigator) MarkAnswered(num int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if num < 1 || num > n.total {
		return
	}
	n.answered[num] = struct{}{}
}

// Answered lists answered question numbers in order.
func (n *Navigator) Answered() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, 0, len(n.answered))
	for num := range n.answered {
		out = append(out, num)
	}
	sort.Ints(out)
	return out
}

// Progress is the position of the current question as a rounded percentage.
func (n *Navigator) Progress() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.progressLocked()
}

func (n *Navigator) Summary() Summary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Summary{Answered: len(n.answered), Remaining: n.total - len(n.answered)}
}

// SubmitConfirmation returns the prompt shown before submitting with
// unanswered questions, or "" when everything is answered.
func (n *Navigator) SubmitConfirmation() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.answered) >= n.total {
		return ""
	}
	return fmt.Sprintf("You have answered %d out of %d questions. Are you sure you want to submit?", len(n.answered), n.total)
}

func (n *Navigator) View() View {
	n.mu.Lock()
	defer n.mu.Unlock()

	indicators := make([]IndicatorState, n.total)
	for i := range indicators {
		num := i + 1
		switch _, answered := n.answered[num]; {
		case num == n.current:
			indicators[i] = IndicatorActive
		case answered:
			indicators[i] = IndicatorAnswered
		}
	}

	buttons := Buttons{
		Prev:   n.current > 1,
		Next:   n.current < n.total,
		Submit: n.current == n.total,
	}
	if n.submitSection {
		buttons = Buttons{}
	}

	return View{
		Current:       n.current,
		Total:         n.total,
		Progress:      n.progressLocked(),
		Indicators:    indicators,
		Buttons:       buttons,
		SubmitSection: n.submitSection,
		Summary:       Summary{Answered: len(n.answered), Remaining: n.total - len(n.answered)},
	}
}

func (n *Navigator) progressLocked() int {
	if n.total == 0 {
		return 0
	}
	return int(math.Round(float64(n.current) / float64(n.total) * 100))
}

func (n *Navigator) Indicators() []IndicatorState { return n.View().Indicators }

func (n *Navigator) Buttons() Buttons { return n.View().Buttons }
