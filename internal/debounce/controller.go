// Package debounce turns a stream of typed query text into at most one
// search per quiet period.
package debounce

import (
	"strings"
	"sync"
	"time"
)

const DefaultQuietPeriod = 500 * time.Millisecond

type EventKind string

const (
	// EventSearch asks the owner to run a catalog search for Event.Text.
	EventSearch EventKind = "search"
	// EventReset asks the owner to clear results; no search is issued.
	EventReset EventKind = "reset"
)

type Event struct {
	Kind EventKind
	Text string
	// Seq is the update generation that produced the event. It grows with
	// every Update, so owners can drop results of superseded searches.
	Seq uint64
}

type state int

const (
	stateIdle state = iota
	statePending
	stateClosed
)

// Controller is a two-state machine: Idle and Pending(deadline, text).
// TextChanged (Update) always enters Pending with a fresh deadline; TimerFired
// leaves Pending and emits exactly one event. Only the timer armed by the most
// recent Update may fire.
type Controller struct {
	mu       sync.Mutex
	clock    Clock
	quiet    time.Duration
	emit     func(Event)
	state    state
	text     string
	deadline time.Time
	seq      uint64
	timer    Timer
	inflight sync.WaitGroup
}

type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New returns an idle controller. emit is called from the timer goroutine,
// never while the controller lock is held.
func New(quiet time.Duration, emit func(Event), opts ...Option) *Controller {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	c := &Controller{
		clock: SystemClock(),
		quiet: quiet,
		emit:  emit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Update records the latest text and restarts the quiet period.
func (c *Controller) Update(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == stateClosed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.text = text
	c.deadline = c.clock.Now().Add(c.quiet)
	c.state = statePending
	c.timer = c.clock.AfterFunc(c.quiet, func() { c.fire(seq) })
}

func (c *Controller) fire(seq uint64) {
	c.mu.Lock()
	if c.state != statePending || seq != c.seq {
		c.mu.Unlock()
		return
	}
	text := c.text
	c.state = stateIdle
	c.timer = nil
	c.deadline = time.Time{}
	c.inflight.Add(1)
	c.mu.Unlock()
	defer c.inflight.Done()

	event := Event{Kind: EventSearch, Text: text, Seq: seq}
	if strings.TrimSpace(text) == "" {
		event = Event{Kind: EventReset, Seq: seq}
	}
	if c.emit != nil {
		c.emit(event)
	}
}

// Pending reports the scheduled text and deadline while a timer is armed.
func (c *Controller) Pending() (string, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != statePending {
		return "", time.Time{}, false
	}
	return c.text, c.deadline, true
}

// Seq returns the generation of the latest Update.
func (c *Controller) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Close cancels the pending timer and waits for an event already being
// delivered. No event is emitted once Close has returned. Close must not be
// called from the emit callback.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = stateClosed
	c.text = ""
	c.deadline = time.Time{}
	c.mu.Unlock()

	c.inflight.Wait()
}
