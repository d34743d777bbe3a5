// Package notifier
package notifier

import "time"

// Severity classifies an outbound event. Sinks map it to presentation
// (Discord embed color, log level, ...).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Field is one name/value pair of an event. Order is preserved.
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Event is the transport-agnostic notification payload.
type Event struct {
	Title    string
	Message  string
	Severity Severity
	Fields   []Field
}

// Notifier delivers events to the operator. Delivery failure must never
// abort the calling operation; callers log and move on.
type Notifier interface {
	Send(event Event) error
}

// Retrier wraps a Notifier with fixed-delay retries.
type Retrier struct {
	Next     Notifier
	Attempts int
	Delay    time.Duration
}

func NewRetrier(next Notifier, attempts int, delay time.Duration) *Retrier {
	if attempts < 1 {
		attempts = 1
	}
	return &Retrier{Next: next, Attempts: attempts, Delay: delay}
}

func (r *Retrier) Send(event Event) error {
	var err error
	for i := 0; i < r.Attempts; i++ {
		if err = r.Next.Send(event); err == nil {
			return nil
		}
		if i < r.Attempts-1 {
			time.Sleep(r.Delay)
		}
	}
	return err
}

// Nop discards all events. Used when alerts are not configured.
type Nop struct{}

func (Nop) Send(Event) error { return nil }
