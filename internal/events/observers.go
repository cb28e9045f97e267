package events

import (
	"log"
)

// LoggingObserver logs events for debugging. In verbose mode it logs
// every event; otherwise only anomalies, resets and drops.
type LoggingObserver struct {
	name    string
	verbose bool
}

// NewLoggingObserver creates an observer that logs events.
func NewLoggingObserver(verbose bool) *LoggingObserver {
	return &LoggingObserver{name: "LoggingObserver", verbose: verbose}
}

// OnEvent logs the event.
func (o *LoggingObserver) OnEvent(event Event) error {
	log.Printf("[%s] %s: %+v", o.name, event.Type, event.Payload)
	return nil
}

// GetName returns the observer's name.
func (o *LoggingObserver) GetName() string {
	return o.name
}

// ShouldHandle keeps the log quiet unless verbose: snapshot updates fire
// on every committed event.
func (o *LoggingObserver) ShouldHandle(eventType string) bool {
	if o.verbose {
		return true
	}
	switch eventType {
	case TypeAnomalousSpend, TypeHypothesisReset, TypeEventDropped,
		TypeMatchStarted, TypeMatchEnded:
		return true
	default:
		return false
	}
}

// FuncObserver adapts a function to the Observer interface. Used by tests
// and small one-off consumers.
type FuncObserver struct {
	Name   string
	Filter func(eventType string) bool
	Fn     func(event Event) error
}

// OnEvent invokes the wrapped function.
func (o *FuncObserver) OnEvent(event Event) error {
	return o.Fn(event)
}

// GetName returns the observer's name.
func (o *FuncObserver) GetName() string {
	if o.Name == "" {
		return "FuncObserver"
	}
	return o.Name
}

// ShouldHandle applies the optional filter; nil means handle everything.
func (o *FuncObserver) ShouldHandle(eventType string) bool {
	if o.Filter == nil {
		return true
	}
	return o.Filter(eventType)
}
