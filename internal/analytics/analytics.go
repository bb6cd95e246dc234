// Package analytics fans widget events out to zero or more optional sinks.
package analytics

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Event names emitted by the widget.
const (
	EventFormOpened      = "Back in Stock Form Opened"
	EventSubscribed      = "Back in Stock Subscribed"
	EventSubscribeFailed = "Back in Stock Subscription Failed"
)

// Property names attached to every widget event.
const (
	PropProductID   = "Product ID"
	PropProductName = "Product Name"
	PropVariantID   = "Variant ID"
	PropContext     = "Context"
	PropReason      = "Reason"
)

// Properties is the flat property bag attached to an event.
type Properties map[string]string

// Sink receives events. A sink that is not available yet should return nil.
type Sink interface {
	Notify(name string, props Properties) error
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(name string, props Properties) error

func (f SinkFunc) Notify(name string, props Properties) error {
	return f(name, props)
}

// Emitter delivers events best-effort. The sink list is read on every Emit,
// so sinks registered after construction still receive later events.
type Emitter struct {
	mu     sync.RWMutex
	sinks  []Sink
	logger *zap.Logger
}

func NewEmitter(logger *zap.Logger, sinks ...Sink) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{sinks: sinks, logger: logger}
}

// Register adds a sink.
func (e *Emitter) Register(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// Emit never fails and never panics; sink problems are only logged.
func (e *Emitter) Emit(name string, props Properties) {
	if e == nil {
		return
	}

	e.mu.RLock()
	sinks := make([]Sink, len(e.sinks))
	copy(sinks, e.sinks)
	e.mu.RUnlock()

	for _, s := range sinks {
		if err := e.notify(s, name, props); err != nil {
			e.logger.Debug("analytics sink failed", zap.String("event", name), zap.Error(err))
		}
	}
}

func (e *Emitter) notify(s Sink, name string, props Properties) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	if s == nil {
		return nil
	}
	return s.Notify(name, props)
}

var whitespace = regexp.MustCompile(`\s+`)

// GtagName converts "Back in Stock Form Opened" to "back_in_stock_form_opened".
func GtagName(name string) string {
	return whitespace.ReplaceAllString(strings.ToLower(name), "_")
}

// LogSink writes every event to a zap logger.
func LogSink(logger *zap.Logger) Sink {
	return SinkFunc(func(name string, props Properties) error {
		fields := make([]zap.Field, 0, len(props)+1)
		fields = append(fields, zap.String("event", name))
		for k, v := range props {
			fields = append(fields, zap.String(k, v))
		}
		logger.Info("analytics event", fields...)
		return nil
	})
}
