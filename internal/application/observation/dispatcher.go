package observation

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/doeshing/orca-go/internal/domain"
	"github.com/doeshing/orca-go/internal/ports"
)

// ErrDispatcherClosed is returned by Record after Close.
var ErrDispatcherClosed = errors.New("metrics dispatcher closed")

// Dispatcher fans metrics out to sinks on a single background goroutine.
// Record never blocks: when the buffer is full the event is dropped.
type Dispatcher struct {
	events chan domain.AgentMetrics
	sinks  []ports.MetricsSink
	logger ports.Logger

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

// NewDispatcher starts the delivery goroutine.
func NewDispatcher(buffer int, logger ports.Logger, sinks ...ports.MetricsSink) *Dispatcher {
	if buffer <= 0 {
		buffer = domain.DefaultMetricsBuffer
	}
	d := &Dispatcher{
		events: make(chan domain.AgentMetrics, buffer),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

// Record implements ports.MetricsSink.
func (d *Dispatcher) Record(m domain.AgentMetrics) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.events <- m:
	default:
		d.dropped.Add(1)
		d.logger.Warn("metrics buffer full, event dropped", map[string]interface{}{"command": m.Command})
	}
	return nil
}

// Close stops accepting events and waits until the buffer is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	<-d.done
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for m := range d.events {
		for _, sink := range d.sinks {
			d.deliver(sink, m)
		}
	}
}

func (d *Dispatcher) deliver(sink ports.MetricsSink, m domain.AgentMetrics) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("metrics sink panicked", fmt.Errorf("%v", r), map[string]interface{}{"command": m.Command})
		}
	}()
	if err := sink.Record(m); err != nil {
		d.logger.Warn("metrics sink failed", map[string]interface{}{"command": m.Command, "error": err.Error()})
	}
}

var _ ports.MetricsSink = (*Dispatcher)(nil)
