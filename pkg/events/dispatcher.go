package events

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DispatcherOptions tunes queueing and retry behavior.
type DispatcherOptions struct {
	QueueSize      int
	Workers        int
	MaxAttempts    int
	InitialBackoff time.Duration
	PublishTimeout time.Duration
}

func (o *DispatcherOptions) fillDefaults() {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = 200 * time.Millisecond
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}
}

// Dispatcher owns a bounded queue of events and a pool of workers that
// publish them with bounded retries. Publish never blocks the caller and
// never reports failure back to it; delivery toward the broker is
// at-least-once within the attempt budget, then the event is dead-letter
// logged and dropped.
type Dispatcher struct {
	broker Broker
	logger *logrus.Logger
	opts   DispatcherOptions

	queue  chan Event
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewDispatcher(broker Broker, logger *logrus.Logger, opts DispatcherOptions) *Dispatcher {
	opts.fillDefaults()
	d := &Dispatcher{
		broker: broker,
		logger: logger,
		opts:   opts,
		queue:  make(chan Event, opts.QueueSize),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Publish enqueues the event and returns immediately. A full queue drops
// the event with a log line rather than stalling the request path.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.logger.WithField("event_type", ev.Type).Warn("event dropped: dispatcher closed")
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.WithField("event_type", ev.Type).Warn("event dropped: queue full")
	}
}

// Close stops accepting events, drains the queue, and waits for workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for ev := range d.queue {
		d.deliver(ev)
	}
}

// deliver retries transient failures with doubling backoff. Delivery runs
// on its own context: request cancellation never reaches in-flight
// attempts.
func (d *Dispatcher) deliver(ev Event) {
	backoff := d.opts.InitialBackoff
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.PublishTimeout)
		err := d.broker.Publish(ctx, ev)
		cancel()
		if err == nil {
			return
		}
		if IsPermanent(err) {
			d.logger.WithError(err).WithField("event_type", ev.Type).Error("event rejected, not retrying")
			return
		}
		d.logger.WithError(err).WithFields(logrus.Fields{
			"event_type": ev.Type,
			"attempt":    attempt,
		}).Warn("event publish failed")
		if attempt < d.opts.MaxAttempts {
			time.Sleep(backoff)
			backoff *= 2
		}
	}
	d.logger.WithFields(logrus.Fields{
		"event_type": ev.Type,
		"attempts":   d.opts.MaxAttempts,
	}).Error("event dead-lettered after retries")
}
