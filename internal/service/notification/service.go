package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-timekeeping/internal/domain/notification"
	"github.com/cmlabs-hris/hris-timekeeping/internal/pkg/sse"
)

// Config holds dispatcher configuration
type Config struct {
	WorkerCount     int           // default: 2
	QueueSize       int           // default: 1000
	DeliveryTimeout time.Duration // default: 5 seconds
}

// Dispatcher queues status changes and lets background workers deliver them
// to every sink. Callers are never blocked on or told about delivery.
type Dispatcher struct {
	sinks  []notification.Sink
	config Config

	queue   chan notification.StatusChange
	wg      sync.WaitGroup
	stopCh  chan struct{}
	stopped sync.Once
}

// NewDispatcher starts the workers.
func NewDispatcher(cfg Config, sinks ...notification.Sink) *Dispatcher {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}

	d := &Dispatcher{
		sinks:  sinks,
		config: cfg,
		queue:  make(chan notification.StatusChange, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, s.Name())
	}
	slog.Info("notification dispatcher started", "workers", cfg.WorkerCount, "queue_size", cfg.QueueSize, "sinks", names)
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	for {
		select {
		case change := <-d.queue:
			d.deliver(change)
		case <-d.stopCh:
			// drain what was queued before the stop
			for {
				select {
				case change := <-d.queue:
					d.deliver(change)
				default:
					slog.Debug("notification worker stopped", "worker", id)
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(change notification.StatusChange) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.config.DeliveryTimeout)
		err := sink.Deliver(ctx, change)
		cancel()
		if err != nil {
			slog.Error("notification delivery failed",
				"sink", sink.Name(),
				"request_id", change.RequestID,
				"status", change.Status,
				"error", err,
			)
		}
	}
}

// NotifyStatusChange implements notification.Notifier. When the queue is
// full the change is delivered on the caller's goroutine.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, change notification.StatusChange) {
	select {
	case <-d.stopCh:
		slog.Warn("notification dropped after shutdown", "request_id", change.RequestID)
		return
	default:
	}

	select {
	case d.queue <- change:
	default:
		slog.Warn("notification queue full, delivering inline", "request_id", change.RequestID)
		d.deliver(change)
	}
}

// Stop drains the queue and waits for the workers.
func (d *Dispatcher) Stop() {
	d.stopped.Do(func() {
		close(d.stopCh)
		d.wg.Wait()
		slog.Info("notification dispatcher stopped")
	})
}

// HubSink pushes status changes to the requester's open event streams.
type HubSink struct {
	hub *sse.Hub
}

func NewHubSink(hub *sse.Hub) *HubSink {
	return &HubSink{hub: hub}
}

func (s *HubSink) Name() string { return "sse" }

// Deliver implements notification.Sink. Users without an open stream simply
// miss the event.
func (s *HubSink) Deliver(ctx context.Context, change notification.StatusChange) error {
	s.hub.Publish(change.UserID, sse.Event{
		ID:     change.ID,
		UserID: change.UserID,
		Event:  notification.EventLeaveStatusChanged,
		Data:   change,
	})
	return nil
}
