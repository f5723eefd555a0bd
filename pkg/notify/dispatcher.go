package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-portal-api/pkg/jobs"
)

const jobTypeEmail = "email"

// Sender delivers a message synchronously.
type Sender interface {
	Send(msg Message) error
}

// Observer receives delivery outcomes.
type Observer interface {
	RecordNotification(outcome string)
}

// Dispatcher queues messages and delivers them from background workers.
type Dispatcher struct {
	queue    *jobs.Queue
	sender   Sender
	observer Observer
	logger   *zap.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithObserver reports delivery outcomes to o.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// NewDispatcher wires a queue around sender. Call Start before Notify.
func NewDispatcher(sender Sender, cfg jobs.QueueConfig, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.Logger = logger
	d := &Dispatcher{sender: sender, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = jobs.NewQueue("notifications", d.handle, cfg)
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop waits up to drainTimeout for queued deliveries, then stops the workers.
func (d *Dispatcher) Stop(drainTimeout time.Duration) {
	d.queue.Stop(drainTimeout)
}

// Notify enqueues msg without waiting for delivery.
func (d *Dispatcher) Notify(_ context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return nil
	}
	job := jobs.Job{ID: uuid.NewString(), Type: jobTypeEmail, Payload: msg}
	if err := d.queue.TryEnqueue(job); err != nil {
		d.record("dropped")
		return fmt.Errorf("enqueue notification: %w", err)
	}
	d.record("queued")
	return nil
}

func (d *Dispatcher) handle(_ context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(Message)
	if !ok {
		d.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	if err := d.sender.Send(msg); err != nil {
		d.record("failed")
		return err
	}
	d.record("sent")
	return nil
}

func (d *Dispatcher) record(outcome string) {
	if d.observer != nil {
		d.observer.RecordNotification(outcome)
	}
}
