package notify

import (
	"context"
	"sync"
	"time"

	"github.com/mcclellann/loanTracker/pkg/logger"
	"go.uber.org/zap"
)

type envelope struct {
	event     Event
	requestID string
}

// Dispatcher delivers events on background workers. Dispatch never blocks:
// when the queue is full or the dispatcher is closed the event is dropped
// and logged. Failed deliveries are logged and not retried.
type Dispatcher struct {
	sender  Sender
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan envelope
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, queueSize, workers int, timeout time.Duration) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		sender:  sender,
		timeout: timeout,
		queue:   make(chan envelope, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Dispatch queues event for delivery and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields := []zap.Field{zap.String("kind", string(event.Kind)), zap.String("loan_id", event.LoanID)}
	if d.closed {
		logger.CtxWarn(ctx, "notification dropped, dispatcher closed", fields...)
		return
	}
	select {
	case d.queue <- envelope{event: event, requestID: logger.RequestID(ctx)}:
		logger.CtxDebug(ctx, "notification queued", fields...)
	default:
		logger.CtxWarn(ctx, "notification dropped, queue full", fields...)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for env := range d.queue {
		d.deliver(env)
	}
}

func (d *Dispatcher) deliver(env envelope) {
	ctx := logger.WithRequestID(context.Background(), env.requestID)
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	fields := []zap.Field{
		zap.String("kind", string(env.event.Kind)),
		zap.String("loan_id", env.event.LoanID),
		zap.String("to", env.event.To),
	}
	if err := d.sender.Send(ctx, env.event); err != nil {
		logger.CtxError(ctx, "notification delivery failed", err, fields...)
		return
	}
	logger.CtxInfo(ctx, "notification sent", fields...)
}

// Close stops accepting events and waits for queued ones to be delivered,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
