package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/events"
)

const notificationTimeout = 10 * time.Second

// ErrNotificationQueueFull is returned to the publisher when an event is dropped.
var ErrNotificationQueueFull = errors.New("notification queue full")

// Notifier delivers the notification for one event.
type Notifier interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker queues notification events and delivers them on its own
// goroutines so slow direct messages never hold up a command.
type NotificationWorker struct {
	notifier Notifier
	queue    chan events.Event
	logger   *zap.Logger
	wg       sync.WaitGroup
}

// StartNotificationWorker subscribes notifier's event types on dispatcher and
// runs workers until ctx is cancelled. Events still queued at that point are
// dropped.
func StartNotificationWorker(ctx context.Context, dispatcher events.Dispatcher, notifier Notifier, workers, buffer int, logger *zap.Logger) *NotificationWorker {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	w := &NotificationWorker{
		notifier: notifier,
		queue:    make(chan events.Event, buffer),
		logger:   logger,
	}
	for _, t := range notifier.EventTypes() {
		dispatcher.Subscribe(t, w.enqueue)
	}
	for i := 0; i < workers; i++ {
		w.wg.Add(1)
		go w.run(ctx)
	}
	return w
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("notification dropped",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID))
		return ErrNotificationQueueFull
	}
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.queue:
			w.deliver(ctx, event)
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, event events.Event) {
	ctx, cancel := context.WithTimeout(ctx, notificationTimeout)
	defer cancel()
	if err := w.notifier.Handle(ctx, event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("user_id", event.UserID),
			zap.Error(err))
	}
}

// Wait blocks until every worker goroutine has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}
