package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/firm-ops/internal/events"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) EventTypes() []events.EventType {
	return m.Called().Get(0).([]events.EventType)
}

func (m *mockNotifier) Handle(ctx context.Context, event events.Event) error {
	return m.Called(ctx, event).Error(0)
}

func TestNotificationWorkerDeliversOffThePublisher(t *testing.T) {
	notifier := &mockNotifier{}
	delivered := make(chan string, 2)
	notifier.On("EventTypes").Return([]events.EventType{events.EventStaffHired})
	notifier.On("Handle", mock.Anything, mock.MatchedBy(func(e events.Event) bool { return e.UserID == "u1" })).
		Run(func(args mock.Arguments) { delivered <- args.Get(1).(events.Event).UserID }).
		Return(errors.New("dms closed")).Once()
	notifier.On("Handle", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { delivered <- args.Get(1).(events.Event).UserID }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	w := StartNotificationWorker(ctx, dispatcher, notifier, 1, 4, zap.NewNop())

	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventStaffHired, UserID: "u1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventStaffHired, UserID: "u2"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: events.EventStaffFired, UserID: "u3"}))

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case id := <-delivered:
			got[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("delivered: %v", got)
		}
	}
	assert.Equal(t, map[string]bool{"u1": true, "u2": true}, got)

	cancel()
	w.Wait()
}

func TestNotificationWorkerReportsFullQueue(t *testing.T) {
	notifier := &mockNotifier{}
	notifier.On("EventTypes").Return([]events.EventType{events.EventStaffHired})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	w := StartNotificationWorker(ctx, dispatcher, notifier, 1, 1, zap.NewNop())
	w.Wait()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventStaffHired, UserID: "u1"}))
	err := dispatcher.Publish(context.Background(), events.Event{Type: events.EventStaffHired, UserID: "u2"})
	assert.ErrorIs(t, err, ErrNotificationQueueFull)
	notifier.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything)
}
