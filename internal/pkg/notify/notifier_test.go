package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(4, nil)
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	notifier.Publish(Event{Type: EventNewReport, Data: map[string]interface{}{"report_id": "abc"}})

	select {
	case event := <-sub.C:
		assert.Equal(t, EventNewReport, event.Type)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublish_FanOut(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(4, nil)
	first := notifier.Subscribe()
	second := notifier.Subscribe()
	defer notifier.Unsubscribe(first)
	defer notifier.Unsubscribe(second)

	assert.Equal(t, 2, notifier.SubscriberCount())

	notifier.Publish(Event{Type: EventReportVerified})
	assert.Len(t, first.C, 1)
	assert.Len(t, second.C, 1)
}

func TestPublish_DropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(1, nil)
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)

	notifier.Publish(Event{Type: EventReportUpdated})
	notifier.Publish(Event{Type: EventReportConfirmed})

	require.Len(t, sub.C, 1, "overflow events are dropped, never blocked on")
	event := <-sub.C
	assert.Equal(t, EventReportUpdated, event.Type)
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(1, nil)
	sub := notifier.Subscribe()
	notifier.Unsubscribe(sub)

	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 0, notifier.SubscriberCount())

	// a second unsubscribe is a no-op
	notifier.Unsubscribe(sub)
}

func TestPublish_NoSubscribers(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(1, nil)
	notifier.Publish(Event{Type: EventClustersRebuilt})
}

func TestPublish_MirrorNeverBlocksCaller(t *testing.T) {
	t.Parallel()

	// a mirror backlog with nothing draining it: Publish must still return
	notifier := NewNotifier(4, nil)
	notifier.mirror = make(chan Event, 2)

	notifier.Publish(Event{Type: EventReportUpdated})
	notifier.Publish(Event{Type: EventReportVerified})
	notifier.Publish(Event{Type: EventReportConfirmed})

	require.Len(t, notifier.mirror, 2, "a full mirror backlog drops instead of blocking")
	assert.Equal(t, EventReportUpdated, (<-notifier.mirror).Type)
	assert.Equal(t, EventReportVerified, (<-notifier.mirror).Type)
}

func TestNewNotifier_DefaultBufferSize(t *testing.T) {
	t.Parallel()

	notifier := NewNotifier(0, nil)
	sub := notifier.Subscribe()
	defer notifier.Unsubscribe(sub)
	assert.Equal(t, 16, cap(sub.C))
}
