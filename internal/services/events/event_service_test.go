package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
)

func TestPublish_DeliversAsynchronously(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	received := make(chan interfaces.Event, 1)
	require.NoError(t, svc.Subscribe(interfaces.EventHarmonizationReady, func(ctx context.Context, e interfaces.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventHarmonizationReady, Payload: "x"}))

	select {
	case e := <-received:
		assert.Equal(t, "x", e.Payload)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishSync_ReportsHandlerErrors(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	require.NoError(t, svc.Subscribe(interfaces.EventEditsSaved, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("handler failed")
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventEditsSaved})
	assert.Error(t, err)
}

func TestPublishSync_RecoversPanics(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int32
	require.NoError(t, svc.Subscribe(interfaces.EventHarmonizationFailed, func(ctx context.Context, e interfaces.Event) error {
		panic("boom")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventHarmonizationFailed, func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))

	assert.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventHarmonizationFailed}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSubscribe_NilHandler(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	assert.Error(t, svc.Subscribe(interfaces.EventEditsSaved, nil))
}

func TestUnsubscribe(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var calls int32
	handler := interfaces.EventHandler(func(ctx context.Context, e interfaces.Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	require.NoError(t, svc.Subscribe(interfaces.EventEditsSaved, handler))
	require.NoError(t, svc.Unsubscribe(interfaces.EventEditsSaved, handler))
	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventEditsSaved}))

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Error(t, svc.Unsubscribe(interfaces.EventEditsSaved, handler))
}
