package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowhq/escrow/model"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(client, "escrow:events")
}

func testEvent(to model.Status) model.StatusChangeEvent {
	return model.StatusChangeEvent{
		TransactionID: "txn_1",
		FromStatus:    model.StatusWorkCompleted,
		ToStatus:      to,
		ActorID:       "usr_payer",
		Timestamp:     time.Now().UTC(),
	}
}

func receive(t *testing.T, ch <-chan model.StatusChangeEvent) model.StatusChangeEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return model.StatusChangeEvent{}
	}
}

func TestPublishReachesAllListeners(t *testing.T) {
	svc := newTestService(t)
	defer svc.Stop()
	ctx := context.Background()

	first, unsubFirst, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubFirst()

	second, unsubSecond, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubSecond()

	require.NoError(t, svc.Publish(ctx, testEvent(model.StatusApproved)))

	assert.Equal(t, model.StatusApproved, receive(t, first).ToStatus)
	assert.Equal(t, model.StatusApproved, receive(t, second).ToStatus)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	svc := newTestService(t)
	defer svc.Stop()
	ctx := context.Background()

	ch, unsubscribe, err := svc.Subscribe(ctx)
	require.NoError(t, err)

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is a no-op.
	unsubscribe()
}

func TestLastUnsubscribeTearsDownSubscription(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, unsubscribe, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	unsubscribe()

	svc.mu.Lock()
	assert.Nil(t, svc.sub)
	svc.mu.Unlock()

	// A fresh subscription after teardown still works.
	ch, unsubscribe, err := svc.Subscribe(ctx)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, svc.Publish(ctx, testEvent(model.StatusReleased)))
	assert.Equal(t, model.StatusReleased, receive(t, ch).ToStatus)
}

func TestStopClosesEverything(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ch, _, err := svc.Subscribe(ctx)
	require.NoError(t, err)

	svc.Stop()
	_, open := <-ch
	assert.False(t, open)
}
