package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBroker fails the first failures calls, then accepts.
type fakeBroker struct {
	mu        sync.Mutex
	failures  int
	attempts  int
	delivered []Event
}

func (b *fakeBroker) Publish(_ context.Context, ev Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	if b.attempts <= b.failures {
		return errors.New("broker unavailable")
	}
	b.delivered = append(b.delivered, ev)
	return nil
}

func (b *fakeBroker) Close() {}

func (b *fakeBroker) snapshot() (int, []Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts, append([]Event(nil), b.delivered...)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestDispatcherDelivers(t *testing.T) {
	broker := &fakeBroker{}
	d := NewDispatcher(broker, quietLogger(), DispatcherOptions{})

	d.Publish(UserRegistered("u1", "a@example.com", "Alice", "acme"))
	d.Close()

	attempts, delivered := broker.snapshot()
	assert.Equal(t, 1, attempts)
	require.Len(t, delivered, 1)
	assert.Equal(t, TypeUserRegistered, delivered[0].Type)
	assert.Equal(t, "acme", delivered[0].Attributes[AttrBusiness])
}

func TestDispatcherRetriesTransientFailures(t *testing.T) {
	broker := &fakeBroker{failures: 2}
	d := NewDispatcher(broker, quietLogger(), DispatcherOptions{
		InitialBackoff: time.Millisecond,
	})

	d.Publish(UserLoggedIn("u1", "a@example.com", "Alice", "acme"))
	d.Close()

	attempts, delivered := broker.snapshot()
	assert.Equal(t, 3, attempts)
	require.Len(t, delivered, 1)
	assert.Equal(t, TypeUserLoggedIn, delivered[0].Type)
}

func TestDispatcherDeadLettersAfterBudget(t *testing.T) {
	broker := &fakeBroker{failures: 100}
	d := NewDispatcher(broker, quietLogger(), DispatcherOptions{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
	})

	d.Publish(UserRegistered("u1", "a@example.com", "Alice", "acme"))
	d.Close()

	attempts, delivered := broker.snapshot()
	assert.Equal(t, 3, attempts, "gives up after the attempt budget")
	assert.Empty(t, delivered)
}

func TestDispatcherDropsPermanentFailures(t *testing.T) {
	d := NewDispatcher(Discard{}, quietLogger(), DispatcherOptions{
		MaxAttempts:    5,
		InitialBackoff: time.Millisecond,
	})

	// Discard rejects permanently; Close returning quickly shows no retries.
	start := time.Now()
	d.Publish(UserRegistered("u1", "a@example.com", "Alice", "acme"))
	d.Close()
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDispatcherPublishNeverBlocks(t *testing.T) {
	// A broker stuck mid-publish must not stall callers once the queue fills.
	block := make(chan struct{})
	broker := &blockingBroker{block: block}
	d := NewDispatcher(broker, quietLogger(), DispatcherOptions{
		QueueSize: 1,
		Workers:   1,
	})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Publish(UserRegistered("u1", "a@example.com", "Alice", "acme"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked the caller")
	}
	close(block)
	d.Close()
}

func TestDispatcherPublishAfterClose(t *testing.T) {
	broker := &fakeBroker{}
	d := NewDispatcher(broker, quietLogger(), DispatcherOptions{})
	d.Close()

	assert.NotPanics(t, func() {
		d.Publish(UserRegistered("u1", "a@example.com", "Alice", "acme"))
	})
	attempts, _ := broker.snapshot()
	assert.Zero(t, attempts)
}

type blockingBroker struct {
	block chan struct{}
}

func (b *blockingBroker) Publish(context.Context, Event) error {
	<-b.block
	return nil
}

func (b *blockingBroker) Close() {}

func TestEventConstructors(t *testing.T) {
	ev := UserRegistered("u1", "a@example.com", "Alice", "acme")
	assert.Equal(t, TypeUserRegistered, ev.Type)
	assert.Equal(t, TypeUserRegistered, ev.Attributes[AttrEventType])
	assert.Equal(t, "acme", ev.Attributes[AttrBusiness])
	assert.Equal(t, "u1", ev.Payload["user_id"])
	assert.Equal(t, "a@example.com", ev.Payload["email"])

	ev = UserLoggedIn("u2", "b@example.com", "Bob", "globex")
	assert.Equal(t, TypeUserLoggedIn, ev.Type)
	assert.Equal(t, TypeUserLoggedIn, ev.Attributes[AttrEventType])
	assert.Equal(t, "globex", ev.Attributes[AttrBusiness])
}
