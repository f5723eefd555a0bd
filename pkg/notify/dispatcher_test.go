package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-portal-api/pkg/jobs"
)

type senderStub struct {
	mu   sync.Mutex
	sent []Message
	err  error
	done chan struct{}
}

func (s *senderStub) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		s.done <- struct{}{}
		return s.err
	}
	s.sent = append(s.sent, msg)
	s.done <- struct{}{}
	return nil
}

type observerStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *observerStub) RecordNotification(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

func (o *observerStub) snapshot() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

func TestDispatcherDeliversInBackground(t *testing.T) {
	sender := &senderStub{done: make(chan struct{}, 1)}
	obs := &observerStub{}
	d := NewDispatcher(sender, jobs.QueueConfig{Workers: 1}, nil, WithObserver(obs))
	d.Start(context.Background())
	defer d.Stop(time.Second)

	require.NoError(t, d.Notify(context.Background(), Message{To: []string{"a@example.com"}, Subject: "hi"}))

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	sender.mu.Lock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "hi", sender.sent[0].Subject)
	sender.mu.Unlock()

	assert.Eventually(t, func() bool {
		return len(obs.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"queued", "sent"}, obs.snapshot())
}

func TestDispatcherSkipsEmptyRecipients(t *testing.T) {
	sender := &senderStub{done: make(chan struct{}, 1)}
	d := NewDispatcher(sender, jobs.QueueConfig{}, nil)
	d.Start(context.Background())
	defer d.Stop(0)

	require.NoError(t, d.Notify(context.Background(), Message{Subject: "no one"}))
	sender.mu.Lock()
	assert.Empty(t, sender.sent)
	sender.mu.Unlock()
}

func TestDispatcherReportsFailedDelivery(t *testing.T) {
	sender := &senderStub{err: errors.New("smtp down"), done: make(chan struct{}, 1)}
	obs := &observerStub{}
	d := NewDispatcher(sender, jobs.QueueConfig{Workers: 1, MaxRetries: 0}, nil, WithObserver(obs))
	d.Start(context.Background())
	defer d.Stop(0)

	require.NoError(t, d.Notify(context.Background(), Message{To: []string{"a@example.com"}}))
	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("send not attempted")
	}
	assert.Eventually(t, func() bool {
		out := obs.snapshot()
		return len(out) == 2 && out[1] == "failed"
	}, time.Second, 10*time.Millisecond)
}

func TestDispatcherNotStartedReturnsError(t *testing.T) {
	obs := &observerStub{}
	d := NewDispatcher(&senderStub{done: make(chan struct{}, 1)}, jobs.QueueConfig{}, nil, WithObserver(obs))
	err := d.Notify(context.Background(), Message{To: []string{"a@example.com"}})
	require.Error(t, err)
	assert.Equal(t, []string{"dropped"}, obs.snapshot())
}
