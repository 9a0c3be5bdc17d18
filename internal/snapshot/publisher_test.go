package snapshot

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_Latest(t *testing.T) {
	p := NewPublisher()
	assert.Nil(t, p.Latest())

	first := &Snapshot{}
	p.Publish(first)
	assert.Same(t, first, p.Latest())
	assert.Equal(t, uint64(1), first.Seq)

	second := &Snapshot{}
	p.Publish(second)
	assert.Same(t, second, p.Latest())
	assert.Equal(t, uint64(2), second.Seq)
}

func TestPublisher_NeverBlocks(t *testing.T) {
	p := NewPublisher()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			p.Publish(&Snapshot{})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked without a reader")
	}

	// One pending notification, pointing at the newest snapshot.
	<-p.Updates()
	assert.Equal(t, uint64(100), p.Latest().Seq)
	select {
	case <-p.Updates():
		t.Fatal("expected a single pending notification")
	default:
	}
}

func TestPublisher_FinalWins(t *testing.T) {
	p := NewPublisher()

	final := &Snapshot{}
	p.PublishFinal(final)
	assert.True(t, final.Final)

	select {
	case <-p.Done():
	default:
		t.Fatal("Done not closed")
	}

	p.Publish(&Snapshot{})
	assert.Same(t, final, p.Latest())

	// A second final is accepted without closing Done twice.
	again := &Snapshot{}
	p.PublishFinal(again)
	assert.Same(t, again, p.Latest())
}

func TestPublisher_Run(t *testing.T) {
	p := NewPublisher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var builds atomic.Int32
	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, time.Millisecond, func() *Snapshot {
			if builds.Add(1)%2 == 0 {
				return nil
			}
			return &Snapshot{}
		})
	}()

	require.Eventually(t, func() bool {
		s := p.Latest()
		return s != nil && s.Seq >= 3
	}, 5*time.Second, time.Millisecond)

	p.PublishFinal(&Snapshot{})
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the final snapshot")
	}
	assert.True(t, p.Latest().Final)
}

func TestPublisher_RunStopsOnCancel(t *testing.T) {
	p := NewPublisher()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.Run(ctx, time.Hour, func() *Snapshot { return &Snapshot{} })
	}()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Nil(t, p.Latest())
}
