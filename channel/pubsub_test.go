package channel_test

import (
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fazildgr8/stretch-ai/channel"
)

func counterPayload(i uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	return b[:]
}

func decodeCounter(t *testing.T, p []byte) uint64 {
	t.Helper()
	if len(p) != 8 {
		t.Fatalf("payload length %d, want 8", len(p))
	}
	return binary.BigEndian.Uint64(p)
}

func newPair(t *testing.T, policy channel.Policy) (*channel.Publisher, *channel.Subscriber) {
	t.Helper()

	pub, err := channel.NewPublisher(channel.PublisherConfig{
		Addr:   "127.0.0.1:0",
		Policy: policy,
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	sub, err := channel.Dial(t.Context(), channel.SubscriberConfig{
		Addr:   pub.Addr(),
		Policy: policy,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	// Wait for the publisher to admit the subscriber before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for pub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never connected")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return pub, sub
}

func TestPubSub_DeliversInOrder(t *testing.T) {
	pub, sub := newPair(t, channel.Bounded(64))

	const n = 20
	for i := uint64(1); i <= n; i++ {
		if err := pub.Publish(counterPayload(i)); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	var last uint64
	for last != n {
		p, err := sub.Receive(2 * time.Second)
		if errors.Is(err, channel.ErrNoData) {
			t.Fatalf("receive timed out at counter %d", last)
		}
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		got := decodeCounter(t, p)
		if got <= last {
			t.Fatalf("payload order regressed: %d after %d", got, last)
		}
		last = got
	}
}

func TestPubSub_ConflatedKeepsFreshest(t *testing.T) {
	pub, sub := newPair(t, channel.Conflated())

	const n = 200
	for i := uint64(1); i <= n; i++ {
		if err := pub.Publish(counterPayload(i)); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}

	// Conflation may skip any prefix of values but never reorders, and
	// the final value must eventually arrive.
	var last uint64
	deadline := time.Now().Add(5 * time.Second)
	for last != n {
		if time.Now().After(deadline) {
			t.Fatalf("never observed final payload; last seen %d", last)
		}
		p, err := sub.Receive(100 * time.Millisecond)
		if errors.Is(err, channel.ErrNoData) {
			continue
		}
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
		got := decodeCounter(t, p)
		if got <= last {
			t.Fatalf("conflation reordered: %d after %d", got, last)
		}
		last = got
	}
}

func TestSubscriber_ReceiveTimeout(t *testing.T) {
	_, sub := newPair(t, channel.Conflated())

	_, err := sub.Receive(50 * time.Millisecond)
	if !errors.Is(err, channel.ErrNoData) {
		t.Fatalf("Receive on idle channel = %v, want ErrNoData", err)
	}
}

func TestSubscriber_TransportFailureSurfaced(t *testing.T) {
	pub, sub := newPair(t, channel.Bounded(8))

	if err := pub.Publish(counterPayload(1)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Logf("publisher close: %v", err)
	}

	// Buffered payloads drain first, then the failure is surfaced on
	// every subsequent call.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatal("transport failure never surfaced")
		}
		_, err := sub.Receive(100 * time.Millisecond)
		if err == nil || errors.Is(err, channel.ErrNoData) {
			continue
		}
		if !channel.IsTransportError(err) {
			t.Fatalf("Receive after peer close = %v, want TransportError", err)
		}
		break
	}

	if !sub.Stats().Failed {
		t.Error("Stats().Failed = false after transport failure")
	}
}

func TestPublisher_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	pub, err := channel.NewPublisher(channel.PublisherConfig{
		Addr:         "127.0.0.1:0",
		Policy:       channel.Conflated(),
		WriteTimeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	t.Cleanup(func() { _ = pub.Close() })

	// A raw connection that never reads fills its TCP buffers; the
	// publisher's writer stalls but Publish must not.
	conn, err := net.Dial("tcp", pub.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for pub.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("raw subscriber never admitted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	payload := make([]byte, 64*1024)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			_ = pub.Publish(payload)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	stats := pub.Stats()
	if stats.Published != 2000 {
		t.Errorf("Published = %d, want 2000", stats.Published)
	}
	if stats.Conflated == 0 {
		t.Error("expected conflation against a stalled subscriber")
	}
}

func TestSubscriber_NextAndCancel(t *testing.T) {
	pub, sub := newPair(t, channel.Bounded(8))

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = pub.Publish(counterPayload(7))
	}()

	p, err := sub.Next(t.Context())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if got := decodeCounter(t, p); got != 7 {
		t.Errorf("Next payload = %d, want 7", got)
	}
}

func TestDial_FailsWithTransportError(t *testing.T) {
	_, err := channel.Dial(t.Context(), channel.SubscriberConfig{
		// A port from the discard range with nothing listening.
		Addr:        "127.0.0.1:9",
		Policy:      channel.Conflated(),
		DialTimeout: 200 * time.Millisecond,
		DialRetries: 1,
	})
	if err == nil {
		t.Fatal("Dial to dead endpoint succeeded")
	}
	if !channel.IsTransportError(err) {
		t.Fatalf("Dial error = %v, want TransportError", err)
	}
}
