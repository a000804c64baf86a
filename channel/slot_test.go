package channel_test

import (
	"testing"

	"github.com/fazildgr8/stretch-ai/channel"
)

func TestSlot_LatestWins(t *testing.T) {
	s := channel.NewSlot()

	if _, ok := s.Poll(); ok {
		t.Fatal("Poll on empty slot returned a value")
	}

	if displaced := s.Offer([]byte("a")); displaced {
		t.Error("Offer into empty slot reported displacement")
	}
	if displaced := s.Offer([]byte("b")); !displaced {
		t.Error("Offer over unread value did not report displacement")
	}
	if displaced := s.Offer([]byte("c")); !displaced {
		t.Error("second overwrite not reported")
	}

	v, ok := s.Poll()
	if !ok || string(v) != "c" {
		t.Fatalf("Poll = %q, %v; want latest value \"c\"", v, ok)
	}
	if _, ok := s.Poll(); ok {
		t.Error("Poll did not clear the slot")
	}
	if got := s.Overwrites(); got != 2 {
		t.Errorf("Overwrites() = %d, want 2", got)
	}
}

func TestSlot_ReadySignals(t *testing.T) {
	s := channel.NewSlot()

	select {
	case <-s.Ready():
		t.Fatal("Ready signaled before any Offer")
	default:
	}

	s.Offer([]byte("x"))
	select {
	case <-s.Ready():
	default:
		t.Fatal("Ready not signaled after Offer")
	}
}

func TestBoundedQueue_OrderAndDropOldest(t *testing.T) {
	q := channel.NewBoundedQueue(3)

	q.Offer([]byte("1"))
	q.Offer([]byte("2"))
	q.Offer([]byte("3"))
	if displaced := q.Offer([]byte("4")); !displaced {
		t.Error("overflow did not report a drop")
	}

	// Oldest ("1") was dropped; order of the rest is preserved.
	for _, want := range []string{"2", "3", "4"} {
		v, ok := q.Poll()
		if !ok || string(v) != want {
			t.Fatalf("Poll = %q, %v; want %q", v, ok, want)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Error("Poll on drained queue returned a value")
	}
	if got := q.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestBoundedQueue_WrapAround(t *testing.T) {
	q := channel.NewBoundedQueue(2)

	q.Offer([]byte("a"))
	if v, _ := q.Poll(); string(v) != "a" {
		t.Fatalf("Poll = %q, want \"a\"", v)
	}
	q.Offer([]byte("b"))
	q.Offer([]byte("c"))
	q.Offer([]byte("d")) // drops "b"

	for _, want := range []string{"c", "d"} {
		v, ok := q.Poll()
		if !ok || string(v) != want {
			t.Fatalf("Poll = %q, %v; want %q", v, ok, want)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    channel.Policy
		wantErr bool
	}{
		{"conflated", channel.Conflated(), false},
		{"bounded(8)", channel.Bounded(8), false},
		{"bounded( 64 )", channel.Bounded(64), false},
		{"bounded(0)", channel.Policy{}, true},
		{"bounded(-1)", channel.Policy{}, true},
		{"bounded()", channel.Policy{}, true},
		{"unbounded", channel.Policy{}, true},
		{"", channel.Policy{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := channel.ParsePolicy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParsePolicy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestPolicy_String(t *testing.T) {
	if got := channel.Bounded(16).String(); got != "bounded(16)" {
		t.Errorf("Bounded(16).String() = %q", got)
	}
	if got := channel.Conflated().String(); got != "conflated" {
		t.Errorf("Conflated().String() = %q", got)
	}
}
