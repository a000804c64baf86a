// Package channel implements the bounded, single-topic pub/sub
// primitive connecting the two processes. A channel carries opaque
// payloads; queuing behavior is selected per channel by policy:
// bounded(n) keeps at most n pending payloads and drops the oldest on
// overflow, conflated keeps only the most recent payload. Neither
// policy ever blocks the publisher indefinitely.
package channel

import (
	"fmt"
	"strconv"
	"strings"
)

// PolicyKind selects the queuing behavior of a channel.
type PolicyKind string

const (
	// PolicyBounded retains at most Capacity payloads, dropping the
	// oldest on overflow.
	PolicyBounded PolicyKind = "bounded"
	// PolicyConflated retains only the most recent payload; a new
	// publish always overwrites an unread one.
	PolicyConflated PolicyKind = "conflated"
)

// Policy is a channel queuing policy.
type Policy struct {
	Kind PolicyKind
	// Capacity is the queue depth for bounded policies; ignored for
	// conflated.
	Capacity int
}

// Conflated returns the conflated policy.
func Conflated() Policy {
	return Policy{Kind: PolicyConflated}
}

// Bounded returns a bounded policy with the given capacity.
func Bounded(n int) Policy {
	return Policy{Kind: PolicyBounded, Capacity: n}
}

// ParsePolicy parses a policy string from configuration:
// "conflated" or "bounded(n)".
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if s == string(PolicyConflated) {
		return Conflated(), nil
	}
	if strings.HasPrefix(s, string(PolicyBounded)+"(") && strings.HasSuffix(s, ")") {
		inner := s[len(PolicyBounded)+1 : len(s)-1]
		n, err := strconv.Atoi(strings.TrimSpace(inner))
		if err != nil || n < 1 {
			return Policy{}, fmt.Errorf("invalid bounded capacity %q", inner)
		}
		return Bounded(n), nil
	}
	return Policy{}, fmt.Errorf("invalid queue policy %q (must be conflated or bounded(n))", s)
}

// String renders the policy in its configuration form.
func (p Policy) String() string {
	if p.Kind == PolicyBounded {
		return fmt.Sprintf("%s(%d)", p.Kind, p.Capacity)
	}
	return string(p.Kind)
}

// Validate checks the policy is well-formed.
func (p Policy) Validate() error {
	switch p.Kind {
	case PolicyConflated:
		return nil
	case PolicyBounded:
		if p.Capacity < 1 {
			return fmt.Errorf("bounded policy requires capacity >= 1, got %d", p.Capacity)
		}
		return nil
	default:
		return fmt.Errorf("unknown policy kind %q", p.Kind)
	}
}

// newBox builds the mailbox implementing the policy.
func newBox(p Policy) box {
	if p.Kind == PolicyBounded {
		return newBoundedQueue(p.Capacity)
	}
	return newSlot()
}

// box is the policy-specific mailbox behind publishers and
// subscribers. Implementations are safe for one producer and one
// consumer running concurrently.
type box interface {
	// Offer stores a payload per the policy, never blocking. Returns
	// true when an unread payload was displaced (dropped or
	// overwritten).
	Offer(p []byte) bool
	// Poll returns the next payload without blocking.
	Poll() ([]byte, bool)
	// Ready is signaled after each Offer. Consumers wait on it, then
	// re-poll; spurious wakes are allowed.
	Ready() <-chan struct{}
	// Pending reports the number of unread payloads.
	Pending() int
}
