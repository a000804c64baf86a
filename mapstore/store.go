// Package mapstore persists serialized robot maps under operator-chosen
// names. The daemon executes save_map/load_map commands against one
// Store; backends share the contract so deployments can point it at
// local disk, Redis, or S3 without touching the daemon.
package mapstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"
)

// Sentinel errors for backend failure classification. Use
// errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrNotFound indicates no map is saved under the requested name.
	ErrNotFound = errors.New("map not found")

	// ErrInvalidName indicates a name unusable as a storage key.
	ErrInvalidName = errors.New("invalid map name")

	// ErrCorrupt indicates a stored archive that fails its integrity
	// check (checksum mismatch, missing chunk).
	ErrCorrupt = errors.New("map archive corrupt")

	// ErrPermission indicates a permission failure (EACCES, 403).
	ErrPermission = errors.New("permission denied")

	// ErrDiskFull indicates the backend is out of space.
	ErrDiskFull = errors.New("no space left on device")

	// ErrTimeout indicates the operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrAuth indicates missing or rejected backend credentials.
	ErrAuth = errors.New("authentication failed")

	// ErrNetwork indicates a network-level failure reaching the backend.
	ErrNetwork = errors.New("network error")
)

// Info describes one saved map.
type Info struct {
	// Name is the map's storage name.
	Name string
	// Size is the archive size in bytes.
	Size int64
	// SavedAt is when the map was last saved.
	SavedAt time.Time
}

// Store is the map persistence contract shared by all backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists data under name, replacing any existing map.
	Save(ctx context.Context, name string, data []byte) error
	// Load returns the archive saved under name.
	Load(ctx context.Context, name string) ([]byte, error)
	// List returns all saved maps sorted by name.
	List(ctx context.Context) ([]Info, error)
	// Delete removes the named map.
	Delete(ctx context.Context, name string) error
	// Close releases backend handles.
	Close() error
}

// StoreError wraps a backend error with its classification, the failed
// operation, and the map name involved. The original error stays in the
// chain for errors.As.
type StoreError struct {
	// Kind is the sentinel error classifying the failure.
	Kind error
	// Op is the operation that failed ("save", "load", "list", "delete").
	Op string
	// Name is the map name involved, if any.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s map %q: %v: %v", e.Op, e.Name, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// wrap classifies err and builds a StoreError. Returns nil for nil.
func wrap(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var serr *StoreError
	if errors.As(err, &serr) {
		return err
	}
	return &StoreError{Kind: classify(err), Op: op, Name: name, Err: err}
}

// Wrap classifies err and builds a StoreError carrying op and name.
// Backend adapters in other packages use it so every backend reports
// the same taxonomy. Errors that are already StoreErrors pass through.
func Wrap(op, name string, err error) error {
	return wrap(op, name, err)
}

// NotFound builds the StoreError for a name with nothing saved.
func NotFound(op, name string) error {
	return notFound(op, name)
}

// notFound builds the StoreError for a name with nothing saved.
func notFound(op, name string) *StoreError {
	return &StoreError{Kind: ErrNotFound, Op: op, Name: name,
		Err: errors.New("no archive under this name")}
}

// classify maps a backend error onto a sentinel. Typed checks first,
// message patterns for errors the SDKs only report as strings.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermission
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return ErrTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "no such key", "nosuchkey", "not found", "does not exist", "nil returned"):
		return ErrNotFound
	case containsAny(msg, "no space left", "disk full", "quota exceeded"):
		return ErrDiskFull
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return ErrTimeout
	case containsAny(msg, "credential", "invalidaccesskeyid", "signaturedoesnotmatch", "expiredtoken", "unauthorized", "noauth"):
		return ErrAuth
	case containsAny(msg, "accessdenied", "forbidden", "permission denied"):
		return ErrPermission
	case containsAny(msg, "connection refused", "connection reset", "no route to host", "network unreachable", "dial tcp", "broken pipe"):
		return ErrNetwork
	}
	return errors.New("storage error")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// namePattern bounds what a map may be called: names become file
// names, Redis keys, and S3 object keys, so path separators and
// relative components are out.
var namePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateName reports whether name is usable as a storage key on
// every backend.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) || strings.Contains(name, "..") {
		return &StoreError{Kind: ErrInvalidName, Op: "validate", Name: name,
			Err: errors.New("names are letters, digits, dot, dash, underscore")}
	}
	return nil
}
