package mapstore

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"testing"
)

func TestValidateName(t *testing.T) {
	valid := []string{"kitchen", "floor-2", "lab_v2", "a", "run.2026-08-23"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) = %v, want nil", name, err)
		}
	}

	invalid := []string{"", "../etc/passwd", "a/b", ".hidden", "-flag", "has space", string(make([]byte, 200))}
	for _, name := range invalid {
		err := ValidateName(name)
		if !errors.Is(err, ErrInvalidName) {
			t.Errorf("ValidateName(%q) = %v, want ErrInvalidName", name, err)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"fs not exist", fs.ErrNotExist, ErrNotFound},
		{"fs permission", fs.ErrPermission, ErrPermission},
		{"deadline", context.DeadlineExceeded, ErrTimeout},
		{"net timeout", &net.DNSError{IsTimeout: true}, ErrTimeout},
		{"redis nil", errors.New("redis: nil returned"), ErrNotFound},
		{"s3 no such key", errors.New("NoSuchKey: the specified key does not exist"), ErrNotFound},
		{"disk full", errors.New("write /maps/a.map: no space left on device"), ErrDiskFull},
		{"s3 denied", errors.New("AccessDenied: forbidden"), ErrPermission},
		{"aws creds", errors.New("failed to retrieve credentials"), ErrAuth},
		{"conn refused", errors.New("dial tcp 127.0.0.1:6379: connection refused"), ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStoreError_Chain(t *testing.T) {
	base := errors.New("underlying")
	err := wrap("save", "kitchen", base)

	var serr *StoreError
	if !errors.As(err, &serr) {
		t.Fatalf("wrap did not produce a *StoreError: %v", err)
	}
	if serr.Op != "save" || serr.Name != "kitchen" {
		t.Errorf("StoreError = %+v, want op save name kitchen", serr)
	}
	if !errors.Is(err, base) {
		t.Error("underlying error lost from the chain")
	}

	// Wrapping an already-classified error must not double-wrap.
	if again := wrap("save", "kitchen", err); again != err {
		t.Error("wrap re-wrapped a StoreError")
	}
}

func TestStubStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewStubStore()

	if err := s.Save(ctx, "kitchen", []byte("archive-1")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != "archive-1" {
		t.Errorf("Load = %q, want archive-1", got)
	}

	if _, err := s.Load(ctx, "garage"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of missing map = %v, want ErrNotFound", err)
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Name != "kitchen" || infos[0].Size != 9 {
		t.Errorf("List = %+v, want one 9-byte kitchen entry", infos)
	}

	if err := s.Delete(ctx, "kitchen"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "kitchen"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}

	if s.Saves[0] != "kitchen" || s.Loads[0] != "kitchen" {
		t.Errorf("recorded ops = %v / %v", s.Saves, s.Loads)
	}
}

func TestStubStore_FailureInjection(t *testing.T) {
	ctx := context.Background()
	s := NewStubStore()
	s.FailSave = errors.New("dial tcp: connection refused")

	err := s.Save(ctx, "kitchen", []byte("x"))
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Save with injected failure = %v, want ErrNetwork", err)
	}
}

func TestStubStore_LoadIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewStubStore()
	if err := s.Save(ctx, "kitchen", []byte("abc")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got[0] = 'z'

	again, err := s.Load(ctx, "kitchen")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(again) != "abc" {
		t.Error("mutating a loaded archive changed the stored copy")
	}
}
