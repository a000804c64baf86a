package s3

import (
	"errors"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fazildgr8/stretch-ai/mapstore"
)

func TestConfig_RequiresBucket(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty bucket")
	}
	if err := (Config{Bucket: "robot-maps"}).Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestKeyLayout(t *testing.T) {
	s := &Store{config: Config{Bucket: "b"}}
	if got := s.key("kitchen"); got != "kitchen.map" {
		t.Errorf("key without prefix = %q, want kitchen.map", got)
	}

	s = &Store{config: Config{Bucket: "b", Prefix: "fleet/unit-7"}}
	if got := s.key("kitchen"); got != "fleet/unit-7/kitchen.map" {
		t.Errorf("key with prefix = %q, want fleet/unit-7/kitchen.map", got)
	}
}

func TestWrapOp_MissingObjectKinds(t *testing.T) {
	if err := wrapOp("load", "m", &s3types.NoSuchKey{}); !errors.Is(err, mapstore.ErrNotFound) {
		t.Errorf("NoSuchKey = %v, want ErrNotFound", err)
	}
	if err := wrapOp("delete", "m", &s3types.NotFound{}); !errors.Is(err, mapstore.ErrNotFound) {
		t.Errorf("NotFound = %v, want ErrNotFound", err)
	}
	if err := wrapOp("save", "m", errors.New("AccessDenied: forbidden")); !errors.Is(err, mapstore.ErrPermission) {
		t.Errorf("AccessDenied = %v, want ErrPermission", err)
	}
	if err := wrapOp("save", "m", nil); err != nil {
		t.Errorf("nil error wrapped to %v", err)
	}
}
