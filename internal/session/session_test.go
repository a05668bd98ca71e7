package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Blubaugh09/SacredDialogue/internal/convstore"
	"github.com/Blubaugh09/SacredDialogue/internal/convstore/memstore"
)

func TestSessionLifecycle(t *testing.T) {
	m := NewManager(memstore.New())
	ctx := context.Background()

	sess, err := m.Start(ctx, "mary", "", "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.ID == "" || sess.StartedAt.IsZero() {
		t.Fatalf("Start returned %+v", sess)
	}

	if err := m.End(ctx, sess.ID, 5); err != nil {
		t.Fatalf("End: %v", err)
	}

	got, err := m.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.EndedAt == nil || got.MessageCount != 5 {
		t.Errorf("Get returned %+v", got)
	}

	if err := m.End(ctx, sess.ID, 6); !errors.Is(err, convstore.ErrNotFound) {
		t.Errorf("double End: err = %v, want ErrNotFound", err)
	}
	if err := m.End(ctx, "unknown", 1); !errors.Is(err, convstore.ErrNotFound) {
		t.Errorf("unknown End: err = %v, want ErrNotFound", err)
	}
}

func TestSessionClientSuppliedID(t *testing.T) {
	m := NewManager(memstore.New())
	ctx := context.Background()
	const id = "5c1f7f7e-0f6a-4a43-95a8-6e2d6a58a0c4"

	sess, err := m.Start(ctx, "esther", id, "Mozilla/5.0 test-suite")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sess.ID != id {
		t.Errorf("ID = %q, want the client's id", sess.ID)
	}
	if sess.DeviceInfo != "Mozilla/5.0 test-suite" {
		t.Errorf("DeviceInfo = %q", sess.DeviceInfo)
	}

	// A retried start for the same visit is not an error.
	if _, err := m.Start(ctx, "esther", id, "Mozilla/5.0 test-suite"); err != nil {
		t.Errorf("repeated Start: %v", err)
	}

	got, err := m.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.DeviceInfo != "Mozilla/5.0 test-suite" {
		t.Errorf("stored DeviceInfo = %q", got.DeviceInfo)
	}
}

func TestSessionRejectsMalformedID(t *testing.T) {
	m := NewManager(memstore.New())
	if _, err := m.Start(context.Background(), "esther", "not-a-uuid", ""); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Start: err = %v, want ErrInvalidID", err)
	}
}
