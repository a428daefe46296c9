package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestDeviceIDResolverResolvesAndIsStable(t *testing.T) {
	r := NewDeviceIDResolver(time.Second)
	id := r.Get(context.Background())
	if id == "" {
		t.Fatal("expected a resolved device id")
	}
	if id2 := r.Get(context.Background()); id2 != id {
		t.Fatalf("expected stable device id across calls, got %q then %q", id, id2)
	}
	if !r.Ready() {
		t.Fatal("expected resolver to report ready after Get returns")
	}
}

func TestDeviceIDResolverTimesOut(t *testing.T) {
	r := &DeviceIDResolver{done: make(chan struct{}), timeout: time.Nanosecond}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if id := r.Get(ctx); id != "" {
		t.Fatalf("expected empty id on near-zero timeout before background resolution, got %q", id)
	}
}
