package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeComp struct {
	stop     chan struct{}
	runErr   error
	shutdown atomic.Int32
}

func newFake(runErr error) *fakeComp {
	return &fakeComp{stop: make(chan struct{}), runErr: runErr}
}

func (f *fakeComp) Run() error {
	if f.runErr != nil {
		return f.runErr
	}
	<-f.stop
	return nil
}

func (f *fakeComp) Shutdown(ctx context.Context) error {
	if f.shutdown.Add(1) == 1 {
		close(f.stop)
	}
	return nil
}

func TestRunContextStopsAllComponents(t *testing.T) {
	a, b := newFake(nil), newFake(nil)
	app := NewWith(a, b)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := app.RunContext(ctx); err != nil {
		t.Fatalf("expected nil on ctx stop, got %v", err)
	}
	if a.shutdown.Load() != 1 || b.shutdown.Load() != 1 {
		t.Fatalf("every component must be shut down once")
	}
}

func TestRunContextReturnsComponentError(t *testing.T) {
	boom := errors.New("boom")
	ok, bad := newFake(nil), newFake(boom)
	app := NewWith(ok, bad)
	app.SetShutdownTimeout(time.Second)
	if err := app.RunContext(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected component error, got %v", err)
	}
	if ok.shutdown.Load() != 1 {
		t.Fatalf("healthy component must be shut down")
	}
}
