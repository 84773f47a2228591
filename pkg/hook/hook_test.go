package hook

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestScriptReplaysInOrder(t *testing.T) {
	samples := []Sample{
		{Kind: KindKeyDown, Code: 12},
		{Kind: KindMouseMove, X: 1, Y: 2},
		{Kind: KindScroll, DY: -3},
	}

	var seen []Sample
	err := Script(samples).Stream(context.Background(), func(s Sample) {
		seen = append(seen, s)
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(seen) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(seen))
	}
	for i := range samples {
		if seen[i].Kind != samples[i].Kind {
			t.Fatalf("sample %d out of order: got kind %v", i, seen[i].Kind)
		}
	}
}

func TestScriptRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Script([]Sample{{Kind: KindKeyDown}}).Stream(ctx, func(Sample) {
		t.Fatalf("no sample should be emitted after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHookDispatchesOnlyWhileHandlerInstalled(t *testing.T) {
	delivered := 0
	blocker := make(chan struct{})
	source := SourceFunc(func(ctx context.Context, emit Handler) error {
		emit(Sample{Kind: KindKeyDown, Code: 4})
		<-blocker
		emit(Sample{Kind: KindKeyUp, Code: 4})
		return nil
	})

	h := New(source)
	done := make(chan error, 1)
	go func() {
		done <- h.Listen(context.Background())
	}()

	// No handler yet: the first sample must be discarded, not queued.
	time.Sleep(10 * time.Millisecond)
	h.SetHandler(func(Sample) { delivered++ })
	close(blocker)

	if err := <-done; err != nil {
		t.Fatalf("listen: %v", err)
	}
	if delivered != 1 {
		t.Fatalf("expected exactly the post-install sample, got %d", delivered)
	}
}

func TestHookListenIsOneShot(t *testing.T) {
	h := New(Script(nil))
	if err := h.Listen(context.Background()); err != nil {
		t.Fatalf("first listen: %v", err)
	}
	if err := h.Listen(context.Background()); !errors.Is(err, ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestClearingHandlerDiscards(t *testing.T) {
	h := New(nil)
	count := 0
	h.SetHandler(func(Sample) { count++ })
	h.dispatch(Sample{Kind: KindKeyDown})
	h.SetHandler(nil)
	h.dispatch(Sample{Kind: KindKeyDown})
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
}

func TestDetectEnvironmentReportsProvider(t *testing.T) {
	env := DetectEnvironment()
	if env.Provider != providerQuartz && env.Provider != providerScripted {
		t.Fatalf("unexpected provider %q", env.Provider)
	}
}
